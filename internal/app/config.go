package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/order"
)

// Config holds the complete application configuration, loadable from
// environment variables (ACIDIC_ prefix), flags, or YAML config files.
//
// Every backing service is optional. Without them the storefront runs on
// in-process stores and the embedded catalog.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ACIDIC_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Redis       RedisConfig
	Mongo       MongoConfig
	Kafka       KafkaConfig
	Checkout    CheckoutConfig
	Loyalty     LoyaltyConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// RedisConfig locates the per-client state store.
type RedisConfig struct {
	Addr     string        `usage:"Redis URL or host:port (ACIDIC_REDIS_ADDR or REDIS_URL)"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database number"`
	TTL      time.Duration `default:"720h" usage:"Expiry of idle client state"`
}

// MongoConfig locates the product catalog collection.
type MongoConfig struct {
	URI      string `usage:"MongoDB connection URI"`
	Database string `default:"storefront" usage:"MongoDB database name"`
}

// KafkaConfig controls order event publishing.
type KafkaConfig struct {
	Brokers     []string `usage:"Kafka broker addresses"`
	OrdersTopic string   `default:"storefront.orders.placed" usage:"Topic for OrderPlaced events"`
}

// CheckoutConfig holds order-level charges and payment timing. Money values
// are decimal strings.
type CheckoutConfig struct {
	DeliveryFee    string        `default:"150" usage:"Flat delivery fee for non-empty carts"`
	TaxRate        string        `default:"0" usage:"Tax as a percentage of the subtotal"`
	PaymentDelay   time.Duration `default:"2s" usage:"Simulated payment processing delay"`
	CurrencySymbol string        `default:"Rs." usage:"Currency symbol in display strings"`
}

// LoyaltyConfig controls the rewards program.
type LoyaltyConfig struct {
	WelcomeBonus int64 `default:"100" usage:"Points granted on a user's first sign-in"`
}

// SessionConfig controls eviction of idle in-memory sessions.
type SessionConfig struct {
	IdleTimeout   time.Duration `default:"30m" usage:"Drop sessions idle for longer than this"`
	SweepInterval time.Duration `default:"1m" usage:"How often idle sessions are swept"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	RPS   float64 `default:"20" usage:"Sustained requests per second per client"`
	Burst int     `default:"40" usage:"Burst size per client"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ACIDIC",
		Files:     []string{"config.yaml", "/etc/acidic/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if _, err := cfg.Pricing(); err != nil {
		return nil, err
	}
	if cfg.Loyalty.WelcomeBonus < 0 {
		return nil, errors.New("loyalty welcome bonus must not be negative")
	}
	if cfg.Kafka.OrdersTopic == "" {
		cfg.Kafka.OrdersTopic = order.TopicOrderPlaced
	}
	return &cfg, nil
}

// Pricing parses the checkout charges.
func (c *Config) Pricing() (cart.Pricing, error) {
	fee, err := decimal.NewFromString(c.Checkout.DeliveryFee)
	if err != nil {
		return cart.Pricing{}, errors.Wrap(err, "parse delivery fee")
	}
	rate, err := decimal.NewFromString(c.Checkout.TaxRate)
	if err != nil {
		return cart.Pricing{}, errors.Wrap(err, "parse tax rate")
	}
	if fee.IsNegative() || rate.IsNegative() {
		return cart.Pricing{}, errors.New("delivery fee and tax rate must not be negative")
	}
	return cart.Pricing{DeliveryFee: fee, TaxRate: rate}, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's ACIDIC_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Redis.Addr == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.Redis.Addr = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
