package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/xenking/acidic-storefront/db"
	"github.com/xenking/acidic-storefront/internal/domain/loyalty"
	"github.com/xenking/acidic-storefront/internal/domain/money"
	"github.com/xenking/acidic-storefront/internal/domain/order"
	"github.com/xenking/acidic-storefront/internal/domain/payment"
	"github.com/xenking/acidic-storefront/internal/domain/product"
	"github.com/xenking/acidic-storefront/internal/domain/promo"
	"github.com/xenking/acidic-storefront/internal/handler"
	"github.com/xenking/acidic-storefront/internal/messaging"
	"github.com/xenking/acidic-storefront/internal/messaging/kafka"
	"github.com/xenking/acidic-storefront/internal/state"
	"github.com/xenking/acidic-storefront/internal/storage/mongo"
	"github.com/xenking/acidic-storefront/internal/storage/postgres"
	"github.com/xenking/acidic-storefront/internal/storage/redis"
	"github.com/xenking/acidic-storefront/internal/storefront"
	"github.com/xenking/acidic-storefront/pkg/health"
	"github.com/xenking/acidic-storefront/pkg/httpmiddleware"
)

const serviceName = "acidic-storefront"

// backends are the storage and messaging collaborators picked from Config.
type backends struct {
	state     state.Store
	catalog   product.Repository
	orders    order.Repository
	profiles  loyalty.ProfileStore
	promos    promo.Repository
	publisher messaging.Publisher

	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// connect opens every configured backing service and registers its
// readiness probe. Unconfigured services fall back to in-process stores.
func connect(ctx context.Context, lg *zap.Logger, cfg *Config, hs *health.Health) (_ *backends, rerr error) {
	b := &backends{publisher: messaging.Nop{}}
	defer func() {
		if rerr != nil {
			b.close()
		}
	}()

	if cfg.Redis.Addr != "" {
		client, err := redis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		hs.AddReadiness(health.Probe{
			Name:    "redis",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
		b.state = redis.New(client, redis.WithTTL(cfg.Redis.TTL))
		lg.Info("Client state in Redis")
	} else {
		b.state = state.NewMemory()
		lg.Info("Client state in memory")
	}

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		if pool, err = postgres.NewPool(ctx, cfg.DatabaseURL); err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		b.closers = append(b.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		hs.AddReadiness(health.Probe{
			Name:    "postgres",
			Timeout: 5 * time.Second,
			Check:   health.PingCheck(pool),
		})
		b.orders = postgres.NewOrderRepository(pool)
		b.profiles = postgres.NewLoyaltyRepository(pool)
		b.promos = postgres.NewPromoRepository(pool)
		lg.Info("Orders, loyalty and promos in PostgreSQL")
	} else {
		b.orders = order.NewMemory()
		b.profiles = loyalty.NewStateStore(b.state)
		b.promos = promo.NewMemory()
		lg.Warn("No database configured, orders are kept in memory")
	}

	switch {
	case cfg.Mongo.URI != "":
		mdb, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, errors.Wrap(err, "connect mongo")
		}
		b.closers = append(b.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mdb.Client().Disconnect(ctx)
		})
		catalog := mongo.NewCatalog(mdb)
		if err := catalog.CreateIndexes(ctx); err != nil {
			return nil, errors.Wrap(err, "create catalog indexes")
		}
		hs.AddReadiness(health.Probe{
			Name:    "mongo",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				return mdb.Client().Ping(ctx, readpref.Primary())
			},
		})
		b.catalog = catalog
		lg.Info("Catalog in MongoDB", zap.String("database", cfg.Mongo.Database))
	case pool != nil:
		b.catalog = postgres.NewProductRepository(pool)
		lg.Info("Catalog in PostgreSQL")
	default:
		products, err := product.DecodeCatalog(db.SeedProducts)
		if err != nil {
			return nil, errors.Wrap(err, "load embedded catalog")
		}
		b.catalog = product.NewMemory(products...)
		lg.Info("Catalog from embedded seed", zap.Int("products", len(products)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisher(cfg.Kafka.Brokers)
		b.closers = append(b.closers, func() {
			if err := pub.Close(); err != nil {
				lg.Warn("Close kafka publisher", zap.Error(err))
			}
		})
		b.publisher = pub
		lg.Info("Publishing order events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.OrdersTopic),
		)
	}
	return b, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pricing, err := cfg.Pricing()
	if err != nil {
		return err
	}

	healthSvc := health.New()
	healthSvc.AddLiveness(health.Probe{
		Name:  "goroutines",
		Check: health.GoroutineCountCheck(10000),
	})

	b, err := connect(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer b.close()

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	metrics, err := storefront.NewMetrics(m.MeterProvider().Meter(serviceName))
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}

	// Domain services.
	svc := storefront.New(storefront.Deps{
		State:    b.state,
		Catalog:  b.catalog,
		Orders:   b.orders,
		Recorder: order.NewRecorder(b.orders, order.WithPublisher(b.publisher, cfg.Kafka.OrdersTopic)),
		Loyalty:  loyalty.NewEngine(b.profiles, loyalty.WithWelcomeBonus(cfg.Loyalty.WelcomeBonus)),
		Promos:   promo.NewService(b.promos),
		Payments: payment.NewSimulator(cfg.Checkout.PaymentDelay,
			payment.WithTracerProvider(m.TracerProvider()),
		),
		Pricing: pricing,
		Metrics: metrics,
	})
	go sweepSessions(ctx, svc, cfg.Session)

	// HTTP handlers.
	h := handler.New(svc, money.NewFormatter(cfg.Checkout.CurrencySymbol))

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/api", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Payment submission holds the request for the processing delay.
		WriteTimeout:   cfg.Checkout.PaymentDelay + 30*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				RPS:     cfg.RateLimit.RPS,
				Burst:   cfg.RateLimit.Burst,
				KeyFunc: httpmiddleware.HeaderKey(handler.HeaderClientID),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// sweepSessions evicts idle sessions until ctx is done.
func sweepSessions(ctx context.Context, svc *storefront.Service, cfg SessionConfig) {
	if cfg.SweepInterval <= 0 || cfg.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := svc.Sweep(cfg.IdleTimeout); n > 0 {
				zctx.From(ctx).Debug("Swept idle sessions", zap.Int("count", n))
			}
		}
	}
}
