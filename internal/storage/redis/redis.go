// Package redis stores per-client state in Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/acidic-storefront/internal/state"
)

var _ state.Store = (*Store)(nil)

// Store keeps each (client, key) pair in its own Redis string. Writes reset
// the expiry so that active clients keep their state.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL expires keys ttl after their last write. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix namespaces keys.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New returns a Store over client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "acidic",
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect parses a redis:// URL, or a bare host:port, and pings the server.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

func (s *Store) key(clientID string, key state.Key) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, clientID, key)
}

// Get implements state.Store.
func (s *Store) Get(ctx context.Context, clientID string, key state.Key) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(clientID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, state.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return data, nil
}

// Set implements state.Store.
func (s *Store) Set(ctx context.Context, clientID string, key state.Key, value []byte) error {
	if err := s.client.Set(ctx, s.key(clientID, key), value, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Delete implements state.Store.
func (s *Store) Delete(ctx context.Context, clientID string, key state.Key) error {
	if err := s.client.Del(ctx, s.key(clientID, key)).Err(); err != nil {
		return errors.Wrap(err, "redis delete")
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
