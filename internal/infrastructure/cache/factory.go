package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/auth"
	"github.com/erp/catalogsync/internal/infrastructure/config"
)

// StoreFactory creates the idempotency store, the latest-run cache and the
// token blacklist, backed by Redis when it is enabled and reachable.
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	connect               func(config.RedisConfig) (*redis.Client, error)
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		connect:               NewRedisClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Stores are the Redis-or-memory backed stores of the service.
type Stores struct {
	Idempotency    shared.IdempotencyStore
	LatestRun      *LatestRunCache
	TokenBlacklist auth.TokenBlacklist
	Redis          bool
}

// Close releases the stores
func (s *Stores) Close() error {
	return s.Idempotency.Close()
}

// Create builds the stores. Redis is used when enabled; if it cannot be
// reached the factory falls back to memory unless fallback was disabled.
func (f *StoreFactory) Create() (*Stores, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory stores")
		return f.inMemory(), nil
	}

	client, err := f.connect(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis stores", zap.String("addr", f.redisConfig.Addr()))
		return &Stores{
			Idempotency:    NewRedisIdempotencyStore(client, ""),
			LatestRun:      NewLatestRunCache(NewRedisBlobStore(client)),
			TokenBlacklist: auth.NewRedisTokenBlacklist(client),
			Redis:          true,
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Events may be handled twice across instances.",
		zap.Error(err),
	)
	return f.inMemory(), nil
}

func (f *StoreFactory) inMemory() *Stores {
	return &Stores{
		Idempotency:    NewInMemoryIdempotencyStore(),
		LatestRun:      NewLatestRunCache(NewInMemoryBlobStore()),
		TokenBlacklist: auth.NewInMemoryTokenBlacklist(),
	}
}
