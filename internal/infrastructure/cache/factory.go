package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/infrastructure/config"
	"github.com/retailops/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CounterStoreFactory creates the counter store selected by configuration
type CounterStoreFactory struct {
	barcodeConfig config.BarcodeConfig
	redisConfig   config.RedisConfig
	db            *gorm.DB
	logger        *zap.Logger
}

// CounterStoreFactoryOption is a functional option for configuring the factory
type CounterStoreFactoryOption func(*CounterStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) CounterStoreFactoryOption {
	return func(f *CounterStoreFactory) {
		f.logger = logger
	}
}

// NewCounterStoreFactory creates a new factory
func NewCounterStoreFactory(barcodeCfg config.BarcodeConfig, redisCfg config.RedisConfig, db *gorm.DB, opts ...CounterStoreFactoryOption) *CounterStoreFactory {
	f := &CounterStoreFactory{
		barcodeConfig: barcodeCfg,
		redisConfig:   redisCfg,
		db:            db,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CounterStore is a counter store together with the resources it owns
type CounterStore struct {
	barcode.CounterStore
	Backend string
	client  *redis.Client
}

// Close releases the Redis client, if any
func (s *CounterStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Ping checks the Redis connection. Database-backed stores have nothing to check here.
func (s *CounterStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// CreateDatabaseStore creates the GORM counter store with the configured strategy
func (f *CounterStoreFactory) CreateDatabaseStore() *persistence.GormCounterStore {
	return persistence.NewGormCounterStore(f.db,
		persistence.WithCounterStrategy(persistence.CounterStrategy(f.barcodeConfig.CounterStrategy)),
	)
}

// CreateRedisStore connects to Redis and creates a Redis counter store over the database store
func (f *CounterStoreFactory) CreateRedisStore(ctx context.Context) (*CounterStore, error) {
	client, err := NewRedisClient(ctx, f.redisConfig)
	if err != nil {
		return nil, err
	}
	store := NewRedisCounterStore(client, f.CreateDatabaseStore(), f.barcodeConfig.RedisKeyPrefix)
	return &CounterStore{CounterStore: store, Backend: config.CounterBackendRedis, client: client}, nil
}

// CreateStore creates the configured counter store. With the redis backend it
// tries Redis first and falls back to the database store when Redis is
// unreachable and fallback is enabled.
func (f *CounterStoreFactory) CreateStore(ctx context.Context) (*CounterStore, error) {
	if f.barcodeConfig.CounterBackend != config.CounterBackendRedis {
		f.logger.Info("using database counter store",
			zap.String("strategy", f.barcodeConfig.CounterStrategy),
		)
		return &CounterStore{CounterStore: f.CreateDatabaseStore(), Backend: config.CounterBackendDatabase}, nil
	}

	store, err := f.CreateRedisStore(ctx)
	if err == nil {
		f.logger.Info("using Redis counter store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.barcodeConfig.RedisFallback {
		return nil, fmt.Errorf("redis counter backend required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to database counter store",
		zap.String("strategy", f.barcodeConfig.CounterStrategy),
		zap.Error(err),
	)
	return &CounterStore{CounterStore: f.CreateDatabaseStore(), Backend: config.CounterBackendDatabase}, nil
}
