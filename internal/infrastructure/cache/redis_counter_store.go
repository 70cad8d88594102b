package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/infrastructure/config"
)

// DefaultCounterKeyPrefix is prepended to the barcode type to form the counter key
const DefaultCounterKeyPrefix = "barcode:counter:"

// seedScript raises a counter key to ARGV[1] unless it already holds a larger value.
// A missing key is created, so this behaves like SETNX that also repairs a lagging key.
var seedScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if (not current) or (tonumber(current) < tonumber(ARGV[1])) then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// maxCatchUps bounds how often Reserve re-seeds a key that fell behind the durable counter
const maxCatchUps = 3

// DurableCounterStore is the database store behind Redis. RaiseCounter records a
// reserved value as the durable high-water mark and returns the stored counter.
type DurableCounterStore interface {
	barcode.CounterStore
	RaiseCounter(ctx context.Context, t barcode.BarcodeType, value int64) (int64, error)
}

// RedisCounterStore implements barcode.CounterStore with Redis INCR.
// Every reserved value is written through to the durable store, which seeds
// the keys on start-up and after Redis loses them.
type RedisCounterStore struct {
	client    *redis.Client
	durable   DurableCounterStore
	keyPrefix string
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisCounterStore creates a Redis counter store backed by durable
func NewRedisCounterStore(client *redis.Client, durable DurableCounterStore, keyPrefix string) *RedisCounterStore {
	if keyPrefix == "" {
		keyPrefix = DefaultCounterKeyPrefix
	}
	return &RedisCounterStore{
		client:    client,
		durable:   durable,
		keyPrefix: keyPrefix,
	}
}

// Key returns the Redis key holding the counter for t
func (s *RedisCounterStore) Key(t barcode.BarcodeType) string {
	return s.keyPrefix + string(t)
}

// Initialize creates the durable configuration if absent and seeds every
// counter key from it so Redis never starts below the durable value.
func (s *RedisCounterStore) Initialize(ctx context.Context, cfg *barcode.Config) error {
	if err := s.durable.Initialize(ctx, cfg); err != nil {
		return err
	}
	stored, err := s.durable.Load(ctx)
	if err != nil {
		return err
	}

	for _, t := range barcode.AllTypes() {
		if _, err := s.seed(ctx, t, stored.Counter(t)); err != nil {
			return err
		}
	}
	return nil
}

// seed lifts the key for t to value and reports whether the key was below it
func (s *RedisCounterStore) seed(ctx context.Context, t barcode.BarcodeType, value int64) (bool, error) {
	raised, err := seedScript.Run(ctx, s.client, []string{s.Key(t)}, value).Int()
	if err != nil {
		return false, redisError(ctx, "seed counter", err)
	}
	return raised == 1, nil
}

// Load returns the durable configuration with the live Redis counters applied
func (s *RedisCounterStore) Load(ctx context.Context) (*barcode.Config, error) {
	cfg, err := s.durable.Load(ctx)
	if err != nil {
		return nil, err
	}

	types := barcode.AllTypes()
	keys := make([]string, len(types))
	for i, t := range types {
		keys[i] = s.Key(t)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, redisError(ctx, "load counters", err)
	}

	for i, raw := range values {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, barcode.NewStorageError("load counters", fmt.Errorf("counter key %s: %w", keys[i], err))
		}
		if v > cfg.Counter(types[i]) {
			cfg.Counters[types[i]] = v
		}
	}
	return cfg, nil
}

// Reserve atomically increments the counter key for t and raises the durable
// counter to the result. When the key itself is behind the durable counter,
// because Redis lost it or a database-backed process reserved values, the key
// is lifted and the increment repeated. A durable counter that is ahead only
// because of concurrent reservations leaves v as it is.
func (s *RedisCounterStore) Reserve(ctx context.Context, t barcode.BarcodeType) (int64, error) {
	if !t.IsValid() {
		return 0, barcode.ErrInvalidBarcodeType
	}

	for catchUp := 0; ; catchUp++ {
		v, err := s.client.Incr(ctx, s.Key(t)).Result()
		if err != nil {
			return 0, redisError(ctx, "reserve counter", err)
		}

		durable, err := s.durable.RaiseCounter(ctx, t, v)
		if err != nil {
			return 0, err
		}
		if durable <= v || catchUp == maxCatchUps {
			return v, nil
		}
		raised, err := s.seed(ctx, t, durable)
		if err != nil {
			return 0, err
		}
		if !raised {
			return v, nil
		}
	}
}

// redisError keeps context errors intact and classifies everything else as storage unavailable
func redisError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return barcode.NewStorageError(op, err)
}

// Ensure RedisCounterStore implements barcode.CounterStore
var _ barcode.CounterStore = (*RedisCounterStore)(nil)
