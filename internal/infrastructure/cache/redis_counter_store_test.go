package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"github.com/retailops/backend/internal/infrastructure/persistence"
	"github.com/retailops/backend/internal/testutil/sqlitetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// memoryDurableStore stands in for the database store behind Redis
type memoryDurableStore struct {
	mu  sync.Mutex
	cfg *barcode.Config
}

func (m *memoryDurableStore) Initialize(_ context.Context, cfg *barcode.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		m.cfg = cfg
	}
	return nil
}

func (m *memoryDurableStore) Load(_ context.Context) (*barcode.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return nil, shared.ErrNotFound
	}
	clone := *m.cfg
	clone.Counters = make(map[barcode.BarcodeType]int64, len(m.cfg.Counters))
	for k, v := range m.cfg.Counters {
		clone.Counters[k] = v
	}
	return &clone, nil
}

func (m *memoryDurableStore) Reserve(_ context.Context, t barcode.BarcodeType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Advance(t)
}

func (m *memoryDurableStore) RaiseCounter(_ context.Context, t barcode.BarcodeType, value int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return 0, shared.ErrNotFound
	}
	if value > m.cfg.Counters[t] {
		m.cfg.Counters[t] = value
	}
	return m.cfg.Counters[t], nil
}

func (m *memoryDurableStore) counter(t barcode.BarcodeType) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Counter(t)
}

func newRedisTestClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCounterStore(t *testing.T) {
	client := newRedisTestClient(t)
	ctx := context.Background()

	seed, err := barcode.NewConfig("GPMS", barcode.FormatStructured, 1000)
	require.NoError(t, err)

	t.Run("initialize seeds keys from durable config", func(t *testing.T) {
		require.NoError(t, client.FlushDB(ctx).Err())
		store := NewRedisCounterStore(client, &memoryDurableStore{}, "")
		require.NoError(t, store.Initialize(ctx, seed))

		v, err := client.Get(ctx, "barcode:counter:unit").Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(1000), v)

		next, err := store.Reserve(ctx, barcode.TypeUnit)
		require.NoError(t, err)
		assert.Equal(t, int64(1001), next)
	})

	t.Run("initialize never moves a key backwards", func(t *testing.T) {
		require.NoError(t, client.FlushDB(ctx).Err())
		require.NoError(t, client.Set(ctx, "barcode:counter:unit", 1500, 0).Err())
		require.NoError(t, client.Set(ctx, "barcode:counter:product", 10, 0).Err())

		store := NewRedisCounterStore(client, &memoryDurableStore{}, "")
		require.NoError(t, store.Initialize(ctx, seed))

		unit, err := client.Get(ctx, "barcode:counter:unit").Int64()
		require.NoError(t, err)
		product, err := client.Get(ctx, "barcode:counter:product").Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(1500), unit)
		assert.Equal(t, int64(1000), product)
	})

	t.Run("load overlays live counters", func(t *testing.T) {
		require.NoError(t, client.FlushDB(ctx).Err())
		store := NewRedisCounterStore(client, &memoryDurableStore{}, "test:")
		require.NoError(t, store.Initialize(ctx, seed))

		for i := 0; i < 3; i++ {
			_, err := store.Reserve(ctx, barcode.TypeProduct)
			require.NoError(t, err)
		}

		cfg, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1003), cfg.Counter(barcode.TypeProduct))
		assert.Equal(t, int64(1000), cfg.Counter(barcode.TypeUnit))
		assert.Equal(t, "test:product", store.Key(barcode.TypeProduct))
	})

	t.Run("concurrent reservations are distinct", func(t *testing.T) {
		require.NoError(t, client.FlushDB(ctx).Err())
		store := NewRedisCounterStore(client, &memoryDurableStore{}, "")
		require.NoError(t, store.Initialize(ctx, seed))

		const workers = 50
		results := make(chan int64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := store.Reserve(ctx, barcode.TypeUnit)
				if assert.NoError(t, err) {
					results <- v
				}
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[int64]bool)
		for v := range results {
			assert.False(t, seen[v], "duplicate counter %d", v)
			seen[v] = true
		}
		assert.Len(t, seen, workers)
	})

	t.Run("reservations raise the durable counter", func(t *testing.T) {
		require.NoError(t, client.FlushDB(ctx).Err())
		durable := &memoryDurableStore{}
		store := NewRedisCounterStore(client, durable, "")
		require.NoError(t, store.Initialize(ctx, seed))

		for i := 0; i < 20; i++ {
			_, err := store.Reserve(ctx, barcode.TypeUnit)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(1020), durable.counter(barcode.TypeUnit))
		assert.Equal(t, int64(1000), durable.counter(barcode.TypeProduct))
	})

	t.Run("lost keys are reseeded from the high-water mark", func(t *testing.T) {
		require.NoError(t, client.FlushDB(ctx).Err())
		durable := &memoryDurableStore{}
		store := NewRedisCounterStore(client, durable, "")
		require.NoError(t, store.Initialize(ctx, seed))

		for i := 0; i < 20; i++ {
			_, err := store.Reserve(ctx, barcode.TypeUnit)
			require.NoError(t, err)
		}

		require.NoError(t, client.FlushAll(ctx).Err())
		require.NoError(t, store.Initialize(ctx, seed))

		next, err := store.Reserve(ctx, barcode.TypeUnit)
		require.NoError(t, err)
		assert.Equal(t, int64(1021), next)
	})

	t.Run("lost keys without a restart catch up on reserve", func(t *testing.T) {
		require.NoError(t, client.FlushDB(ctx).Err())
		durable := &memoryDurableStore{}
		store := NewRedisCounterStore(client, durable, "")
		require.NoError(t, store.Initialize(ctx, seed))

		for i := 0; i < 10; i++ {
			_, err := store.Reserve(ctx, barcode.TypeUnit)
			require.NoError(t, err)
		}
		require.NoError(t, client.FlushAll(ctx).Err())

		next, err := store.Reserve(ctx, barcode.TypeUnit)
		require.NoError(t, err)
		assert.Equal(t, int64(1011), next)
		assert.Equal(t, int64(1011), durable.counter(barcode.TypeUnit))
	})

	t.Run("database-side reservations are skipped", func(t *testing.T) {
		require.NoError(t, client.FlushDB(ctx).Err())
		durable := &memoryDurableStore{}
		store := NewRedisCounterStore(client, durable, "")
		require.NoError(t, store.Initialize(ctx, seed))

		_, err := store.Reserve(ctx, barcode.TypeProduct)
		require.NoError(t, err)

		// a process on the database fallback advances the durable row directly
		for i := 0; i < 5; i++ {
			_, err := durable.Reserve(ctx, barcode.TypeProduct)
			require.NoError(t, err)
		}

		next, err := store.Reserve(ctx, barcode.TypeProduct)
		require.NoError(t, err)
		assert.Equal(t, int64(1007), next)

		key, err := client.Get(ctx, store.Key(barcode.TypeProduct)).Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(1007), key)
	})

	t.Run("unknown type", func(t *testing.T) {
		store := NewRedisCounterStore(client, &memoryDurableStore{}, "")
		_, err := store.Reserve(ctx, barcode.BarcodeType("pallet"))
		assert.ErrorIs(t, err, barcode.ErrInvalidBarcodeType)
	})
}

func TestRedisCounterStore_DatabaseHighWaterMark(t *testing.T) {
	client := newRedisTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.FlushDB(ctx).Err())

	seed, err := barcode.NewConfig("GPMS", barcode.FormatStructured, 1000)
	require.NoError(t, err)

	durable := persistence.NewGormCounterStore(sqlitetest.New(t))
	store := NewRedisCounterStore(client, durable, "")
	require.NoError(t, store.Initialize(ctx, seed))

	for i := 0; i < 20; i++ {
		_, err := store.Reserve(ctx, barcode.TypeUnit)
		require.NoError(t, err)
	}

	stored, err := durable.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1020), stored.Counter(barcode.TypeUnit))

	// a process on the database fallback continues after the Redis reservations
	fallback, err := durable.Reserve(ctx, barcode.TypeUnit)
	require.NoError(t, err)
	assert.Equal(t, int64(1021), fallback)

	// Redis restarts empty and the store is initialized again
	require.NoError(t, client.FlushAll(ctx).Err())
	require.NoError(t, store.Initialize(ctx, seed))

	next, err := store.Reserve(ctx, barcode.TypeUnit)
	require.NoError(t, err)
	assert.Equal(t, int64(1022), next)
}

func TestRedisCounterStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	store := NewRedisCounterStore(client, &memoryDurableStore{}, "")
	_, err := store.Reserve(context.Background(), barcode.TypeUnit)
	require.Error(t, err)
	assert.ErrorIs(t, err, barcode.ErrStorageUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Reserve(ctx, barcode.TypeUnit)
	assert.ErrorIs(t, err, context.Canceled)
}
