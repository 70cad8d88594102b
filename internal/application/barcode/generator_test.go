package barcode

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/infrastructure/persistence"
	"github.com/retailops/backend/internal/infrastructure/telemetry"
	"github.com/retailops/backend/internal/testutil/sqlitetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// sequenceStore hands out base+1, base+2, ... per type. With repeat > 1 every
// value is handed out repeat times, like a read-modify-write store losing updates.
type sequenceStore struct {
	mu     sync.Mutex
	base   int64
	repeat int
	served map[barcode.BarcodeType]int
	errs   []error
	calls  int
	stored *barcode.Config
}

func newSequenceStore(base int64, repeat int) *sequenceStore {
	if repeat < 1 {
		repeat = 1
	}
	return &sequenceStore{base: base, repeat: repeat, served: make(map[barcode.BarcodeType]int)}
}

// failFirst queues errors returned by the next Reserve calls, in order
func (s *sequenceStore) failFirst(errs ...error) *sequenceStore {
	s.errs = append(s.errs, errs...)
	return s
}

func (s *sequenceStore) Reserve(ctx context.Context, t barcode.BarcodeType) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return 0, err
	}
	n := s.served[t]
	s.served[t]++
	return s.base + int64(n/s.repeat) + 1, nil
}

func (s *sequenceStore) Initialize(_ context.Context, cfg *barcode.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		s.stored = cfg
	}
	return nil
}

func (s *sequenceStore) Load(_ context.Context) (*barcode.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		cfg, err := barcode.NewConfig("GPMS", barcode.FormatStructured, s.base)
		if err != nil {
			return nil, err
		}
		s.stored = cfg
	}
	return s.stored, nil
}

func (s *sequenceStore) reserveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type generatorFixture struct {
	gen      *Generator
	registry *RegistryService
	repo     *persistence.GormBarcodeRegistryRepository
}

func newGeneratorFixture(t *testing.T, store barcode.CounterStore, opts ...GeneratorOption) *generatorFixture {
	t.Helper()
	repo := persistence.NewGormBarcodeRegistryRepository(sqlitetest.New(t))
	registry := NewRegistryService(repo)

	encoder, err := barcode.NewEncoder("GPMS", "")
	require.NoError(t, err)
	validator, err := barcode.NewValidator("GPMS")
	require.NoError(t, err)

	opts = append([]GeneratorOption{WithBackoff(time.Millisecond, 2*time.Millisecond)}, opts...)
	return &generatorFixture{
		gen:      NewGenerator(store, registry, encoder, validator, opts...),
		registry: registry,
		repo:     repo,
	}
}

func TestGenerator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("first unit code", func(t *testing.T) {
		f := newGeneratorFixture(t, newSequenceStore(1000, 1))
		code, err := f.gen.GenerateUnitCode(ctx, "unit-1")
		require.NoError(t, err)
		assert.Equal(t, "GPMSU001001", code)

		entry, err := f.repo.FindByCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, barcode.OwnerProductUnit, entry.OwnerEntityType)
		assert.Equal(t, "unit-1", entry.OwnerEntityID)
	})

	t.Run("product code uses its own counter and owner type", func(t *testing.T) {
		f := newGeneratorFixture(t, newSequenceStore(1000, 1))
		_, err := f.gen.GenerateUnitCode(ctx, "42")
		require.NoError(t, err)

		code, err := f.gen.GenerateProductCode(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "GPMSP001001", code)

		entry, err := f.repo.FindByCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, barcode.OwnerProduct, entry.OwnerEntityType)
	})

	t.Run("repeated calls for one owner are idempotent", func(t *testing.T) {
		store := newSequenceStore(1000, 1)
		f := newGeneratorFixture(t, store)

		first, err := f.gen.GenerateUnitCode(ctx, "unit-1")
		require.NoError(t, err)
		second, err := f.gen.GenerateUnitCode(ctx, " unit-1 ")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, store.reserveCalls())
	})

	t.Run("taken code is skipped", func(t *testing.T) {
		f := newGeneratorFixture(t, newSequenceStore(1000, 1))
		_, err := f.registry.Claim(ctx, "GPMSU001001", barcode.TypeUnit, "legacy", "imported-1")
		require.NoError(t, err)

		code, err := f.gen.GenerateUnitCode(ctx, "unit-1")
		require.NoError(t, err)
		assert.Equal(t, "GPMSU001002", code)
	})

	t.Run("checksum numeric format", func(t *testing.T) {
		f := newGeneratorFixture(t, newSequenceStore(1000, 1), WithFormat(barcode.FormatChecksumNumeric))
		code, err := f.gen.GenerateUnitCode(ctx, "unit-1")
		require.NoError(t, err)
		assert.Len(t, code, barcode.ChecksumCodeLength)

		validator, err := barcode.NewValidator("GPMS")
		require.NoError(t, err)
		assert.True(t, validator.ValidateChecksumNumeric(code))

		entry, err := f.repo.FindByCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, barcode.FormatChecksumNumeric, entry.Format)
	})

	t.Run("retired owner gets a fresh code", func(t *testing.T) {
		f := newGeneratorFixture(t, newSequenceStore(1000, 1))
		first, err := f.gen.GenerateUnitCode(ctx, "unit-1")
		require.NoError(t, err)
		_, err = f.registry.Retire(ctx, first)
		require.NoError(t, err)

		second, err := f.gen.GenerateUnitCode(ctx, "unit-1")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		available, err := f.registry.CheckAvailable(ctx, first)
		require.NoError(t, err)
		assert.False(t, available)
	})

	t.Run("invalid input", func(t *testing.T) {
		store := newSequenceStore(1000, 1)
		f := newGeneratorFixture(t, store)

		_, err := f.gen.Generate(ctx, barcode.BarcodeType("pallet"), "x")
		assert.ErrorIs(t, err, barcode.ErrInvalidBarcodeType)
		_, err = f.gen.GenerateUnitCode(ctx, "   ")
		assert.ErrorIs(t, err, barcode.ErrEmptyOwner)
		_, err = f.gen.GenerateProductCode(ctx, strings.Repeat("p", barcode.MaxOwnerIDLength+1))
		assert.ErrorIs(t, err, barcode.ErrOwnerTooLong)
		assert.Equal(t, "INVALID_OWNER", ErrorCode(err))
		assert.Zero(t, store.reserveCalls())
	})
}

func TestGenerator_Retries(t *testing.T) {
	ctx := context.Background()

	t.Run("exhausted after max attempts", func(t *testing.T) {
		// Every reservation yields 1001, which is already taken
		store := newSequenceStore(1000, 1_000_000)
		f := newGeneratorFixture(t, store, WithMaxAttempts(3))
		_, err := f.registry.Claim(ctx, "GPMSU001001", barcode.TypeUnit, "legacy", "imported-1")
		require.NoError(t, err)

		_, err = f.gen.GenerateUnitCode(ctx, "unit-1")
		var exhausted *barcode.GenerationExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 3, exhausted.Attempts)
		assert.Equal(t, barcode.TypeUnit, exhausted.Type)
		assert.True(t, barcode.IsConflict(err, barcode.ReasonCodeTaken))
		assert.Equal(t, 3, store.reserveCalls())
		assert.Equal(t, "GENERATION_EXHAUSTED", ErrorCode(err))
		assert.Equal(t, "could not generate a unique code, try again", ErrorMessage(err))

		_, err = f.gen.registry.FindActiveByOwner(ctx, barcode.OwnerProductUnit, "unit-1", barcode.TypeUnit)
		assert.Error(t, err, "an exhausted generation claims nothing")
	})

	t.Run("counter contention is retried", func(t *testing.T) {
		contention := barcode.NewConflictError("", barcode.ReasonCounterContention)
		store := newSequenceStore(1000, 1).failFirst(contention, contention)
		f := newGeneratorFixture(t, store)

		code, err := f.gen.GenerateUnitCode(ctx, "unit-1")
		require.NoError(t, err)
		assert.Equal(t, "GPMSU001001", code)
		assert.Equal(t, 3, store.reserveCalls())
	})

	t.Run("storage failure is not retried", func(t *testing.T) {
		store := newSequenceStore(1000, 1).failFirst(barcode.NewStorageError("reserve counter", errors.New("connection reset")))
		f := newGeneratorFixture(t, store)

		_, err := f.gen.GenerateUnitCode(ctx, "unit-1")
		assert.ErrorIs(t, err, barcode.ErrStorageUnavailable)
		assert.Equal(t, 1, store.reserveCalls())
		assert.Equal(t, "STORAGE_UNAVAILABLE", ErrorCode(err))
	})

	t.Run("counter overflow is not retried", func(t *testing.T) {
		store := newSequenceStore(barcode.MaxCounter, 1)
		f := newGeneratorFixture(t, store)

		_, err := f.gen.GenerateUnitCode(ctx, "unit-1")
		assert.ErrorIs(t, err, barcode.ErrCounterOverflow)
		assert.Equal(t, 1, store.reserveCalls())
	})

	t.Run("failed self check claims nothing", func(t *testing.T) {
		store := newSequenceStore(1000, 1)
		repo := persistence.NewGormBarcodeRegistryRepository(sqlitetest.New(t))
		encoder, err := barcode.NewEncoder("GPMS", "")
		require.NoError(t, err)
		validator, err := barcode.NewValidator("SHOP")
		require.NoError(t, err)
		gen := NewGenerator(store, NewRegistryService(repo), encoder, validator)

		_, err = gen.GenerateUnitCode(ctx, "unit-1")
		assert.ErrorIs(t, err, barcode.ErrSelfCheckFailed)

		exists, err := repo.ExistsByCode(ctx, "GPMSU001001")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("cancelled context", func(t *testing.T) {
		store := newSequenceStore(1000, 1)
		f := newGeneratorFixture(t, store)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.gen.GenerateUnitCode(cctx, "unit-1")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, store.reserveCalls())
	})

	t.Run("deadline during backoff returns promptly", func(t *testing.T) {
		store := newSequenceStore(1000, 1_000_000)
		f := newGeneratorFixture(t, store, WithMaxAttempts(10), WithBackoff(time.Second, 2*time.Second))
		_, err := f.registry.Claim(ctx, "GPMSU001001", barcode.TypeUnit, "legacy", "imported-1")
		require.NoError(t, err)

		tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err = f.gen.GenerateUnitCode(tctx, "unit-1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestGenerator_LostUpdatesNeverDuplicate(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()
	metrics, err := telemetry.NewBarcodeMetrics(provider.Meter("barcode"))
	require.NoError(t, err)

	// Each counter value is handed out twice
	f := newGeneratorFixture(t, newSequenceStore(1000, 2), WithMetrics(metrics))

	codes := make(map[string]string)
	for _, owner := range []string{"a", "b", "c", "d"} {
		code, err := f.gen.GenerateUnitCode(ctx, owner)
		require.NoError(t, err)
		_, dup := codes[code]
		assert.False(t, dup, "code %s issued twice", code)
		codes[code] = owner
	}
	assert.Len(t, codes, 4)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(4), sums["barcode_generated_total"])
	assert.Equal(t, int64(3), sums["barcode_conflict_total"])
}

func TestGenerator_ConcurrentRMWStore(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.New(t)
	store := persistence.NewGormCounterStore(db, persistence.WithCounterStrategy(persistence.CounterStrategyRMW))
	_, err := Bootstrap(ctx, store, "GPMS", barcode.FormatStructured, 1000, zap.NewNop())
	require.NoError(t, err)

	repo := persistence.NewGormBarcodeRegistryRepository(db)
	encoder, err := barcode.NewEncoder("GPMS", "")
	require.NoError(t, err)
	validator, err := barcode.NewValidator("GPMS")
	require.NoError(t, err)
	gen := NewGenerator(store, NewRegistryService(repo), encoder, validator,
		WithMaxAttempts(50), WithBackoff(time.Millisecond, 5*time.Millisecond))

	const owners = 12
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]int)
	)
	for i := range owners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := gen.GenerateUnitCode(ctx, "unit-"+string(rune('a'+i)))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, codes, owners)
	for code, n := range codes {
		assert.Equal(t, 1, n, "code %s issued %d times", code, n)
	}

	_, total, err := repo.List(ctx, barcode.RegistryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(owners), total)
}

func TestGenerator_ConcurrentSameOwner(t *testing.T) {
	ctx := context.Background()
	f := newGeneratorFixture(t, newSequenceStore(1000, 1))

	const callers = 10
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := f.gen.GenerateProductCode(ctx, "prod-1")
			assert.NoError(t, err)
			results[i] = code
		}()
	}
	wg.Wait()

	for _, code := range results {
		assert.Equal(t, results[0], code)
	}
	_, total, err := f.repo.List(ctx, barcode.RegistryFilter{OwnerEntityID: "prod-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewGormCounterStore(sqlitetest.New(t))

	cfg, err := Bootstrap(ctx, store, "GPMS", barcode.FormatStructured, 1000, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "GPMS", cfg.Prefix)
	assert.Equal(t, int64(1000), cfg.Counter(barcode.TypeUnit))

	core, logs := observer.New(zap.WarnLevel)
	cfg, err = Bootstrap(ctx, store, "SHOP", barcode.FormatChecksumNumeric, 5, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, "GPMS", cfg.Prefix)
	assert.Equal(t, barcode.FormatStructured, cfg.Format)
	assert.Equal(t, int64(1000), cfg.Counter(barcode.TypeUnit))
	assert.Equal(t, 1, logs.FilterMessageSnippet("stored barcode config differs").Len())

	_, err = Bootstrap(ctx, store, "bad prefix", barcode.FormatStructured, 1000, nil)
	assert.ErrorIs(t, err, barcode.ErrInvalidPrefix)
}

func TestGenerator_CurrentConfig(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewGormCounterStore(sqlitetest.New(t))
	_, err := Bootstrap(ctx, store, "GPMS", barcode.FormatStructured, 1000, nil)
	require.NoError(t, err)

	f := newGeneratorFixture(t, store)
	_, err = f.gen.GenerateUnitCode(ctx, "unit-1")
	require.NoError(t, err)

	cfg, err := f.gen.CurrentConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "GPMS", cfg.Prefix)
	assert.Equal(t, int64(1001), cfg.Counters["unit"])
	assert.Equal(t, int64(1000), cfg.Counters["product"])
}
