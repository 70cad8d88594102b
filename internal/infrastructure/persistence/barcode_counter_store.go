package persistence

import (
	"context"
	"errors"

	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"github.com/retailops/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CounterStrategy selects how the database counter store writes a reservation
type CounterStrategy string

const (
	// CounterStrategyCAS writes with a version predicate and re-reads on contention
	CounterStrategyCAS CounterStrategy = "cas"
	// CounterStrategyRMW writes unconditionally; concurrent callers may reserve the same value
	CounterStrategyRMW CounterStrategy = "rmw"
)

// DefaultCASRetries bounds the internal re-read loop of the CAS strategy
const DefaultCASRetries = 3

// GormCounterStore implements barcode.CounterStore on the barcode_configs row
type GormCounterStore struct {
	db         *gorm.DB
	configID   string
	strategy   CounterStrategy
	casRetries int
}

// CounterStoreOption configures a GormCounterStore
type CounterStoreOption func(*GormCounterStore)

// WithCounterStrategy sets the reservation strategy (default CAS)
func WithCounterStrategy(strategy CounterStrategy) CounterStoreOption {
	return func(s *GormCounterStore) {
		if strategy == CounterStrategyRMW || strategy == CounterStrategyCAS {
			s.strategy = strategy
		}
	}
}

// WithCASRetries sets how many conditional writes are tried before reporting contention
func WithCASRetries(n int) CounterStoreOption {
	return func(s *GormCounterStore) {
		if n > 0 {
			s.casRetries = n
		}
	}
}

// NewGormCounterStore creates a new GormCounterStore
func NewGormCounterStore(db *gorm.DB, opts ...CounterStoreOption) *GormCounterStore {
	s := &GormCounterStore{
		db:         db,
		configID:   barcode.DefaultConfigID,
		strategy:   CounterStrategyCAS,
		casRetries: DefaultCASRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy returns the configured reservation strategy
func (s *GormCounterStore) Strategy() CounterStrategy {
	return s.strategy
}

// Initialize inserts cfg unless a configuration row already exists
func (s *GormCounterStore) Initialize(ctx context.Context, cfg *barcode.Config) error {
	model, err := models.BarcodeConfigModelFromDomain(cfg)
	if err != nil {
		return err
	}
	model.ID = s.configID

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(model).Error
	if err != nil {
		return storageError(ctx, "initialize config", err)
	}
	return nil
}

// Load reads the current configuration
func (s *GormCounterStore) Load(ctx context.Context) (*barcode.Config, error) {
	var model models.BarcodeConfigModel
	if err := s.db.WithContext(ctx).Where("id = ?", s.configID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, storageError(ctx, "load config", err)
	}

	cfg, err := model.ToDomain()
	if err != nil {
		return nil, barcode.NewStorageError("load config", err)
	}
	return cfg, nil
}

// Reserve advances the counter for t and returns the new value
func (s *GormCounterStore) Reserve(ctx context.Context, t barcode.BarcodeType) (int64, error) {
	if !t.IsValid() {
		return 0, barcode.ErrInvalidBarcodeType
	}
	if s.strategy == CounterStrategyRMW {
		return s.reserveRMW(ctx, t)
	}
	return s.reserveCAS(ctx, t)
}

// reserveCAS writes the advanced counters only if nobody wrote since our read
func (s *GormCounterStore) reserveCAS(ctx context.Context, t barcode.BarcodeType) (int64, error) {
	for attempt := 0; attempt < s.casRetries; attempt++ {
		cfg, err := s.Load(ctx)
		if err != nil {
			return 0, err
		}
		readVersion := cfg.Version

		next, err := cfg.Advance(t)
		if err != nil {
			return 0, err
		}
		updated, err := s.write(ctx, cfg, &readVersion)
		if err != nil {
			return 0, err
		}
		if updated {
			return next, nil
		}
	}
	return 0, barcode.NewConflictError("", barcode.ReasonCounterContention)
}

// reserveRMW is a plain read-modify-write. Two racing callers can both
// return the same value; the registry rejects the second claim.
func (s *GormCounterStore) reserveRMW(ctx context.Context, t barcode.BarcodeType) (int64, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	next, err := cfg.Advance(t)
	if err != nil {
		return 0, err
	}
	if _, err := s.write(ctx, cfg, nil); err != nil {
		return 0, err
	}
	return next, nil
}

// RaiseCounter lifts the stored counter for t to value unless it already holds
// more, and returns the stored counter afterwards. It never lowers a counter.
func (s *GormCounterStore) RaiseCounter(ctx context.Context, t barcode.BarcodeType, value int64) (int64, error) {
	if !t.IsValid() {
		return 0, barcode.ErrInvalidBarcodeType
	}
	for attempt := 0; attempt < s.casRetries; attempt++ {
		cfg, err := s.Load(ctx)
		if err != nil {
			return 0, err
		}
		current := cfg.Counter(t)
		if current >= value {
			return current, nil
		}

		readVersion := cfg.Version
		if cfg.Counters == nil {
			cfg.Counters = make(map[barcode.BarcodeType]int64)
		}
		cfg.Counters[t] = value
		updated, err := s.write(ctx, cfg, &readVersion)
		if err != nil {
			return 0, err
		}
		if updated {
			return value, nil
		}
	}
	return 0, barcode.NewConflictError("", barcode.ReasonCounterContention)
}

// write persists cfg's counters. With expectedVersion set the update only
// applies when the row still has that version; the bool reports whether a row changed.
func (s *GormCounterStore) write(ctx context.Context, cfg *barcode.Config, expectedVersion *int) (bool, error) {
	model, err := models.BarcodeConfigModelFromDomain(cfg)
	if err != nil {
		return false, err
	}

	query := s.db.WithContext(ctx).Model(&models.BarcodeConfigModel{})
	if expectedVersion != nil {
		query = query.Where("id = ? AND version = ?", s.configID, *expectedVersion)
	} else {
		query = query.Where("id = ?", s.configID)
	}

	result := query.Updates(map[string]any{
		"counters":   model.CountersJSON,
		"version":    gorm.Expr("version + 1"),
		"updated_at": model.UpdatedAt,
	})
	if result.Error != nil {
		return false, storageError(ctx, "reserve counter", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Ensure GormCounterStore implements barcode.CounterStore
var _ barcode.CounterStore = (*GormCounterStore)(nil)
