package barcode

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// GenerateFunc mints a code, claims it for the owner and returns it
type GenerateFunc func(ctx context.Context) (string, error)

// RegistryService is the single authority on which codes are issued and to whom.
// Every call is a live query against the registry table.
type RegistryService struct {
	repo   barcode.RegistryRepository
	events shared.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// RegistryOption configures a RegistryService
type RegistryOption func(*RegistryService)

// WithEventPublisher publishes issued and retired events after they are persisted
func WithEventPublisher(events shared.EventPublisher) RegistryOption {
	return func(s *RegistryService) {
		s.events = events
	}
}

// WithRegistryLogger sets the service logger
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(s *RegistryService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRegistryService creates a new RegistryService
func NewRegistryService(repo barcode.RegistryRepository, opts ...RegistryOption) *RegistryService {
	s := &RegistryService{
		repo:   repo,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAvailable reports whether code has never been issued. Retired codes are not available.
func (s *RegistryService) CheckAvailable(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, barcode.ErrEmptyCode
	}
	exists, err := s.repo.ExistsByCode(ctx, code)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Claim records code as issued to the owner. The format is detected from the code.
func (s *RegistryService) Claim(ctx context.Context, code string, t barcode.BarcodeType, ownerType, ownerID string) (*barcode.RegistryEntry, error) {
	return s.claim(ctx, code, t, ownerType, ownerID, barcode.DetectFormat(strings.TrimSpace(code)))
}

func (s *RegistryService) claim(ctx context.Context, code string, t barcode.BarcodeType, ownerType, ownerID string, format barcode.Format) (*barcode.RegistryEntry, error) {
	entry, err := barcode.NewRegistryEntry(code, t, ownerType, ownerID, format)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}
	s.publish(ctx, entry)
	return entry, nil
}

// GetOrClaim returns the owner's active code, calling generate only when there is none.
// When a concurrent caller wins the owner slot first, the winner's code is returned.
func (s *RegistryService) GetOrClaim(ctx context.Context, ownerType, ownerID string, t barcode.BarcodeType, generate GenerateFunc) (string, error) {
	if err := barcode.ValidateOwner(ownerType, ownerID); err != nil {
		return "", err
	}
	existing, err := s.repo.FindActiveByOwner(ctx, ownerType, ownerID, t)
	if err == nil {
		return existing.Code, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}

	code, err := generate(ctx)
	if err == nil {
		return code, nil
	}
	if !barcode.IsConflict(err, barcode.ReasonOwnerHasCode) {
		return "", err
	}

	winner, findErr := s.repo.FindActiveByOwner(ctx, ownerType, ownerID, t)
	if findErr != nil {
		if errors.Is(findErr, shared.ErrNotFound) {
			// The winner was retired before we could read it
			return "", err
		}
		return "", findErr
	}
	s.logger.Debug("owner slot taken by concurrent claim",
		zap.String("owner_type", ownerType),
		zap.String("owner_id", ownerID),
		zap.String("code", winner.Code),
	)
	return winner.Code, nil
}

// Lookup returns the entry holding code, active or retired
func (s *RegistryService) Lookup(ctx context.Context, code string) (*barcode.RegistryEntry, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, barcode.ErrEmptyCode
	}
	return s.repo.FindByCode(ctx, code)
}

// FindActiveByOwner returns the owner's active entry of type t
func (s *RegistryService) FindActiveByOwner(ctx context.Context, ownerType, ownerID string, t barcode.BarcodeType) (*barcode.RegistryEntry, error) {
	if !t.IsValid() {
		return nil, barcode.ErrInvalidBarcodeType
	}
	return s.repo.FindActiveByOwner(ctx, ownerType, ownerID, t)
}

// Retire tombstones code. The owner may claim a new code afterwards; code itself is never reissued.
func (s *RegistryService) Retire(ctx context.Context, code string) (*barcode.RegistryEntry, error) {
	entry, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := entry.Retire(s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.SaveRetirement(ctx, entry); err != nil {
		return nil, err
	}
	s.logger.Info("barcode retired",
		zap.String("code", entry.Code),
		zap.String("owner_type", entry.OwnerEntityType),
		zap.String("owner_id", entry.OwnerEntityID),
	)
	s.publish(ctx, entry)
	return entry, nil
}

// List returns a page of registry entries
func (s *RegistryService) List(ctx context.Context, filter barcode.RegistryFilter) ([]barcode.RegistryEntry, int64, error) {
	if filter.BarcodeType != "" && !filter.BarcodeType.IsValid() {
		return nil, 0, barcode.ErrInvalidBarcodeType
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}
	return s.repo.List(ctx, filter)
}

func (s *RegistryService) publish(ctx context.Context, entry *barcode.RegistryEntry) {
	events := entry.Events()
	entry.ClearEvents()
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish barcode events",
			zap.String("code", entry.Code),
			zap.Error(err),
		)
	}
}
