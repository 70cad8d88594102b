package barcode

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/retailops/backend/internal/domain/shared"
)

// Column limits of barcode_registry, counted in characters
const (
	MaxCodeLength      = 64
	MaxOwnerTypeLength = 50
	MaxOwnerIDLength   = 100
)

// ValidateOwner checks an owner reference against the registry column limits
func ValidateOwner(ownerType, ownerID string) error {
	ownerType, ownerID = strings.TrimSpace(ownerType), strings.TrimSpace(ownerID)
	if ownerType == "" || ownerID == "" {
		return ErrEmptyOwner
	}
	if utf8.RuneCountInString(ownerType) > MaxOwnerTypeLength || utf8.RuneCountInString(ownerID) > MaxOwnerIDLength {
		return ErrOwnerTooLong
	}
	return nil
}

// RegistryEntry maps an issued code to the entity that owns it.
// Entries are never deleted: a retired entry keeps its code out of circulation.
type RegistryEntry struct {
	shared.Aggregate
	Code            string
	BarcodeType     BarcodeType
	OwnerEntityType string
	OwnerEntityID   string
	Format          Format
	RetiredAt       *time.Time
}

// NewRegistryEntry creates an unpersisted registry entry for a claim
func NewRegistryEntry(code string, t BarcodeType, ownerType, ownerID string, format Format) (*RegistryEntry, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	if !t.IsValid() {
		return nil, ErrInvalidBarcodeType
	}
	if utf8.RuneCountInString(code) > MaxCodeLength {
		return nil, ErrCodeTooLong
	}
	if err := ValidateOwner(ownerType, ownerID); err != nil {
		return nil, err
	}
	if !format.IsValid() {
		format = DetectFormat(code)
	}

	entry := &RegistryEntry{
		Aggregate:       shared.NewAggregate(),
		Code:            code,
		BarcodeType:     t,
		OwnerEntityType: ownerType,
		OwnerEntityID:   ownerID,
		Format:          format,
	}
	entry.Record(NewBarcodeIssuedEvent(entry))
	return entry, nil
}

// IsActive returns true if the entry has not been retired
func (e *RegistryEntry) IsActive() bool {
	return e.RetiredAt == nil
}

// Retire tombstones the entry. The owner slot becomes free, the code does not.
func (e *RegistryEntry) Retire(at time.Time) error {
	if !e.IsActive() {
		return ErrAlreadyRetired
	}
	e.RetiredAt = &at
	e.Bump(at)
	e.Record(NewBarcodeRetiredEvent(e))
	return nil
}

// RegistryFilter narrows registry listings
type RegistryFilter struct {
	shared.Filter
	BarcodeType     BarcodeType
	OwnerEntityType string
	OwnerEntityID   string
	IncludeRetired  bool
}
