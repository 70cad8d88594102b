package barcode

import (
	"context"
)

// CounterStore hands out monotonically advancing counter values per barcode type.
// A store may hand the same value to two racing callers; the registry's
// uniqueness constraints are what keep duplicate codes out.
type CounterStore interface {
	// Reserve advances the counter for t and returns the new value.
	// Storage failures are returned as *StorageError; a store that gives up on
	// contention returns a retryable *ConflictError.
	Reserve(ctx context.Context, t BarcodeType) (int64, error)
	// Initialize persists cfg if no configuration exists yet. It is idempotent.
	Initialize(ctx context.Context, cfg *Config) error
	// Load returns the current configuration including live counter values
	Load(ctx context.Context) (*Config, error)
}

// RegistryRepository is the durable store of issued codes.
// Every method is a live query; nothing is cached.
type RegistryRepository interface {
	// Insert atomically creates entry. A uniqueness violation is returned as
	// *ConflictError with ReasonCodeTaken or ReasonOwnerHasCode; existing rows
	// are never modified.
	Insert(ctx context.Context, entry *RegistryEntry) error
	// FindByCode returns the entry for code, active or retired
	FindByCode(ctx context.Context, code string) (*RegistryEntry, error)
	// FindActiveByOwner returns the owner's active entry of type t
	FindActiveByOwner(ctx context.Context, ownerType, ownerID string, t BarcodeType) (*RegistryEntry, error)
	// ExistsByCode returns true if any entry, including a retired one, holds code
	ExistsByCode(ctx context.Context, code string) (bool, error)
	// SaveRetirement persists a retired entry using its version for optimistic locking
	SaveRetirement(ctx context.Context, entry *RegistryEntry) error
	// List returns entries matching filter with the total count
	List(ctx context.Context, filter RegistryFilter) ([]RegistryEntry, int64, error)
}
