package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"github.com/retailops/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBarcodeRegistryRepository implements barcode.RegistryRepository using GORM.
// Uniqueness is enforced by the table's indexes, never by a prior read.
type GormBarcodeRegistryRepository struct {
	db *gorm.DB
}

// NewGormBarcodeRegistryRepository creates a new GormBarcodeRegistryRepository
func NewGormBarcodeRegistryRepository(db *gorm.DB) *GormBarcodeRegistryRepository {
	return &GormBarcodeRegistryRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormBarcodeRegistryRepository) WithTx(tx *gorm.DB) *GormBarcodeRegistryRepository {
	return &GormBarcodeRegistryRepository{db: tx}
}

// Insert creates entry in a single statement. A unique violation becomes a
// ConflictError naming which rule was hit.
func (r *GormBarcodeRegistryRepository) Insert(ctx context.Context, entry *barcode.RegistryEntry) error {
	model := models.BarcodeRegistryModelFromDomain(entry)
	err := r.db.WithContext(ctx).Create(model).Error
	if err == nil {
		return nil
	}

	constraint, unique := uniqueViolation(err)
	if !unique {
		return storageError(ctx, "insert registry entry", err)
	}

	switch {
	case strings.Contains(constraint, "owner"):
		return barcode.NewConflictError(entry.Code, barcode.ReasonOwnerHasCode)
	case strings.Contains(constraint, "code"):
		return barcode.NewConflictError(entry.Code, barcode.ReasonCodeTaken)
	}

	// The driver did not say which index failed, so ask the table.
	taken, lookupErr := r.ExistsByCode(ctx, entry.Code)
	if lookupErr != nil {
		return lookupErr
	}
	if taken {
		return barcode.NewConflictError(entry.Code, barcode.ReasonCodeTaken)
	}
	return barcode.NewConflictError(entry.Code, barcode.ReasonOwnerHasCode)
}

// FindByCode returns the entry holding code, active or retired
func (r *GormBarcodeRegistryRepository) FindByCode(ctx context.Context, code string) (*barcode.RegistryEntry, error) {
	var model models.BarcodeRegistryModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, storageError(ctx, "find registry entry", err)
	}
	return model.ToDomain(), nil
}

// FindActiveByOwner returns the owner's non-retired entry of type t
func (r *GormBarcodeRegistryRepository) FindActiveByOwner(ctx context.Context, ownerType, ownerID string, t barcode.BarcodeType) (*barcode.RegistryEntry, error) {
	var model models.BarcodeRegistryModel
	err := r.db.WithContext(ctx).
		Where("owner_entity_type = ? AND owner_entity_id = ? AND barcode_type = ? AND retired_at IS NULL", ownerType, ownerID, t).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, storageError(ctx, "find owner entry", err)
	}
	return model.ToDomain(), nil
}

// ExistsByCode checks whether any entry, including a retired one, holds code
func (r *GormBarcodeRegistryRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BarcodeRegistryModel{}).
		Where("code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, storageError(ctx, "check code", err)
	}
	return count > 0, nil
}

// SaveRetirement writes the tombstone of a retired entry with optimistic locking
func (r *GormBarcodeRegistryRepository) SaveRetirement(ctx context.Context, entry *barcode.RegistryEntry) error {
	// Retire already bumped the in-memory version
	expectedVersion := entry.Version - 1

	result := r.db.WithContext(ctx).
		Model(&models.BarcodeRegistryModel{}).
		Where("id = ? AND version = ? AND retired_at IS NULL", entry.ID, expectedVersion).
		Updates(map[string]any{
			"retired_at": entry.RetiredAt,
			"version":    entry.Version,
			"updated_at": entry.UpdatedAt,
		})
	if result.Error != nil {
		return storageError(ctx, "retire registry entry", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.BarcodeRegistryModel{}).Where("id = ?", entry.ID).Count(&count).Error; err != nil {
			return storageError(ctx, "retire registry entry", err)
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// List returns entries matching filter, newest first by default
func (r *GormBarcodeRegistryRepository) List(ctx context.Context, filter barcode.RegistryFilter) ([]barcode.RegistryEntry, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, storageError(ctx, "count registry entries", err)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = shared.DefaultFilter().PageSize
	}

	var rows []models.BarcodeRegistryModel
	err := r.filtered(ctx, filter).
		Order(registryOrder(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, storageError(ctx, "list registry entries", err)
	}

	entries := make([]barcode.RegistryEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, total, nil
}

func (r *GormBarcodeRegistryRepository) filtered(ctx context.Context, filter barcode.RegistryFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.BarcodeRegistryModel{})
	if filter.BarcodeType != "" {
		query = query.Where("barcode_type = ?", filter.BarcodeType)
	}
	if filter.OwnerEntityType != "" {
		query = query.Where("owner_entity_type = ?", filter.OwnerEntityType)
	}
	if filter.OwnerEntityID != "" {
		query = query.Where("owner_entity_id = ?", filter.OwnerEntityID)
	}
	if !filter.IncludeRetired {
		query = query.Where("retired_at IS NULL")
	}
	return query
}

// Ensure GormBarcodeRegistryRepository implements barcode.RegistryRepository
var _ barcode.RegistryRepository = (*GormBarcodeRegistryRepository)(nil)

// registrySortColumns are the columns a listing may order by
var registrySortColumns = map[string]bool{
	"created_at":        true,
	"updated_at":        true,
	"code":              true,
	"barcode_type":      true,
	"owner_entity_type": true,
	"owner_entity_id":   true,
	"retired_at":        true,
}

// registryOrder builds the ORDER BY clause. Unknown columns fall back to
// created_at and anything but asc sorts descending.
func registryOrder(orderBy, orderDir string) string {
	column := strings.TrimSpace(orderBy)
	if !registrySortColumns[column] {
		column = "created_at"
	}
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return column + " ASC"
	}
	return column + " DESC"
}
