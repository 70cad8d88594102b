package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/retailops/backend/internal/domain/barcode"
)

// BarcodeConfigModel is the persistence model for the singleton barcode configuration.
// Counters are stored as a JSON object keyed by barcode type.
type BarcodeConfigModel struct {
	ID           string         `gorm:"type:varchar(32);primary_key"`
	Prefix       string         `gorm:"type:varchar(10);not null"`
	Format       barcode.Format `gorm:"type:varchar(20);not null"`
	CountersJSON string         `gorm:"column:counters;type:jsonb;not null"`
	Version      int            `gorm:"not null;default:1"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BarcodeConfigModel) TableName() string {
	return "barcode_configs"
}

// ToDomain converts the persistence model to a domain Config
func (m *BarcodeConfigModel) ToDomain() (*barcode.Config, error) {
	raw := make(map[string]int64)
	if m.CountersJSON != "" {
		if err := json.Unmarshal([]byte(m.CountersJSON), &raw); err != nil {
			return nil, fmt.Errorf("decode barcode counters: %w", err)
		}
	}

	counters := make(map[barcode.BarcodeType]int64, len(raw))
	for k, v := range raw {
		counters[barcode.BarcodeType(k)] = v
	}

	return &barcode.Config{
		ID:        m.ID,
		Prefix:    m.Prefix,
		Format:    m.Format,
		Counters:  counters,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

// BarcodeConfigModelFromDomain creates a persistence model from a domain Config
func BarcodeConfigModelFromDomain(cfg *barcode.Config) (*BarcodeConfigModel, error) {
	raw := make(map[string]int64, len(cfg.Counters))
	for k, v := range cfg.Counters {
		raw[string(k)] = v
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode barcode counters: %w", err)
	}

	id := cfg.ID
	if id == "" {
		id = barcode.DefaultConfigID
	}
	return &BarcodeConfigModel{
		ID:           id,
		Prefix:       cfg.Prefix,
		Format:       cfg.Format,
		CountersJSON: string(data),
		Version:      cfg.Version,
		CreatedAt:    cfg.CreatedAt,
		UpdatedAt:    cfg.UpdatedAt,
	}, nil
}

// BarcodeRegistryModel is the persistence model for a registry entry.
// code is unique across active and retired rows; the owner triple is unique
// among active rows only (partial index, see migrations).
type BarcodeRegistryModel struct {
	AggregateModel
	Code            string              `gorm:"type:varchar(64);not null;uniqueIndex"`
	BarcodeType     barcode.BarcodeType `gorm:"type:varchar(20);not null"`
	OwnerEntityType string              `gorm:"type:varchar(50);not null"`
	OwnerEntityID   string              `gorm:"type:varchar(100);not null"`
	Format          barcode.Format      `gorm:"type:varchar(20);not null"`
	RetiredAt       *time.Time
}

// TableName returns the table name for GORM
func (BarcodeRegistryModel) TableName() string {
	return "barcode_registry"
}

// ToDomain converts the persistence model to a domain RegistryEntry
func (m *BarcodeRegistryModel) ToDomain() *barcode.RegistryEntry {
	return &barcode.RegistryEntry{
		Aggregate:       m.toAggregate(),
		Code:            m.Code,
		BarcodeType:     m.BarcodeType,
		OwnerEntityType: m.OwnerEntityType,
		OwnerEntityID:   m.OwnerEntityID,
		Format:          m.Format,
		RetiredAt:       m.RetiredAt,
	}
}

// BarcodeRegistryModelFromDomain creates a persistence model from a domain RegistryEntry
func BarcodeRegistryModelFromDomain(e *barcode.RegistryEntry) *BarcodeRegistryModel {
	m := &BarcodeRegistryModel{
		Code:            e.Code,
		BarcodeType:     e.BarcodeType,
		OwnerEntityType: e.OwnerEntityType,
		OwnerEntityID:   e.OwnerEntityID,
		Format:          e.Format,
		RetiredAt:       e.RetiredAt,
	}
	m.fromAggregate(e.Aggregate)
	return m
}
