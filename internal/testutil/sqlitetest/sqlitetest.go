// Package sqlitetest provides in-memory SQLite databases carrying the barcode schema.
package sqlitetest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Schema mirrors migrations/000001_create_barcode_tables.up.sql
var Schema = []string{
	`CREATE TABLE barcode_configs (
		id TEXT PRIMARY KEY,
		prefix TEXT NOT NULL,
		format TEXT NOT NULL,
		counters TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE barcode_registry (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		code TEXT NOT NULL,
		barcode_type TEXT NOT NULL,
		owner_entity_type TEXT NOT NULL,
		owner_entity_id TEXT NOT NULL,
		format TEXT NOT NULL,
		retired_at DATETIME
	)`,
	`CREATE UNIQUE INDEX idx_barcode_registry_code ON barcode_registry(code)`,
	`CREATE UNIQUE INDEX idx_barcode_registry_active_owner
		ON barcode_registry(owner_entity_type, owner_entity_id, barcode_type)
		WHERE retired_at IS NULL`,
}

// ApplySchema creates the barcode tables on db.
// db must be limited to one open connection so every goroutine sees the same in-memory database.
func ApplySchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, stmt := range Schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
}

// New opens an in-memory database with the barcode tables
func New(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ApplySchema(t, db)
	return db
}
