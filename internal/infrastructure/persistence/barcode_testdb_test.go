package persistence

import (
	"testing"

	"github.com/retailops/backend/internal/testutil/sqlitetest"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupBarcodeTestDB opens an in-memory SQLite database through Open with the barcode tables.
func setupBarcodeTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(sqlite.Open(":memory:"))
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	sqlitetest.ApplySchema(t, db.DB)
	return db.DB
}
