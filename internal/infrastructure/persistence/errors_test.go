package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantConstraint string
		wantUnique     bool
	}{
		{
			name:           "postgres unique violation",
			err:            fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "idx_barcode_registry_active_owner"}),
			wantConstraint: "idx_barcode_registry_active_owner",
			wantUnique:     true,
		},
		{
			name:           "postgres other error",
			err:            &pgconn.PgError{Code: "23502", ConstraintName: "barcode_registry_code_not_null"},
			wantConstraint: "barcode_registry_code_not_null",
			wantUnique:     false,
		},
		{
			name:       "translated gorm error",
			err:        gorm.ErrDuplicatedKey,
			wantUnique: true,
		},
		{
			name:           "sqlite unique violation",
			err:            errors.New("UNIQUE constraint failed: barcode_registry.code"),
			wantConstraint: "barcode_registry.code",
			wantUnique:     true,
		},
		{
			name:       "unrelated",
			err:        errors.New("connection refused"),
			wantUnique: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constraint, unique := uniqueViolation(tt.err)
			assert.Equal(t, tt.wantUnique, unique)
			assert.Equal(t, tt.wantConstraint, constraint)
			assert.Equal(t, tt.wantUnique, IsUniqueViolation(tt.err))
		})
	}

	assert.False(t, IsUniqueViolation(nil))
}

func TestStorageError(t *testing.T) {
	cause := errors.New("connection refused")

	t.Run("wraps driver errors", func(t *testing.T) {
		err := storageError(context.Background(), "load config", cause)
		assert.ErrorIs(t, err, barcode.ErrStorageUnavailable)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("cancelled context wins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := storageError(ctx, "load config", cause)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, barcode.ErrStorageUnavailable)
	})

	t.Run("deadline from driver is passed through", func(t *testing.T) {
		err := storageError(context.Background(), "load config", fmt.Errorf("query: %w", context.DeadlineExceeded))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, barcode.ErrStorageUnavailable)
	})
}
