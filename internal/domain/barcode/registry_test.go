package barcode

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryEntry(t *testing.T) {
	t.Run("creates active entry and issued event", func(t *testing.T) {
		entry, err := NewRegistryEntry("GPMSU001001", TypeUnit, OwnerProductUnit, "unit-1", FormatStructured)
		require.NoError(t, err)
		assert.True(t, entry.IsActive())
		assert.NotEmpty(t, entry.ID)

		events := entry.Events()
		require.Len(t, events, 1)
		issued, ok := events[0].(*BarcodeIssuedEvent)
		require.True(t, ok)
		assert.Equal(t, "GPMSU001001", issued.Code)
		assert.Equal(t, entry.ID, issued.AggregateID())
	})

	t.Run("detects format when unspecified", func(t *testing.T) {
		entry, err := NewRegistryEntry("2009210010012", TypeUnit, OwnerProductUnit, "unit-1", "")
		require.NoError(t, err)
		assert.Equal(t, FormatChecksumNumeric, entry.Format)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := NewRegistryEntry(" ", TypeUnit, OwnerProductUnit, "u", FormatStructured)
		assert.ErrorIs(t, err, ErrEmptyCode)
		_, err = NewRegistryEntry("C", BarcodeType("x"), OwnerProductUnit, "u", FormatStructured)
		assert.ErrorIs(t, err, ErrInvalidBarcodeType)
		_, err = NewRegistryEntry("C", TypeUnit, OwnerProductUnit, "", FormatStructured)
		assert.ErrorIs(t, err, ErrEmptyOwner)
		_, err = NewRegistryEntry(strings.Repeat("9", MaxCodeLength+1), TypeUnit, OwnerProductUnit, "u", FormatStructured)
		assert.ErrorIs(t, err, ErrCodeTooLong)
		_, err = NewRegistryEntry("C", TypeUnit, OwnerProductUnit, strings.Repeat("u", MaxOwnerIDLength+1), FormatStructured)
		assert.ErrorIs(t, err, ErrOwnerTooLong)
	})
}

func TestValidateOwner(t *testing.T) {
	tests := []struct {
		name      string
		ownerType string
		ownerID   string
		wantErr   error
	}{
		{"valid", OwnerProductUnit, "unit-1", nil},
		{"id at the limit", OwnerProductUnit, strings.Repeat("u", MaxOwnerIDLength), nil},
		{"multibyte id counted in characters", OwnerProduct, strings.Repeat("é", MaxOwnerIDLength), nil},
		{"blank id", OwnerProductUnit, "  ", ErrEmptyOwner},
		{"blank type", "", "unit-1", ErrEmptyOwner},
		{"id too long", OwnerProductUnit, strings.Repeat("u", MaxOwnerIDLength+1), ErrOwnerTooLong},
		{"type too long", strings.Repeat("t", MaxOwnerTypeLength+1), "unit-1", ErrOwnerTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOwner(tt.ownerType, tt.ownerID)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistryEntry_Retire(t *testing.T) {
	entry, err := NewRegistryEntry("GPMSU001001", TypeUnit, OwnerProductUnit, "unit-1", FormatStructured)
	require.NoError(t, err)
	entry.ClearEvents()

	at := time.Now()
	require.NoError(t, entry.Retire(at))
	assert.False(t, entry.IsActive())
	assert.Equal(t, 2, entry.Version)
	require.Len(t, entry.Events(), 1)
	assert.Equal(t, EventTypeBarcodeRetired, entry.Events()[0].EventType())

	assert.ErrorIs(t, entry.Retire(at), ErrAlreadyRetired)
}

func TestErrors(t *testing.T) {
	t.Run("storage error matches sentinel and unwraps", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := fmt.Errorf("reserve: %w", NewStorageError("reserve", cause))
		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("conflict reasons", func(t *testing.T) {
		taken := NewConflictError("GPMSU001001", ReasonCodeTaken)
		assert.True(t, taken.Retryable())
		assert.True(t, NewConflictError("", ReasonCounterContention).Retryable())
		assert.False(t, NewConflictError("GPMSU001001", ReasonOwnerHasCode).Retryable())

		wrapped := fmt.Errorf("claim: %w", taken)
		assert.True(t, IsConflict(wrapped, ReasonCodeTaken))
		assert.False(t, IsConflict(wrapped, ReasonOwnerHasCode))
		assert.False(t, IsConflict(errors.New("x"), ReasonCodeTaken))
	})

	t.Run("exhausted carries attempts and cause", func(t *testing.T) {
		last := NewConflictError("GPMSU001005", ReasonCodeTaken)
		err := &GenerationExhaustedError{Type: TypeUnit, Attempts: 5, LastErr: last}
		assert.Contains(t, err.Error(), "5 attempts")
		assert.True(t, IsConflict(err, ReasonCodeTaken))
	})
}
