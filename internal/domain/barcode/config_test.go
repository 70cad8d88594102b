package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("seeds every counter at base", func(t *testing.T) {
		cfg, err := NewConfig("GPMS", FormatStructured, DefaultCounterBase)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfigID, cfg.ID)
		assert.Equal(t, 1, cfg.Version)
		for _, typ := range AllTypes() {
			assert.Equal(t, int64(DefaultCounterBase), cfg.Counter(typ))
		}
	})

	t.Run("unknown format falls back to structured", func(t *testing.T) {
		cfg, err := NewConfig("GPMS", Format("qr"), 0)
		require.NoError(t, err)
		assert.Equal(t, FormatStructured, cfg.Format)
	})

	t.Run("rejects invalid prefix", func(t *testing.T) {
		_, err := NewConfig("gp ms", FormatStructured, 0)
		assert.ErrorIs(t, err, ErrInvalidPrefix)
	})

	t.Run("rejects out of range base", func(t *testing.T) {
		_, err := NewConfig("GPMS", FormatStructured, -1)
		assert.ErrorIs(t, err, ErrNegativeCounter)
		_, err = NewConfig("GPMS", FormatStructured, MaxCounter+1)
		assert.ErrorIs(t, err, ErrCounterOverflow)
	})
}

func TestConfig_Advance(t *testing.T) {
	cfg, err := NewConfig("GPMS", FormatStructured, 1000)
	require.NoError(t, err)

	next, err := cfg.Advance(TypeUnit)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), next)
	assert.Equal(t, int64(1001), cfg.Counter(TypeUnit))
	assert.Equal(t, int64(1000), cfg.Counter(TypeProduct))

	_, err = cfg.Advance(BarcodeType("bogus"))
	assert.ErrorIs(t, err, ErrInvalidBarcodeType)

	empty := &Config{}
	next, err = empty.Advance(TypeProduct)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)
}

func TestParseBarcodeType(t *testing.T) {
	typ, err := ParseBarcodeType(" Unit ")
	require.NoError(t, err)
	assert.Equal(t, TypeUnit, typ)

	_, err = ParseBarcodeType("pallet")
	assert.ErrorIs(t, err, ErrInvalidBarcodeType)

	letter, ok := TypeProduct.Letter()
	assert.True(t, ok)
	assert.Equal(t, LetterProduct, letter)
	assert.Equal(t, OwnerProduct, TypeProduct.OwnerEntityType())
	assert.Equal(t, OwnerProductUnit, TypeUnit.OwnerEntityType())
}
