package barcode

import (
	"strings"

	"github.com/retailops/backend/internal/domain/shared"
)

// BarcodeType identifies what kind of entity a code is minted for
type BarcodeType string

const (
	TypeUnit    BarcodeType = "unit"
	TypeProduct BarcodeType = "product"
)

// Type letters used in the structured grammar
const (
	LetterUnit    byte = 'U'
	LetterProduct byte = 'P'
)

// Owner entity types recorded in the registry
const (
	OwnerProductUnit = "product_unit"
	OwnerProduct     = "product"
)

// AllTypes returns every known barcode type in a stable order
func AllTypes() []BarcodeType {
	return []BarcodeType{TypeUnit, TypeProduct}
}

// IsValid returns true if t is a known barcode type
func (t BarcodeType) IsValid() bool {
	_, ok := t.Letter()
	return ok
}

// Letter returns the single type letter used in structured codes
func (t BarcodeType) Letter() (byte, bool) {
	switch t {
	case TypeUnit:
		return LetterUnit, true
	case TypeProduct:
		return LetterProduct, true
	}
	return 0, false
}

// OwnerEntityType returns the registry owner type a generated code of this type belongs to
func (t BarcodeType) OwnerEntityType() string {
	if t == TypeProduct {
		return OwnerProduct
	}
	return OwnerProductUnit
}

// String implements fmt.Stringer
func (t BarcodeType) String() string {
	return string(t)
}

// TypeFromLetter maps a structured type letter back to its barcode type
func TypeFromLetter(c byte) (BarcodeType, bool) {
	switch c {
	case LetterUnit:
		return TypeUnit, true
	case LetterProduct:
		return TypeProduct, true
	}
	return "", false
}

// ParseBarcodeType parses a barcode type name (case-insensitive)
func ParseBarcodeType(s string) (BarcodeType, error) {
	t := BarcodeType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidBarcodeType
	}
	return t, nil
}

// Format is the output format of generated codes
type Format string

const (
	FormatStructured      Format = "structured"
	FormatChecksumNumeric Format = "checksum_numeric"
)

// IsValid returns true if f is a known format
func (f Format) IsValid() bool {
	return f == FormatStructured || f == FormatChecksumNumeric
}

// ParseFormat parses a format name (case-insensitive)
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", shared.NewDomainError("INVALID_FORMAT", "Format must be one of: structured, checksum_numeric")
	}
	return f, nil
}
