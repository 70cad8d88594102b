package barcode

import (
	"strconv"
	"strings"
)

// Structured validation error codes
const (
	ErrCodeInvalidLength     = "INVALID_LENGTH"
	ErrCodeInvalidPrefix     = "INVALID_PREFIX"
	ErrCodeInvalidTypeLetter = "INVALID_TYPE_LETTER"
	ErrCodeInvalidCounter    = "INVALID_COUNTER"
)

// Checksum-numeric validation error codes
const (
	ErrCodeNonNumeric       = "NON_NUMERIC"
	ErrCodeChecksumMismatch = "CHECKSUM_MISMATCH"
)

// ValidationResult lists every structural defect found in a code.
// Validation never fails with an error; defects are data.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Format  Format   `json:"format"`
	Errors  []string `json:"errors"`
}

// ParsedCodeInfo is the decomposition of a structured code.
// On failure Type is empty and Counter is 0.
type ParsedCodeInfo struct {
	Prefix  string      `json:"prefix"`
	Type    BarcodeType `json:"type"`
	Counter int64       `json:"counter"`
	IsValid bool        `json:"is_valid"`
}

// Validator checks codes against the fixed-width grammar for one prefix
type Validator struct {
	prefix string
}

// NewValidator creates a validator for the given prefix
func NewValidator(prefix string) (*Validator, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	return &Validator{prefix: prefix}, nil
}

// Prefix returns the configured prefix
func (v *Validator) Prefix() string {
	return v.prefix
}

// StructuredLength returns the fixed length of a structured code
func (v *Validator) StructuredLength() int {
	return len(v.prefix) + 1 + CounterWidth
}

// ValidateStructured checks code against prefix + type letter + 6 digits.
// Every rule is evaluated so the caller sees all defects at once.
func (v *Validator) ValidateStructured(code string) ValidationResult {
	errs := make([]string, 0, 4)

	if len(code) != v.StructuredLength() {
		errs = append(errs, ErrCodeInvalidLength)
	}
	if !strings.HasPrefix(code, v.prefix) {
		errs = append(errs, ErrCodeInvalidPrefix)
	}
	if len(code) <= len(v.prefix) {
		errs = append(errs, ErrCodeInvalidTypeLetter)
	} else if _, ok := TypeFromLetter(code[len(v.prefix)]); !ok {
		errs = append(errs, ErrCodeInvalidTypeLetter)
	}
	if len(code) < CounterWidth || !allDigits(code[len(code)-CounterWidth:]) {
		errs = append(errs, ErrCodeInvalidCounter)
	}

	return ValidationResult{
		IsValid: len(errs) == 0,
		Format:  FormatStructured,
		Errors:  errs,
	}
}

// ParseStructured decomposes a structured code. It never panics on malformed input.
func (v *Validator) ParseStructured(code string) ParsedCodeInfo {
	info := ParsedCodeInfo{}
	if len(code) >= len(v.prefix) {
		info.Prefix = code[:len(v.prefix)]
	}
	if !v.ValidateStructured(code).IsValid {
		return info
	}

	t, _ := TypeFromLetter(code[len(v.prefix)])
	counter, err := strconv.ParseInt(code[len(code)-CounterWidth:], 10, 64)
	if err != nil {
		return info
	}

	info.Type = t
	info.Counter = counter
	info.IsValid = true
	return info
}

// ValidateChecksumNumeric reports whether code is 13 digits with a correct check digit
func (v *Validator) ValidateChecksumNumeric(code string) bool {
	return v.ValidateChecksumNumericResult(code).IsValid
}

// ValidateChecksumNumericResult is ValidateChecksumNumeric with the defects listed
func (v *Validator) ValidateChecksumNumericResult(code string) ValidationResult {
	errs := make([]string, 0, 2)
	if len(code) != ChecksumCodeLength {
		errs = append(errs, ErrCodeInvalidLength)
	}

	numeric := code != "" && allDigits(code)
	if !numeric {
		errs = append(errs, ErrCodeNonNumeric)
	}

	if numeric && len(code) == ChecksumCodeLength {
		check, err := ChecksumDigit(code[:checksumBodyLength])
		if err != nil || check != code[checksumBodyLength] {
			errs = append(errs, ErrCodeChecksumMismatch)
		}
	}

	return ValidationResult{
		IsValid: len(errs) == 0,
		Format:  FormatChecksumNumeric,
		Errors:  errs,
	}
}

// DetectFormat guesses the format of code: 13 ASCII digits is checksum-numeric,
// anything else is treated as structured.
func DetectFormat(code string) Format {
	if len(code) == ChecksumCodeLength && allDigits(code) {
		return FormatChecksumNumeric
	}
	return FormatStructured
}

// Validate validates code in its detected format
func (v *Validator) Validate(code string) ValidationResult {
	if DetectFormat(code) == FormatChecksumNumeric {
		return v.ValidateChecksumNumericResult(code)
	}
	return v.ValidateStructured(code)
}

// ValidateFormat validates code against an explicit format
func (v *Validator) ValidateFormat(code string, format Format) ValidationResult {
	if format == FormatChecksumNumeric {
		return v.ValidateChecksumNumericResult(code)
	}
	return v.ValidateStructured(code)
}
