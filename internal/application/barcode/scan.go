package barcode

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"golang.org/x/text/width"
)

// ScanResolver turns raw scanner input into a validated code and its registry entry
type ScanResolver struct {
	registry  *RegistryService
	validator *barcode.Validator
}

// NewScanResolver creates a new ScanResolver
func NewScanResolver(registry *RegistryService, validator *barcode.Validator) *ScanResolver {
	return &ScanResolver{registry: registry, validator: validator}
}

// Normalize strips scanner framing (CR, LF, TAB and other control characters),
// folds full-width characters to ASCII and upper-cases letters.
func Normalize(raw string) string {
	s := width.Fold.String(raw)
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	return strings.ToUpper(s)
}

// Resolve normalizes raw, validates it and, when valid, looks it up in the registry.
// An invalid or unknown code is a result, not an error.
func (r *ScanResolver) Resolve(ctx context.Context, raw string) (*ScanResult, error) {
	code := Normalize(raw)
	result := &ScanResult{
		Raw:        raw,
		Code:       code,
		Validation: r.validator.Validate(code),
	}
	if result.Validation.Format == barcode.FormatStructured {
		parsed := r.validator.ParseStructured(code)
		result.Parsed = &parsed
	}
	if !result.Validation.IsValid {
		return result, nil
	}

	entry, err := r.registry.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return result, nil
		}
		return nil, err
	}
	resp := ToRegistryEntryResponse(entry)
	result.Found = true
	result.Entry = &resp
	return result, nil
}
