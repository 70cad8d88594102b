package barcode

import (
	"time"

	"github.com/google/uuid"
	"github.com/retailops/backend/internal/domain/barcode"
)

// RegistryEntryResponse is the external view of a registry entry
type RegistryEntryResponse struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	BarcodeType     string     `json:"barcode_type"`
	OwnerEntityType string     `json:"owner_entity_type"`
	OwnerEntityID   string     `json:"owner_entity_id"`
	Format          string     `json:"format"`
	Active          bool       `json:"active"`
	RetiredAt       *time.Time `json:"retired_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Version         int        `json:"version"`
}

// ToRegistryEntryResponse converts a domain entry to its response
func ToRegistryEntryResponse(entry *barcode.RegistryEntry) RegistryEntryResponse {
	return RegistryEntryResponse{
		ID:              entry.ID,
		Code:            entry.Code,
		BarcodeType:     entry.BarcodeType.String(),
		OwnerEntityType: entry.OwnerEntityType,
		OwnerEntityID:   entry.OwnerEntityID,
		Format:          string(entry.Format),
		Active:          entry.IsActive(),
		RetiredAt:       entry.RetiredAt,
		CreatedAt:       entry.CreatedAt,
		UpdatedAt:       entry.UpdatedAt,
		Version:         entry.Version,
	}
}

// ToRegistryEntryResponses converts a page of domain entries
func ToRegistryEntryResponses(entries []barcode.RegistryEntry) []RegistryEntryResponse {
	responses := make([]RegistryEntryResponse, len(entries))
	for i := range entries {
		responses[i] = ToRegistryEntryResponse(&entries[i])
	}
	return responses
}

// ConfigResponse is the external view of the barcode configuration
type ConfigResponse struct {
	Prefix    string           `json:"prefix"`
	Format    string           `json:"format"`
	Counters  map[string]int64 `json:"counters"`
	Version   int              `json:"version"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ToConfigResponse converts the domain configuration to its response
func ToConfigResponse(cfg *barcode.Config) *ConfigResponse {
	counters := make(map[string]int64, len(cfg.Counters))
	for t, v := range cfg.Counters {
		counters[t.String()] = v
	}
	return &ConfigResponse{
		Prefix:    cfg.Prefix,
		Format:    string(cfg.Format),
		Counters:  counters,
		Version:   cfg.Version,
		UpdatedAt: cfg.UpdatedAt,
	}
}

// GenerateResponse is returned by the single-owner generation endpoints
type GenerateResponse struct {
	Code        string `json:"code"`
	BarcodeType string `json:"barcode_type"`
	OwnerID     string `json:"owner_id"`
	Format      string `json:"format"`
}

// BulkResult is the outcome for one owner of a bulk generation.
// Exactly one of Code and Error is set.
type BulkResult struct {
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// OK reports whether the owner got a code
func (r BulkResult) OK() bool {
	return r.Error == ""
}

// ScanResult is the outcome of resolving raw scanner input
type ScanResult struct {
	Raw        string                   `json:"raw"`
	Code       string                   `json:"code"`
	Validation barcode.ValidationResult `json:"validation"`
	Parsed     *barcode.ParsedCodeInfo  `json:"parsed,omitempty"`
	Found      bool                     `json:"found"`
	Entry      *RegistryEntryResponse   `json:"entry,omitempty"`
}
