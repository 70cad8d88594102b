package handler

import (
	barcodeapp "github.com/retailops/backend/internal/application/barcode"
)

// BulkGenerateRequest is the body of POST /barcodes/bulk
type BulkGenerateRequest struct {
	Type      string   `json:"type" binding:"required,barcode_type"`
	EntityIDs []string `json:"entity_ids" binding:"required,min=1,max=500,dive,required,max=100"`
}

// BulkGenerateResponse reports the outcome for every distinct entity id
type BulkGenerateResponse struct {
	BarcodeType string                           `json:"barcode_type"`
	Succeeded   int                              `json:"succeeded"`
	Failed      int                              `json:"failed"`
	Results     map[string]barcodeapp.BulkResult `json:"results"`
}

// ValidateRequest is the body of POST /barcodes/validate
type ValidateRequest struct {
	Code   string `json:"code" binding:"required,max=64"`
	Format string `json:"format" binding:"omitempty,barcode_format"`
}

// ParseQuery holds the query of GET /barcodes/parse
type ParseQuery struct {
	Code string `form:"code" binding:"required,max=64"`
}

// ScanRequest is the body of POST /barcodes/scan
type ScanRequest struct {
	Raw string `json:"raw" binding:"required,max=256"`
}

// ClaimRequest registers an externally issued code for an owner
type ClaimRequest struct {
	Code            string `json:"code" binding:"required,max=64,printascii"`
	Type            string `json:"type" binding:"required,barcode_type"`
	OwnerEntityType string `json:"owner_entity_type" binding:"required,max=50"`
	OwnerEntityID   string `json:"owner_entity_id" binding:"required,max=100"`
}

// ListCodesQuery holds the filters of GET /barcodes/codes
type ListCodesQuery struct {
	Type            string `form:"type" binding:"omitempty,barcode_type"`
	OwnerEntityType string `form:"owner_entity_type" binding:"omitempty,max=50"`
	OwnerEntityID   string `form:"owner_entity_id" binding:"omitempty,max=100"`
	IncludeRetired  bool   `form:"include_retired"`
	Page            int    `form:"page" binding:"omitempty,min=1"`
	PageSize        int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderDir        string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// AvailabilityResponse reports whether a code can still be claimed
type AvailabilityResponse struct {
	Code      string `json:"code"`
	Available bool   `json:"available"`
}
