package barcode

import (
	"github.com/retailops/backend/internal/domain/shared"
)

// Event types published by the registry
const (
	EventTypeBarcodeIssued  = "BarcodeIssued"
	EventTypeBarcodeRetired = "BarcodeRetired"
)

// BarcodeIssuedEvent is published after a code is claimed for an owner
type BarcodeIssuedEvent struct {
	shared.EventHeader
	Code            string      `json:"code"`
	BarcodeType     BarcodeType `json:"barcode_type"`
	OwnerEntityType string      `json:"owner_entity_type"`
	OwnerEntityID   string      `json:"owner_entity_id"`
	Format          Format      `json:"format"`
}

// NewBarcodeIssuedEvent creates a BarcodeIssued event for entry
func NewBarcodeIssuedEvent(entry *RegistryEntry) *BarcodeIssuedEvent {
	return &BarcodeIssuedEvent{
		EventHeader:     shared.NewEventHeader(EventTypeBarcodeIssued, entry.ID),
		Code:            entry.Code,
		BarcodeType:     entry.BarcodeType,
		OwnerEntityType: entry.OwnerEntityType,
		OwnerEntityID:   entry.OwnerEntityID,
		Format:          entry.Format,
	}
}

// BarcodeRetiredEvent is published after a code is tombstoned
type BarcodeRetiredEvent struct {
	shared.EventHeader
	Code            string `json:"code"`
	OwnerEntityType string `json:"owner_entity_type"`
	OwnerEntityID   string `json:"owner_entity_id"`
}

// NewBarcodeRetiredEvent creates a BarcodeRetired event for entry
func NewBarcodeRetiredEvent(entry *RegistryEntry) *BarcodeRetiredEvent {
	return &BarcodeRetiredEvent{
		EventHeader:     shared.NewEventHeader(EventTypeBarcodeRetired, entry.ID),
		Code:            entry.Code,
		OwnerEntityType: entry.OwnerEntityType,
		OwnerEntityID:   entry.OwnerEntityID,
	}
}
