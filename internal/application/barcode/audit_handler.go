package barcode

import (
	"context"

	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditHandler writes an audit log line for every issued and retired code
type AuditHandler struct {
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(logger *zap.Logger) *AuditHandler {
	return &AuditHandler{logger: logger.Named("barcode.audit")}
}

// EventTypes returns the event types this handler is interested in
func (h *AuditHandler) EventTypes() []string {
	return []string{barcode.EventTypeBarcodeIssued, barcode.EventTypeBarcodeRetired}
}

// Handle logs the event
func (h *AuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *barcode.BarcodeIssuedEvent:
		h.logger.Info("barcode issued",
			zap.String("event_id", e.EventID().String()),
			zap.String("entry_id", e.AggregateID().String()),
			zap.String("code", e.Code),
			zap.String("barcode_type", e.BarcodeType.String()),
			zap.String("owner_type", e.OwnerEntityType),
			zap.String("owner_id", e.OwnerEntityID),
			zap.String("format", string(e.Format)),
		)
	case *barcode.BarcodeRetiredEvent:
		h.logger.Info("barcode retired",
			zap.String("event_id", e.EventID().String()),
			zap.String("entry_id", e.AggregateID().String()),
			zap.String("code", e.Code),
			zap.String("owner_type", e.OwnerEntityType),
			zap.String("owner_id", e.OwnerEntityID),
		)
	default:
		h.logger.Warn("unexpected event type", zap.String("event_type", event.EventType()))
	}
	return nil
}

var _ shared.EventHandler = (*AuditHandler)(nil)
