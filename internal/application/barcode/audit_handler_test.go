package barcode

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"github.com/retailops/backend/internal/infrastructure/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := NewAuditHandler(zap.New(core))
	assert.ElementsMatch(t, []string{barcode.EventTypeBarcodeIssued, barcode.EventTypeBarcodeRetired}, handler.EventTypes())

	entry, err := barcode.NewRegistryEntry("GPMSU001001", barcode.TypeUnit, barcode.OwnerProductUnit, "unit-1", barcode.FormatStructured)
	require.NoError(t, err)
	require.NoError(t, entry.Retire(time.Now()))

	// Wire through the bus the way the server does
	bus := event.NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(handler)
	require.NoError(t, bus.Publish(context.Background(), entry.Events()...))

	issued := logs.FilterMessage("barcode issued").All()
	require.Len(t, issued, 1)
	fields := issued[0].ContextMap()
	assert.Equal(t, "GPMSU001001", fields["code"])
	assert.Equal(t, "unit-1", fields["owner_id"])
	assert.Equal(t, "unit", fields["barcode_type"])
	assert.Equal(t, "barcode.audit", issued[0].LoggerName)

	assert.Equal(t, 1, logs.FilterMessage("barcode retired").Len())
}

type unknownEvent struct {
	shared.EventHeader
}

func TestAuditHandler_UnexpectedEvent(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	handler := NewAuditHandler(zap.New(core))

	evt := &unknownEvent{EventHeader: shared.NewEventHeader("Other", uuid.Nil)}
	assert.NoError(t, handler.Handle(context.Background(), evt))
	assert.Equal(t, 1, logs.FilterMessage("unexpected event type").Len())
}
