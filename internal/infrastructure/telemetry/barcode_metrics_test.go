package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewBarcodeMetrics(t *testing.T) {
	t.Run("nil meter", func(t *testing.T) {
		_, err := NewBarcodeMetrics(nil)
		assert.ErrorIs(t, err, ErrMeterNil)
	})

	t.Run("noop meter", func(t *testing.T) {
		m, err := NewBarcodeMetrics(noop.NewMeterProvider().Meter("test"))
		require.NoError(t, err)
		assert.NotPanics(t, func() {
			ctx := context.Background()
			m.RecordGenerated(ctx, "unit", "structured", 1)
			m.RecordConflict(ctx, "unit", "code_taken")
			m.RecordExhausted(ctx, "unit")
			m.RecordStorageError(ctx, "reserve")
		})
	})

	t.Run("nil receiver is a no-op", func(t *testing.T) {
		var m *BarcodeMetrics
		assert.NotPanics(t, func() {
			m.RecordGenerated(context.Background(), "unit", "structured", 1)
			m.RecordExhausted(context.Background(), "unit")
		})
	})
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestBarcodeMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := NewBarcodeMetrics(provider.Meter("barcode"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordGenerated(ctx, "unit", "structured", 1)
	m.RecordGenerated(ctx, "unit", "structured", 3)
	m.RecordConflict(ctx, "unit", "code_taken")
	m.RecordConflict(ctx, "unit", "code_taken")
	m.RecordExhausted(ctx, "product")
	m.RecordStorageError(ctx, "reserve counter")

	data := collect(t, reader)

	generated, ok := data["barcode_generated_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, generated.DataPoints, 1)
	assert.Equal(t, int64(2), generated.DataPoints[0].Value)
	typ, _ := generated.DataPoints[0].Attributes.Value(AttrBarcodeType)
	assert.Equal(t, attribute.StringValue("unit"), typ)

	conflicts := data["barcode_conflict_total"].(metricdata.Sum[int64])
	assert.Equal(t, int64(2), conflicts.DataPoints[0].Value)

	exhausted := data["barcode_exhausted_total"].(metricdata.Sum[int64])
	assert.Equal(t, int64(1), exhausted.DataPoints[0].Value)

	storage := data["barcode_storage_errors_total"].(metricdata.Sum[int64])
	assert.Equal(t, int64(1), storage.DataPoints[0].Value)

	attempts, ok := data["barcode_generation_attempts"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, attempts.DataPoints, 1)
	assert.Equal(t, uint64(2), attempts.DataPoints[0].Count)
	assert.Equal(t, int64(4), attempts.DataPoints[0].Sum)
}
