package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// BarcodeMetrics records the outcome of every code generation.
type BarcodeMetrics struct {
	generated     *Counter
	conflicts     *Counter
	exhausted     *Counter
	storageErrors *Counter
	attempts      *Histogram
}

// NewBarcodeMetrics registers the barcode instruments on meter.
func NewBarcodeMetrics(meter metric.Meter) (*BarcodeMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   BarcodeMetrics
		err error
	)
	if m.generated, err = NewCounter(meter, "barcode_generated_total", "Codes generated and claimed", "{codes}"); err != nil {
		return nil, err
	}
	if m.conflicts, err = NewCounter(meter, "barcode_conflict_total", "Claim or reservation conflicts", "{conflicts}"); err != nil {
		return nil, err
	}
	if m.exhausted, err = NewCounter(meter, "barcode_exhausted_total", "Generations that ran out of attempts", "{generations}"); err != nil {
		return nil, err
	}
	if m.storageErrors, err = NewCounter(meter, "barcode_storage_errors_total", "Counter store or registry failures", "{errors}"); err != nil {
		return nil, err
	}
	if m.attempts, err = NewHistogram(meter, "barcode_generation_attempts", "Attempts used per successful generation", "{attempts}", AttemptBuckets...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordGenerated counts a claimed code and the attempts it took.
func (m *BarcodeMetrics) RecordGenerated(ctx context.Context, barcodeType, format string, attempts int) {
	if m == nil {
		return
	}
	m.generated.Inc(ctx, AttrBarcodeType.String(barcodeType), AttrBarcodeFormat.String(format))
	m.attempts.Record(ctx, int64(attempts), AttrBarcodeType.String(barcodeType))
}

// RecordConflict counts a lost claim or counter race.
func (m *BarcodeMetrics) RecordConflict(ctx context.Context, barcodeType, reason string) {
	if m == nil {
		return
	}
	m.conflicts.Inc(ctx, AttrBarcodeType.String(barcodeType), AttrConflictReason.String(reason))
}

// RecordExhausted counts a generation that gave up.
func (m *BarcodeMetrics) RecordExhausted(ctx context.Context, barcodeType string) {
	if m == nil {
		return
	}
	m.exhausted.Inc(ctx, AttrBarcodeType.String(barcodeType))
}

// RecordStorageError counts a storage failure.
func (m *BarcodeMetrics) RecordStorageError(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.storageErrors.Inc(ctx, AttrStorageOp.String(op))
}
