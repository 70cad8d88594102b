package barcode

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"github.com/retailops/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrBulkTooLarge is returned when a batch exceeds the configured item limit
var ErrBulkTooLarge = shared.NewDomainError("BULK_TOO_LARGE", "Too many entity ids in one bulk request")

// ErrBulkEmpty is returned for a batch without entity ids
var ErrBulkEmpty = shared.NewDomainError("BULK_EMPTY", "Bulk request must contain at least one entity id")

// Message shown for an exhausted generation; the attempt count stays in the logs
const exhaustedMessage = "could not generate a unique code, try again"

// GenerateBulk generates a code for every distinct entity id with bounded
// concurrency. A failure for one id is reported in its result and never
// stops the others.
func (g *Generator) GenerateBulk(ctx context.Context, t barcode.BarcodeType, entityIDs []string) (map[string]BulkResult, error) {
	if !t.IsValid() {
		return nil, barcode.ErrInvalidBarcodeType
	}
	ids, err := distinctIDs(t, entityIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) > g.bulkMaxItems {
		return nil, ErrBulkTooLarge
	}

	ctx, span := telemetry.StartSpan(ctx, "barcode", "generate_bulk",
		attribute.String(telemetry.SpanAttrBarcodeType, t.String()),
		attribute.Int(telemetry.SpanAttrBatchSize, len(ids)),
	)
	defer span.End()

	var (
		mu      sync.Mutex
		results = make(map[string]BulkResult, len(ids))
		group   errgroup.Group
	)
	group.SetLimit(g.bulkConcurrency)

	for _, id := range ids {
		group.Go(func() error {
			code, err := g.Generate(ctx, t, id)
			result := BulkResult{Code: code}
			if err != nil {
				result = BulkResult{Error: ErrorMessage(err), ErrorCode: ErrorCode(err)}
			}
			mu.Lock()
			results[id] = result
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		g.logger.Warn("bulk generation finished with failures",
			zap.String("barcode_type", t.String()),
			zap.Int("requested", len(ids)),
			zap.Int("failed", failed),
		)
	}
	return results, nil
}

func distinctIDs(t barcode.BarcodeType, entityIDs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(entityIDs))
	ids := make([]string, 0, len(entityIDs))
	for _, raw := range entityIDs {
		id := strings.TrimSpace(raw)
		if err := barcode.ValidateOwner(t.OwnerEntityType(), id); err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ErrBulkEmpty
	}
	return ids, nil
}

// ErrorCode returns a stable machine-readable code for a generation failure
func ErrorCode(err error) string {
	var (
		exhausted *barcode.GenerationExhaustedError
		conflict  *barcode.ConflictError
		domainErr *shared.DomainError
	)
	switch {
	case errors.As(err, &exhausted):
		return "GENERATION_EXHAUSTED"
	case errors.Is(err, barcode.ErrStorageUnavailable):
		return "STORAGE_UNAVAILABLE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELLED"
	case errors.As(err, &conflict):
		return strings.ToUpper(string(conflict.Reason))
	case errors.As(err, &domainErr):
		return domainErr.Code
	}
	return "INTERNAL_ERROR"
}

// ErrorMessage returns the client-facing message for a generation failure
func ErrorMessage(err error) string {
	var (
		exhausted *barcode.GenerationExhaustedError
		domainErr *shared.DomainError
	)
	switch {
	case errors.As(err, &exhausted):
		return exhaustedMessage
	case errors.Is(err, barcode.ErrStorageUnavailable):
		return barcode.ErrStorageUnavailable.Message
	case errors.As(err, &domainErr):
		return domainErr.Message
	}
	return err.Error()
}
