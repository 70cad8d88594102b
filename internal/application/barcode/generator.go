package barcode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/domain/shared"
	"github.com/retailops/backend/internal/infrastructure/logger"
	"github.com/retailops/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Generation defaults
const (
	DefaultMaxAttempts     = 5
	DefaultBackoffInitial  = 10 * time.Millisecond
	DefaultBackoffMax      = 200 * time.Millisecond
	DefaultBulkConcurrency = 4
	DefaultBulkMaxItems    = 500
)

// Generator mints unique codes: reserve a counter value, encode it, check it,
// then claim it in the registry. Lost races are retried with backoff.
type Generator struct {
	store     barcode.CounterStore
	registry  *RegistryService
	encoder   *barcode.Encoder
	validator *barcode.Validator
	format    barcode.Format

	maxAttempts     int
	backoffInitial  time.Duration
	backoffMax      time.Duration
	bulkConcurrency int
	bulkMaxItems    int

	metrics *telemetry.BarcodeMetrics
	logger  *zap.Logger
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithFormat selects the output format (default structured)
func WithFormat(format barcode.Format) GeneratorOption {
	return func(g *Generator) {
		if format.IsValid() {
			g.format = format
		}
	}
}

// WithMaxAttempts bounds the attempts per generation, the first one included
func WithMaxAttempts(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithBackoff sets the exponential backoff window between attempts
func WithBackoff(initial, maxInterval time.Duration) GeneratorOption {
	return func(g *Generator) {
		if initial > 0 {
			g.backoffInitial = initial
		}
		if maxInterval >= g.backoffInitial {
			g.backoffMax = maxInterval
		}
	}
}

// WithBulkLimits sets the worker count and the batch size limit of GenerateBulk
func WithBulkLimits(concurrency, maxItems int) GeneratorOption {
	return func(g *Generator) {
		if concurrency > 0 {
			g.bulkConcurrency = concurrency
		}
		if maxItems > 0 {
			g.bulkMaxItems = maxItems
		}
	}
}

// WithMetrics records generation outcomes
func WithMetrics(metrics *telemetry.BarcodeMetrics) GeneratorOption {
	return func(g *Generator) {
		g.metrics = metrics
	}
}

// WithLogger sets the generator logger
func WithLogger(l *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator creates a new Generator
func NewGenerator(
	store barcode.CounterStore,
	registry *RegistryService,
	encoder *barcode.Encoder,
	validator *barcode.Validator,
	opts ...GeneratorOption,
) *Generator {
	g := &Generator{
		store:           store,
		registry:        registry,
		encoder:         encoder,
		validator:       validator,
		format:          barcode.FormatStructured,
		maxAttempts:     DefaultMaxAttempts,
		backoffInitial:  DefaultBackoffInitial,
		backoffMax:      DefaultBackoffMax,
		bulkConcurrency: DefaultBulkConcurrency,
		bulkMaxItems:    DefaultBulkMaxItems,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Format returns the configured output format
func (g *Generator) Format() barcode.Format {
	return g.format
}

// GenerateUnitCode returns the active code of a product unit, minting one on first call
func (g *Generator) GenerateUnitCode(ctx context.Context, entityID string) (string, error) {
	return g.Generate(ctx, barcode.TypeUnit, entityID)
}

// GenerateProductCode returns the active code of a product, minting one on first call
func (g *Generator) GenerateProductCode(ctx context.Context, productID string) (string, error) {
	return g.Generate(ctx, barcode.TypeProduct, productID)
}

// Generate returns the owner's active code of type t, minting and claiming one
// if the owner has none. Repeated calls for the same owner return the same code.
func (g *Generator) Generate(ctx context.Context, t barcode.BarcodeType, ownerID string) (string, error) {
	if !t.IsValid() {
		return "", barcode.ErrInvalidBarcodeType
	}
	ownerID = strings.TrimSpace(ownerID)
	ownerType := t.OwnerEntityType()
	if err := barcode.ValidateOwner(ownerType, ownerID); err != nil {
		return "", err
	}

	ctx, span := telemetry.StartSpan(ctx, "barcode", "generate",
		attribute.String(telemetry.SpanAttrBarcodeType, t.String()),
		attribute.String(telemetry.SpanAttrOwnerType, ownerType),
		attribute.String(telemetry.SpanAttrOwnerID, ownerID),
	)
	defer span.End()

	code, err := g.registry.GetOrClaim(ctx, ownerType, ownerID, t, func(ctx context.Context) (string, error) {
		return g.mint(ctx, t, ownerType, ownerID)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String(telemetry.SpanAttrCode, code))
	return code, nil
}

// mint runs reserve-encode-check-claim until a claim succeeds, a non-retryable
// error occurs, or the attempts run out.
func (g *Generator) mint(ctx context.Context, t barcode.BarcodeType, ownerType, ownerID string) (string, error) {
	log := logger.For(ctx, g.logger).With(
		zap.String("barcode_type", t.String()),
		zap.String("owner_id", ownerID),
	)

	var (
		code     string
		attempts int
	)
	operation := func() error {
		attempts++
		candidate, err := g.attempt(ctx, t, ownerType, ownerID)
		if err == nil {
			code = candidate
			return nil
		}
		var conflict *barcode.ConflictError
		if errors.As(err, &conflict) {
			g.metrics.RecordConflict(ctx, t.String(), string(conflict.Reason))
			if conflict.Retryable() {
				return err
			}
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		log.Info("barcode conflict, retrying",
			zap.Int("attempt", attempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(g.newBackOff(), ctx), notify)
	if err == nil {
		g.metrics.RecordGenerated(ctx, t.String(), string(g.format), attempts)
		log.Debug("barcode generated", zap.String("code", code), zap.Int("attempt", attempts))
		return code, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	var conflict *barcode.ConflictError
	if errors.As(err, &conflict) && conflict.Retryable() {
		g.metrics.RecordExhausted(ctx, t.String())
		log.Warn("barcode generation exhausted", zap.Int("attempt", attempts), zap.Error(err))
		return "", &barcode.GenerationExhaustedError{Type: t, Attempts: attempts, LastErr: err}
	}

	var storageErr *barcode.StorageError
	if errors.As(err, &storageErr) {
		g.metrics.RecordStorageError(ctx, storageErr.Op)
		log.Error("barcode storage unavailable", zap.String("op", storageErr.Op), zap.Error(err))
	}
	return "", err
}

// attempt is a single reserve-encode-check-claim pass
func (g *Generator) attempt(ctx context.Context, t barcode.BarcodeType, ownerType, ownerID string) (string, error) {
	counter, err := g.store.Reserve(ctx, t)
	if err != nil {
		return "", err
	}

	candidate, err := g.encoder.Encode(counter, t, g.format)
	if err != nil {
		return "", err
	}

	if result := g.validator.ValidateFormat(candidate, g.format); !result.IsValid {
		return "", fmt.Errorf("%w: %s %v", barcode.ErrSelfCheckFailed, candidate, result.Errors)
	}

	if _, err := g.registry.claim(ctx, candidate, t, ownerType, ownerID, g.format); err != nil {
		return "", err
	}
	return candidate, nil
}

func (g *Generator) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.backoffInitial
	b.MaxInterval = g.backoffMax
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, uint64(g.maxAttempts-1))
}

// CurrentConfig returns the stored configuration with live counter values
func (g *Generator) CurrentConfig(ctx context.Context) (*ConfigResponse, error) {
	cfg, err := g.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ToConfigResponse(cfg), nil
}

// Bootstrap stores the initial configuration on first start and returns the
// configuration actually in effect. A stored row always wins over the given values.
func Bootstrap(ctx context.Context, store barcode.CounterStore, prefix string, format barcode.Format, base int64, l *zap.Logger) (*barcode.Config, error) {
	initial, err := barcode.NewConfig(prefix, format, base)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(ctx, initial); err != nil {
		return nil, fmt.Errorf("failed to initialize barcode config: %w", err)
	}
	current, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("barcode config missing after initialize: %w", err)
		}
		return nil, fmt.Errorf("failed to load barcode config: %w", err)
	}

	if l != nil && (current.Prefix != prefix || current.Format != format) {
		l.Warn("stored barcode config differs from settings, using stored values",
			zap.String("stored_prefix", current.Prefix),
			zap.String("stored_format", string(current.Format)),
			zap.String("prefix", prefix),
			zap.String("format", string(format)),
		)
	}
	return current, nil
}
