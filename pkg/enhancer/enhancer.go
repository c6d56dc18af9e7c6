// Package enhancer resolves stored Heartcore parameter values into content
// records at render time.
//
// Every id in a value is fetched concurrently, but each fetch first takes a
// slot from a shared Throttle so a page with many references never exceeds
// the Heartcore request-rate ceiling. Results come back in the stored id order.
// Ids that cannot be resolved are dropped; configuration and credential errors
// abort the whole batch.
package enhancer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wehubfusion/Heartcore/pkg/concurrency"
	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/iteration"
	"github.com/wehubfusion/Heartcore/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Throttler admits one request at a time against a rate ceiling.
type Throttler interface {
	Acquire(ctx context.Context) error
}

// Enhancer resolves parameter values. It is safe for concurrent use; all
// batches share the same throttle.
type Enhancer struct {
	throttle Throttler
	limiter  *concurrency.Limiter
	logger   *zap.Logger
	metrics  *metrics.Collectors
	tracer   trace.Tracer
}

// Option customizes an Enhancer.
type Option func(*Enhancer)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Enhancer) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics reports fetch and batch outcomes to m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(e *Enhancer) {
		e.metrics = m
	}
}

// WithLimiter caps how many fetches of one batch are in flight at once.
func WithLimiter(l *concurrency.Limiter) Option {
	return func(e *Enhancer) {
		e.limiter = l
	}
}

// New creates an Enhancer. A nil throttle gets the default 33 requests per second.
func New(throttle Throttler, opts ...Option) *Enhancer {
	e := &Enhancer{
		throttle: throttle,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("heartcore/enhancer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.throttle == nil {
		e.throttle = concurrency.NewThrottle(concurrency.DefaultThrottleConfig(),
			concurrency.WithThrottleLogger(e.logger),
			concurrency.WithThrottleMetrics(e.metrics))
	}
	return e
}

// Enhance resolves value with a one-off Enhancer over throttle.
func Enhance(ctx context.Context, value *content.ParameterValue, client contentclient.ContentFetcher, throttle Throttler) ([]content.ContentRecord, error) {
	return New(throttle).Enhance(ctx, value, client)
}

type fetchResult struct {
	record content.ContentRecord
	found  bool
}

// Enhance fetches every id of value and returns the resolved records in id
// order. A nil value or a value without ids yields an empty result.
func (e *Enhancer) Enhance(ctx context.Context, value *content.ParameterValue, client contentclient.ContentFetcher) ([]content.ContentRecord, error) {
	if !value.HasIDs() {
		return []content.ContentRecord{}, nil
	}
	if client == nil {
		return nil, apperrors.NewConfigurationError("no Heartcore client was provided to the enhancer", nil)
	}

	ids := content.DedupeIDs(value.IDs)
	batchID := uuid.NewString()
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "enhancer.Enhance",
		trace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.String("linked_source", value.Source),
			attribute.Int("batch.size", len(ids)),
		))
	defer span.End()

	logger := e.logger.With(zap.String("batch_id", batchID))
	logger.Debug("Enhancing parameter value", zap.Int("ids", len(ids)))

	cfg := iteration.Config{Strategy: iteration.StrategyParallel, Admit: e.throttle.Acquire}
	var it *iteration.Iterator
	if e.limiter != nil {
		it = iteration.NewIteratorWithLimiter(cfg, e.limiter)
	} else {
		it = iteration.NewIterator(cfg)
	}

	results, err := iteration.Process(ctx, it, ids, func(ctx context.Context, id string, _ int) (fetchResult, error) {
		return e.fetch(ctx, logger, client, id)
	})
	if err != nil {
		e.metrics.IncBatch(metrics.OutcomeAborted)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Enhancement batch aborted",
			zap.String("error_code", apperrors.Categorize(err)),
			zap.Error(err))
		return nil, unwrapAbort(err)
	}

	records := make([]content.ContentRecord, 0, len(results))
	for _, r := range results {
		if r.found {
			records = append(records, r.record)
		}
	}

	e.metrics.IncBatch(metrics.OutcomeResolved)
	span.SetAttributes(attribute.Int("batch.resolved", len(records)))
	span.SetStatus(codes.Ok, "resolved")
	logger.Debug("Enhancement batch finished",
		zap.Int("requested", len(ids)),
		zap.Int("resolved", len(records)),
		zap.Duration("duration", time.Since(start)))

	return records, nil
}

// fetch resolves one id. Fatal errors and cancellation of ctx are returned;
// everything else is logged and reported as not found.
func (e *Enhancer) fetch(ctx context.Context, logger *zap.Logger, client contentclient.ContentFetcher, id string) (fetchResult, error) {
	rec, err := client.FetchByID(ctx, id)
	if err == nil {
		e.metrics.IncFetch(metrics.OutcomeResolved)
		return fetchResult{record: rec, found: true}, nil
	}

	if apperrors.IsFatal(err) {
		e.metrics.IncFetch(metrics.OutcomeAborted)
		return fetchResult{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.metrics.IncFetch(metrics.OutcomeAborted)
		return fetchResult{}, ctxErr
	}

	outcome := metrics.OutcomeFailed
	if apperrors.IsNotFound(err) {
		outcome = metrics.OutcomeNotFound
	}
	e.metrics.IncFetch(outcome)
	logger.Warn("Dropping unresolvable content id",
		zap.String("id", id),
		zap.String("error_code", apperrors.Categorize(err)),
		zap.Error(err))
	return fetchResult{}, nil
}

// unwrapAbort strips the iteration wrapper so callers can match the
// client's AppError directly.
func unwrapAbort(err error) error {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		return appErr
	}
	return err
}
