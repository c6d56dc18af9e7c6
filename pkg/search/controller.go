// Package search drives the picker's content-type scoped search.
//
// A Controller moves between idle, searching, succeeded and failed. Searches
// are not serialized: when two overlap, whichever settles last overwrites the
// results. After Close, results that settle are discarded.
package search

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateSearching State = "searching"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Snapshot is an immutable view of the controller.
type Snapshot struct {
	State   State
	Filter  contentclient.Filter
	Results []content.DisplayRow
	Err     error
}

// Searched reports whether any search has settled.
func (s Snapshot) Searched() bool {
	return s.Results != nil
}

// NoResults reports a settled search that matched nothing, as opposed to no
// search having run yet.
func (s Snapshot) NoResults() bool {
	return s.State == StateSucceeded && s.Results != nil && len(s.Results) == 0
}

// BuildFilter scopes a search to alias, adding a name match when text is non-empty.
func BuildFilter(alias, text string) contentclient.Filter {
	return contentclient.Filter{ContentTypeAlias: alias, NameContains: text}
}

// Controller runs searches for one picker.
type Controller struct {
	searcher contentclient.ContentSearcher
	creds    content.ProjectCredentials
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Collectors
	tracer   trace.Tracer

	mu      sync.Mutex
	allowed content.AllowedContentTypes
	state   State
	filter  contentclient.Filter
	results []content.DisplayRow
	err     error
	mounted bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics counts search outcomes on m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithClock sets the reference time for relative dates in result rows.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates an idle controller. creds are used for edit links.
func NewController(searcher contentclient.ContentSearcher, creds content.ProjectCredentials, allowed content.AllowedContentTypes, opts ...Option) *Controller {
	c := &Controller{
		searcher: searcher,
		creds:    creds,
		allowed:  allowed,
		now:      time.Now,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("heartcore/search"),
		state:    StateIdle,
		mounted:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAllowed replaces the allowed content types.
func (c *Controller) SetAllowed(allowed content.AllowedContentTypes) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowed = allowed
}

// Search runs one query and returns the resulting snapshot. It is a no-op when
// alias is empty or not an allowed content type. The query is sent once; there
// is no retry.
func (c *Controller) Search(ctx context.Context, text, alias string) Snapshot {
	c.mu.Lock()
	if !c.mounted || c.searcher == nil || c.allowed.Lookup(alias) == nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap
	}
	filter := BuildFilter(alias, text)
	allowed := c.allowed
	c.state = StateSearching
	c.filter = filter
	c.mu.Unlock()

	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "search.Search",
		trace.WithAttributes(
			attribute.String("search.id", requestID),
			attribute.String("content.type_alias", alias),
			attribute.Bool("search.has_text", text != ""),
		))
	defer span.End()

	records, err := c.searcher.Search(ctx, filter)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted {
		c.logger.Debug("Discarding search result after close", zap.String("search_id", requestID))
		return c.snapshotLocked()
	}

	c.filter = filter
	if err != nil {
		c.state = StateFailed
		c.err = err
		c.results = nil
		c.metrics.IncSearch(metrics.OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("Search failed",
			zap.String("search_id", requestID),
			zap.String("content_type", alias),
			zap.String("error_code", apperrors.Categorize(err)),
			zap.Error(err))
		return c.snapshotLocked()
	}

	p := content.Projector{Credentials: c.creds, Allowed: allowed, Now: c.now}
	c.results = p.ProjectAll(records)
	c.err = nil
	c.state = StateSucceeded
	c.metrics.IncSearch(metrics.OutcomeResolved)
	span.SetAttributes(attribute.Int("search.results", len(records)))
	c.logger.Debug("Search settled",
		zap.String("search_id", requestID),
		zap.String("content_type", alias),
		zap.Int("results", len(records)))

	return c.snapshotLocked()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close marks the controller unmounted; later results are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted = false
}

func (c *Controller) snapshotLocked() Snapshot {
	var results []content.DisplayRow
	if c.results != nil {
		results = make([]content.DisplayRow, len(c.results))
		copy(results, c.results)
	}
	return Snapshot{
		State:   c.state,
		Filter:  c.filter,
		Results: results,
		Err:     c.err,
	}
}
