// Package selection turns the picker's selected ids into display rows.
//
// Resolving is keyed on membership, not order: reordering a selection reuses
// the records already fetched, while adding or removing an id starts a new
// fetch batch in the background. Until that batch settles the rows are
// placeholders.
package selection

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/iteration"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SelectionKey identifies a selection by membership: the sorted ids joined with ",".
func SelectionKey(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

type batch struct {
	key     string
	done    chan struct{}
	settled bool
	records map[string]content.ContentRecord
	err     error
}

// Resolver resolves selected ids for one picker. Recompute is meant to be
// called from a single goroutine; fetches run in the background.
type Resolver struct {
	fetcher contentclient.ContentFetcher
	creds   content.ProjectCredentials
	now     func() time.Time
	logger  *zap.Logger
	tracer  trace.Tracer

	mu      sync.Mutex
	current *batch
	mounted bool
	batches int
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the reference time for relative dates.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates a resolver reading through fetcher. creds are used for
// edit links.
func NewResolver(fetcher contentclient.ContentFetcher, creds content.ProjectCredentials, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		creds:   creds,
		now:     time.Now,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer("heartcore/selection"),
		mounted: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recompute returns one row per id, in ids order. A nil ids slice returns nil.
// When the membership of ids differs from the previous call a new fetch batch
// starts; rows read "Loading..." until it settles.
func (r *Resolver) Recompute(ids []string, allowed content.AllowedContentTypes) []content.DisplayRow {
	if ids == nil {
		return nil
	}
	if len(ids) == 0 {
		return []content.DisplayRow{}
	}

	key := SelectionKey(ids)

	r.mu.Lock()
	if r.current == nil || r.current.key != key {
		if r.mounted {
			r.startLocked(key, ids)
		}
	}
	b := r.current
	var settled bool
	var records map[string]content.ContentRecord
	var err error
	// An unmounted resolver starts no batch, so the current one may belong to
	// a different membership.
	if b != nil && b.key == key {
		settled, records, err = b.settled, b.records, b.err
	}
	r.mu.Unlock()

	if !settled {
		return content.LoadingRows(ids)
	}
	if err != nil {
		return content.UnresolvableRows(ids)
	}

	p := content.Projector{Credentials: r.creds, Allowed: allowed, Now: r.now}
	rows := make([]content.DisplayRow, len(ids))
	for i, id := range ids {
		rec, ok := records[id]
		if !ok {
			rows[i] = content.DisplayRow{ID: id, Title: content.UnresolvableTitle(id)}
			continue
		}
		rows[i] = p.Project(rec)
	}
	return rows
}

// Err returns the error of the current batch, if it failed.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	return r.current.err
}

// Batches reports how many fetch batches have been started.
func (r *Resolver) Batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

// Wait blocks until the current batch settles or ctx is done.
func (r *Resolver) Wait(ctx context.Context) error {
	r.mu.Lock()
	b := r.current
	r.mu.Unlock()
	if b == nil {
		return nil
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the resolver unmounted. Batches still in flight finish, but
// their results are discarded.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mounted = false
}

func (r *Resolver) startLocked(key string, ids []string) {
	b := &batch{key: key, done: make(chan struct{})}
	r.current = b
	r.batches++

	fetchIDs := content.DedupeIDs(ids)
	go r.run(b, fetchIDs)
}

type lookup struct {
	record content.ContentRecord
	found  bool
}

func (r *Resolver) run(b *batch, ids []string) {
	defer close(b.done)

	ctx, span := r.tracer.Start(context.Background(), "selection.Resolve",
		trace.WithAttributes(attribute.Int("selection.size", len(ids))))
	defer span.End()

	results, err := iteration.Process(ctx, iteration.NewIterator(iteration.Config{}), ids,
		func(ctx context.Context, id string, _ int) (lookup, error) {
			rec, err := r.fetcher.FetchByID(ctx, id)
			if err != nil {
				if apperrors.IsNotFound(err) {
					return lookup{}, nil
				}
				return lookup{}, err
			}
			return lookup{record: rec, found: true}, nil
		})

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.mounted || r.current != b {
		r.logger.Debug("Discarding stale selection batch", zap.String("key", b.key))
		return
	}

	b.settled = true
	if err != nil {
		b.err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("Failed to resolve selected content",
			zap.String("error_code", apperrors.Categorize(err)),
			zap.Error(err))
		return
	}

	b.records = make(map[string]content.ContentRecord, len(results))
	for i, res := range results {
		if res.found {
			b.records[ids[i]] = res.record
		}
	}
}
