// Package contentclienttest provides an in-memory ContentClient for tests.
package contentclienttest

import (
	"context"
	"sync"
	"time"

	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
)

// Client is a lightweight in-memory implementation of contentclient.ContentClient
// with injectable latency and failures.
type Client struct {
	mu sync.Mutex

	records map[string]content.ContentRecord
	errs    map[string]error
	types   []content.ContentTypeDescriptor

	// Latency, when set, delays FetchByID for the given id.
	Latency func(id string) time.Duration
	// SearchFunc, when set, answers Search instead of the alias match.
	SearchFunc func(ctx context.Context, f contentclient.Filter) ([]content.ContentRecord, error)
	// TypesErr fails ListContentTypes.
	TypesErr error

	fetches  map[string]int
	filters  []contentclient.Filter
	inFlight int
	peak     int
}

var _ contentclient.ContentClient = (*Client)(nil)

// New returns a client that knows the given records.
func New(records ...content.ContentRecord) *Client {
	c := &Client{
		records: make(map[string]content.ContentRecord),
		errs:    make(map[string]error),
		fetches: make(map[string]int),
	}
	for _, r := range records {
		c.records[r.ID] = r
	}
	return c
}

// Add registers a record.
func (c *Client) Add(r content.ContentRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[r.ID] = r
}

// Fail makes FetchByID(id) return err.
func (c *Client) Fail(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[id] = err
}

// SetTypes sets the content types returned by ListContentTypes.
func (c *Client) SetTypes(types ...content.ContentTypeDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = types
}

func (c *Client) FetchByID(ctx context.Context, id string) (content.ContentRecord, error) {
	c.mu.Lock()
	c.fetches[id]++
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	latency := c.Latency
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if latency != nil {
		select {
		case <-time.After(latency(id)):
		case <-ctx.Done():
			return content.ContentRecord{}, apperrors.NewTransientError("fetch cancelled", ctx.Err())
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.errs[id]; ok {
		return content.ContentRecord{}, err
	}
	rec, ok := c.records[id]
	if !ok {
		return content.ContentRecord{}, apperrors.NewNotFoundError(id, apperrors.ErrNotFound)
	}
	return rec, nil
}

func (c *Client) Search(ctx context.Context, f contentclient.Filter) ([]content.ContentRecord, error) {
	c.mu.Lock()
	c.filters = append(c.filters, f)
	fn := c.SearchFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, f)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]content.ContentRecord, 0)
	for _, r := range c.records {
		if r.ContentTypeAlias == f.ContentTypeAlias {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Client) ListContentTypes(ctx context.Context) ([]content.ContentTypeDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.TypesErr != nil {
		return nil, c.TypesErr
	}
	out := make([]content.ContentTypeDescriptor, len(c.types))
	copy(out, c.types)
	return out, nil
}

// Fetches reports how many times id was fetched.
func (c *Client) Fetches(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches[id]
}

// TotalFetches reports the number of FetchByID calls.
func (c *Client) TotalFetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.fetches {
		n += v
	}
	return n
}

// PeakInFlight reports the highest number of concurrent FetchByID calls.
func (c *Client) PeakInFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peak
}

// Filters returns the filters passed to Search, in call order.
func (c *Client) Filters() []contentclient.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]contentclient.Filter, len(c.filters))
	copy(out, c.filters)
	return out
}
