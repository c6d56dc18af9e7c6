package concurrency

import (
	"context"
	"sync"
	"time"

	"github.com/wehubfusion/Heartcore/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultThrottleLimit follows Heartcore's 2000 requests/minute ceiling for
	// uncached data, spread over one-second windows (2000 / 60).
	DefaultThrottleLimit = 33

	// DefaultThrottleInterval is the default sliding window length.
	DefaultThrottleInterval = time.Second
)

// ThrottleConfig configures a Throttle.
type ThrottleConfig struct {
	// Limit is the maximum number of admissions in any Interval.
	Limit int
	// Interval is the sliding window length.
	Interval time.Duration
}

// DefaultThrottleConfig returns the Heartcore delivery API policy.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{Limit: DefaultThrottleLimit, Interval: DefaultThrottleInterval}
}

// ThrottleStats is a snapshot of a throttle's counters.
type ThrottleStats struct {
	Admitted  int64
	Delayed   int64
	Cancelled int64
	Queued    int
	TotalWait time.Duration
}

type throttleWaiter struct {
	ready   chan struct{}
	granted bool
}

// Throttle is a sliding-window rate limiter: no more than Limit callers are
// admitted in any rolling Interval. Callers that cannot be admitted wait in
// FIFO order; nobody is ever rejected.
type Throttle struct {
	limit    int
	interval time.Duration

	mu       sync.Mutex
	admitted []time.Time // grant times inside the current window, oldest first
	queue    []*throttleWaiter
	timer    *time.Timer
	stats    ThrottleStats

	logger   *zap.Logger
	metrics  *metrics.Collectors
	waitLogs rate.Sometimes
}

// ThrottleOption customizes a Throttle.
type ThrottleOption func(*Throttle)

// WithThrottleLogger sets the logger used for sampled wait diagnostics.
func WithThrottleLogger(logger *zap.Logger) ThrottleOption {
	return func(t *Throttle) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithThrottleMetrics reports waits to the given collectors.
func WithThrottleMetrics(m *metrics.Collectors) ThrottleOption {
	return func(t *Throttle) {
		t.metrics = m
	}
}

// NewThrottle creates a throttle. Non-positive values fall back to the defaults.
func NewThrottle(cfg ThrottleConfig, opts ...ThrottleOption) *Throttle {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultThrottleLimit
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultThrottleInterval
	}

	t := &Throttle{
		limit:    cfg.Limit,
		interval: cfg.Interval,
		admitted: make([]time.Time, 0, cfg.Limit),
		logger:   zap.NewNop(),
		waitLogs: rate.Sometimes{Interval: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Limit returns the configured number of admissions per window.
func (t *Throttle) Limit() int { return t.limit }

// Interval returns the configured window length.
func (t *Throttle) Interval() time.Duration { return t.interval }

// Acquire blocks until the caller is admitted or ctx is done.
// The only error it returns is ctx.Err().
func (t *Throttle) Acquire(ctx context.Context) error {
	start := time.Now()

	t.mu.Lock()
	if len(t.queue) == 0 && t.admitLocked(start) {
		t.stats.Admitted++
		t.mu.Unlock()
		t.metrics.ObserveThrottleWait(0)
		return nil
	}

	w := &throttleWaiter{ready: make(chan struct{})}
	t.queue = append(t.queue, w)
	queued := len(t.queue)
	if queued == 1 {
		t.scheduleLocked(start)
	}
	t.mu.Unlock()

	t.metrics.SetThrottleQueued(queued)
	t.waitLogs.Do(func() {
		t.logger.Debug("Waiting for throttle slot",
			zap.Int("queued", queued),
			zap.Int("limit", t.limit),
			zap.Duration("interval", t.interval))
	})

	select {
	case <-w.ready:
		t.recordWait(start)
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		if w.granted {
			// admitted concurrently with cancellation; the slot is already spent
			t.mu.Unlock()
			t.recordWait(start)
			return nil
		}
		wasHead := t.removeLocked(w)
		t.stats.Cancelled++
		if wasHead {
			t.dispatchLocked(time.Now())
		}
		queued = len(t.queue)
		t.mu.Unlock()
		t.metrics.SetThrottleQueued(queued)
		return ctx.Err()
	}
}

// Stats returns a snapshot of the throttle counters.
func (t *Throttle) Stats() ThrottleStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	s.Queued = len(t.queue)
	return s
}

func (t *Throttle) recordWait(start time.Time) {
	wait := time.Since(start)
	t.mu.Lock()
	t.stats.TotalWait += wait
	queued := len(t.queue)
	t.mu.Unlock()
	t.metrics.ObserveThrottleWait(wait.Seconds())
	t.metrics.SetThrottleQueued(queued)
}

// pruneLocked forgets grants that have aged out of the window ending at now.
func (t *Throttle) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.interval)
	n := 0
	for n < len(t.admitted) && !t.admitted[n].After(cutoff) {
		n++
	}
	if n > 0 {
		t.admitted = append(t.admitted[:0], t.admitted[n:]...)
	}
}

// admitLocked records a grant at now if the window has room.
func (t *Throttle) admitLocked(now time.Time) bool {
	t.pruneLocked(now)
	if len(t.admitted) >= t.limit {
		return false
	}
	t.admitted = append(t.admitted, now)
	return true
}

// dispatchLocked admits waiters from the head of the queue while the window has
// room, then arms the timer for the next one.
func (t *Throttle) dispatchLocked(now time.Time) {
	for len(t.queue) > 0 && t.admitLocked(now) {
		w := t.queue[0]
		t.queue[0] = nil
		t.queue = t.queue[1:]
		w.granted = true
		t.stats.Admitted++
		t.stats.Delayed++
		close(w.ready)
	}
	if len(t.queue) > 0 {
		t.scheduleLocked(now)
	}
}

// scheduleLocked arms the timer to fire when the oldest grant leaves the window.
func (t *Throttle) scheduleLocked(now time.Time) {
	t.pruneLocked(now)
	var delay time.Duration
	if len(t.admitted) >= t.limit {
		delay = t.admitted[0].Add(t.interval).Sub(now)
		if delay < 0 {
			delay = 0
		}
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.dispatchLocked(time.Now())
	})
}

// removeLocked drops w from the queue and reports whether it was at the head.
func (t *Throttle) removeLocked(w *throttleWaiter) bool {
	for i, q := range t.queue {
		if q == w {
			t.queue = append(t.queue[:i], t.queue[i+1:]...)
			return i == 0
		}
	}
	return false
}
