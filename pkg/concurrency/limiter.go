package concurrency

import (
	"context"
	"sync/atomic"
	"time"
)

// LimiterStats is a snapshot of a Limiter's counters.
type LimiterStats struct {
	Acquired  int64
	Released  int64
	Peak      int64
	Active    int64
	TotalWait time.Duration
}

// AverageWait is the mean time spent waiting for a slot.
func (s LimiterStats) AverageWait() time.Duration {
	if s.Acquired == 0 {
		return 0
	}
	return s.TotalWait / time.Duration(s.Acquired)
}

// Limiter caps the number of requests in flight at once. The Throttle bounds
// how fast requests start; the Limiter bounds how many overlap.
type Limiter struct {
	slots chan struct{}

	active   atomic.Int64
	acquired atomic.Int64
	released atomic.Int64
	peak     atomic.Int64
	waitNs   atomic.Int64
}

// NewLimiter returns a limiter with n slots; n below 1 means 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// Acquire waits for a free slot or until ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.waitNs.Add(int64(time.Since(start)))
	l.acquired.Add(1)
	n := l.active.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return nil
}

// Release returns a slot. Releasing more than was acquired is a no-op.
func (l *Limiter) Release() {
	select {
	case <-l.slots:
		l.active.Add(-1)
		l.released.Add(1)
	default:
	}
}

// Do runs fn while holding a slot.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// Capacity returns the number of slots.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}

// Stats returns the current counters.
func (l *Limiter) Stats() LimiterStats {
	return LimiterStats{
		Acquired:  l.acquired.Load(),
		Released:  l.released.Load(),
		Peak:      l.peak.Load(),
		Active:    l.active.Load(),
		TotalWait: time.Duration(l.waitNs.Load()),
	}
}
