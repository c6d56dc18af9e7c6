// Package metrics defines the Prometheus collectors reported by the throttle,
// the enhancer and the Heartcore client.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "heartcore"

// Outcome label values for fetch and search counters.
const (
	OutcomeResolved = "resolved"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
	OutcomeAborted  = "aborted"
)

// Collectors groups every collector the module reports to.
// A nil *Collectors is valid and records nothing.
type Collectors struct {
	ThrottleWait   prometheus.Histogram
	ThrottleQueued prometheus.Gauge
	Fetches        *prometheus.CounterVec
	Batches        *prometheus.CounterVec
	Searches       *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
}

// New creates collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		ThrottleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "wait_seconds",
			Help:      "Time callers spent waiting for a throttle slot.",
			Buckets:   []float64{0, .005, .01, .05, .1, .25, .5, 1, 2, 5},
		}),
		ThrottleQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "queued",
			Help:      "Callers currently waiting for a throttle slot.",
		}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enhance",
			Name:      "fetch_total",
			Help:      "Content fetches issued by the enhancer, by outcome.",
		}, []string{"outcome"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enhance",
			Name:      "batch_total",
			Help:      "Enhancement batches, by outcome.",
		}, []string{"outcome"}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "total",
			Help:      "Picker searches, by outcome.",
		}, []string{"outcome"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_seconds",
			Help:      "Latency of Heartcore API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"api", "status"}),
	}

	if reg == nil {
		return c, nil
	}

	var err error
	if c.ThrottleWait, err = register(reg, c.ThrottleWait); err != nil {
		return nil, err
	}
	if c.ThrottleQueued, err = register(reg, c.ThrottleQueued); err != nil {
		return nil, err
	}
	if c.Fetches, err = register(reg, c.Fetches); err != nil {
		return nil, err
	}
	if c.Batches, err = register(reg, c.Batches); err != nil {
		return nil, err
	}
	if c.Searches, err = register(reg, c.Searches); err != nil {
		return nil, err
	}
	if c.RequestLatency, err = register(reg, c.RequestLatency); err != nil {
		return nil, err
	}
	return c, nil
}

// register reuses an identical collector that is already registered with reg.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// ObserveThrottleWait records how long a caller waited for admission.
func (c *Collectors) ObserveThrottleWait(seconds float64) {
	if c == nil {
		return
	}
	c.ThrottleWait.Observe(seconds)
}

// SetThrottleQueued records the current number of waiters.
func (c *Collectors) SetThrottleQueued(n int) {
	if c == nil {
		return
	}
	c.ThrottleQueued.Set(float64(n))
}

// IncFetch counts one fetch outcome.
func (c *Collectors) IncFetch(outcome string) {
	if c == nil {
		return
	}
	c.Fetches.WithLabelValues(outcome).Inc()
}

// IncBatch counts one batch outcome.
func (c *Collectors) IncBatch(outcome string) {
	if c == nil {
		return
	}
	c.Batches.WithLabelValues(outcome).Inc()
}

// IncSearch counts one search outcome.
func (c *Collectors) IncSearch(outcome string) {
	if c == nil {
		return
	}
	c.Searches.WithLabelValues(outcome).Inc()
}

// ObserveRequest records the latency of one API request.
func (c *Collectors) ObserveRequest(api, status string, seconds float64) {
	if c == nil {
		return
	}
	c.RequestLatency.WithLabelValues(api, status).Observe(seconds)
}
