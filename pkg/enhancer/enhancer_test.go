package enhancer

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wehubfusion/Heartcore/pkg/concurrency"
	"github.com/wehubfusion/Heartcore/pkg/content"
	"github.com/wehubfusion/Heartcore/pkg/contentclient/contentclienttest"
	apperrors "github.com/wehubfusion/Heartcore/pkg/errors"
	"github.com/wehubfusion/Heartcore/pkg/metrics"
)

func record(id string) content.ContentRecord {
	return content.ContentRecord{ID: id, Name: "Item " + id, ContentTypeAlias: "blogPost"}
}

func ids(records []content.ContentRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func fastThrottle() *concurrency.Throttle {
	return concurrency.NewThrottle(concurrency.ThrottleConfig{Limit: 100, Interval: time.Second})
}

func TestEnhanceEmptyInputs(t *testing.T) {
	client := contentclienttest.New()
	e := New(fastThrottle())

	for name, value := range map[string]*content.ParameterValue{
		"nil value": nil,
		"nil ids":   {Source: "default"},
		"empty ids": {IDs: []string{}},
	} {
		t.Run(name, func(t *testing.T) {
			records, err := e.Enhance(context.Background(), value, client)
			require.NoError(t, err)
			assert.NotNil(t, records)
			assert.Empty(t, records)
		})
	}
	assert.Zero(t, client.TotalFetches())
}

func TestEnhancePreservesInputOrderUnderRandomLatency(t *testing.T) {
	client := contentclienttest.New()
	want := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("id-%02d", i)
		want = append(want, id)
		client.Add(record(id))
	}
	client.Latency = func(id string) time.Duration {
		h := fnv.New32a()
		_, _ = h.Write([]byte(id))
		return time.Duration(h.Sum32()%20) * time.Millisecond
	}

	records, err := New(fastThrottle()).Enhance(context.Background(), &content.ParameterValue{IDs: want}, client)
	require.NoError(t, err)
	assert.Equal(t, want, ids(records))
}

func TestEnhanceDropsUnresolvedIDs(t *testing.T) {
	client := contentclienttest.New(record("a"), record("c"))
	client.Fail("b", apperrors.NewTransientError("gateway timeout", nil))

	value := &content.ParameterValue{IDs: []string{"a", "b", "c", "missing"}}
	records, err := New(fastThrottle()).Enhance(context.Background(), value, client)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(records))
}

func TestEnhanceAllFailedYieldsEmpty(t *testing.T) {
	client := contentclienttest.New()
	records, err := New(fastThrottle()).Enhance(context.Background(), &content.ParameterValue{IDs: []string{"x", "y"}}, client)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEnhanceAbortsOnConfigurationError(t *testing.T) {
	client := contentclienttest.New(record("a"), record("c"))
	client.Fail("b", apperrors.NewUnauthorizedError("bad api key", nil))

	records, err := New(fastThrottle()).Enhance(context.Background(), &content.ParameterValue{IDs: []string{"a", "b", "c"}}, client)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.True(t, apperrors.IsFatal(err))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.Unauthorized, appErr.Type)
}

func TestEnhanceDeduplicatesIDs(t *testing.T) {
	client := contentclienttest.New(record("a"), record("b"))
	records, err := New(fastThrottle()).Enhance(context.Background(), &content.ParameterValue{IDs: []string{"a", "b", "a"}}, client)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(records))
	assert.Equal(t, 1, client.Fetches("a"))
}

func TestEnhanceRespectsThrottle(t *testing.T) {
	client := contentclienttest.New()
	value := &content.ParameterValue{}
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("%d", i)
		client.Add(record(id))
		value.IDs = append(value.IDs, id)
	}

	throttle := concurrency.NewThrottle(concurrency.ThrottleConfig{Limit: 2, Interval: 60 * time.Millisecond})
	start := time.Now()
	records, err := Enhance(context.Background(), value, client, throttle)
	require.NoError(t, err)
	assert.Len(t, records, 5)

	// 5 requests at 2 per window need at least two full windows
	assert.GreaterOrEqual(t, time.Since(start), 110*time.Millisecond)
	stats := throttle.Stats()
	assert.Equal(t, int64(5), stats.Admitted)
	assert.GreaterOrEqual(t, stats.Delayed, int64(2))
}

func TestEnhanceWithLimiterCapsInFlight(t *testing.T) {
	client := contentclienttest.New()
	value := &content.ParameterValue{}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("%d", i)
		client.Add(record(id))
		value.IDs = append(value.IDs, id)
	}
	client.Latency = func(string) time.Duration { return 5 * time.Millisecond }

	e := New(fastThrottle(), WithLimiter(concurrency.NewLimiter(3)))
	records, err := e.Enhance(context.Background(), value, client)
	require.NoError(t, err)
	assert.Len(t, records, 8)
	assert.LessOrEqual(t, client.PeakInFlight(), 3)
}

func TestEnhanceHonorsCancellation(t *testing.T) {
	client := contentclienttest.New(record("a"), record("b"))
	throttle := concurrency.NewThrottle(concurrency.ThrottleConfig{Limit: 1, Interval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := Enhance(ctx, &content.ParameterValue{IDs: []string{"a", "b"}}, client, throttle)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnhanceCancelledAfterDispatchReturnsError(t *testing.T) {
	client := contentclienttest.New(record("a"), record("b"))
	client.Latency = func(string) time.Duration { return time.Second }

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	records, err := New(fastThrottle()).Enhance(ctx, &content.ParameterValue{IDs: []string{"a", "b"}}, client)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, records)
	assert.Equal(t, 1, client.Fetches("a"))
	assert.Equal(t, 1, client.Fetches("b"))
}

func TestEnhanceRecordsMetrics(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	client := contentclienttest.New(record("a"))
	_, err = New(fastThrottle(), WithMetrics(m)).Enhance(context.Background(), &content.ParameterValue{IDs: []string{"a", "gone"}}, client)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues(metrics.OutcomeResolved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues(metrics.OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches.WithLabelValues(metrics.OutcomeResolved)))
}

func TestParameterIsEntry(t *testing.T) {
	tests := []struct {
		name  string
		param Parameter
		want  bool
	}{
		{"heartcore with ids", Parameter{Type: "heartcore", Value: json.RawMessage(`{"ids":["a"]}`)}, true},
		{"heartcore empty ids", Parameter{Type: "heartcore", Value: json.RawMessage(`{"ids":[]}`)}, true},
		{"heartcore without ids", Parameter{Type: "heartcore", Value: json.RawMessage(`{"source":"default"}`)}, false},
		{"heartcore ids not array", Parameter{Type: "heartcore", Value: json.RawMessage(`{"ids":"a"}`)}, false},
		{"other type", Parameter{Type: "text", Value: json.RawMessage(`{"ids":["a"]}`)}, false},
		{"no value", Parameter{Type: "heartcore"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParameterIsEntry(tt.param))
		})
	}
}

func TestEnhanceParameter(t *testing.T) {
	client := contentclienttest.New(record("a"))
	e := New(fastThrottle())

	records, handled, err := e.EnhanceParameter(context.Background(),
		Parameter{Type: "heartcore", Value: json.RawMessage(`{"source":"default","ids":["a","b"]}`)}, client)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{"a"}, ids(records))

	records, handled, err = e.EnhanceParameter(context.Background(),
		Parameter{Type: "text", Value: json.RawMessage(`"hello"`)}, client)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Nil(t, records)
}
