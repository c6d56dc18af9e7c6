package iteration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func double(_ context.Context, n int, _ int) (int, error) {
	return n * 2, nil
}

func TestProcessSequential_Success(t *testing.T) {
	it := NewIterator(Config{Strategy: StrategySequential})

	results, err := Process(context.Background(), it, []int{1, 2, 3}, double)

	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, results)
}

func TestProcessSequential_FailFast(t *testing.T) {
	it := NewIterator(Config{Strategy: StrategySequential})
	processCount := 0

	results, err := Process(context.Background(), it, []int{1, 2, 3, 4, 5}, func(ctx context.Context, n int, index int) (int, error) {
		processCount++
		if index == 2 {
			return 0, errors.New("item 2 failed")
		}
		return n, nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed processing item 2")
	assert.Nil(t, results)
	assert.Equal(t, 3, processCount, "Should stop after item 2 fails")
}

func TestProcess_EmptyInput(t *testing.T) {
	results, err := Process(context.Background(), nil, []string{}, func(ctx context.Context, s string, i int) (string, error) {
		t.Fatal("Should not be called for empty input")
		return "", nil
	})

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestProcessParallel_PreservesOrder(t *testing.T) {
	it := NewIterator(Config{})
	items := []int{5, 1, 4, 2, 3}

	results, err := Process(context.Background(), it, items, func(ctx context.Context, n int, _ int) (int, error) {
		// larger items finish later
		time.Sleep(time.Duration(n) * 3 * time.Millisecond)
		return n * 10, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{50, 10, 40, 20, 30}, results)
}

func TestProcessParallel_FailFastCancelsOthers(t *testing.T) {
	it := NewIterator(Config{})
	var cancelled atomic.Int32

	_, err := Process(context.Background(), it, []int{0, 1, 2, 3}, func(ctx context.Context, n int, index int) (int, error) {
		if index == 1 {
			return 0, errors.New("boom")
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return 0, ctx.Err()
		case <-time.After(time.Second):
			return n, nil
		}
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed processing item 1")
	// item 0 is always in flight when item 1 fails; later items may never start
	assert.GreaterOrEqual(t, cancelled.Load(), int32(1))
}

func TestProcessParallel_AdmitRunsInOrder(t *testing.T) {
	var mu sync.Mutex
	var admitted int
	var started []int

	it := NewIterator(Config{Admit: func(ctx context.Context) error {
		mu.Lock()
		admitted++
		mu.Unlock()
		return nil
	}})

	_, err := Process(context.Background(), it, []int{0, 1, 2}, func(ctx context.Context, n int, index int) (int, error) {
		mu.Lock()
		started = append(started, index)
		mu.Unlock()
		return n, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, admitted)
	assert.ElementsMatch(t, []int{0, 1, 2}, started)
}

func TestProcessParallel_AdmitErrorStopsDispatch(t *testing.T) {
	calls := 0
	admitErr := errors.New("closed")
	it := NewIterator(Config{Admit: func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return admitErr
		}
		return nil
	}})

	var ran atomic.Int32
	_, err := Process(context.Background(), it, []int{0, 1, 2}, func(ctx context.Context, n int, _ int) (int, error) {
		ran.Add(1)
		return n, nil
	})

	require.ErrorIs(t, err, admitErr)
	assert.Equal(t, int32(1), ran.Load())
}

type countingSlots struct {
	mu      sync.Mutex
	ch      chan struct{}
	active  int
	peak    int
	release int
}

func newCountingSlots(n int) *countingSlots {
	return &countingSlots{ch: make(chan struct{}, n)}
}

func (s *countingSlots) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()
	return nil
}

func (s *countingSlots) Release() {
	s.mu.Lock()
	s.active--
	s.release++
	s.mu.Unlock()
	<-s.ch
}

func TestProcessParallel_WithLimiterCapsConcurrency(t *testing.T) {
	slots := newCountingSlots(2)
	it := NewIteratorWithLimiter(Config{}, slots)

	results, err := Process(context.Background(), it, []int{1, 2, 3, 4, 5, 6}, func(ctx context.Context, n int, _ int) (int, error) {
		time.Sleep(5 * time.Millisecond)
		return n, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, results)
	assert.LessOrEqual(t, slots.peak, 2)
	assert.Equal(t, 6, slots.release)
}
