package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoadConfigRespectsEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvThrottleLimit, "10")
	t.Setenv(EnvThrottleInterval, "250ms")
	t.Setenv(EnvMaxConcurrent, "7")

	cfg := LoadConfig()

	if cfg.Throttle.Limit != 10 {
		t.Fatalf("expected throttle limit 10, got %d", cfg.Throttle.Limit)
	}
	if cfg.Throttle.Interval != 250*time.Millisecond {
		t.Fatalf("expected throttle interval 250ms, got %s", cfg.Throttle.Interval)
	}
	if cfg.MaxConcurrent != 7 {
		t.Fatalf("expected MaxConcurrent 7, got %d", cfg.MaxConcurrent)
	}
	if cfg.Source != ConfigSourceEnvVar || cfg.ThrottleSource != ConfigSourceEnvVar {
		t.Fatalf("expected env var sources, got %s / %s", cfg.Source, cfg.ThrottleSource)
	}
}

func TestLoadConfigAcceptsMillisecondInterval(t *testing.T) {
	t.Setenv(EnvThrottleInterval, "1500")

	cfg := LoadConfig()
	if cfg.Throttle.Interval != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s interval, got %s", cfg.Throttle.Interval)
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg := LoadConfig()
	if cfg.Throttle.Limit != DefaultThrottleLimit {
		t.Fatalf("expected default limit, got %d", cfg.Throttle.Limit)
	}
	if cfg.ThrottleSource != ConfigSourceDefault {
		t.Fatalf("expected default throttle source, got %s", cfg.ThrottleSource)
	}
	if cfg.MaxConcurrent < 1 {
		t.Fatalf("expected positive MaxConcurrent, got %d", cfg.MaxConcurrent)
	}
	if cfg.String() == "" {
		t.Fatal("expected a printable config")
	}
}

func TestLimiterAcquireReleaseTracksMetrics(t *testing.T) {
	limiter := NewLimiter(2)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if active := limiter.Stats().Active; active != 1 {
		t.Fatalf("expected 1 active slot, got %d", active)
	}
	limiter.Release()
	limiter.Release()

	stats := limiter.Stats()
	if stats.Acquired != 1 {
		t.Fatalf("expected 1 acquired, got %d", stats.Acquired)
	}
	if stats.Released != 1 {
		t.Fatalf("expected 1 released, got %d", stats.Released)
	}
	if stats.AverageWait() != stats.TotalWait {
		t.Fatalf("expected average wait to equal the single wait, got %s", stats.AverageWait())
	}
}

func TestLimiterAcquireHonorsContextCancellation(t *testing.T) {
	limiter := NewLimiter(1)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := limiter.Acquire(ctx)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLimiterDoCapsOverlap(t *testing.T) {
	limiter := NewLimiter(2)
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.Do(context.Background(), func() error {
				time.Sleep(5 * time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	stats := limiter.Stats()
	if stats.Peak > 2 {
		t.Fatalf("expected at most 2 concurrent, got %d", stats.Peak)
	}
	if stats.Active != 0 {
		t.Fatalf("expected all slots released, got %d", stats.Active)
	}
	if limiter.Capacity() != 2 {
		t.Fatalf("expected capacity 2, got %d", limiter.Capacity())
	}
}
