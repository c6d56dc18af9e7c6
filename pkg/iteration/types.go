package iteration

import "context"

// Strategy defines how items are processed
type Strategy string

const (
	StrategySequential Strategy = "sequential" // Process items one by one
	StrategyParallel   Strategy = "parallel"   // Process items concurrently
)

// Config holds configuration for iteration
type Config struct {
	Strategy Strategy // sequential or parallel (default)

	// Admit, when set, is called in item order before each item is started.
	// An error stops dispatch and fails the run.
	Admit func(ctx context.Context) error
}

// Slots caps how many items run at once. concurrency.Limiter satisfies it.
type Slots interface {
	Acquire(ctx context.Context) error
	Release()
}

// ProcessFunc is the function called for each item
type ProcessFunc[T, R any] func(ctx context.Context, item T, index int) (R, error)
