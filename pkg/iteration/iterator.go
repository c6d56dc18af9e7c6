// Package iteration runs a function over a slice and returns the results in
// input order, however the calls complete.
package iteration

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Iterator handles slice iteration with configurable execution strategy
type Iterator struct {
	config Config
	slots  Slots
}

// NewIterator creates a new iterator with given config. Parallel runs start one
// goroutine per item.
func NewIterator(config Config) *Iterator {
	if config.Strategy == "" {
		config.Strategy = StrategyParallel
	}
	return &Iterator{config: config}
}

// NewIteratorWithLimiter creates an iterator whose parallel runs hold a slot
// from slots for the duration of each item.
func NewIteratorWithLimiter(config Config, slots Slots) *Iterator {
	it := NewIterator(config)
	it.slots = slots
	return it
}

// Process iterates over items and processes each with fn.
// Returns results in item order, or the first error (fail-fast).
func Process[T, R any](ctx context.Context, it *Iterator, items []T, fn ProcessFunc[T, R]) ([]R, error) {
	if len(items) == 0 {
		return []R{}, nil
	}
	if it == nil {
		it = NewIterator(Config{})
	}

	if it.config.Strategy == StrategySequential {
		return processSequential(ctx, it, items, fn)
	}
	return processParallel(ctx, it, items, fn)
}

// processSequential processes items one by one (fail-fast)
func processSequential[T, R any](ctx context.Context, it *Iterator, items []T, fn ProcessFunc[T, R]) ([]R, error) {
	results := make([]R, len(items))

	for i, item := range items {
		if err := it.admit(ctx); err != nil {
			return nil, err
		}
		output, err := fn(ctx, item, i)
		if err != nil {
			return nil, fmt.Errorf("failed processing item %d: %w", i, err)
		}
		results[i] = output
	}

	return results, nil
}

// processParallel dispatches items in order and runs them concurrently.
// Each goroutine writes only its own index, so results need no lock.
func processParallel[T, R any](ctx context.Context, it *Iterator, items []T, fn ProcessFunc[T, R]) ([]R, error) {
	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)

	var dispatchErr error
	for i, item := range items {
		if it.slots != nil {
			if err := it.slots.Acquire(gctx); err != nil {
				dispatchErr = err
				break
			}
		}
		if err := it.admit(gctx); err != nil {
			if it.slots != nil {
				it.slots.Release()
			}
			dispatchErr = err
			break
		}

		g.Go(func() error {
			if it.slots != nil {
				defer it.slots.Release()
			}
			output, err := fn(gctx, item, i)
			if err != nil {
				return fmt.Errorf("failed processing item %d: %w", i, err)
			}
			results[i] = output
			return nil
		})
	}

	// A worker failure cancels gctx, which is usually why dispatch stopped;
	// report the worker's error in that case.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if dispatchErr != nil {
		return nil, dispatchErr
	}
	return results, nil
}

func (it *Iterator) admit(ctx context.Context) error {
	if it.config.Admit == nil {
		return ctx.Err()
	}
	return it.config.Admit(ctx)
}
