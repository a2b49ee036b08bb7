// Package concurrent runs independent work items with bounded parallelism.
package concurrent

import (
	"context"
	"sync"
)

// DefaultLimit applies when a caller passes a non-positive limit.
const DefaultLimit = 4

// Outcome is the result of one item.
type Outcome[R any] struct {
	Value R
	Err   error
}

// Map applies fn to every item with at most limit calls in flight and
// returns one outcome per item in input order. Items that could not start
// before ctx ended carry ctx.Err().
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []Outcome[R] {
	if len(items) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	out := make([]Outcome[R], len(items))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, val T) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				out[idx].Err = ctx.Err()
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}
			if err := ctx.Err(); err != nil {
				out[idx].Err = err
				return
			}
			out[idx].Value, out[idx].Err = fn(ctx, val)
		}(i, item)
	}

	wg.Wait()
	return out
}
