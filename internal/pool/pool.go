package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 8

// Map calls fn for every item with at most workers calls in flight and
// returns once all of them completed. Results keep the order of items.
// Items are independent: fn reports failures through its result, so one
// failing item never stops the others.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) R) []R {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
