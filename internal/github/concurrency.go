// internal/github/concurrency.go
package github

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// mapConcurrent applies fn to every item with at most limit calls in flight.
// Results are returned in input order regardless of completion order. The
// first error cancels the remaining work and is returned.
func mapConcurrent[T, R any](ctx context.Context, limit int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
