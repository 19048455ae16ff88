// Package batch fans independent invocations out with bounded concurrency.
//
// Invocations never fail as a whole (they degrade), so one bad item never
// aborts its siblings. Results come back in input order.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the concurrency used when limit <= 0.
const DefaultLimit = 4

// Map calls fn for every item with at most limit calls in flight and
// returns the results in input order.
//
// Items not yet started when ctx ends are still passed to fn, which is
// expected to observe the cancelled context and degrade.
func Map[I, O any](ctx context.Context, items []I, limit int, fn func(ctx context.Context, i int, item I) O) []O {
	out := make([]O, len(items))
	if len(items) == 0 {
		return out
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			out[i] = fn(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// MapErr is Map for fallible functions. All items run; the first error (in
// completion order) is returned alongside the full result slice, and ctx
// passed to fn is cancelled once any call fails.
func MapErr[I, O any](ctx context.Context, items []I, limit int, fn func(ctx context.Context, i int, item I) (O, error)) ([]O, error) {
	out := make([]O, len(items))
	if len(items) == 0 {
		return out, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			v, err := fn(gctx, i, item)
			out[i] = v
			return err
		})
	}
	err := g.Wait()
	return out, err
}
