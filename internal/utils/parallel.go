package utils

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultParallelism bounds fan-out when callers pass a non-positive limit.
const DefaultParallelism = 4

// Map runs fn for every input concurrently, at most limit at a time. Results and errors are
// index-aligned with inputs; a failing call does not cancel the others. Context
// cancellation reaches every call through ctx.
func Map[In, Out any](ctx context.Context, inputs []In, limit int, fn func(ctx context.Context, in In) (Out, error)) ([]Out, []error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultParallelism
	}

	results := make([]Out, len(inputs))
	errs := make([]error, len(inputs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, in := range inputs {
		g.Go(func() error {
			results[i], errs[i] = fn(ctx, in)
			return nil // collect every error instead of stopping on the first
		})
	}
	_ = g.Wait()

	return results, errs
}

// FirstError returns the first non-nil error, or nil.
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
