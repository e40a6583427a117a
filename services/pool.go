package services

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// newLimiter allows rps requests per second with a burst of one.
// A non-positive rps disables limiting.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// forEachBounded runs fn for every item with at most workers in flight.
// fn reports per-item failures through its own result; only a cancelled
// context stops the batch early.
func forEachBounded[T any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T)) error {
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// failureSet collects per-item failure reasons from concurrent workers.
type failureSet struct {
	mu sync.Mutex
	m  map[string]string
}

func newFailureSet() *failureSet {
	return &failureSet{m: map[string]string{}}
}

func (f *failureSet) add(id, reason string) {
	f.mu.Lock()
	f.m[id] = reason
	f.mu.Unlock()
}

func (f *failureSet) snapshot() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.m))
	for k, v := range f.m {
		out[k] = v
	}
	return out
}
