// Package concurrency is the bounded fan-out helper shared by source drivers
// and the Sync Runner: run a batch of independent jobs with at most N in
// flight, stop launching new ones once the context is cancelled or the
// first job fails, and return the first error.
package concurrency

import (
	"context"
	"sync"
)

// Run executes one goroutine per item in items, capped at max concurrent at
// a time, and returns the first non-nil error any job returns. Already
// in-flight jobs are allowed to finish; no jobs are launched after ctx is
// cancelled or a job has failed.
func Run[T any](ctx context.Context, max int, items []T, job func(ctx context.Context, item T) error) error {
	if max <= 0 {
		max = 1
	}

	sem := make(chan struct{}, max)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		mu.Lock()
		stop := firstErr != nil
		mu.Unlock()
		if stop {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := job(ctx, item); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(item)
	}

	wg.Wait()
	return firstErr
}
