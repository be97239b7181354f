package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// JobResult holds the outcome of one dispatched job, keyed by its submission
// index so callers can match outputs back to their inputs.
type JobResult[T any] struct {
	Index int
	Value T
	Err   error
}

// Dispatch runs every job with at most limit in flight at once. A failing job
// never cancels its peers; each result carries its own error. Results come
// back ordered by submission index regardless of completion order.
func Dispatch[T any](ctx context.Context, limit int, jobs []func(context.Context) (T, error)) []JobResult[T] {
	if limit <= 0 {
		limit = 1
	}
	if limit > len(jobs) {
		limit = len(jobs)
	}

	sem := semaphore.NewWeighted(int64(limit))
	results := make([]JobResult[T], len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = JobResult[T]{Index: i, Err: err}
			continue
		}

		wg.Add(1)
		go func(i int, job func(context.Context) (T, error)) {
			defer wg.Done()
			defer sem.Release(1)

			value, err := job(ctx)
			results[i] = JobResult[T]{Index: i, Value: value, Err: err}
		}(i, job)
	}
	wg.Wait()

	return results
}

// Succeeded filters a result set to the values of jobs that completed,
// preserving submission order.
func Succeeded[T any](results []JobResult[T]) []T {
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}
	return values
}

// Failed filters a result set to the failures, preserving submission order.
func Failed[T any](results []JobResult[T]) []JobResult[T] {
	failures := make([]JobResult[T], 0)
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, r)
		}
	}
	return failures
}
