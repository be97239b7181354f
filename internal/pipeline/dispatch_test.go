package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatchOrdersResultsBySubmission(t *testing.T) {
	jobs := make([]func(context.Context) (int, error), 5)
	for i := range jobs {
		i := i
		jobs[i] = func(ctx context.Context) (int, error) {
			// Later jobs finish first to exercise result ordering.
			time.Sleep(time.Duration(5-i) * 10 * time.Millisecond)
			return i * 10, nil
		}
	}

	results := Dispatch(context.Background(), 5, jobs)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
		if r.Err != nil {
			t.Errorf("result %d: unexpected error: %v", i, r.Err)
		}
		if r.Value != i*10 {
			t.Errorf("result %d: expected value %d, got %d", i, i*10, r.Value)
		}
	}
}

func TestDispatchRespectsLimit(t *testing.T) {
	var inFlight, peak int64

	jobs := make([]func(context.Context) (struct{}, error), 8)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) (struct{}, error) {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			return struct{}{}, nil
		}
	}

	Dispatch(context.Background(), 3, jobs)
	if p := atomic.LoadInt64(&peak); p > 3 {
		t.Errorf("observed %d concurrent jobs, limit was 3", p)
	}
}

func TestDispatchFailuresDoNotCancelPeers(t *testing.T) {
	failure := errors.New("job 2 exploded")

	jobs := make([]func(context.Context) (string, error), 5)
	for i := range jobs {
		i := i
		jobs[i] = func(ctx context.Context) (string, error) {
			if i == 2 {
				return "", failure
			}
			return fmt.Sprintf("artifact-%d", i), nil
		}
	}

	results := Dispatch(context.Background(), 2, jobs)

	succeeded := Succeeded(results)
	if len(succeeded) != 4 {
		t.Fatalf("expected 4 successes, got %d", len(succeeded))
	}

	failed := Failed(results)
	if len(failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failed))
	}
	if failed[0].Index != 2 {
		t.Errorf("expected failure at index 2, got %d", failed[0].Index)
	}
	if !errors.Is(failed[0].Err, failure) {
		t.Errorf("expected original job error, got %v", failed[0].Err)
	}
}

func TestDispatchZeroLimitRunsSerially(t *testing.T) {
	var order []int
	jobs := make([]func(context.Context) (int, error), 3)
	for i := range jobs {
		i := i
		jobs[i] = func(ctx context.Context) (int, error) {
			order = append(order, i)
			return i, nil
		}
	}

	// A non-positive limit falls back to one worker, so the jobs touch the
	// shared slice one at a time.
	results := Dispatch(context.Background(), 0, jobs)
	if len(order) != 3 {
		t.Fatalf("expected 3 jobs to run, got %d", len(order))
	}
	for i, r := range results {
		if r.Err != nil || r.Value != i {
			t.Errorf("result %d: value %d err %v", i, r.Value, r.Err)
		}
	}
}
