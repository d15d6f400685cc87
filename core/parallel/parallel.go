// Package parallel provides the worker-pool helpers behind the n_jobs
// hyperparameter of the estimators and the grid search.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// EffectiveJobs resolves an n_jobs value the way joblib does: positive
// values are taken as is, -1 means all CPUs, -2 all but one, and so on.
// 0 is treated as 1. The result is never larger than tasks when tasks > 0.
func EffectiveJobs(nJobs, tasks int) int {
	cpus := runtime.NumCPU()
	n := nJobs
	switch {
	case nJobs == 0:
		n = 1
	case nJobs < 0:
		n = cpus + 1 + nJobs
	}
	if n < 1 {
		n = 1
	}
	if tasks > 0 && n > tasks {
		n = tasks
	}
	return n
}

// Parallelize splits [0, items) into contiguous chunks, one per worker, and
// runs fn on each chunk concurrently.
func Parallelize(items, nJobs int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	workers := EffectiveJobs(nJobs, items)
	if workers == 1 {
		fn(0, items)
		return
	}
	chunk := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunk {
		end := start + chunk
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// Run executes task(ctx, i) for i in [0, tasks) on at most
// EffectiveJobs(nJobs, tasks) goroutines. The first error cancels the
// context handed to the remaining tasks and is returned. Tasks not yet
// started when ctx is cancelled are skipped.
func Run(ctx context.Context, nJobs, tasks int, task func(ctx context.Context, i int) error) error {
	if tasks == 0 {
		return ctx.Err()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(EffectiveJobs(nJobs, tasks))
	for i := 0; i < tasks; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return task(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
