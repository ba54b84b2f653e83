package utils

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFor calls fn for every index in [0, n) on at most workers goroutines
// and waits for all of them. Errors are collected per index; one failing item
// never stops the others. The returned slice is nil when every call succeeded.
func ParallelFor(n, workers int, fn func(i int) error) []error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var g errgroup.Group
	g.SetLimit(workers)

	errs := make([]error, n)
	failed := make([]bool, n)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := fn(i); err != nil {
				errs[i] = err
				failed[i] = true
			}
			return nil
		})
	}
	g.Wait()

	for _, f := range failed {
		if f {
			return errs
		}
	}
	return nil
}
