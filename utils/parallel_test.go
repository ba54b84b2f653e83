package utils

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelForRunsEveryItem(t *testing.T) {
	var calls int64
	out := make([]int, 100)
	errs := ParallelFor(len(out), 4, func(i int) error {
		atomic.AddInt64(&calls, 1)
		out[i] = i * i
		return nil
	})

	assert.Nil(t, errs)
	assert.Equal(t, int64(100), calls)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestParallelForCollectsErrorsPerItem(t *testing.T) {
	failure := errors.New("odd")
	var calls int64
	errs := ParallelFor(10, 0, func(i int) error {
		atomic.AddInt64(&calls, 1)
		if i%2 == 1 {
			return failure
		}
		return nil
	})

	assert.Equal(t, int64(10), calls)
	assert.Len(t, errs, 10)
	for i, err := range errs {
		if i%2 == 1 {
			assert.ErrorIs(t, err, failure)
		} else {
			assert.Nil(t, err)
		}
	}
}

func TestParallelForLimitsConcurrency(t *testing.T) {
	var running, peak int64
	ParallelFor(50, 3, func(i int) error {
		n := atomic.AddInt64(&running, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		atomic.AddInt64(&running, -1)
		return nil
	})
	assert.LessOrEqual(t, peak, int64(3))
}
