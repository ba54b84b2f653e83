package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBatchError(t *testing.T) {
	assert.NoError(t, newBatchError(nil))
	assert.NoError(t, newBatchError(make([]error, 3)))

	err := newBatchError([]error{nil, ErrDimensionMismatch, nil, ErrCapacityExceeded})
	var batchErr *BatchError
	assert.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 4, batchErr.Total)
	assert.Equal(t, map[int]error{1: ErrDimensionMismatch, 3: ErrCapacityExceeded}, batchErr.Errors)
	assert.Equal(t, []error{ErrDimensionMismatch, ErrCapacityExceeded}, batchErr.Unwrap())

	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.NotErrorIs(t, err, ErrFormat)
	assert.Equal(t, "2 of 4 items failed, first at position 1: Dimension mismatch", err.Error())
}
