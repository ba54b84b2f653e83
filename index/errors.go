package index

import (
	"errors"
	"fmt"
	goMath "math"
	"sort"

	"github.com/marekgalovic/hnswdb/storage"
)

// InvalidId marks batch positions whose insertion failed.
const InvalidId uint64 = goMath.MaxUint64

var (
	ErrDimensionMismatch error = errors.New("Dimension mismatch")
	ErrItemNotFound      error = errors.New("Item not found")
	ErrInvalidLevel      error = errors.New("Invalid level")
	ErrInvalidConfig     error = errors.New("Invalid config")
	ErrCustomSpace       error = errors.New("Index uses a custom space which must be supplied at load time")

	ErrCapacityExceeded error = storage.ErrCapacityExceeded
	ErrFormat           error = storage.ErrFormat
)

// BatchError collects per item failures of a batch call, keyed by input position.
type BatchError struct {
	Errors map[int]error
	Total  int
}

func newBatchError(errs []error) error {
	if errs == nil {
		return nil
	}
	batchErr := &BatchError{Errors: make(map[int]error), Total: len(errs)}
	for i, err := range errs {
		if err != nil {
			batchErr.Errors[i] = err
		}
	}
	if len(batchErr.Errors) == 0 {
		return nil
	}
	return batchErr
}

func (this *BatchError) positions() []int {
	positions := make([]int, 0, len(this.Errors))
	for i := range this.Errors {
		positions = append(positions, i)
	}
	sort.Ints(positions)
	return positions
}

func (this *BatchError) Error() string {
	positions := this.positions()
	first := positions[0]
	return fmt.Sprintf("%d of %d items failed, first at position %d: %v", len(positions), this.Total, first, this.Errors[first])
}

func (this *BatchError) Unwrap() []error {
	positions := this.positions()
	errs := make([]error, len(positions))
	for i, position := range positions {
		errs[i] = this.Errors[position]
	}
	return errs
}
