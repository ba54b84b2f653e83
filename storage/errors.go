package storage

import (
	"errors"
)

var (
	ErrCapacityExceeded error = errors.New("Capacity exceeded")
	ErrFormat           error = errors.New("Invalid format")
	ErrMmapUnsupported  error = errors.New("Memory mapping is not supported on this platform")
)
