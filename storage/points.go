package storage

import (
	"github.com/marekgalovic/hnswdb/index/space"
)

// Points owns vector payloads addressed by dense internal ids.
// Appends are serialized, reads never block. Returned slices must not be modified.
type Points[T space.Element] interface {
	Dim() int
	Len() uint64
	Get(uint64) []T
	Append([]T) (uint64, error)
	// Mapped reports the file backing the store when it is memory mapped.
	Mapped() (string, bool)
	Close() error
}

const defaultChunkLen = 4096

type MemoryPoints[T space.Element] struct {
	dim   int
	arena *Arena[T]
}

// NewMemoryPoints creates a resident store. limit caps the number of points, 0 means unbounded.
func NewMemoryPoints[T space.Element](dim int, limit uint64) *MemoryPoints[T] {
	return &MemoryPoints[T]{
		dim:   dim,
		arena: NewArena[T](dim, defaultChunkLen, limit),
	}
}

func (this *MemoryPoints[T]) Dim() int { return this.dim }

func (this *MemoryPoints[T]) Len() uint64 { return this.arena.Len() }

func (this *MemoryPoints[T]) Get(id uint64) []T {
	if id >= this.arena.Len() {
		return nil
	}
	return this.arena.Get(id)
}

func (this *MemoryPoints[T]) Append(vec []T) (uint64, error) {
	return this.arena.Append(vec)
}

func (this *MemoryPoints[T]) Mapped() (string, bool) { return "", false }

func (this *MemoryPoints[T]) Close() error { return nil }

// MappedPoints serves the first count points straight from a read-only file
// mapping. Points appended after loading live in a resident overflow arena.
type MappedPoints[T space.Element] struct {
	dim      int
	path     string
	data     []byte
	view     []T
	count    uint64
	limit    uint64
	full     bool
	overflow *Arena[T]
}

func (this *MappedPoints[T]) resetOverflow() {
	this.full = this.limit > 0 && this.limit <= this.count
	overflowLimit := uint64(0)
	if this.limit > 0 && !this.full {
		overflowLimit = this.limit - this.count
	}
	this.overflow = NewArena[T](this.dim, defaultChunkLen, overflowLimit)
}

func (this *MappedPoints[T]) Dim() int { return this.dim }

func (this *MappedPoints[T]) Len() uint64 { return this.count + this.overflow.Len() }

func (this *MappedPoints[T]) Get(id uint64) []T {
	if id < this.count {
		offset := id * uint64(this.dim)
		return this.view[offset : offset+uint64(this.dim) : offset+uint64(this.dim)]
	}
	if id-this.count >= this.overflow.Len() {
		return nil
	}
	return this.overflow.Get(id - this.count)
}

func (this *MappedPoints[T]) Append(vec []T) (uint64, error) {
	if this.full {
		return 0, ErrCapacityExceeded
	}
	id, err := this.overflow.Append(vec)
	if err != nil {
		return 0, err
	}
	return this.count + id, nil
}

func (this *MappedPoints[T]) Mapped() (string, bool) { return this.path, true }

// Truncate hides every mapped point at or beyond count. It must be called
// before the store is shared and before anything is appended.
func (this *MappedPoints[T]) Truncate(count uint64) {
	if count < this.count {
		this.count = count
		this.view = this.view[:count*uint64(this.dim)]
		this.resetOverflow()
	}
}

func (this *MappedPoints[T]) Close() error {
	if this.data == nil {
		return nil
	}
	data := this.data
	this.data, this.view, this.count = nil, nil, 0
	return munmap(data)
}
