package storage

import (
	"sync"
	"sync/atomic"
)

// Arena is an append-only slab of fixed-stride items split into fixed-size
// chunks. Writers serialize on a mutex, readers never lock: chunks are never
// reallocated and the chunk directory is swapped atomically when it grows.
// An item must not be read before the write that stored it happened-before the
// read (callers publish ids through their own synchronization).
type Arena[E any] struct {
	stride   int
	chunkLen int
	limit    uint64
	mu       sync.Mutex
	chunks   atomic.Pointer[[][]E]
	length   atomic.Uint64
}

// NewArena creates an arena holding items of stride elements, chunkLen items
// per chunk and at most limit items (0 means unbounded).
func NewArena[E any](stride, chunkLen int, limit uint64) *Arena[E] {
	if stride <= 0 {
		panic("Arena stride must be positive")
	}
	if chunkLen <= 0 {
		chunkLen = 1024
	}
	arena := &Arena[E]{
		stride:   stride,
		chunkLen: chunkLen,
		limit:    limit,
	}
	arena.chunks.Store(&[][]E{})
	return arena
}

func (this *Arena[E]) Len() uint64 {
	return this.length.Load()
}

// Append copies item into the next free slot and returns its index.
func (this *Arena[E]) Append(item []E) (uint64, error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	idx := this.length.Load()
	if err := this.set(idx, item); err != nil {
		return 0, err
	}
	return idx, nil
}

// Set stores item at idx, growing the arena when needed.
func (this *Arena[E]) Set(idx uint64, item []E) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	return this.set(idx, item)
}

func (this *Arena[E]) set(idx uint64, item []E) error {
	if len(item) != this.stride {
		panic("Arena item size does not match stride")
	}
	if this.limit > 0 && idx >= this.limit {
		return ErrCapacityExceeded
	}

	chunkIdx := int(idx / uint64(this.chunkLen))
	chunks := *this.chunks.Load()
	if chunkIdx >= len(chunks) {
		grown := make([][]E, chunkIdx+1)
		copy(grown, chunks)
		for i := len(chunks); i <= chunkIdx; i++ {
			grown[i] = make([]E, this.chunkLen*this.stride)
		}
		this.chunks.Store(&grown)
		chunks = grown
	}

	offset := int(idx%uint64(this.chunkLen)) * this.stride
	copy(chunks[chunkIdx][offset:offset+this.stride], item)

	if idx >= this.length.Load() {
		this.length.Store(idx + 1)
	}
	return nil
}

// Get returns the stored item without copying. The slice must not be modified.
func (this *Arena[E]) Get(idx uint64) []E {
	chunks := *this.chunks.Load()
	chunkIdx := int(idx / uint64(this.chunkLen))
	if chunkIdx >= len(chunks) {
		return nil
	}
	offset := int(idx%uint64(this.chunkLen)) * this.stride
	return chunks[chunkIdx][offset : offset+this.stride : offset+this.stride]
}
