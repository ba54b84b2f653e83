package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAppendGet(t *testing.T) {
	arena := NewArena[float32](3, 2, 0)

	for i := 0; i < 5; i++ {
		id, err := arena.Append([]float32{float32(i), float32(i + 1), float32(i + 2)})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), id)
	}

	assert.Equal(t, uint64(5), arena.Len())
	for i := 0; i < 5; i++ {
		assert.Equal(t, []float32{float32(i), float32(i + 1), float32(i + 2)}, arena.Get(uint64(i)))
	}
}

func TestArenaSetGrows(t *testing.T) {
	arena := NewArena[int](1, 4, 0)

	require.NoError(t, arena.Set(9, []int{42}))
	assert.Equal(t, uint64(10), arena.Len())
	assert.Equal(t, []int{42}, arena.Get(9))
	assert.Equal(t, []int{0}, arena.Get(3))
	assert.Nil(t, arena.Get(100))
}

func TestArenaCapacity(t *testing.T) {
	arena := NewArena[float32](1, 8, 2)

	_, err := arena.Append([]float32{1})
	require.NoError(t, err)
	_, err = arena.Append([]float32{2})
	require.NoError(t, err)
	_, err = arena.Append([]float32{3})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, uint64(2), arena.Len())
}

func TestArenaStrideMismatchPanics(t *testing.T) {
	arena := NewArena[float32](2, 8, 0)

	assert.Panics(t, func() {
		arena.Append([]float32{1})
	})
}

func TestArenaConcurrentAppend(t *testing.T) {
	arena := NewArena[uint64](1, 16, 0)

	var wg sync.WaitGroup
	ids := make([]uint64, 1000)
	for i := 0; i < len(ids); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := arena.Append([]uint64{uint64(i)})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(len(ids)), arena.Len())
	for i, id := range ids {
		assert.Equal(t, uint64(i), arena.Get(id)[0])
	}
}
