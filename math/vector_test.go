package math

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDotAndLength(t *testing.T) {
	assert.Equal(t, float32(32), Dot(Vector{1, 2, 3}, Vector{4, 5, 6}))
	assert.Equal(t, float32(5), Length(Vector{3, 4}))
}

func TestDotPanicsOnDimMismatch(t *testing.T) {
	assert.Panics(t, func() {
		Dot(Vector{1, 2}, Vector{1, 2, 3})
	})
}

func TestNormalize(t *testing.T) {
	vec := Normalize(Vector{3, 0, 4})
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[2], 1e-6)
	assert.InDelta(t, 1.0, Length(vec), 1e-6)

	assert.Equal(t, Vector{0, 0}, Normalize(Vector{0, 0}))
}

func TestSquaredAndManhattanDistance(t *testing.T) {
	assert.Equal(t, float32(9), SquaredDistance(Vector{1, 2, 2}, Vector{0, 0, 0}))
	assert.Equal(t, float32(6), ManhattanDistance(Vector{1, 2, 3}, Vector{0, 0, 0}))
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, 1, MinInt(3, 1, 2))
	assert.Equal(t, 3, MaxInt(3, 1, 2))
	assert.Equal(t, float32(1), Min(3, 1, 2))
	assert.Equal(t, float32(3), Max(3, 1, 2))
	assert.Equal(t, float32(1), Clamp(5, 0, 1))
	assert.Equal(t, float32(0), Clamp(-5, 0, 1))
}

func TestRandomExponential(t *testing.T) {
	r := NewRandom(42)
	var sum float64
	n := 20000
	for i := 0; i < n; i++ {
		v := r.Exponential(0.5)
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 0.5, sum/float64(n), 0.05)
}

func TestRandomIsReproducible(t *testing.T) {
	a := NewRandom(7)
	b := NewRandom(7)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}

	va := RandomUniformVectors(rand.New(rand.NewSource(1)), 3, 4)
	vb := RandomUniformVectors(rand.New(rand.NewSource(1)), 3, 4)
	assert.Equal(t, va, vb)
}
