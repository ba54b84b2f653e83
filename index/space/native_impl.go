package space

import (
	"github.com/marekgalovic/hnswdb/math"
)

type nativeSpaceImpl struct{}

func (nativeSpaceImpl) EuclideanDistance(a, b []float32) float32 {
	return math.Sqrt(math.SquaredDistance(a, b))
}

func (nativeSpaceImpl) ManhattanDistance(a, b []float32) float32 {
	return math.ManhattanDistance(a, b)
}

func (nativeSpaceImpl) CosineDistance(a, b []float32) float32 {
	var dot float32
	var aNorm float32
	var bNorm float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		aNorm += math.Square(a[i])
		bNorm += math.Square(b[i])
	}

	return cosineFromParts(dot, math.Sqrt(aNorm)*math.Sqrt(bNorm))
}

func cosineFromParts(dot, norms float32) float32 {
	if norms == 0 {
		return 1
	}
	return math.Clamp(1-dot/norms, 0, 2)
}

// genericSpaceImpl widens every component to float32 before accumulating.
type genericSpaceImpl[T Element] struct {
	conv func(T) float32
}

func newGenericSpaceImpl[T Element]() SpaceImpl[T] {
	return genericSpaceImpl[T]{conv: Converter[T]()}
}

func (this genericSpaceImpl[T]) EuclideanDistance(a, b []T) float32 {
	var distance float32
	for i := 0; i < len(a); i++ {
		distance += math.Square(this.conv(a[i]) - this.conv(b[i]))
	}
	return math.Sqrt(distance)
}

func (this genericSpaceImpl[T]) ManhattanDistance(a, b []T) float32 {
	var distance float32
	for i := 0; i < len(a); i++ {
		distance += math.Abs(this.conv(a[i]) - this.conv(b[i]))
	}
	return distance
}

func (this genericSpaceImpl[T]) CosineDistance(a, b []T) float32 {
	var dot float32
	var aNorm float32
	var bNorm float32
	for i := 0; i < len(a); i++ {
		x, y := this.conv(a[i]), this.conv(b[i])
		dot += x * y
		aNorm += x * x
		bNorm += y * y
	}
	return cosineFromParts(dot, math.Sqrt(aNorm)*math.Sqrt(bNorm))
}
