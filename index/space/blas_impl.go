package space

import (
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/floats"
)

// blasSpaceImpl routes the dot product heavy cosine distance through gonum's
// SIMD kernels. The difference based metrics stay on the native loops.
type blasSpaceImpl struct {
	nativeSpaceImpl
}

func blas32Vector(a []float32) blas32.Vector {
	return blas32.Vector{N: len(a), Inc: 1, Data: a}
}

func (blasSpaceImpl) CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		panic("Vector sizes do not match.")
	}
	if len(a) == 0 {
		return 1
	}
	x, y := blas32Vector(a), blas32Vector(b)
	return cosineFromParts(blas32.Dot(x, y), blas32.Nrm2(x)*blas32.Nrm2(y))
}

type float64SpaceImpl struct{}

func (float64SpaceImpl) EuclideanDistance(a, b []float64) float32 {
	return float32(floats.Distance(a, b, 2))
}

func (float64SpaceImpl) ManhattanDistance(a, b []float64) float32 {
	return float32(floats.Distance(a, b, 1))
}

func (float64SpaceImpl) CosineDistance(a, b []float64) float32 {
	norms := floats.Norm(a, 2) * floats.Norm(b, 2)
	if norms == 0 {
		return 1
	}
	return cosineFromParts(float32(floats.Dot(a, b)/norms), 1)
}
