package space

import (
	"errors"
	"fmt"

	"github.com/klauspost/cpuid"
)

var (
	InvalidSpaceKindErr error = errors.New("Invalid space kind")
)

type Kind uint8

const (
	CustomKind Kind = iota
	EuclideanKind
	ManhattanKind
	CosineKind
)

var kindNames = [...]string{
	"custom",
	"euclidean",
	"manhattan",
	"cosine",
}

func (k Kind) String() string {
	if int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name && Kind(i) != CustomKind {
			return Kind(i), nil
		}
	}
	if name == "l2" {
		return EuclideanKind, nil
	}
	if name == "angular" {
		return CosineKind, nil
	}
	return CustomKind, fmt.Errorf("%w: %q", InvalidSpaceKindErr, name)
}

type SpaceImpl[T Element] interface {
	EuclideanDistance([]T, []T) float32
	ManhattanDistance([]T, []T) float32
	CosineDistance([]T, []T) float32
}

// Space computes a dissimilarity between two vectors of equal length.
// Implementations must be pure and safe for concurrent use.
type Space[T Element] interface {
	Distance([]T, []T) float32
	Kind() Kind
}

type space[T Element] struct {
	impl SpaceImpl[T]
}

func newSpace[T Element]() space[T] {
	switch ElementTypeOf[T]() {
	case Float32Element:
		if cpuid.CPU.AVX() {
			return space[T]{impl: any(blasSpaceImpl{}).(SpaceImpl[T])}
		}
		return space[T]{impl: any(nativeSpaceImpl{}).(SpaceImpl[T])}
	case Float64Element:
		return space[T]{impl: any(float64SpaceImpl{}).(SpaceImpl[T])}
	}
	return space[T]{impl: newGenericSpaceImpl[T]()}
}

type Euclidean[T Element] struct{ space[T] }

type Manhattan[T Element] struct{ space[T] }

type Cosine[T Element] struct{ space[T] }

func NewEuclidean[T Element]() Space[T] {
	return &Euclidean[T]{newSpace[T]()}
}

func (this *Euclidean[T]) Distance(a, b []T) float32 {
	return this.impl.EuclideanDistance(a, b)
}

func (this *Euclidean[T]) Kind() Kind { return EuclideanKind }

func (this *Euclidean[T]) String() string { return EuclideanKind.String() }

func NewManhattan[T Element]() Space[T] {
	return &Manhattan[T]{newSpace[T]()}
}

func (this *Manhattan[T]) Distance(a, b []T) float32 {
	return this.impl.ManhattanDistance(a, b)
}

func (this *Manhattan[T]) Kind() Kind { return ManhattanKind }

func (this *Manhattan[T]) String() string { return ManhattanKind.String() }

// NewCosine returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func NewCosine[T Element]() Space[T] {
	return &Cosine[T]{newSpace[T]()}
}

func (this *Cosine[T]) Distance(a, b []T) float32 {
	return this.impl.CosineDistance(a, b)
}

func (this *Cosine[T]) Kind() Kind { return CosineKind }

func (this *Cosine[T]) String() string { return CosineKind.String() }

// Func adapts a plain function to Space. Indexes built on it are persisted with
// CustomKind and need the same function supplied again at load time.
type Func[T Element] struct {
	name string
	fn   func([]T, []T) float32
}

func NewFunc[T Element](name string, fn func([]T, []T) float32) Space[T] {
	return &Func[T]{name: name, fn: fn}
}

func (this *Func[T]) Distance(a, b []T) float32 { return this.fn(a, b) }

func (this *Func[T]) Kind() Kind { return CustomKind }

func (this *Func[T]) String() string { return this.name }

// FromKind builds one of the built-in spaces.
func FromKind[T Element](kind Kind) (Space[T], error) {
	switch kind {
	case EuclideanKind:
		return NewEuclidean[T](), nil
	case ManhattanKind:
		return NewManhattan[T](), nil
	case CosineKind:
		return NewCosine[T](), nil
	}
	return nil, fmt.Errorf("%w: %s", InvalidSpaceKindErr, kind)
}
