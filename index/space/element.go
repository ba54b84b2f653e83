package space

import (
	"fmt"
	"unsafe"

	"github.com/x448/float16"
)

// Element is the set of vector component types an index can store.
type Element interface {
	float32 | float64 | int8 | uint8 | float16.Float16
}

type ElementType uint8

const (
	InvalidElement ElementType = iota
	Float32Element
	Float64Element
	Int8Element
	Uint8Element
	Float16Element
)

var elementTypeNames = [...]string{
	"invalid",
	"float32",
	"float64",
	"int8",
	"uint8",
	"float16",
}

func (t ElementType) String() string {
	if int(t) >= len(elementTypeNames) {
		return fmt.Sprintf("ElementType(%d)", uint8(t))
	}
	return elementTypeNames[t]
}

func ElementTypeOf[T Element]() ElementType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32Element
	case float64:
		return Float64Element
	case int8:
		return Int8Element
	case uint8:
		return Uint8Element
	case float16.Float16:
		return Float16Element
	}
	return InvalidElement
}

// ElementSize is the in-memory (and on-disk) byte size of one component.
func ElementSize[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Converter returns a function widening a component to float32.
// Float16 components are decoded from their IEEE 754 half precision bits.
func Converter[T Element]() func(T) float32 {
	if ElementTypeOf[T]() == Float16Element {
		return func(v T) float32 {
			return float16.Float16(v).Float32()
		}
	}
	return func(v T) float32 {
		return float32(v)
	}
}

// ToFloat32 widens a whole vector.
func ToFloat32[T Element](v []T) []float32 {
	conv := Converter[T]()
	result := make([]float32, len(v))
	for i, x := range v {
		result[i] = conv(x)
	}
	return result
}
