package math

import (
	goMath "math"
)

const MaxFloat = float32(goMath.MaxFloat32)
const MaxIntVal = int((^uint(0)) >> 1)
const MinIntVal = -MaxIntVal - 1

func Abs(x float32) float32 {
	return float32(goMath.Abs(float64(x)))
}

func Square(x float32) float32 {
	return x * x
}

func Sqrt(x float32) float32 {
	return float32(goMath.Sqrt(float64(x)))
}

func Log(x float32) float32 {
	return float32(goMath.Log(float64(x)))
}

func Floor(x float32) int {
	return int(goMath.Floor(float64(x)))
}

func Min(values ...float32) float32 {
	min := MaxFloat
	for _, value := range values {
		if value < min {
			min = value
		}
	}
	return min
}

func MinInt(values ...int) int {
	min := MaxIntVal
	for _, value := range values {
		if value < min {
			min = value
		}
	}
	return min
}

func Max(values ...float32) float32 {
	max := -MaxFloat
	for _, value := range values {
		if value > max {
			max = value
		}
	}
	return max
}

func MaxInt(values ...int) int {
	max := MinIntVal
	for _, value := range values {
		if value > max {
			max = value
		}
	}
	return max
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
