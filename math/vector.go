package math

type Vector []float32

func assertSameDim(a, b Vector) {
	if len(a) != len(b) {
		panic("Vector sizes do not match.")
	}
}

func Dot(a, b Vector) float32 {
	assertSameDim(a, b)

	var dot float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
	}
	return dot
}

func Length(a Vector) float32 {
	return Sqrt(Dot(a, a))
}

// Normalize returns a unit length copy of a. Zero vectors are returned as is.
func Normalize(a Vector) Vector {
	result := make(Vector, len(a))
	length := Length(a)
	if length == 0 {
		copy(result, a)
		return result
	}
	for i := 0; i < len(a); i++ {
		result[i] = a[i] / length
	}
	return result
}

func SquaredDistance(a, b Vector) float32 {
	assertSameDim(a, b)

	var distance float32
	for i := 0; i < len(a); i++ {
		distance += Square(a[i] - b[i])
	}
	return distance
}

func ManhattanDistance(a, b Vector) float32 {
	assertSameDim(a, b)

	var distance float32
	for i := 0; i < len(a); i++ {
		distance += Abs(a[i] - b[i])
	}
	return distance
}
