package math

import (
	goMath "math"
	"math/rand"
	"sync"
)

// Random is a goroutine safe wrapper around a seeded *rand.Rand.
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rnd: rand.New(rand.NewSource(seed))}
}

// Float64 returns a value in (0, 1].
func (this *Random) Float64() float64 {
	this.mu.Lock()
	defer this.mu.Unlock()
	return 1.0 - this.rnd.Float64()
}

// Exponential samples -ln(U) * lambda with U uniform in (0, 1].
func (this *Random) Exponential(lambda float64) float64 {
	return -goMath.Log(this.Float64()) * lambda
}

func RandomStandardNormalVector(size int) Vector {
	vec := make(Vector, size)
	for i := 0; i < size; i++ {
		vec[i] = float32(rand.NormFloat64())
	}
	return vec
}

func RandomNormalVector(r *rand.Rand, size int, mu, sigma float32) Vector {
	vec := make(Vector, size)
	for i := 0; i < size; i++ {
		vec[i] = float32(r.NormFloat64())*sigma + mu
	}
	return vec
}

// RandomUniformVectors draws n vectors from r so that datasets are reproducible.
func RandomUniformVectors(r *rand.Rand, n, size int) []Vector {
	result := make([]Vector, n)
	for i := range result {
		vec := make(Vector, size)
		for j := range vec {
			vec[j] = r.Float32()
		}
		result[i] = vec
	}
	return result
}
