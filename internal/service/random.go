package service

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RandomSource is the only way engine code draws random numbers.
// *rand.Rand satisfies it; tests inject a seeded source.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
	NormFloat64() float64
}

// LockedSource is a goroutine-safe RandomSource
type LockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedSource creates a source seeded with seed. A zero seed uses the clock.
func NewLockedSource(seed int64) *LockedSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LockedSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *LockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *LockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *LockedSource) NormFloat64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.NormFloat64()
}

// uniform draws from [lo, hi)
func uniform(rng RandomSource, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// intBetween draws an integer from [lo, hi]
func intBetween(rng RandomSource, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

// gauss draws from N(0, sigma)
func gauss(rng RandomSource, sigma float64) float64 {
	return rng.NormFloat64() * sigma
}

// laplace draws from Laplace(0, scale) by inverting the CDF
func laplace(rng RandomSource, scale float64) float64 {
	// Generate uniform random number in (-0.5, 0.5)
	u := rng.Float64() - 0.5
	for u == -0.5 {
		u = rng.Float64() - 0.5
	}
	if u < 0 {
		return scale * math.Log(1.0+2.0*u)
	}
	return -scale * math.Log(1.0-2.0*u)
}
