package app

import (
	"math/rand/v2"

	"assessment-service/internal/domain"
)

// Randomizer produces presentation orders for question sets.
type Randomizer struct {
	intN func(n int) int
}

// NewRandomizer uses the runtime's concurrency-safe source.
func NewRandomizer() *Randomizer {
	return &Randomizer{intN: rand.IntN}
}

// NewSeededRandomizer is for tests that need reproducible orders.
// The returned Randomizer must not be shared between goroutines.
func NewSeededRandomizer(seed uint64) *Randomizer {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Randomizer{intN: r.IntN}
}

// Order returns a uniformly random permutation of questions using Fisher-Yates.
// The input slice is left untouched.
func (r *Randomizer) Order(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	for i := len(out) - 1; i > 0; i-- {
		j := r.intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
