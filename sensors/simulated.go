package sensors

import (
	"math"
	"math/rand"
)

// Simulated stands in for real hardware in -test mode. It wanders around
// base by up to spread.
type Simulated struct {
	base   float64
	spread float64
	rnd    *rand.Rand
}

func NewSimulated(base, spread float64, seed int64) *Simulated {
	return &Simulated{base: base, spread: spread, rnd: rand.New(rand.NewSource(seed))}
}

func (s *Simulated) Sense() (float64, error) {
	v := s.base + (s.rnd.Float64()*2-1)*s.spread
	return math.Round(v*100) / 100, nil
}

// Calibrate accepts the request and does nothing.
func (s *Simulated) Calibrate() error {
	return nil
}
