package movement

import "math/rand"

// PausePolicy samples the post-arrival pause and the travel speed for
// unscheduled movement, which is not timetable aware. Implementations are
// black-box numeric producers; the simulation supplies the randomness.
type PausePolicy interface {
	NextWait() float64
	NextSpeed() float64
}

// UniformPausePolicy samples waits and speeds uniformly from fixed ranges
// using a caller supplied random source
type UniformPausePolicy struct {
	rng      *rand.Rand
	minWait  float64
	maxWait  float64
	minSpeed float64
	maxSpeed float64
}

// MakeUniformPausePolicy builds UniformPausePolicy. Ranges are inclusive of
// the minimum; a degenerate range (min == max) always produces the minimum.
func MakeUniformPausePolicy(rng *rand.Rand, minWait, maxWait, minSpeed, maxSpeed float64) *UniformPausePolicy {
	return &UniformPausePolicy{
		rng:      rng,
		minWait:  minWait,
		maxWait:  maxWait,
		minSpeed: minSpeed,
		maxSpeed: maxSpeed,
	}
}

// NextWait implements PausePolicy
func (p *UniformPausePolicy) NextWait() float64 {
	return sampleRange(p.rng, p.minWait, p.maxWait)
}

// NextSpeed implements PausePolicy
func (p *UniformPausePolicy) NextSpeed() float64 {
	return sampleRange(p.rng, p.minSpeed, p.maxSpeed)
}

func sampleRange(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rng.Float64()*(max-min)
}
