package domain

import m "mutiny.dev/pkg/mutiny/internal/model"

type scoreCounter struct {
	detected   int
	undetected int
}

func (c *scoreCounter) add(mt m.Mutant) {
	switch {
	case mt.Status.Detected():
		c.detected++
	case mt.Status.Undetected():
		c.undetected++
	default:
		// Ignored, runtime and compile errors do not count.
	}
}

func (c *scoreCounter) score() float64 {
	total := c.detected + c.undetected
	if total == 0 {
		return 1.0
	}

	return float64(c.detected) / float64(total)
}

// MutationScore returns the share of detected (killed or timed out) mutants
// among the valid ones. Without valid mutants the score is 1.
func MutationScore(mutants []m.Mutant) float64 {
	var counter scoreCounter

	for _, mt := range mutants {
		counter.add(mt)
	}

	return counter.score()
}
