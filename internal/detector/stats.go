package detector

import "math"

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, mu float64) float64 {
	if len(xs) <= 1 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mu
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// zScore returns |x-mu|/sigma, or 0 when sigma is 0 (no meaningful
// deviation can be computed from a degenerate distribution).
func zScore(x, mu, sigma float64) float64 {
	if sigma == 0 {
		return 0
	}
	return math.Abs(x-mu) / sigma
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
