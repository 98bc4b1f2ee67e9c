package similarity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MeanAndStdDev returns the sample mean and the population standard
// deviation (no Bessel correction) of v.
func MeanAndStdDev(v []float64) (mean, std float64) {
	if len(v) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(v, nil)
}

// Scorer computes patch similarity under one metric.
type Scorer struct {
	Metric Metric

	// Epsilon is the standard deviation below which a patch counts as flat
	Epsilon float64
}

// Score compares two patch vectors of equal, non-zero length.
//
// A flat patch (standard deviation below Epsilon) has no correlation signal
// and scores 0 under PearsonCorrelation. Mismatched lengths are a
// programming error and panic.
func (s Scorer) Score(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("similarity: patch vector lengths differ (%d != %d)", len(a), len(b)))
	}
	if len(a) == 0 {
		panic("similarity: empty patch vectors")
	}

	switch s.Metric {
	case PearsonCorrelation:
		meanA, stdA := MeanAndStdDev(a)
		meanB, stdB := MeanAndStdDev(b)
		return s.pearson(a, b, meanA, stdA, meanB, stdB)
	case MeanSquares:
		return meanSquares(a, b)
	default:
		panic(fmt.Sprintf("similarity: unknown metric %d", uint8(s.Metric)))
	}
}

// ScoreWithTarget is Score with the target statistics computed once by the
// caller, for loops that compare one target against many candidates.
func (s Scorer) ScoreWithTarget(target []float64, meanT, stdT float64, candidate []float64) float64 {
	if len(target) != len(candidate) {
		panic(fmt.Sprintf("similarity: patch vector lengths differ (%d != %d)", len(target), len(candidate)))
	}
	if len(target) == 0 {
		panic("similarity: empty patch vectors")
	}

	switch s.Metric {
	case PearsonCorrelation:
		meanC, stdC := MeanAndStdDev(candidate)
		return s.pearson(target, candidate, meanT, stdT, meanC, stdC)
	case MeanSquares:
		return meanSquares(target, candidate)
	default:
		panic(fmt.Sprintf("similarity: unknown metric %d", uint8(s.Metric)))
	}
}

// Flat reports whether a patch with standard deviation std is treated as
// constant by the correlation metric.
func (s Scorer) Flat(std float64) bool {
	return std < s.Epsilon
}

func (s Scorer) pearson(a, b []float64, meanA, stdA, meanB, stdB float64) float64 {
	if s.Flat(stdA) || s.Flat(stdB) || stdA == 0 || stdB == 0 {
		return 0
	}
	var sum float64
	for i, va := range a {
		sum += (va - meanA) * (b[i] - meanB)
	}
	r := sum / (float64(len(a)) * stdA * stdB)
	return math.Max(-1, math.Min(1, r))
}

func meanSquares(a, b []float64) float64 {
	var sum float64
	for i, va := range a {
		d := va - b[i]
		sum += d * d
	}
	return sum / float64(len(a))
}
