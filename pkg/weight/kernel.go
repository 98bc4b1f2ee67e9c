// Package weight converts patch similarity scores into non-local means
// contribution weights.
package weight

import (
	"fmt"
	"math"

	"mrinlm/pkg/similarity"
)

// Kernel holds the run-level smoothing parameters.
type Kernel struct {
	Metric similarity.Metric

	// H is the smoothing factor; larger values let less similar patches
	// contribute more
	H float64

	// Variance is the noise variance sigma^2
	Variance float64

	// Rician subtracts the noise bias 2*sigma^2 from mean squares scores
	Rician bool
}

// Weight maps a similarity score to a weight in [0, 1].
func (k Kernel) Weight(score float64) float64 {
	h2 := k.H * k.H
	var d float64
	switch k.Metric {
	case similarity.MeanSquares:
		d = score
		if k.Rician {
			d = math.Max(score-2*k.Variance, 0)
		}
	case similarity.PearsonCorrelation:
		d = 1 - score
	default:
		panic(fmt.Sprintf("weight: unknown metric %d", uint8(k.Metric)))
	}
	if d < 0 {
		d = 0
	}
	w := math.Exp(-d / h2)
	if math.IsNaN(w) {
		return 0
	}
	return w
}
