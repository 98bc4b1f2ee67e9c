package weight

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"mrinlm/pkg/similarity"
)

func TestMeanSquaresKernel(t *testing.T) {
	k := Kernel{Metric: similarity.MeanSquares, H: 2}
	assert.Equal(t, 1.0, k.Weight(0))
	assert.InDelta(t, math.Exp(-1), k.Weight(4), 1e-15)
	assert.Greater(t, k.Weight(1), k.Weight(2), "weight must decrease with distance")
}

func TestRicianBiasCorrection(t *testing.T) {
	k := Kernel{Metric: similarity.MeanSquares, H: 1, Variance: 0.5, Rician: true}
	assert.Equal(t, 1.0, k.Weight(0.9), "scores below 2*sigma^2 are clamped to full weight")
	assert.InDelta(t, math.Exp(-1), k.Weight(2), 1e-15)

	k.Rician = false
	assert.InDelta(t, math.Exp(-2), k.Weight(2), 1e-15)
}

func TestPearsonKernel(t *testing.T) {
	k := Kernel{Metric: similarity.PearsonCorrelation, H: 1}
	assert.Equal(t, 1.0, k.Weight(1))
	assert.InDelta(t, math.Exp(-1), k.Weight(0), 1e-15)
	assert.InDelta(t, math.Exp(-2), k.Weight(-1), 1e-15)
	assert.Greater(t, k.Weight(0.8), k.Weight(0.2))
}

func TestWeightsAreBounded(t *testing.T) {
	for _, m := range []similarity.Metric{similarity.MeanSquares, similarity.PearsonCorrelation} {
		for _, rician := range []bool{false, true} {
			k := Kernel{Metric: m, H: 0.7, Variance: 3, Rician: rician}
			for _, score := range []float64{-1, -0.5, 0, 0.5, 1, 10, 1e6} {
				w := k.Weight(score)
				assert.GreaterOrEqual(t, w, 0.0)
				assert.LessOrEqual(t, w, 1.0)
			}
		}
	}
}

func TestUnknownMetricPanics(t *testing.T) {
	assert.Panics(t, func() { Kernel{Metric: similarity.Metric(42), H: 1}.Weight(0) })
}
