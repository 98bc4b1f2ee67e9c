package localstats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrinlm/internal/models"
	"mrinlm/pkg/neighborhood"
)

func TestUniformImageHasZeroVariance(t *testing.T) {
	img := models.NewImage(6, 6)
	for i := range img.Data {
		img.Data[i] = 3.5
	}
	window, err := neighborhood.UniformRadius(1, 2)
	require.NoError(t, err)

	maps, err := Compute(context.Background(), img, window, 4)
	require.NoError(t, err)
	for i := range img.Data {
		assert.InDelta(t, 3.5, maps.Mean.Data[i], 1e-12)
		assert.InDelta(t, 0.0, maps.Variance.Data[i], 1e-12)
	}
}

func TestInteriorAndBorderStatistics(t *testing.T) {
	// 1D signal 0 1 2 3 4 with a window of radius 1
	img, err := models.NewImageFromData([]float64{0, 1, 2, 3, 4}, 5)
	require.NoError(t, err)
	window, err := neighborhood.FromRadius([]int{1})
	require.NoError(t, err)

	maps, err := Compute(context.Background(), img, window, 2)
	require.NoError(t, err)

	// interior: {1, 2, 3}
	assert.InDelta(t, 2.0, maps.Mean.Data[2], 1e-12)
	assert.InDelta(t, 2.0/3.0, maps.Variance.Data[2], 1e-12)

	// left border is clamped: {0, 0, 1}
	assert.InDelta(t, 1.0/3.0, maps.Mean.Data[0], 1e-12)
	assert.InDelta(t, 2.0/9.0, maps.Variance.Data[0], 1e-12)
}

func TestResultDoesNotDependOnWorkerCount(t *testing.T) {
	img := models.NewImage(9, 7, 5)
	for i := range img.Data {
		img.Data[i] = float64((i*7919)%101) / 10
	}
	window, err := neighborhood.UniformRadius(1, 3)
	require.NoError(t, err)

	one, err := Compute(context.Background(), img, window, 1)
	require.NoError(t, err)
	many, err := Compute(context.Background(), img, window, 5)
	require.NoError(t, err)
	assert.Equal(t, one.Mean.Data, many.Mean.Data)
	assert.Equal(t, one.Variance.Data, many.Variance.Data)
}

func TestComputeRejectsDimensionMismatch(t *testing.T) {
	window, err := neighborhood.UniformRadius(1, 3)
	require.NoError(t, err)
	_, err = Compute(context.Background(), models.NewImage(4, 4), window, 1)
	assert.Error(t, err)
}

func TestComputeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	window, err := neighborhood.UniformRadius(1, 2)
	require.NoError(t, err)
	_, err = Compute(ctx, models.NewImage(8, 8), window, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
