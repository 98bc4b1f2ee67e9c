// Package noise estimates the noise level of MRI images and synthesizes
// noisy phantoms for testing the denoiser.
package noise

import (
	"fmt"
	"math"

	"mrinlm/internal/models"
)

// Weights of the Laplacian difference operator used for noise estimation
var laplacian2D = [9]float64{
	1, -2, 1,
	-2, 4, -2,
	1, -2, 1,
}

// EstimateSigma estimates the standard deviation of additive Gaussian noise.
//
// Images with two or more axes are processed plane by plane along the first
// two axes and the plane estimates are averaged. From J. Immerkær, "Fast
// Noise Variance Estimation", Computer Vision and Image Understanding,
// Vol. 64, No. 2, pp. 300-302, Sep. 1996.
func EstimateSigma(img *models.Image) (float64, error) {
	if img == nil || img.Len() == 0 {
		return 0, fmt.Errorf("no image to estimate noise from")
	}
	if img.Dimension() == 1 {
		return estimateLine(img.Data)
	}

	width, height := img.Size[0], img.Size[1]
	if width < 3 || height < 3 {
		return 0, fmt.Errorf("noise estimation needs planes of at least 3x3 pixels, got %dx%d", width, height)
	}
	planeSize := width * height
	planes := img.Len() / planeSize

	sum := 0.0
	for p := 0; p < planes; p++ {
		sum += estimatePlane(img.Data[p*planeSize:(p+1)*planeSize], width, height)
	}
	return sum / float64(planes), nil
}

// EstimateVariance returns the square of EstimateSigma.
func EstimateVariance(img *models.Image) (float64, error) {
	sigma, err := EstimateSigma(img)
	if err != nil {
		return 0, err
	}
	return sigma * sigma, nil
}

func estimatePlane(data []float64, width, height int) float64 {
	offsets := [9]int{
		-width - 1, -width, -width + 1,
		-1, 0, 1,
		width - 1, width, width + 1,
	}

	sum := 0.0
	for y := 1; y < height-1; y++ {
		rowSum := 0.0
		for x := 1; x < width-1; x++ {
			i := y*width + x
			conv := 0.0
			for j, o := range offsets {
				conv += data[i+o] * laplacian2D[j]
			}
			rowSum += math.Abs(conv)
		}
		sum += rowSum
	}
	factor := math.Sqrt(0.5*math.Pi) / (6 * float64(width-2) * float64(height-2))
	return sum * factor
}

// estimateLine applies the 1D operator (1, -2, 1), whose response to white
// noise has standard deviation sqrt(6)*sigma.
func estimateLine(data []float64) (float64, error) {
	n := len(data)
	if n < 3 {
		return 0, fmt.Errorf("noise estimation needs at least 3 samples, got %d", n)
	}
	sum := 0.0
	for i := 1; i < n-1; i++ {
		sum += math.Abs(data[i-1] - 2*data[i] + data[i+1])
	}
	return sum * math.Sqrt(0.5*math.Pi) / (math.Sqrt(6) * float64(n-2)), nil
}
