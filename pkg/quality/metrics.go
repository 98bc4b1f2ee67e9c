// Package quality compares a denoised image against a reference.
package quality

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mrinlm/internal/models"
)

// Report holds the quality metrics of a denoised image
type Report struct {
	// RMSE is the root mean square error against the reference. Lower is
	// better.
	RMSE float64 `json:"rmse"`

	// PSNR is the peak signal to noise ratio in dB, using the reference's
	// intensity range as peak. +Inf for identical images.
	PSNR float64 `json:"psnr"`

	// SSIM is the global structural similarity index in [-1, 1].
	SSIM float64 `json:"ssim"`

	// MI approximates the mutual information under a Gaussian model.
	MI float64 `json:"mi"`

	// EntropyDiff is the absolute difference of the 256-bin Shannon
	// entropies.
	EntropyDiff float64 `json:"entropyDiff"`
}

// Compare computes every metric of denoised against reference. Both images
// must have the same size.
func Compare(reference, denoised *models.Image) (Report, error) {
	if reference == nil || denoised == nil {
		return Report{}, fmt.Errorf("both images are required")
	}
	if !reference.SameSize(denoised) {
		return Report{}, fmt.Errorf("image sizes differ: %v vs %v", reference.Size, denoised.Size)
	}
	if reference.Len() == 0 {
		return Report{}, fmt.Errorf("empty images")
	}

	min, max := reference.MinMax()
	return Report{
		RMSE:        RMSE(reference.Data, denoised.Data),
		PSNR:        PSNR(reference.Data, denoised.Data, max-min),
		SSIM:        SSIM(reference.Data, denoised.Data, max-min),
		MI:          MutualInformation(reference.Data, denoised.Data),
		EntropyDiff: math.Abs(Entropy(reference.Data) - Entropy(denoised.Data)),
	}, nil
}

// RMSE computes the root mean square error. Mismatched or empty inputs
// yield 0.
func RMSE(original, denoised []float64) float64 {
	n := len(original)
	if n != len(denoised) || n == 0 {
		return 0
	}
	return floats.Distance(original, denoised, 2) / math.Sqrt(float64(n))
}

// PSNR computes 20*log10(peak/RMSE).
func PSNR(original, denoised []float64, peak float64) float64 {
	rmse := RMSE(original, denoised)
	if rmse == 0 {
		return math.Inf(1)
	}
	return 20 * math.Log10(peak/rmse)
}

// SSIM computes the structural similarity index over the whole signal.
// dynamicRange is the intensity range L of the data; values <= 0 use 1.
func SSIM(original, denoised []float64, dynamicRange float64) float64 {
	const k1, k2 = 0.01, 0.03

	n := len(original)
	if n != len(denoised) || n == 0 {
		return 0
	}
	if dynamicRange <= 0 {
		dynamicRange = 1
	}
	c1 := (k1 * dynamicRange) * (k1 * dynamicRange)
	c2 := (k2 * dynamicRange) * (k2 * dynamicRange)

	muX := stat.Mean(original, nil)
	muY := stat.Mean(denoised, nil)

	var sigmaX, sigmaY, sigmaXY float64
	if n > 1 {
		sigmaX = stat.Variance(original, nil)
		sigmaY = stat.Variance(denoised, nil)
		sigmaXY = stat.Covariance(original, denoised, nil)
	}

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// MutualInformation approximates the mutual information of two signals as
// 0.5*log(var(X)var(Y) / (var(X)var(Y) - cov(X,Y)^2)). Identical signals
// have a singular covariance and yield +Inf.
func MutualInformation(original, denoised []float64) float64 {
	n := len(original)
	if n != len(denoised) || n < 2 {
		return 0
	}
	varX := stat.Variance(original, nil)
	varY := stat.Variance(denoised, nil)
	if varX <= 0 || varY <= 0 {
		return 0
	}
	cov := stat.Covariance(original, denoised, nil)
	det := varX*varY - cov*cov
	if det <= 1e-12*varX*varY {
		return math.Inf(1)
	}
	return 0.5 * math.Log(varX*varY/det)
}

// Entropy computes the Shannon entropy in bits over 256 equal-width bins
// spanning the data range.
func Entropy(data []float64) float64 {
	const numBins = 256

	n := len(data)
	if n == 0 {
		return 0
	}
	min, max := floats.Min(data), floats.Max(data)
	if max <= min {
		return 0
	}

	hist := make([]float64, numBins)
	binWidth := (max - min) / numBins
	for _, v := range data {
		bin := int((v - min) / binWidth)
		if bin >= numBins {
			bin = numBins - 1
		}
		hist[bin]++
	}

	entropy := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / float64(n)
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// MeanAbsoluteChange is the average absolute difference between the input
// and output of a run.
func MeanAbsoluteChange(input, output []float64) float64 {
	n := len(input)
	if n != len(output) || n == 0 {
		return 0
	}
	return floats.Distance(input, output, 1) / float64(n)
}
