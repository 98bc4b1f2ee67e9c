// Package localstats computes moving-window mean and variance maps used to
// pre-screen non-local means candidates.
package localstats

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"mrinlm/internal/models"
	"mrinlm/internal/parallel"
	"mrinlm/pkg/neighborhood"
	"mrinlm/pkg/patch"
)

// Maps holds the local mean and population variance of every pixel,
// co-registered with the image they were computed from.
type Maps struct {
	Mean     *models.Image
	Variance *models.Image
}

// Compute fills both maps over the whole image using the window geometry.
//
// Windows that reach past the border use clamped pixel values, so every
// index of the image has valid statistics. The work is split into workers
// disjoint slabs; Compute returns only after all of them have finished.
func Compute(ctx context.Context, img *models.Image, window *neighborhood.Geometry, workers int) (*Maps, error) {
	vectorizer, err := patch.NewVectorizer([]*models.Image{img}, window)
	if err != nil {
		return nil, fmt.Errorf("local statistics window: %w", err)
	}

	maps := &Maps{
		Mean:     models.NewImage(img.Size...),
		Variance: models.NewImage(img.Size...),
	}
	copy(maps.Mean.Origin, img.Origin)
	copy(maps.Mean.Spacing, img.Spacing)
	copy(maps.Variance.Origin, img.Origin)
	copy(maps.Variance.Spacing, img.Spacing)

	_, err = parallel.ForEachRegion(ctx, img.Region(), workers, func(ctx context.Context, worker int, piece models.Region) error {
		values := make([]float64, vectorizer.Len())
		it := models.NewRegionIterator(piece)
		for it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			index := it.Index()
			values = vectorizer.Vectorize(values, index)
			mean, variance := stat.PopMeanVariance(values, nil)
			off := img.Offset(index)
			maps.Mean.Data[off] = mean
			maps.Variance.Data[off] = variance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return maps, nil
}
