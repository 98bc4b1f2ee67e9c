// Package parallel runs per-region work on disjoint pieces of an image
// region, one goroutine per piece.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mrinlm/internal/models"
)

// RegionFunc processes one piece of the region. worker is the position of
// the piece in the split, so callers can keep per-worker state in slices
// without locking.
type RegionFunc func(ctx context.Context, worker int, piece models.Region) error

// ForEachRegion splits r into at most workers pieces and runs fn on each
// piece concurrently. It returns once every piece has finished. Errors from
// all pieces are joined; a cancelled context is reported as ctx.Err().
func ForEachRegion(ctx context.Context, r models.Region, workers int, fn RegionFunc) (int, error) {
	pieces := r.Split(workers)

	var wg sync.WaitGroup
	errs := make([]error, len(pieces))
	for i, piece := range pieces {
		wg.Add(1)
		go func(worker int, piece models.Region) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					errs[worker] = fmt.Errorf("worker %d panicked on %v: %v", worker, piece, rec)
				}
			}()
			errs[worker] = fn(ctx, worker, piece)
		}(i, piece)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return len(pieces), err
	}
	return len(pieces), errors.Join(errs...)
}
