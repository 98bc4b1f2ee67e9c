// Package reconstruction implements adaptive non-local means denoising of
// N-dimensional scalar images.
//
// Every output pixel is a weighted average of the pixels in its search
// neighborhood. Weights come from the similarity of the patches around the
// pixel and the candidate; candidates whose local mean or variance differ too
// much are skipped before any patch is compared.
package reconstruction

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mrinlm/internal/logging"
	"mrinlm/internal/models"
	"mrinlm/internal/parallel"
	"mrinlm/internal/sysinfo"
	"mrinlm/pkg/localstats"
	"mrinlm/pkg/neighborhood"
	"mrinlm/pkg/noise"
	"mrinlm/pkg/patch"
	"mrinlm/pkg/similarity"
	"mrinlm/pkg/weight"
)

// ProgressCallback is invoked each time a worker finishes its share of the
// output. Calls are serialized.
type ProgressCallback func(completed, total int)

// RunStats counts what happened to candidates during a run. Numerical
// fallbacks are expected and are only reported here, never per pixel.
type RunStats struct {
	// Pixels is the number of output pixels written
	Pixels int64 `json:"pixels"`

	// Compared counts candidates whose patches were compared
	Compared int64 `json:"compared"`

	// Rejected counts candidates skipped by the local statistics test
	Rejected int64 `json:"rejected"`

	// OutOfBounds counts search positions outside the image
	OutOfBounds int64 `json:"outOfBounds"`

	// FlatPatches counts target patches with no correlation signal
	FlatPatches int64 `json:"flatPatches"`

	// Fallbacks counts pixels whose weights summed to less than epsilon and
	// kept their input value
	Fallbacks int64 `json:"fallbacks"`

	// SmoothingVariance is the noise variance used, estimated or configured
	SmoothingVariance float64 `json:"smoothingVariance"`

	// Workers is the number of slabs the output was split into
	Workers int `json:"workers"`
}

func (s *RunStats) add(o RunStats) {
	s.Pixels += o.Pixels
	s.Compared += o.Compared
	s.Rejected += o.Rejected
	s.OutOfBounds += o.OutOfBounds
	s.FlatPatches += o.FlatPatches
	s.Fallbacks += o.Fallbacks
}

// Reconstructor runs the non-local means filter with a fixed parameter set.
// A Reconstructor may be reused for several images but not concurrently.
type Reconstructor struct {
	params   Params
	logger   zerolog.Logger
	progress ProgressCallback
	stats    RunStats
}

// NewReconstructor creates a reconstructor for the given parameters. The
// parameters are copied; they are validated when Run is called.
func NewReconstructor(params *Params) *Reconstructor {
	return &Reconstructor{
		params: *params,
		logger: zerolog.Nop(),
	}
}

// SetLogger sets the logger used for run summaries.
func (r *Reconstructor) SetLogger(logger zerolog.Logger) {
	r.logger = logging.Component(logger, "reconstruction")
}

// SetProgressCallback registers a function receiving slab completion.
func (r *Reconstructor) SetProgressCallback(callback ProgressCallback) {
	r.progress = callback
}

// GetStats returns the counters of the last successful run.
func (r *Reconstructor) GetStats() RunStats {
	return r.stats
}

// run is the read-only state shared by all workers of one run
type run struct {
	params     Params
	primary    *models.Image
	maps       *localstats.Maps
	vectorizer *patch.Vectorizer
	search     *neighborhood.Geometry
	scorer     similarity.Scorer
	kernel     weight.Kernel
	target     models.Region
	output     *models.Image
}

// Run denoises channels[0]. Additional channels must be co-registered with
// the first; their patches are compared together with the primary patch.
//
// The local statistics of the primary channel are computed first; the
// reconstruction pass starts only when they are complete. The returned
// image covers the target region. Parameter problems are reported as
// *ConfigError before any work starts. When ctx is cancelled the partial
// output is discarded and ctx.Err() is returned.
func (r *Reconstructor) Run(ctx context.Context, channels ...*models.Image) (*models.Image, error) {
	params := r.params
	geoms, target, err := params.resolve(channels)
	if err != nil {
		return nil, err
	}
	primary := channels[0]

	host := sysinfo.Detect()
	if params.Workers == 0 {
		params.Workers = host.DefaultWorkers()
	}
	if err := host.CheckBuffers(2*primary.Len() + target.NumberOfPixels()); err != nil {
		return nil, err
	}

	if params.EstimateNoise {
		variance, err := noise.EstimateVariance(primary)
		if err != nil {
			return nil, &ConfigError{Field: "smoothing variance", Err: fmt.Errorf("cannot estimate noise variance: %w", err)}
		}
		params.SmoothingVariance = variance
		r.logger.Info().Float64("variance", variance).Msg("estimated noise variance")
	}

	r.logger.Info().
		Ints("size", primary.Size).
		Int("channels", len(channels)).
		Str("metric", params.Metric.String()).
		Int("searchSize", geoms.search.Size()).
		Int("patchSize", geoms.patch.Size()).
		Int("workers", params.Workers).
		Msg("starting non-local means")

	start := time.Now()
	maps, err := localstats.Compute(ctx, primary, geoms.stats, params.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to compute local statistics: %w", err)
	}
	r.logger.Debug().Dur("elapsed", time.Since(start)).Msg("local statistics ready")

	vectorizer, err := patch.NewVectorizer(channels, geoms.patch)
	if err != nil {
		return nil, &ConfigError{Field: "channels", Err: err}
	}

	output := models.NewImage(target.Size...)
	for axis := range target.Size {
		output.Spacing[axis] = primary.Spacing[axis]
		output.Origin[axis] = primary.Origin[axis] + float64(target.Index[axis])*primary.Spacing[axis]
	}

	state := &run{
		params:     params,
		primary:    primary,
		maps:       maps,
		vectorizer: vectorizer,
		search:     geoms.search,
		scorer:     similarity.Scorer{Metric: params.Metric, Epsilon: params.Epsilon},
		kernel: weight.Kernel{
			Metric:   params.Metric,
			H:        params.SmoothingFactor,
			Variance: params.SmoothingVariance,
			Rician:   params.UseRicianNoiseModel,
		},
		target: target,
		output: output,
	}

	pieces := len(target.Split(params.Workers))
	perWorker := make([]RunStats, pieces)
	var (
		progressMu sync.Mutex
		completed  int
	)

	reconStart := time.Now()
	workers, err := parallel.ForEachRegion(ctx, target, params.Workers, func(ctx context.Context, worker int, piece models.Region) error {
		stats, err := state.reconstructRegion(ctx, piece)
		if err != nil {
			return err
		}
		perWorker[worker] = stats

		if r.progress != nil {
			progressMu.Lock()
			completed++
			r.progress(completed, pieces)
			progressMu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := RunStats{SmoothingVariance: params.SmoothingVariance, Workers: workers}
	for _, s := range perWorker {
		total.add(s)
	}
	r.stats = total

	r.logger.Info().
		Dur("elapsed", time.Since(start)).
		Dur("reconstruction", time.Since(reconStart)).
		Int64("pixels", total.Pixels).
		Msg("non-local means finished")
	r.logger.Debug().
		Int64("compared", total.Compared).
		Int64("rejected", total.Rejected).
		Int64("outOfBounds", total.OutOfBounds).
		Int64("flatPatches", total.FlatPatches).
		Int64("fallbacks", total.Fallbacks).
		Msg("candidate statistics")

	return output, nil
}

// reconstructRegion writes every output pixel of piece. It only touches
// output pixels inside piece, so workers never share a write location.
func (s *run) reconstructRegion(ctx context.Context, piece models.Region) (RunStats, error) {
	var stats RunStats

	dim := s.primary.Dimension()
	targetVec := make([]float64, s.vectorizer.Len())
	candVec := make([]float64, s.vectorizer.Len())
	candidate := make([]int, dim)
	relative := make([]int, dim)

	pearson := s.params.Metric == similarity.PearsonCorrelation
	eps := s.params.Epsilon
	offsets := s.search.Offsets()

	it := models.NewRegionIterator(piece)
	for it.Next() {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		x := it.Index()
		xOff := s.primary.Offset(x)
		center := s.primary.Data[xOff]

		targetVec = s.vectorizer.Vectorize(targetVec, x)
		var meanT, stdT float64
		if pearson {
			meanT, stdT = similarity.MeanAndStdDev(targetVec)
			if s.scorer.Flat(stdT) {
				stats.FlatPatches++
			}
		}

		// the pixel itself always takes part with its self-similarity weight
		selfWeight := s.kernel.Weight(s.scorer.ScoreWithTarget(targetVec, meanT, stdT, targetVec))
		numerator := selfWeight * center
		denominator := selfWeight

		meanX, varX := s.maps.Mean.Data[xOff], s.maps.Variance.Data[xOff]
		for _, o := range offsets {
			if neighborhood.IsZero(o) {
				continue
			}
			for axis := range candidate {
				candidate[axis] = x[axis] + o[axis]
			}
			if !s.primary.Inside(candidate) {
				stats.OutOfBounds++
				continue
			}
			cOff := s.primary.Offset(candidate)
			if !s.accept(meanX, varX, s.maps.Mean.Data[cOff], s.maps.Variance.Data[cOff]) {
				stats.Rejected++
				continue
			}

			candVec = s.vectorizer.Vectorize(candVec, candidate)
			w := s.kernel.Weight(s.scorer.ScoreWithTarget(targetVec, meanT, stdT, candVec))
			numerator += w * s.primary.Data[cOff]
			denominator += w
			stats.Compared++
		}

		value := center
		if denominator > eps {
			value = numerator / denominator
		} else {
			stats.Fallbacks++
		}

		for axis := range relative {
			relative[axis] = x[axis] - s.target.Index[axis]
		}
		s.output.Data[s.output.Offset(relative)] = value
		stats.Pixels++
	}
	return stats, nil
}

// accept is the local statistics pre-filter: a candidate is compared only
// when its local mean and variance are within the configured relative
// distance of the target's.
func (s *run) accept(meanX, varX, meanC, varC float64) bool {
	eps := s.params.Epsilon
	meanScale := math.Max(math.Max(math.Abs(meanX), math.Abs(meanC)), eps)
	if !(math.Abs(meanX-meanC) < s.params.MeanThreshold*meanScale) {
		return false
	}
	varScale := math.Max(math.Max(varX, varC), eps)
	return math.Abs(varX-varC) < s.params.VarianceThreshold*varScale
}
