package reconstruction

import (
	"errors"
	"fmt"
	"math"

	"mrinlm/internal/models"
	"mrinlm/pkg/neighborhood"
	"mrinlm/pkg/similarity"
)

// Params holds the denoising parameters. They are fixed before a run and
// only read while it executes.
type Params struct {
	// Metric selects how patches are compared
	Metric similarity.Metric

	// SearchRadius spans the candidate positions around each pixel. A single
	// component is applied to every axis. SearchOffsets, when set, replaces
	// the box with an explicit candidate list.
	SearchRadius  []int
	SearchOffsets [][]int

	// PatchRadius spans the patch compared between target and candidate.
	// PatchOffsets, when set, replaces the box with an explicit patch shape.
	PatchRadius  []int
	PatchOffsets [][]int

	// LocalStatsRadius spans the window of the local mean and variance maps
	LocalStatsRadius []int

	// SmoothingFactor is h in the weight kernel exp(-d/h^2)
	SmoothingFactor float64

	// SmoothingVariance is the noise variance sigma^2
	SmoothingVariance float64

	// EstimateNoise replaces SmoothingVariance by an estimate computed from
	// the primary channel before the run
	EstimateNoise bool

	// MeanThreshold and VarianceThreshold bound the relative difference of
	// local statistics between a pixel and a candidate. Zero rejects every
	// candidate except the pixel itself, +Inf disables the test.
	MeanThreshold     float64
	VarianceThreshold float64

	// Epsilon guards divisions and flat-patch detection
	Epsilon float64

	// UseRicianNoiseModel subtracts the 2*sigma^2 noise bias from mean
	// squares distances
	UseRicianNoiseModel bool

	// TargetRegion restricts the output to a sub-region; nil means the whole
	// image
	TargetRegion *models.Region

	// Workers is the number of goroutines; zero picks one per logical core
	Workers int
}

// DefaultParams returns the parameters used when nothing else is configured:
// 3x3 patches, 5x5 search windows and 3x3 statistics windows.
func DefaultParams() Params {
	return Params{
		Metric:            similarity.MeanSquares,
		SearchRadius:      []int{2},
		PatchRadius:       []int{1},
		LocalStatsRadius:  []int{1},
		SmoothingFactor:   1.0,
		SmoothingVariance: 2.0,
		MeanThreshold:     0.95,
		VarianceThreshold: 0.5,
		Epsilon:           1e-5,
	}
}

// ConfigError reports a parameter that prevents a run from starting.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// geometries are the neighborhoods of one run, resolved for the image
// dimension
type geometries struct {
	search *neighborhood.Geometry
	patch  *neighborhood.Geometry
	stats  *neighborhood.Geometry
}

// Validate checks the parameters against the channels to be denoised.
func (p *Params) Validate(channels []*models.Image) error {
	_, _, err := p.resolve(channels)
	return err
}

func (p *Params) resolve(channels []*models.Image) (geometries, models.Region, error) {
	var g geometries
	if len(channels) == 0 || channels[0] == nil {
		return g, models.Region{}, configErrorf("channels", "no input image")
	}
	primary := channels[0]
	for i, ch := range channels[1:] {
		if !primary.SameSize(ch) {
			return g, models.Region{}, configErrorf("channels", "channel %d does not match size %v of channel 0", i+1, primary.Size)
		}
	}
	dim := primary.Dimension()

	if !p.Metric.Valid() {
		return g, models.Region{}, configErrorf("metric", "unknown similarity metric %d", uint8(p.Metric))
	}
	if !(p.SmoothingFactor > 0) || math.IsInf(p.SmoothingFactor, 0) {
		return g, models.Region{}, configErrorf("smoothing factor", "%g must be positive and finite", p.SmoothingFactor)
	}
	if !(p.SmoothingVariance >= 0) {
		return g, models.Region{}, configErrorf("smoothing variance", "%g must not be negative", p.SmoothingVariance)
	}
	if !(p.MeanThreshold >= 0) {
		return g, models.Region{}, configErrorf("mean threshold", "%g must not be negative", p.MeanThreshold)
	}
	if !(p.VarianceThreshold >= 0) {
		return g, models.Region{}, configErrorf("variance threshold", "%g must not be negative", p.VarianceThreshold)
	}
	if !(p.Epsilon > 0) {
		return g, models.Region{}, configErrorf("epsilon", "%g must be positive", p.Epsilon)
	}
	if p.Workers < 0 {
		return g, models.Region{}, configErrorf("workers", "%d must not be negative", p.Workers)
	}

	var err error
	if g.search, err = resolveGeometry("search neighborhood", p.SearchRadius, p.SearchOffsets, dim, false); err != nil {
		return g, models.Region{}, err
	}
	if g.patch, err = resolveGeometry("patch neighborhood", p.PatchRadius, p.PatchOffsets, dim, false); err != nil {
		return g, models.Region{}, err
	}
	if g.stats, err = resolveGeometry("local statistics neighborhood", p.LocalStatsRadius, nil, dim, true); err != nil {
		return g, models.Region{}, err
	}

	target := primary.Region()
	if p.TargetRegion != nil {
		if !target.ContainsRegion(*p.TargetRegion) {
			return g, models.Region{}, configErrorf("target region", "%v is not inside the image %v", *p.TargetRegion, target)
		}
		target = models.NewRegion(p.TargetRegion.Index, p.TargetRegion.Size)
	}
	return g, target, nil
}

// resolveGeometry builds a neighborhood for a dim-dimensional image. Unless
// allowCenterOnly is set, a neighborhood holding only the center pixel is
// rejected: a zero patch compares single pixels and a zero search window has
// no candidates.
func resolveGeometry(field string, radius []int, offsets [][]int, dim int, allowCenterOnly bool) (*neighborhood.Geometry, error) {
	var (
		g   *neighborhood.Geometry
		err error
	)
	switch {
	case len(offsets) > 0:
		g, err = neighborhood.FromOffsets(offsets)
	case len(radius) == 1 && dim > 1:
		g, err = neighborhood.UniformRadius(radius[0], dim)
	default:
		g, err = neighborhood.FromRadius(radius)
	}
	if err != nil {
		return nil, &ConfigError{Field: field, Err: err}
	}
	if g.Dimension() != dim {
		return nil, &ConfigError{
			Field: field,
			Err:   &neighborhood.InvalidGeometryError{Reason: fmt.Sprintf("%d dimensions for a %d-dimensional image", g.Dimension(), dim)},
		}
	}
	if !allowCenterOnly && g.Size() == 1 {
		return nil, &ConfigError{
			Field: field,
			Err:   &neighborhood.InvalidGeometryError{Reason: "zero radius along every axis leaves only the center pixel"},
		}
	}
	return g, nil
}

// IsConfigError reports whether err stems from invalid parameters.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
