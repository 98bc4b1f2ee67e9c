package noise

import (
	"math"

	"github.com/valyala/fastrand"

	"mrinlm/internal/models"
)

// Intensities of the synthetic phantom
const (
	PhantomBackground = 10.0
	PhantomTissue     = 100.0
	PhantomLesion     = 50.0
)

// Phantom builds a piecewise constant test image: an ellipsoid of tissue on
// a dark background with a smaller spherical lesion off-center. Works for
// any number of axes.
func Phantom(size ...int) *models.Image {
	img := models.NewImage(size...)
	dim := len(size)

	it := models.NewRegionIterator(img.Region())
	for i := 0; it.Next(); i++ {
		index := it.Index()
		outer, inner := 0.0, 0.0
		for axis, s := range size {
			center := float64(s-1) / 2
			semi := 0.4 * float64(s)
			if axis == 0 {
				semi = 0.3 * float64(s)
			}
			if semi <= 0 {
				semi = 1
			}
			d := (float64(index[axis]) - center) / semi
			outer += d * d

			lesionCenter := center + 0.1*float64(s)
			r := 0.12 * float64(s)
			if r < 1 {
				r = 1
			}
			e := (float64(index[axis]) - lesionCenter) / r
			inner += e * e
		}
		switch {
		case dim > 0 && inner <= 1:
			img.Data[i] = PhantomLesion
		case outer <= 1:
			img.Data[i] = PhantomTissue
		default:
			img.Data[i] = PhantomBackground
		}
	}
	return img
}

// gaussianSource draws standard normal samples from a seeded xorshift
// generator using the Box-Muller transform.
type gaussianSource struct {
	rng   fastrand.RNG
	spare float64
	ready bool
}

func newGaussianSource(seed uint32) *gaussianSource {
	g := &gaussianSource{}
	if seed == 0 {
		seed = 1
	}
	g.rng.Seed(seed)
	return g
}

func (g *gaussianSource) uniform() float64 {
	return (float64(g.rng.Uint32()) + 0.5) / (1 << 32)
}

func (g *gaussianSource) next() float64 {
	if g.ready {
		g.ready = false
		return g.spare
	}
	u1, u2 := g.uniform(), g.uniform()
	r := math.Sqrt(-2 * math.Log(u1))
	g.spare = r * math.Sin(2*math.Pi*u2)
	g.ready = true
	return r * math.Cos(2*math.Pi*u2)
}

// AddGaussianNoise returns a copy of img with additive white noise of
// standard deviation sigma. The same seed always yields the same noise.
func AddGaussianNoise(img *models.Image, sigma float64, seed uint32) *models.Image {
	out := img.Clone()
	g := newGaussianSource(seed)
	for i := range out.Data {
		out.Data[i] += sigma * g.next()
	}
	return out
}

// AddRicianNoise returns a copy of img as it would appear in a magnitude MR
// image: Gaussian noise of standard deviation sigma is added to the real
// and imaginary channels and the magnitude is taken.
func AddRicianNoise(img *models.Image, sigma float64, seed uint32) *models.Image {
	out := img.Clone()
	g := newGaussianSource(seed)
	for i, v := range out.Data {
		re := v + sigma*g.next()
		im := sigma * g.next()
		out.Data[i] = math.Hypot(re, im)
	}
	return out
}
