// Package patch extracts ordered intensity vectors from neighborhoods of one
// or more co-registered images.
package patch

import (
	"fmt"

	"mrinlm/internal/models"
	"mrinlm/pkg/neighborhood"
)

// Vectorizer reads the values of a fixed neighborhood around any center index.
//
// With several channels the vector is the concatenation of each channel's
// values in channel order, then offset order. Offsets that fall outside the
// image take the value of the nearest valid pixel. A Vectorizer holds no
// per-call state and may be shared between goroutines.
type Vectorizer struct {
	channels []*models.Image
	geometry *neighborhood.Geometry

	// linear holds the offset of every neighbour relative to the center in
	// the flat pixel buffer; valid only when the whole neighborhood is inside
	linear []int
	radius []int
}

// NewVectorizer checks that all channels share one index space matching the
// geometry's dimension.
func NewVectorizer(channels []*models.Image, geometry *neighborhood.Geometry) (*Vectorizer, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("no input channels")
	}
	if geometry == nil {
		return nil, fmt.Errorf("no neighborhood geometry")
	}
	first := channels[0]
	if first == nil {
		return nil, fmt.Errorf("channel 0 is nil")
	}
	if geometry.Dimension() != first.Dimension() {
		return nil, fmt.Errorf("geometry has %d dimensions, image has %d", geometry.Dimension(), first.Dimension())
	}
	for i, ch := range channels[1:] {
		if !first.SameSize(ch) {
			return nil, fmt.Errorf("channel %d does not match size %v of channel 0", i+1, first.Size)
		}
	}

	v := &Vectorizer{
		channels: channels,
		geometry: geometry,
		linear:   make([]int, geometry.Size()),
		radius:   geometry.Radius(),
	}
	strides := first.Strides()
	for i, o := range geometry.Offsets() {
		for axis, d := range o {
			v.linear[i] += d * strides[axis]
		}
	}
	return v, nil
}

// Len returns the length of the vectors produced.
func (v *Vectorizer) Len() int { return len(v.linear) * len(v.channels) }

// Interior reports whether every neighbour of center lies inside the image.
func (v *Vectorizer) Interior(center []int) bool {
	size := v.channels[0].Size
	for axis, c := range center {
		if c-v.radius[axis] < 0 || c+v.radius[axis] >= size[axis] {
			return false
		}
	}
	return true
}

// Vectorize writes the patch around center into dst, growing it if needed,
// and returns the filled slice. center must lie inside the image.
func (v *Vectorizer) Vectorize(dst []float64, center []int) []float64 {
	n := len(v.linear)
	if cap(dst) < v.Len() {
		dst = make([]float64, v.Len())
	}
	dst = dst[:v.Len()]

	if v.Interior(center) {
		base := v.channels[0].Offset(center)
		for c, ch := range v.channels {
			out := dst[c*n : (c+1)*n]
			for i, d := range v.linear {
				out[i] = ch.Data[base+d]
			}
		}
		return dst
	}

	offsets := v.geometry.Offsets()
	for i, o := range offsets {
		pos := v.channels[0].ClampedOffset(center, o)
		for c, ch := range v.channels {
			dst[c*n+i] = ch.Data[pos]
		}
	}
	return dst
}
