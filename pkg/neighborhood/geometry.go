// Package neighborhood describes the search and patch neighborhoods used by
// the non-local means filter as ordered lists of integer offsets.
package neighborhood

import (
	"fmt"
)

// InvalidGeometryError reports a neighborhood that cannot be built.
type InvalidGeometryError struct {
	Reason string
}

func (e *InvalidGeometryError) Error() string {
	return "invalid neighborhood geometry: " + e.Reason
}

// Geometry is an immutable, ordered list of offsets around a center index.
type Geometry struct {
	offsets [][]int
	radius  []int
	center  int
}

// FromRadius builds the box of all integer offsets in [-r_i, r_i] per axis.
//
// Offsets are enumerated lexicographically with the last axis slowest and
// axis 0 fastest, the same order in which images are stored. Two geometries
// built from the same radius therefore produce element-aligned patch vectors.
func FromRadius(radius []int) (*Geometry, error) {
	if len(radius) == 0 {
		return nil, &InvalidGeometryError{Reason: "radius has no components"}
	}
	size := 1
	for axis, r := range radius {
		if r < 0 {
			return nil, &InvalidGeometryError{Reason: fmt.Sprintf("negative radius %d along axis %d", r, axis)}
		}
		size *= 2*r + 1
	}

	dim := len(radius)
	offsets := make([][]int, 0, size)
	current := make([]int, dim)
	for axis := range current {
		current[axis] = -radius[axis]
	}
	for {
		offsets = append(offsets, append([]int(nil), current...))

		axis := 0
		for ; axis < dim; axis++ {
			current[axis]++
			if current[axis] <= radius[axis] {
				break
			}
			current[axis] = -radius[axis]
		}
		if axis == dim {
			break
		}
	}

	return &Geometry{
		offsets: offsets,
		radius:  append([]int(nil), radius...),
		center:  size / 2,
	}, nil
}

// UniformRadius is shorthand for FromRadius with the same radius on every axis.
func UniformRadius(r, dim int) (*Geometry, error) {
	if dim <= 0 {
		return nil, &InvalidGeometryError{Reason: fmt.Sprintf("dimension %d", dim)}
	}
	radius := make([]int, dim)
	for axis := range radius {
		radius[axis] = r
	}
	return FromRadius(radius)
}

// FromOffsets keeps an explicit offset list in the caller's order.
func FromOffsets(offsets [][]int) (*Geometry, error) {
	if len(offsets) == 0 {
		return nil, &InvalidGeometryError{Reason: "empty offset list"}
	}
	dim := len(offsets[0])
	if dim == 0 {
		return nil, &InvalidGeometryError{Reason: "offsets have no components"}
	}

	g := &Geometry{
		offsets: make([][]int, len(offsets)),
		radius:  make([]int, dim),
		center:  -1,
	}
	for i, o := range offsets {
		if len(o) != dim {
			return nil, &InvalidGeometryError{
				Reason: fmt.Sprintf("offset %d has %d components, expected %d", i, len(o), dim),
			}
		}
		zero := true
		for axis, v := range o {
			if v < 0 {
				v = -v
			}
			if v > g.radius[axis] {
				g.radius[axis] = v
			}
			if o[axis] != 0 {
				zero = false
			}
		}
		if zero && g.center < 0 {
			g.center = i
		}
		g.offsets[i] = append([]int(nil), o...)
	}
	return g, nil
}

// Size returns the number of offsets.
func (g *Geometry) Size() int { return len(g.offsets) }

// Dimension returns the number of components per offset.
func (g *Geometry) Dimension() int { return len(g.radius) }

// Offset returns the i-th offset. The returned slice must not be modified.
func (g *Geometry) Offset(i int) []int { return g.offsets[i] }

// Offsets returns all offsets in canonical order. The slices must not be
// modified.
func (g *Geometry) Offsets() [][]int { return g.offsets }

// Radius returns the per-axis bounding radius of the offsets.
func (g *Geometry) Radius() []int { return append([]int(nil), g.radius...) }

// CenterPosition returns the position of the zero offset, or -1 when the
// list does not contain it.
func (g *Geometry) CenterPosition() int { return g.center }

// IsZero reports whether o is the zero offset.
func IsZero(o []int) bool {
	for _, v := range o {
		if v != 0 {
			return false
		}
	}
	return true
}
