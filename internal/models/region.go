package models

import (
	"fmt"
)

// Region is a box in index space: Size[i] pixels along axis i starting at
// Index[i].
type Region struct {
	Index []int
	Size  []int
}

// NewRegion builds a region from a start index and a size.
func NewRegion(index, size []int) Region {
	return Region{
		Index: append([]int(nil), index...),
		Size:  append([]int(nil), size...),
	}
}

// Dimension returns the number of axes.
func (r Region) Dimension() int { return len(r.Size) }

// NumberOfPixels returns the number of indices covered by r.
func (r Region) NumberOfPixels() int {
	if len(r.Size) == 0 {
		return 0
	}
	n := 1
	for _, s := range r.Size {
		n *= s
	}
	return n
}

// ContainsRegion reports whether o lies completely in r.
func (r Region) ContainsRegion(o Region) bool {
	if len(o.Size) != len(r.Size) || len(o.Index) != len(r.Index) {
		return false
	}
	for axis := range r.Size {
		if o.Size[axis] <= 0 {
			return false
		}
		if o.Index[axis] < r.Index[axis] || o.Index[axis]+o.Size[axis] > r.Index[axis]+r.Size[axis] {
			return false
		}
	}
	return true
}

// Split partitions r into at most n disjoint sub-regions along its slowest
// axis with more than one pixel. The pieces cover r exactly and differ in
// thickness by at most one.
func (r Region) Split(n int) []Region {
	if n < 1 {
		n = 1
	}
	axis := -1
	for a := len(r.Size) - 1; a >= 0; a-- {
		if r.Size[a] > 1 {
			axis = a
			break
		}
	}
	if axis < 0 || n == 1 {
		return []Region{NewRegion(r.Index, r.Size)}
	}

	extent := r.Size[axis]
	if n > extent {
		n = extent
	}
	pieces := make([]Region, 0, n)
	start := r.Index[axis]
	for p := 0; p < n; p++ {
		thickness := extent / n
		if p < extent%n {
			thickness++
		}
		piece := NewRegion(r.Index, r.Size)
		piece.Index[axis] = start
		piece.Size[axis] = thickness
		pieces = append(pieces, piece)
		start += thickness
	}
	return pieces
}

func (r Region) String() string {
	return fmt.Sprintf("index=%v size=%v", r.Index, r.Size)
}

// RegionIterator walks every index of a region in row-major order with axis
// 0 varying fastest.
type RegionIterator struct {
	region  Region
	index   []int
	started bool
	done    bool
}

// NewRegionIterator returns an iterator positioned before the first index.
func NewRegionIterator(r Region) *RegionIterator {
	return &RegionIterator{
		region: r,
		index:  append([]int(nil), r.Index...),
		done:   r.NumberOfPixels() == 0,
	}
}

// Next advances to the next index and reports whether there is one.
func (it *RegionIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		return true
	}
	for axis := range it.index {
		it.index[axis]++
		if it.index[axis] < it.region.Index[axis]+it.region.Size[axis] {
			return true
		}
		it.index[axis] = it.region.Index[axis]
	}
	it.done = true
	return false
}

// Index returns the current index. The slice is reused between calls.
func (it *RegionIterator) Index() []int { return it.index }
