package models

import (
	"fmt"
)

// Image is a dense N-dimensional scalar image.
//
// Pixels are stored in row-major order with axis 0 varying fastest, so a
// volume of size (w, h, d) keeps voxel (x, y, z) at z*w*h + y*w + x. Images
// must be built with NewImage or NewImageFromData; the zero value is not
// usable.
type Image struct {
	// Data holds the pixel values in row-major order
	Data []float64

	// Size is the number of pixels along each axis
	Size []int

	// Origin is the physical position of index (0, 0, ...)
	Origin []float64

	// Spacing is the physical distance between neighbouring pixels per axis
	Spacing []float64

	strides []int
}

// NewImage allocates a zero-filled image with unit spacing and zero origin.
func NewImage(size ...int) *Image {
	n := 1
	for _, s := range size {
		n *= s
	}
	img, err := NewImageFromData(make([]float64, n), size...)
	if err != nil {
		panic(err)
	}
	return img
}

// NewImageFromData wraps data as an image of the given size. The slice is
// not copied.
func NewImageFromData(data []float64, size ...int) (*Image, error) {
	if len(size) == 0 {
		return nil, fmt.Errorf("image must have at least one dimension")
	}
	n := 1
	for axis, s := range size {
		if s <= 0 {
			return nil, fmt.Errorf("invalid size %d along axis %d", s, axis)
		}
		n *= s
	}
	if len(data) != n {
		return nil, fmt.Errorf("data length %d does not match size %v (%d pixels)", len(data), size, n)
	}

	img := &Image{
		Data:    data,
		Size:    append([]int(nil), size...),
		Origin:  make([]float64, len(size)),
		Spacing: make([]float64, len(size)),
		strides: make([]int, len(size)),
	}
	stride := 1
	for axis := range size {
		img.Spacing[axis] = 1
		img.strides[axis] = stride
		stride *= size[axis]
	}
	return img, nil
}

// Dimension returns the number of axes.
func (img *Image) Dimension() int { return len(img.Size) }

// Len returns the number of pixels.
func (img *Image) Len() int { return len(img.Data) }

// Strides returns the linear distance between neighbours along each axis.
func (img *Image) Strides() []int { return img.strides }

// Region returns the full index range of the image.
func (img *Image) Region() Region {
	return Region{
		Index: make([]int, len(img.Size)),
		Size:  append([]int(nil), img.Size...),
	}
}

// Inside reports whether index lies in the image domain.
func (img *Image) Inside(index []int) bool {
	for axis, i := range index {
		if i < 0 || i >= img.Size[axis] {
			return false
		}
	}
	return true
}

// Offset returns the linear position of an in-bounds index.
func (img *Image) Offset(index []int) int {
	off := 0
	for axis, i := range index {
		off += i * img.strides[axis]
	}
	return off
}

// At returns the pixel at an in-bounds index.
func (img *Image) At(index []int) float64 {
	return img.Data[img.Offset(index)]
}

// Set writes the pixel at an in-bounds index.
func (img *Image) Set(index []int, v float64) {
	img.Data[img.Offset(index)] = v
}

// ClampedOffset returns the linear position of center+offset after clamping
// every axis to the image domain. This is the boundary policy used
// throughout: an out-of-bounds neighbour takes the value of the nearest
// valid pixel.
func (img *Image) ClampedOffset(center, offset []int) int {
	off := 0
	for axis, c := range center {
		i := c + offset[axis]
		if i < 0 {
			i = 0
		} else if i >= img.Size[axis] {
			i = img.Size[axis] - 1
		}
		off += i * img.strides[axis]
	}
	return off
}

// Clamped returns the pixel at index, clamped to the image domain.
func (img *Image) Clamped(index []int) float64 {
	off := 0
	for axis, i := range index {
		if i < 0 {
			i = 0
		} else if i >= img.Size[axis] {
			i = img.Size[axis] - 1
		}
		off += i * img.strides[axis]
	}
	return img.Data[off]
}

// SameSize reports whether both images cover the same index space.
func (img *Image) SameSize(other *Image) bool {
	if other == nil || len(img.Size) != len(other.Size) {
		return false
	}
	for axis := range img.Size {
		if img.Size[axis] != other.Size[axis] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the image including its metadata.
func (img *Image) Clone() *Image {
	out := NewImage(img.Size...)
	copy(out.Data, img.Data)
	copy(out.Origin, img.Origin)
	copy(out.Spacing, img.Spacing)
	return out
}

// MinMax returns the smallest and largest pixel values.
func (img *Image) MinMax() (min, max float64) {
	if len(img.Data) == 0 {
		return 0, 0
	}
	min, max = img.Data[0], img.Data[0]
	for _, v := range img.Data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
