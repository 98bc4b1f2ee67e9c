package models

import (
	"fmt"
)

// Slice represents a single 2D MRI slice read from disk
type Slice struct {
	// Data holds the intensities in row-major order (y*Width + x)
	Data []float64

	// Width and Height are the slice dimensions in pixels
	Width, Height int

	// Index is the position of this slice in the sequence
	Index int

	// Filename is the original filename of the slice
	Filename string
}

// StackSlices assembles equally sized slices into a 3D image with the given
// inter-slice gap as z spacing. A single slice yields a 2D image.
func StackSlices(slices []Slice, sliceGap float64) (*Image, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("no slices to stack")
	}
	width, height := slices[0].Width, slices[0].Height
	planeSize := width * height

	if len(slices) == 1 {
		data := append([]float64(nil), slices[0].Data...)
		return NewImageFromData(data, width, height)
	}

	data := make([]float64, 0, planeSize*len(slices))
	for _, s := range slices {
		if s.Width != width || s.Height != height {
			return nil, fmt.Errorf("slice %s has size %dx%d, expected %dx%d",
				s.Filename, s.Width, s.Height, width, height)
		}
		data = append(data, s.Data...)
	}
	img, err := NewImageFromData(data, width, height, len(slices))
	if err != nil {
		return nil, err
	}
	if sliceGap > 0 {
		img.Spacing[2] = sliceGap
	}
	return img, nil
}
