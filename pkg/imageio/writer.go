package imageio

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"mrinlm/internal/models"
)

// Window maps intensities to the 16-bit output range: Min becomes black and
// Max white. Values outside are clipped, NaNs written as black.
type Window struct {
	Min, Max float64
}

// FullRange returns the window spanning the intensities of img.
func FullRange(img *models.Image) Window {
	min, max := img.MinMax()
	return Window{Min: min, Max: max}
}

func (w Window) gray16(v float64) color.Gray16 {
	scale := 0.0
	if w.Max > w.Min {
		scale = 1 / (w.Max - w.Min)
	}
	g := (v - w.Min) * scale
	if math.IsNaN(g) || g < 0 {
		g = 0
	}
	if g > 1 {
		g = 1
	}
	return color.Gray16{Y: uint16(math.Round(g * 65535))}
}

// ExtractPlane cuts a 2D plane out of a 2D or 3D image. axis is the axis
// held fixed at position: "z" gives XY planes, "y" gives XZ planes and "x"
// gives ZY planes.
func ExtractPlane(img *models.Image, axis string, position int, window Window) (*image.Gray16, error) {
	if img.Dimension() != 2 && img.Dimension() != 3 {
		return nil, fmt.Errorf("cannot extract planes from a %d-dimensional image", img.Dimension())
	}
	width, height, depth := img.Size[0], img.Size[1], 1
	if img.Dimension() == 3 {
		depth = img.Size[2]
	}
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	at := func(x, y, z int) float64 {
		return img.Data[z*width*height+y*width+x]
	}

	var out *image.Gray16
	switch strings.ToLower(axis) {
	case "x":
		if position >= width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, width)
		}
		out = image.NewGray16(image.Rect(0, 0, depth, height))
		for y := 0; y < height; y++ {
			for z := 0; z < depth; z++ {
				out.SetGray16(z, y, window.gray16(at(position, y, z)))
			}
		}
	case "y":
		if position >= height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, height)
		}
		out = image.NewGray16(image.Rect(0, 0, width, depth))
		for z := 0; z < depth; z++ {
			for x := 0; x < width; x++ {
				out.SetGray16(x, z, window.gray16(at(x, position, z)))
			}
		}
	case "z":
		if position >= depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, depth)
		}
		out = image.NewGray16(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.SetGray16(x, y, window.gray16(at(x, y, position)))
			}
		}
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
	return out, nil
}

// WriteTIFF16 encodes a plane as a deflate-compressed 16-bit TIFF.
func WriteTIFF16(w io.Writer, plane *image.Gray16) error {
	return tiff.Encode(w, plane, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// WriteTIFF16ToFile writes a plane to fileName.
func WriteTIFF16ToFile(fileName string, plane *image.Gray16) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := WriteTIFF16(writer, plane); err != nil {
		return err
	}
	return writer.Flush()
}

// WriteSlices writes every plane of img along axis to outputDir as
// slice_<axis>_NNN.tif and returns the file names in order. All planes
// share one intensity window.
func WriteSlices(img *models.Image, outputDir, axis string, window Window) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var count int
	switch strings.ToLower(axis) {
	case "x":
		count = img.Size[0]
	case "y":
		count = img.Size[1]
	case "z":
		count = 1
		if img.Dimension() == 3 {
			count = img.Size[2]
		}
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	files := make([]string, 0, count)
	for pos := 0; pos < count; pos++ {
		plane, err := ExtractPlane(img, axis, pos, window)
		if err != nil {
			return nil, err
		}
		name := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.tif", strings.ToLower(axis), pos))
		if err := WriteTIFF16ToFile(name, plane); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		files = append(files, name)
	}
	return files, nil
}
