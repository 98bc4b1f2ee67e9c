// Package imageio reads MRI slice stacks from common 2D image formats and
// writes denoised volumes back as 16-bit TIFF slices.
//
// Intensities are kept on the 8-bit grey scale [0, 255] regardless of the
// source bit depth; 16-bit sources keep their extra precision as fractions.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"mrinlm/internal/models"
)

// MaxIntensity is the intensity of a white pixel after decoding
const MaxIntensity = 255.0

// Rec. 601 luma weights
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

var sliceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// Read loads a single slice file as a 2D image, or every slice file in a
// directory as a 3D stack with sliceGap as z spacing.
func Read(path string, sliceGap float64) (*models.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return ReadSlices(path, sliceGap)
	}
	s, err := ReadSlice(path)
	if err != nil {
		return nil, err
	}
	return models.StackSlices([]models.Slice{s}, sliceGap)
}

// ReadSlices loads all slice images of a directory, ordered by the number in
// their filename, and stacks them.
func ReadSlices(dir string, sliceGap float64) (*models.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if sliceExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}

	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})

	slices := make([]models.Slice, 0, len(files))
	for i, name := range files {
		s, err := ReadSlice(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		s.Index = i
		slices = append(slices, s)
	}
	return models.StackSlices(slices, sliceGap)
}

// ReadSlice decodes one image file into grey levels.
func ReadSlice(path string) (models.Slice, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.Slice{}, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return models.Slice{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	s := FromImage(img)
	s.Filename = filepath.Base(path)
	return s, nil
}

// FromImage converts a decoded image to grey levels. Grey images are taken
// as is; colour images are reduced to their Rec. 601 luma, which is linear in
// the stored components so an R=G=B pixel decodes like the same grey pixel.
func FromImage(img image.Image) models.Slice {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := make([]float64, width*height)

	grey := img.ColorModel() == color.GrayModel || img.ColorModel() == color.Gray16Model
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			var v float64
			if grey {
				g := color.Gray16Model.Convert(c).(color.Gray16)
				v = float64(g.Y) / 65535 * MaxIntensity
			} else if col, ok := colorful.MakeColor(c); ok {
				v = clamp01(lumaR*col.R+lumaG*col.G+lumaB*col.B) * MaxIntensity
			}
			data[y*width+x] = v
		}
	}
	return models.Slice{Data: data, Width: width, Height: height}
}

// extractNumber returns the digits of a filename as a number, 0 when there
// are none.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
