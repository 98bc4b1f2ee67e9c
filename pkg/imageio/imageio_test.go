package imageio

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrinlm/internal/models"
)

// testVolume returns a volume where each voxel encodes its coordinates
func testVolume(t *testing.T, width, height, depth int) *models.Image {
	t.Helper()
	img := models.NewImage(width, height, depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.Set([]int{x, y, z}, float64(x+3*y+20*z))
			}
		}
	}
	return img
}

func TestExtractNumber(t *testing.T) {
	assert.Equal(t, 12, extractNumber("slice_12.jpg"))
	assert.Equal(t, 7, extractNumber("/tmp/IM-0007.png"))
	assert.Equal(t, 0, extractNumber("scout.tif"))
}

func TestExtractPlane(t *testing.T) {
	vol := testVolume(t, 5, 4, 3)
	window := Window{Min: 0, Max: 65535}

	z, err := ExtractPlane(vol, "z", 2, window)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 4), z.Bounds())
	assert.Equal(t, uint16(1+3*2+20*2), z.Gray16At(1, 2).Y)

	y, err := ExtractPlane(vol, "Y", 3, window)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), y.Bounds())
	assert.Equal(t, uint16(4+9+20), y.Gray16At(4, 1).Y)

	x, err := ExtractPlane(vol, "x", 0, window)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 4), x.Bounds())
	assert.Equal(t, uint16(3*3+20*2), x.Gray16At(2, 3).Y)

	_, err = ExtractPlane(vol, "z", 3, window)
	assert.Error(t, err)
	_, err = ExtractPlane(vol, "w", 0, window)
	assert.Error(t, err)
	_, err = ExtractPlane(models.NewImage(4), "z", 0, window)
	assert.Error(t, err)
}

func TestWindowClipsAndHandlesFlatImages(t *testing.T) {
	w := Window{Min: 10, Max: 20}
	assert.Equal(t, uint16(0), w.gray16(5).Y)
	assert.Equal(t, uint16(65535), w.gray16(25).Y)
	assert.Equal(t, uint16(32768), w.gray16(15).Y)

	flat := Window{Min: 3, Max: 3}
	assert.Equal(t, uint16(0), flat.gray16(3).Y)
}

func TestWriteAndReadSlices(t *testing.T) {
	dir := t.TempDir()
	vol := testVolume(t, 6, 5, 4)

	files, err := WriteSlices(vol, dir, "z", Window{Min: 0, Max: MaxIntensity})
	require.NoError(t, err)
	require.Len(t, files, 4)
	assert.Equal(t, filepath.Join(dir, "slice_z_000.tif"), files[0])

	back, err := ReadSlices(dir, 2.5)
	require.NoError(t, err)
	assert.Equal(t, vol.Size, back.Size)
	assert.Equal(t, 2.5, back.Spacing[2])
	for i := range vol.Data {
		assert.InDelta(t, vol.Data[i], back.Data[i], 0.01, "voxel %d", i)
	}

	single, err := Read(files[1], 1)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 5}, single.Size)
	assert.InDelta(t, 20.0, single.Data[0], 0.01)
}

func TestReadColourSliceUsesLuma(t *testing.T) {
	dir := t.TempDir()
	rgba := image.NewRGBA(image.Rect(0, 0, 2, 1))
	rgba.Set(0, 0, color.RGBA{255, 255, 255, 255})
	rgba.Set(1, 0, color.RGBA{0, 0, 0, 255})

	path := filepath.Join(dir, "colour_1.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, rgba))
	require.NoError(t, f.Close())

	s, err := ReadSlice(path)
	require.NoError(t, err)
	assert.Equal(t, "colour_1.png", s.Filename)
	assert.InDelta(t, MaxIntensity, s.Data[0], 0.5)
	assert.InDelta(t, 0.0, s.Data[1], 0.5)
}

func TestColourGreyDecodesLikeGrey(t *testing.T) {
	for _, level := range []uint8{0, 32, 128, 200, 255} {
		grey := image.NewGray(image.Rect(0, 0, 1, 1))
		grey.SetGray(0, 0, color.Gray{Y: level})
		rgba := image.NewRGBA(image.Rect(0, 0, 1, 1))
		rgba.SetRGBA(0, 0, color.RGBA{R: level, G: level, B: level, A: 255})

		fromGrey := FromImage(grey).Data[0]
		fromRGBA := FromImage(rgba).Data[0]
		assert.InDelta(t, float64(level), fromGrey, 1e-9)
		assert.InDelta(t, fromGrey, fromRGBA, 1e-9, "level %d", level)
	}

	// luma weights the green channel most
	rgba := image.NewRGBA(image.Rect(0, 0, 3, 1))
	rgba.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	rgba.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
	rgba.SetRGBA(2, 0, color.RGBA{B: 255, A: 255})
	s := FromImage(rgba)
	assert.InDelta(t, 0.299*MaxIntensity, s.Data[0], 1e-9)
	assert.InDelta(t, 0.587*MaxIntensity, s.Data[1], 1e-9)
	assert.InDelta(t, 0.114*MaxIntensity, s.Data[2], 1e-9)
}

func TestReadSlicesErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadSlices(dir, 1)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0644))
	_, err = ReadSlices(dir, 1)
	assert.Error(t, err)

	_, err = Read(filepath.Join(dir, "missing"), 1)
	assert.Error(t, err)
}
