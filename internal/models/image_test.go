package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageFromDataValidatesSize(t *testing.T) {
	_, err := NewImageFromData(make([]float64, 5), 2, 3)
	assert.Error(t, err)

	_, err = NewImageFromData(nil)
	assert.Error(t, err)

	_, err = NewImageFromData(make([]float64, 0), 0, 3)
	assert.Error(t, err)

	img, err := NewImageFromData(make([]float64, 6), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, img.Strides())
	assert.Equal(t, []float64{1, 1}, img.Spacing)
}

func TestClampedAccessNeverLeavesDomain(t *testing.T) {
	img := NewImage(3, 3)
	for i := range img.Data {
		img.Data[i] = float64(i)
	}

	assert.Equal(t, 0.0, img.Clamped([]int{-5, -1}))
	assert.Equal(t, 8.0, img.Clamped([]int{10, 10}))
	assert.Equal(t, 2.0, img.Clamped([]int{4, 0}))
	assert.Equal(t, img.Offset([]int{0, 2}), img.ClampedOffset([]int{0, 2}, []int{-1, 1}))
}

func TestOffsetIsRowMajor(t *testing.T) {
	img := NewImage(4, 3, 2)
	assert.Equal(t, 1*12+2*4+3, img.Offset([]int{3, 2, 1}))
	assert.Equal(t, img.Len()-1, img.Offset([]int{3, 2, 1}))
}

func TestStackSlices(t *testing.T) {
	slices := []Slice{
		{Data: []float64{1, 2, 3, 4}, Width: 2, Height: 2, Filename: "a"},
		{Data: []float64{5, 6, 7, 8}, Width: 2, Height: 2, Filename: "b"},
	}
	img, err := StackSlices(slices, 1.5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, img.Size)
	assert.Equal(t, 1.5, img.Spacing[2])
	assert.Equal(t, 7.0, img.At([]int{0, 1, 1}))

	slices[1].Width = 4
	_, err = StackSlices(slices, 1)
	assert.Error(t, err)
}
