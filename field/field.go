// Package field implements a single channel float32 grid used for both
// grayscale intensities and disparity values. Pixels are stored in
// row-major order which is also the order in which the compute kernels
// index them (idx = y*Width + x).
package field

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	ErrEmptyImage        = errors.New("field: empty image")
	ErrDimensionMismatch = errors.New("field: dimension mismatch")
)

// Field holds float32 per-pixel values.
type Field struct {
	Width  int
	Height int
	Pix    []float32
}

// Create a zeroed field with the given dimensions.
func New(width, height int) *Field {
	return &Field{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// Wrap an existing pixel slice. The slice length must be width*height.
func FromSlice(width, height int, pix []float32) (*Field, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrEmptyImage, width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("%w: %d values supplied for a %dx%d field", ErrDimensionMismatch, len(pix), width, height)
	}
	return &Field{Width: width, Height: height, Pix: pix}, nil
}

// Number of pixels.
func (f *Field) Len() int {
	return f.Width * f.Height
}

// PixOffset computes the offset for the value at position x, y.
func (f *Field) PixOffset(x, y int) int {
	return y*f.Width + x
}

// At gets the value at position x, y.
func (f *Field) At(x, y int) float32 {
	return f.Pix[f.PixOffset(x, y)]
}

// Set the value at position x, y.
func (f *Field) Set(x, y int, val float32) {
	f.Pix[f.PixOffset(x, y)] = val
}

// Bounds returns the rectangle covered by the field.
func (f *Field) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Returns an error if other does not have the same dimensions.
func (f *Field) CheckSameSize(other *Field) error {
	if f.Width != other.Width || f.Height != other.Height {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, f.Width, f.Height, other.Width, other.Height)
	}
	return nil
}

// Gray converts the field into an 8-bit image. Values are rounded down
// and clamped to [0, 255]; NaN maps to 0.
func (f *Field) Gray() *image.Gray {
	img := image.NewGray(f.Bounds())
	for i, v := range f.Pix {
		img.Pix[i] = clampByte(v)
	}
	return img
}

// Create a copy of the field.
func (f *Field) Clone() *Field {
	out := New(f.Width, f.Height)
	copy(out.Pix, f.Pix)
	return out
}

func clampByte(v float32) uint8 {
	switch {
	case math.IsNaN(float64(v)) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
