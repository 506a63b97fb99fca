package field

import (
	"image"
	"image/color"

	"github.com/achilleasa/stereoscan/config"
)

// Perceptual luminance weights (0.299, 0.587, 0.114) in thousandths.
const (
	weightR    = 299
	weightG    = 587
	weightB    = 114
	weightUnit = 1000
)

// FromImage converts a 4-channel image into a grayscale field. The weighted
// sum is evaluated exactly and converted to an 8-bit value either by
// truncation (config.GrayscaleTruncate) or by rounding half up
// (config.GrayscaleRound). The alpha channel is ignored.
func FromImage(img image.Image, mode config.GrayscaleMode) (*Field, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	bounds := img.Bounds()
	out := New(bounds.Dx(), bounds.Dy())

	// Fast path for the layout produced by the png decoder
	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < out.Height; y++ {
			row := nrgba.Pix[nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			for x := 0; x < out.Width; x++ {
				px := row[x*4 : x*4+3]
				out.Pix[y*out.Width+x] = Luminance(px[0], px[1], px[2], mode)
			}
		}
		return out, nil
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			out.Pix[y*out.Width+x] = Luminance(c.R, c.G, c.B, mode)
		}
	}
	return out, nil
}

// Luminance returns the 8-bit luminance of a single pixel as a float.
// Integer weights keep the sum exact, so a weighted sum that is an integer
// is never truncated to the level below it.
func Luminance(r, g, b uint8, mode config.GrayscaleMode) float32 {
	sum := weightR*int(r) + weightG*int(g) + weightB*int(b)
	if mode == config.GrayscaleRound {
		sum += weightUnit / 2
	}
	return float32(sum / weightUnit)
}
