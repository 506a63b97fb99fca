package asset

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/achilleasa/stereoscan/field"
)

var (
	ErrUnsupportedImage = errors.New("asset: unsupported or corrupt image")
)

// Decode an image from a resource. The format is detected from the stream
// header; png, jpeg, gif, bmp, tiff and webp are supported.
func DecodeImage(res *Resource) (image.Image, error) {
	img, format, err := image.Decode(res)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedImage, res.Path(), err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %s: empty %s image", ErrUnsupportedImage, res.Path(), format)
	}
	return img, nil
}

// Open and decode the image at location.
func LoadImage(location string, relTo *Resource) (image.Image, error) {
	res, err := NewResource(location, relTo)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return DecodeImage(res)
}

// Fit rescales img to width x height using Catmull-Rom filtering. Images
// that already have the requested size are returned unchanged.
func Fit(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if width <= 0 || height <= 0 || (bounds.Dx() == width && bounds.Dy() == height) {
		return img
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst
}

// Encode a disparity field as an 8-bit grayscale png. Values are clamped
// to [0, 255]; sentinel values therefore map to black.
func EncodeDisparityMap(w io.Writer, f *field.Field) error {
	if err := png.Encode(w, f.Gray()); err != nil {
		return fmt.Errorf("asset: could not encode disparity map: %w", err)
	}
	return nil
}

// Write a disparity field to a png file.
func SaveDisparityMap(path string, f *field.Field) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("asset: could not create %s: %w", path, err)
	}

	if err = EncodeDisparityMap(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
