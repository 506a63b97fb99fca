package pointcloud

import (
	"github.com/achilleasa/stereoscan/config"
)

// Color offsets of the blue-cyan and cyan-yellow ramps.
const (
	cyanRampOffset   = 27
	yellowRampOffset = 23
)

// Valid reports whether d lies inside the reliable disparity band.
func Valid(d float32, bands config.Bands) bool {
	return d > 0 && d < bands.InvalidAbove
}

// Colorize maps a disparity to an RGB color:
//
//	d <= 0 or d >= InvalidAbove: black
//	0 < d < Cyan:                (0, 2(d+27), 255)
//	Cyan <= d < Yellow:          (2(d-23), 255, 255-2(d-23))
//	Yellow <= d < InvalidAbove:  (255, 255-2(d-Yellow), 0)
//
// Channels are clamped to [0, 255] before conversion.
func Colorize(d float32, bands config.Bands) [3]uint8 {
	switch {
	case !Valid(d, bands):
		return [3]uint8{}
	case d < bands.Cyan:
		return [3]uint8{0, channel(2 * (d + cyanRampOffset)), 255}
	case d < bands.Yellow:
		return [3]uint8{channel(2 * (d - yellowRampOffset)), 255, channel(255 - 2*(d-yellowRampOffset))}
	default:
		return [3]uint8{255, channel(255 - 2*(d-bands.Yellow)), 0}
	}
}

func channel(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
