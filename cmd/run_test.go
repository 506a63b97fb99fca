package cmd

import (
	"flag"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"

	"github.com/achilleasa/stereoscan/config"
	"github.com/achilleasa/stereoscan/log"
)

func init() {
	log.Discard()
}

func newTestContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, name := range []string{"config", "left", "right", "label", "metric", "edge", "zero-mse", "device-type", "out-disparity", "out-ply"} {
		set.String(name, "", "")
	}
	for _, name := range []string{"width", "height", "radius", "max-disparity", "group-size"} {
		set.Int(name, 0, "")
	}
	set.Bool("resize", false, "")
	require.NoError(t, set.Parse(args))
	return cli.NewContext(nil, set, nil)
}

func writeTestPNG(t *testing.T, path string, width, height int, valueFn func(x, y int) uint8) {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := valueFn(x, y)
			img.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadConfigOverrides(t *testing.T) {
	ctx := newTestContext(t, "--radius", "6", "--metric", "ssd", "--width", "0", "--group-size", "64")
	cfg, err := loadConfig(ctx)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Matching.WindowRadius)
	assert.Equal(t, config.SSD, cfg.Matching.Metric)
	assert.Equal(t, 0, cfg.Width)
	assert.Equal(t, 64, cfg.Quality.ReductionGroupSize)

	// Flags that were not supplied keep their defaults.
	assert.Equal(t, config.Default().Height, cfg.Height)
	assert.Equal(t, config.EdgeClamp, cfg.Matching.EdgePolicy)

	_, err = loadConfig(newTestContext(t, "--edge", "wrap"))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestFindDevice(t *testing.T) {
	dev, err := findDevice(newTestContext(t, "--device-type", "cpu"))
	require.NoError(t, err)
	assert.Equal(t, "CPU", dev.Info().Type.String())

	_, err = findDevice(newTestContext(t, "--device-type", "fpga"))
	assert.Error(t, err)
}

func TestExecuteWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	texture := func(x, y int) uint8 { return uint8((x*37 + y*11) % 251) }
	writeTestPNG(t, filepath.Join(dir, "left.png"), 24, 8, texture)
	writeTestPNG(t, filepath.Join(dir, "right.png"), 24, 8, func(x, y int) uint8 { return texture(x+2, y) })
	writeTestPNG(t, filepath.Join(dir, "label.png"), 24, 8, func(int, int) uint8 { return 2 })

	dispPath := filepath.Join(dir, "disparity.png")
	plyPath := filepath.Join(dir, "cloud.ply")
	ctx := newTestContext(t,
		"--left", filepath.Join(dir, "left.png"),
		// Resolved against the directory of the left image.
		"--right", "right.png",
		"--label", "label.png",
		"--width", "0",
		"--height", "0",
		"--radius", "1",
		"--max-disparity", "4",
		"--group-size", "16",
		"--out-disparity", dispPath,
		"--out-ply", plyPath,
	)

	require.NoError(t, execute(ctx, nil))

	f, err := os.Open(dispPath)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 24, 8), img.Bounds())

	data, err := os.ReadFile(plyPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ply\n"))
	assert.Contains(t, string(data), "element vertex 192\n")
}

func TestExecuteMissingInputs(t *testing.T) {
	err := execute(newTestContext(t, "--left", "left.png"), nil)
	assert.Error(t, err)
}
