package pointcloud

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achilleasa/stereoscan/config"
	"github.com/achilleasa/stereoscan/device"
	"github.com/achilleasa/stereoscan/field"
	"github.com/achilleasa/stereoscan/types"
)

func newTestReconstructor(t *testing.T, camera config.Camera, bands config.Bands) *Reconstructor {
	dev := device.NewCPUDevice(2)
	require.NoError(t, dev.Init(Program()))
	t.Cleanup(dev.Close)

	r, err := NewReconstructor(dev, camera, bands)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestReconstructGeometry(t *testing.T) {
	r := newTestReconstructor(t, config.Camera{FocalLength: 10, Baseline: 2}, config.Default().Bands)

	disp := field.New(4, 6)
	disp.Set(3, 5, 4)

	points, _, err := r.Reconstruct(disp)
	require.NoError(t, err)
	require.Len(t, points, 24)

	// row 5, column 3, d = 4
	p := points[5*4+3]
	assert.Equal(t, types.XYZ(-2.5, 2.5, 5), p.Position)
	assert.Equal(t, Colorize(4, config.Default().Bands), p.Color)

	// Zero disparity collapses to the origin.
	assert.Equal(t, Point{}, points[0])
}

func TestReconstructInvalidBand(t *testing.T) {
	bands := config.Default().Bands
	r := newTestReconstructor(t, config.Default().Camera, bands)

	values := []float32{0, -1, -0.5, 200, 250, float32(math.NaN())}
	disp, err := field.FromSlice(len(values), 1, values)
	require.NoError(t, err)

	points, _, err := r.Reconstruct(disp)
	require.NoError(t, err)
	for index, p := range points {
		if p != (Point{}) {
			t.Fatalf("[spec %d] expected point for d=%f to be the zero point; got %v", index, values[index], p)
		}
	}
}

func TestReconstructPreserveHighDisparity(t *testing.T) {
	bands := config.Default().Bands
	bands.PreserveHighDisparity = true
	r := newTestReconstructor(t, config.Camera{FocalLength: 10, Baseline: 2}, bands)

	disp, err := field.FromSlice(2, 1, []float32{250, 0})
	require.NoError(t, err)

	points, _, err := r.Reconstruct(disp)
	require.NoError(t, err)

	assert.Equal(t, [3]uint8{}, points[0].Color)
	assert.Equal(t, float32(10*2)/250, points[0].Position[2])
	assert.Equal(t, Point{}, points[1], "non-positive disparity is always discarded")

	_, _, ok := Bounds(points)
	assert.False(t, ok)
}

func TestReconstructNonFiniteDisparity(t *testing.T) {
	for _, preserveHigh := range []bool{false, true} {
		bands := config.Default().Bands
		bands.PreserveHighDisparity = preserveHigh
		r := newTestReconstructor(t, config.Default().Camera, bands)

		// 1e-40 is a valid subnormal disparity whose depth overflows float32.
		values := []float32{
			float32(math.Inf(1)),
			float32(math.NaN()),
			1e-40,
			float32(math.Inf(-1)),
			4,
		}
		disp, err := field.FromSlice(len(values), 1, values)
		require.NoError(t, err)

		points, _, err := r.Reconstruct(disp)
		require.NoError(t, err)
		for index, p := range points[:4] {
			if p != (Point{}) {
				t.Fatalf("[spec %d] expected point for d=%g (preserve high: %t) to be the zero point; got %v", index, values[index], preserveHigh, p)
			}
		}
		require.True(t, points[4].Position.IsFinite())
		assert.Equal(t, Colorize(4, bands), points[4].Color)
	}
}

func TestPointsDiscardNonFiniteTuples(t *testing.T) {
	r := newTestReconstructor(t, config.Default().Camera, config.Default().Bands)

	inf := float32(math.Inf(1))
	raw := []float32{
		-1, 2, inf, 10,
		float32(math.NaN()), 0, 1, 10,
		-1, 2, 3, 10,
	}
	points := r.Points(raw)
	require.Len(t, points, 3)
	assert.Equal(t, Point{}, points[0])
	assert.Equal(t, Point{}, points[1])
	assert.Equal(t, types.XYZ(-1, 2, 3), points[2].Position)
	assert.Equal(t, Colorize(10, config.Default().Bands), points[2].Color)
}

func TestColorizeBands(t *testing.T) {
	bands := config.Default().Bands

	type spec struct {
		d   float32
		exp [3]uint8
	}
	specs := []spec{
		{0, [3]uint8{0, 0, 0}},
		{-3, [3]uint8{0, 0, 0}},
		{200, [3]uint8{0, 0, 0}},
		{1, [3]uint8{0, 56, 255}},
		{50, [3]uint8{0, 154, 255}},
		{99, [3]uint8{0, 252, 255}},
		{100, [3]uint8{154, 255, 101}},
		{140, [3]uint8{234, 255, 21}},
		{149, [3]uint8{252, 255, 3}},
		{150, [3]uint8{255, 255, 0}},
		{175, [3]uint8{255, 205, 0}},
		{199, [3]uint8{255, 157, 0}},
	}

	for index, s := range specs {
		if got := Colorize(s.d, bands); got != s.exp {
			t.Fatalf("[spec %d] expected color for d=%f to be %v; got %v", index, s.d, s.exp, got)
		}
	}
}

func TestColorizeClampsOverflow(t *testing.T) {
	bands := config.Default().Bands

	// 2*(d+27) exceeds 255 once the cyan edge moves past 100.
	bands.Cyan = 120
	assert.Equal(t, [3]uint8{0, 255, 255}, Colorize(110, bands))
	assert.Equal(t, [3]uint8{0, 254, 255}, Colorize(100, bands))

	// 255-2(d-23) goes negative towards a raised yellow edge.
	bands.Cyan = 100
	bands.Yellow = 180
	assert.Equal(t, [3]uint8{255, 255, 0}, Colorize(170, bands))
}

func TestColorizeRangeAndContinuity(t *testing.T) {
	bands := config.Default().Bands

	for d := float32(0.25); d < 200; d += 0.25 {
		c := Colorize(d, bands)
		assert.NotEqual(t, [3]uint8{}, c, "d=%f", d)
	}

	below, above := Colorize(149.999, bands), Colorize(150, bands)
	for ch := 0; ch < 3; ch++ {
		diff := int(below[ch]) - int(above[ch])
		if diff < -2 || diff > 2 {
			t.Fatalf("expected color to be continuous at the yellow edge; got %v and %v", below, above)
		}
	}

	assert.Equal(t, [3]uint8{}, Colorize(200, bands))
	assert.NotEqual(t, [3]uint8{}, Colorize(199.999, bands))
}

func TestBounds(t *testing.T) {
	points := []Point{
		{},
		{Position: types.XYZ(1, -2, 3), Color: [3]uint8{0, 1, 255}},
		{Position: types.XYZ(-1, 5, 2), Color: [3]uint8{255, 255, 0}},
	}

	minV, maxV, ok := Bounds(points)
	require.True(t, ok)
	assert.Equal(t, types.XYZ(-1, -2, 2), minV)
	assert.Equal(t, types.XYZ(1, 5, 3), maxV)
}
