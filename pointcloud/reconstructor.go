// Package pointcloud back-projects disparity fields into colored camera
// space points.
package pointcloud

import (
	"time"

	"github.com/achilleasa/stereoscan/config"
	"github.com/achilleasa/stereoscan/device"
	"github.com/achilleasa/stereoscan/field"
	"github.com/achilleasa/stereoscan/types"
)

// A reconstructed point.
type Point struct {
	Position types.Vec3
	Color    [3]uint8
}

// Reconstructor converts (pixel, disparity) pairs to 3D points:
//
//	Z = F*B/d, X = -B*(2j+d)/(2d), Y = B*i/d
//
// where i is the row and j the column of the pixel. Points outside the
// valid disparity band are placed at the origin and colored black.
type Reconstructor struct {
	dev    device.Device
	camera config.Camera
	bands  config.Bands
	kernel device.Kernel
}

// Create a reconstructor. The device must have been initialized with a
// program that includes Program().
func NewReconstructor(dev device.Device, camera config.Camera, bands config.Bands) (*Reconstructor, error) {
	kernel, err := dev.Kernel(KernelName)
	if err != nil {
		return nil, err
	}

	return &Reconstructor{
		dev:    dev,
		camera: camera,
		bands:  bands,
		kernel: kernel,
	}, nil
}

// Release the kernel handle.
func (r *Reconstructor) Close() {
	r.kernel.Release()
}

// Reconstruct returns one point per pixel in row-major order.
func (r *Reconstructor) Reconstruct(disp *field.Field) ([]Point, time.Duration, error) {
	if disp == nil || disp.Len() == 0 {
		return nil, 0, field.ErrEmptyImage
	}

	dispBuf := r.dev.Buffer("disparity")
	defer dispBuf.Release()
	pointBuf := r.dev.Buffer("points")
	defer pointBuf.Release()

	if err := dispBuf.AllocateAndWrite(disp.Pix, device.MemReadOnly); err != nil {
		return nil, 0, err
	}
	if err := pointBuf.Allocate(disp.Len()*4*4, device.MemWriteOnly); err != nil {
		return nil, 0, err
	}

	elapsed, err := r.Dispatch(dispBuf, pointBuf, disp.Width, disp.Height)
	if err != nil {
		return nil, 0, err
	}

	raw := make([]float32, disp.Len()*4)
	if err = pointBuf.ReadFloat32(raw, 0); err != nil {
		return nil, 0, err
	}

	return r.Points(raw), elapsed, nil
}

// Dispatch runs the back-projection kernel. The points buffer receives
// one (X, Y, Z, d) tuple per pixel.
func (r *Reconstructor) Dispatch(disp, points device.Buffer, width, height int) (time.Duration, error) {
	var preserveHigh int32
	if r.bands.PreserveHighDisparity {
		preserveHigh = 1
	}

	err := r.kernel.SetArgs(
		disp,
		points,
		r.camera.FocalLength,
		r.camera.Baseline,
		int32(width),
		int32(height),
		r.bands.InvalidAbove,
		preserveHigh,
	)
	if err != nil {
		return 0, err
	}

	return r.kernel.Exec2D(0, 0, width, height, 0, 0)
}

// Points converts the raw kernel output to colored points. Tuples with a
// non-finite component become the zero point.
func (r *Reconstructor) Points(raw []float32) []Point {
	points := make([]Point, len(raw)/4)
	for idx := range points {
		v := types.Vec4{raw[idx*4], raw[idx*4+1], raw[idx*4+2], raw[idx*4+3]}
		if !v.Vec3().IsFinite() || !isFinite(v[3]) {
			continue
		}
		points[idx] = Point{
			Position: v.Vec3(),
			Color:    Colorize(v[3], r.bands),
		}
	}
	return points
}

// Bounds returns the axis aligned box enclosing all points with a non
// zero color. ok is false when no such point exists.
func Bounds(points []Point) (minV, maxV types.Vec3, ok bool) {
	for _, p := range points {
		if p.Color == [3]uint8{} || !p.Position.IsFinite() {
			continue
		}
		if !ok {
			minV, maxV, ok = p.Position, p.Position, true
			continue
		}
		minV = types.MinVec3(minV, p.Position)
		maxV = types.MaxVec3(maxV, p.Position)
	}
	return minV, maxV, ok
}
