// Package disparity implements window based disparity search between a
// rectified stereo pair.
package disparity

import (
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/stereoscan/config"
	"github.com/achilleasa/stereoscan/device"
	"github.com/achilleasa/stereoscan/field"
)

// Disparity assigned to pixels without a usable match.
const Invalid float32 = -1

var (
	ErrDimensionMismatch = errors.New("disparity: left and right fields have different dimensions")
)

// Estimator computes a disparity field for each pixel of the left image by
// scanning candidate shifts in the right image and keeping the shift with
// the lowest window dissimilarity. Ties resolve to the smallest shift.
type Estimator struct {
	dev    device.Device
	cfg    config.Matching
	kernel device.Kernel
}

// Create an estimator. The device must have been initialized with a
// program that includes Program().
func NewEstimator(dev device.Device, cfg config.Matching) (*Estimator, error) {
	kernel, err := dev.Kernel(KernelName)
	if err != nil {
		return nil, err
	}

	return &Estimator{
		dev:    dev,
		cfg:    cfg,
		kernel: kernel,
	}, nil
}

// Release the kernel handle.
func (e *Estimator) Close() {
	e.kernel.Release()
}

// Estimate uploads both fields, runs the search and reads back the result.
func (e *Estimator) Estimate(left, right *field.Field) (*field.Field, time.Duration, error) {
	if left == nil || right == nil {
		return nil, 0, field.ErrEmptyImage
	}
	if err := left.CheckSameSize(right); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}

	leftBuf := e.dev.Buffer("left")
	defer leftBuf.Release()
	rightBuf := e.dev.Buffer("right")
	defer rightBuf.Release()
	outBuf := e.dev.Buffer("disparity")
	defer outBuf.Release()

	if err := leftBuf.AllocateAndWrite(left.Pix, device.MemReadOnly); err != nil {
		return nil, 0, err
	}
	if err := rightBuf.AllocateAndWrite(right.Pix, device.MemReadOnly); err != nil {
		return nil, 0, err
	}
	if err := outBuf.Allocate(left.Len()*4, device.MemWriteOnly); err != nil {
		return nil, 0, err
	}

	elapsed, err := e.Dispatch(leftBuf, rightBuf, outBuf, left.Width, left.Height)
	if err != nil {
		return nil, 0, err
	}

	out := field.New(left.Width, left.Height)
	if err = outBuf.ReadFloat32(out.Pix, 0); err != nil {
		return nil, 0, err
	}

	return out, elapsed, nil
}

// Dispatch runs the search on device buffers that already hold the
// grayscale fields. One work item is scheduled per pixel.
func (e *Estimator) Dispatch(left, right, out device.Buffer, width, height int) (time.Duration, error) {
	metric := metricSAD
	if e.cfg.Metric == config.SSD {
		metric = metricSSD
	}

	edge := edgeClamp
	if e.cfg.EdgePolicy == config.EdgeSentinel {
		edge = edgeSentinel
	}

	err := e.kernel.SetArgs(
		left,
		right,
		out,
		int32(width),
		int32(height),
		int32(e.cfg.WindowRadius),
		int32(e.cfg.MinDisparity),
		int32(e.cfg.MaxDisparity),
		metric,
		edge,
	)
	if err != nil {
		return 0, err
	}

	return e.kernel.Exec2D(0, 0, width, height, 0, 0)
}
