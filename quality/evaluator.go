// Package quality compares a computed disparity field against a reference
// field and reports the mean squared error and PSNR.
package quality

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/achilleasa/stereoscan/config"
	"github.com/achilleasa/stereoscan/device"
	"github.com/achilleasa/stereoscan/field"
	"github.com/achilleasa/stereoscan/reduce"
)

// Peak value of an 8-bit disparity map.
const peak = 255.0

var (
	ErrDimensionMismatch = errors.New("quality: computed and reference fields have different dimensions")
)

// Result of a comparison.
type Result struct {
	// Sum of squared errors as produced by the reducer.
	Sum float32

	// Number of compared pixels.
	Pixels int

	// Number of reduction rounds.
	Rounds int

	MSE  float64
	PSNR float64

	// Set when MSE is exactly zero; PSNR then follows the zero MSE policy.
	Exact bool

	// Time spent in the error map and reduction kernels.
	Elapsed time.Duration
}

// Implements Stringer.
func (r Result) String() string {
	if r.Exact {
		return fmt.Sprintf("MSE: 0 (exact match), PSNR: %v dB", r.PSNR)
	}
	return fmt.Sprintf("MSE: %.4f, PSNR: %.4f dB", r.MSE, r.PSNR)
}

// PSNR converts a mean squared error to a peak signal to noise ratio. A
// zero MSE yields +Inf or the configured cap and reports exact == true.
func PSNR(mse float64, cfg config.Quality) (psnr float64, exact bool) {
	if mse == 0 {
		if cfg.ZeroMSE == config.ZeroMSECap {
			return cfg.PSNRCap, true
		}
		return math.Inf(1), true
	}
	return 10 * math.Log10(peak*peak/mse), false
}

// Evaluator computes per pixel squared errors on the device and sums them
// with a tree reduction.
type Evaluator struct {
	dev     device.Device
	cfg     config.Quality
	kernel  device.Kernel
	reducer *reduce.Reducer
}

// Create an evaluator. The device must have been initialized with a
// program that includes Program() and reduce.Program().
func NewEvaluator(dev device.Device, cfg config.Quality) (*Evaluator, error) {
	kernel, err := dev.Kernel(KernelName)
	if err != nil {
		return nil, err
	}

	reducer, err := reduce.NewReducer(dev, cfg.ReductionGroupSize)
	if err != nil {
		kernel.Release()
		return nil, err
	}

	return &Evaluator{
		dev:     dev,
		cfg:     cfg,
		kernel:  kernel,
		reducer: reducer,
	}, nil
}

// Release kernel handles.
func (e *Evaluator) Close() {
	e.kernel.Release()
	e.reducer.Close()
}

// Evaluate compares the computed field against the reference field.
func (e *Evaluator) Evaluate(computed, reference *field.Field) (Result, error) {
	if computed == nil || reference == nil {
		return Result{}, field.ErrEmptyImage
	}
	if err := computed.CheckSameSize(reference); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}

	refBuf := e.dev.Buffer("reference")
	defer refBuf.Release()
	compBuf := e.dev.Buffer("computed")
	defer compBuf.Release()

	if err := refBuf.AllocateAndWrite(reference.Pix, device.MemReadOnly); err != nil {
		return Result{}, err
	}
	if err := compBuf.AllocateAndWrite(computed.Pix, device.MemReadOnly); err != nil {
		return Result{}, err
	}

	return e.Dispatch(compBuf, refBuf, computed.Width, computed.Height)
}

// Dispatch evaluates two device resident fields.
func (e *Evaluator) Dispatch(computed, reference device.Buffer, width, height int) (Result, error) {
	n := width * height

	pair, err := reduce.NewPair(e.dev, n, e.reducer.GroupSize())
	if err != nil {
		return Result{}, err
	}
	defer pair.Release()

	// Squared errors go straight into the buffer read by the first round.
	if err = e.kernel.SetArgs(reference, computed, pair.Even, int32(width), int32(height)); err != nil {
		return Result{}, err
	}
	mapTime, err := e.kernel.Exec2D(0, 0, width, height, 0, 0)
	if err != nil {
		return Result{}, err
	}

	sum, reduceTime, err := e.reducer.Sum(pair, n)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Sum:     sum,
		Pixels:  n,
		Rounds:  reduce.Rounds(n, e.reducer.GroupSize()),
		MSE:     float64(sum) / float64(n),
		Elapsed: mapTime + reduceTime,
	}
	res.PSNR, res.Exact = PSNR(res.MSE, e.cfg)
	return res, nil
}
