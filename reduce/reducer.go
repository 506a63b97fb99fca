// Package reduce implements a workgroup tree reduction that sums an
// arbitrarily large float32 array on a compute device.
package reduce

import (
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/stereoscan/device"
	"github.com/achilleasa/stereoscan/log"
)

var (
	ErrInvalidGroupSize = errors.New("reduce: group size must be at least 2")
)

// Pair holds the two scratch buffers used across reduction rounds. Even
// holds the input before the first round. Round r reads Even when r is even
// and Odd when r is odd and writes the other buffer.
type Pair struct {
	Even device.Buffer
	Odd  device.Buffer
}

// Allocate a pair able to reduce n values with the given group size.
func NewPair(dev device.Device, n, groupSize int) (*Pair, error) {
	if groupSize < 2 {
		return nil, ErrInvalidGroupSize
	}

	pair := &Pair{
		Even: dev.Buffer("reduceEven"),
		Odd:  dev.Buffer("reduceOdd"),
	}

	if err := pair.Even.Allocate(max(n, 1)*4, device.MemReadWrite); err != nil {
		return nil, err
	}
	if err := pair.Odd.Allocate(max(groups(n, groupSize), 1)*4, device.MemReadWrite); err != nil {
		pair.Release()
		return nil, err
	}
	return pair, nil
}

// The buffer read by the given round.
func (p *Pair) source(round int) device.Buffer {
	if round%2 == 0 {
		return p.Even
	}
	return p.Odd
}

// The buffer written by the given round.
func (p *Pair) dest(round int) device.Buffer {
	if round%2 == 0 {
		return p.Odd
	}
	return p.Even
}

// Release both buffers.
func (p *Pair) Release() {
	p.Even.Release()
	p.Odd.Release()
}

// Number of work groups needed to cover n items.
func groups(n, groupSize int) int {
	return (n + groupSize - 1) / groupSize
}

// Rounds returns the number of reduction rounds needed to sum n values
// with the given group size, i.e. ceil(log_g(n)). It returns 0 for n <= 1.
func Rounds(n, groupSize int) int {
	if groupSize < 2 {
		return 0
	}

	count := 0
	for ; n > 1; count++ {
		n = groups(n, groupSize)
	}
	return count
}

// Reducer sums device buffers using repeated partial reductions.
type Reducer struct {
	logger    log.Logger
	dev       device.Device
	groupSize int
	kernel    device.Kernel
}

// Create a reducer. The device must have been initialized with a program
// that includes Program().
func NewReducer(dev device.Device, groupSize int) (*Reducer, error) {
	if groupSize < 2 {
		return nil, ErrInvalidGroupSize
	}

	kernel, err := dev.Kernel(KernelName)
	if err != nil {
		return nil, err
	}

	return &Reducer{
		logger:    log.New(fmt.Sprintf("reduce (%s)", dev.Info().Name)),
		dev:       dev,
		groupSize: groupSize,
		kernel:    kernel,
	}, nil
}

// The configured group size.
func (r *Reducer) GroupSize() int {
	return r.groupSize
}

// Release the kernel handle.
func (r *Reducer) Close() {
	r.kernel.Release()
}

// Sum reduces the first n values stored in pair.Even. Both pair buffers
// are overwritten. It returns 0 without dispatching for n == 0.
func (r *Reducer) Sum(pair *Pair, n int) (float32, time.Duration, error) {
	if n <= 0 {
		return 0, 0, nil
	}

	if pair.Even.Size() < n*4 || (n > 1 && pair.Odd.Size() < groups(n, r.groupSize)*4) {
		return 0, 0, fmt.Errorf("reduce: %w: pair cannot hold %d values with group size %d", device.ErrInsufficientBufferSize, n, r.groupSize)
	}

	var elapsed time.Duration
	round := 0
	for size := n; size > 1; round++ {
		numGroups := groups(size, r.groupSize)

		err := r.kernel.SetArgs(
			pair.source(round),
			pair.dest(round),
			device.LocalBuffer(r.groupSize*4),
			uint32(size),
		)
		if err != nil {
			return 0, 0, err
		}

		dt, err := r.kernel.Exec1D(0, numGroups*r.groupSize, r.groupSize)
		if err != nil {
			return 0, 0, fmt.Errorf("reduce: round %d (%d values) failed: %w", round, size, err)
		}
		elapsed += dt

		r.logger.Debugf("round %d: reduced %d values to %d in %d ms", round, size, numGroups, dt.Nanoseconds()/1e6)
		size = numGroups
	}

	// The last round wrote into the buffer that would be read next.
	result := make([]float32, 1)
	if err := pair.source(round).ReadFloat32(result, 0); err != nil {
		return 0, 0, err
	}

	return result[0], elapsed, nil
}

// SumSlice uploads data to a freshly allocated pair and reduces it.
func (r *Reducer) SumSlice(data []float32) (float32, time.Duration, error) {
	if len(data) == 0 {
		return 0, 0, nil
	}

	pair, err := NewPair(r.dev, len(data), r.groupSize)
	if err != nil {
		return 0, 0, err
	}
	defer pair.Release()

	if err = pair.Even.WriteFloat32(data, 0); err != nil {
		return 0, 0, err
	}

	return r.Sum(pair, len(data))
}
