package device

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Type uint8

// Supported device types.
const (
	CpuDevice   Type = 1 << iota
	GpuDevice        = 1 << iota
	OtherDevice      = 1 << iota
	AllDevices       = 0xFF
)

var (
	indentRegex = regexp.MustCompile("(?m)^")
)

var (
	ErrNotInitialized         = errors.New("device: device not initialized")
	ErrUnknownKernel          = errors.New("device: unknown kernel")
	ErrInvalidWorkGroupSize   = errors.New("device: invalid work group size")
	ErrInvalidGlobalWorkSize  = errors.New("device: invalid global work size")
	ErrInvalidKernelArgs      = errors.New("device: invalid kernel arguments")
	ErrInsufficientBufferSize = errors.New("device: insufficient buffer space")
	ErrNoDevices              = errors.New("device: no suitable device found")
)

func (dt Type) String() string {
	switch dt {
	case CpuDevice:
		return "CPU"
	case GpuDevice:
		return "GPU"
	case OtherDevice:
		return "Other"
	}
	panic("device: unsupported device type")
}

// Memory access flags for device buffers.
type MemFlags uint8

const (
	MemReadWrite MemFlags = iota
	MemReadOnly
	MemWriteOnly
)

// A kernel argument that requests a work-group local scratch buffer of the
// given size in bytes.
type LocalBuffer int

// Static device information.
type Info struct {
	Name     string
	Platform string
	Type     Type

	ComputeUnits     uint32
	ClockSpeed       uint32
	MaxWorkGroupSize int

	// Speed estimate in GFlops.
	Speed uint32
}

// Implements Stringer.
func (i Info) String() string {
	return fmt.Sprintf(
		"Name: %s\nType: %s\nSpecs: %d computation units, %d Mhz clock, %d GFlops approximate speed",
		i.Name,
		i.Type.String(),
		i.ComputeUnits,
		i.ClockSpeed,
		i.Speed,
	)
}

// A compute device that can run the kernels of a Program.
type Device interface {
	// Get device information.
	Info() Info

	// Initialize the device and build the program kernels.
	Init(prog *Program) error

	// Shut down the device.
	Close()

	// Create an empty buffer.
	Buffer(name string) Buffer

	// Load kernel by name.
	Kernel(name string) (Kernel, error)
}

// A device buffer holding float32 values.
type Buffer interface {
	// A name for identifying the buffer.
	Name() string

	// Allocated size in bytes.
	Size() int

	// Allocate a buffer with the given size (in bytes) and flags. Any
	// previously allocated storage is released.
	Allocate(size int, flags MemFlags) error

	// Allocate a buffer large enough to hold data and copy it.
	AllocateAndWrite(data []float32, flags MemFlags) error

	// Copy host data to the buffer starting at the given element offset.
	WriteFloat32(data []float32, offset int) error

	// Copy len(data) elements starting at the given element offset to
	// the host slice.
	ReadFloat32(data []float32, offset int) error

	// Release buffer.
	Release()
}

// A device kernel. Exec calls block until all work items complete.
type Kernel interface {
	Name() string

	// Bind arguments to the kernel. Supported argument types are Buffer,
	// int32, uint32, float32 and LocalBuffer.
	SetArgs(args ...interface{}) error

	// Execute 1D kernel. If localWorkSize is equal to 0 then the
	// implementation picks the work group split.
	Exec1D(offset, globalWorkSize, localWorkSize int) (time.Duration, error)

	// Execute 2D kernel. If both localWorkSizeX and localWorkSizeY are 0
	// then the implementation picks the work group split.
	Exec2D(offsetX, offsetY, globalWorkSizeX, globalWorkSizeY, localWorkSizeX, localWorkSizeY int) (time.Duration, error)

	// Free any allocated resources used by this kernel.
	Release()
}

// A set of kernels in two forms: OpenCL C source for opencl devices and
// native implementations for the CPU device.
type Program struct {
	Sources []string
	CPU     map[string]CPUKernel
}

// Merge combines several programs into one.
func Merge(programs ...*Program) *Program {
	out := &Program{
		CPU: make(map[string]CPUKernel),
	}
	for _, p := range programs {
		out.Sources = append(out.Sources, p.Sources...)
		for name, k := range p.CPU {
			out.CPU[name] = k
		}
	}
	return out
}

// Concatenated OpenCL source.
func (p *Program) Source() string {
	return strings.Join(p.Sources, "\n")
}

// Validate a work split the way opencl 1.2 does.
func checkWorkSize(global, local [2]int) error {
	for dim := 0; dim < 2; dim++ {
		if global[dim] <= 0 {
			return fmt.Errorf("%w: %v", ErrInvalidGlobalWorkSize, global)
		}
		if local[dim] < 0 || (local[dim] > 0 && global[dim]%local[dim] != 0) {
			return fmt.Errorf("%w: global %v, local %v", ErrInvalidWorkGroupSize, global, local)
		}
	}
	return nil
}
