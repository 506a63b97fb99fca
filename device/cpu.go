package device

import (
	"fmt"
	"sync"
)

// Default work group tiles used when the caller lets the device pick the
// local work size.
const (
	defaultTile1D = 256
	defaultTile2D = 16
)

// A device that executes native kernel implementations on a pool of
// goroutines. Each goroutine processes whole work groups so kernels can
// rely on work-group local scratch memory.
type cpuDevice struct {
	sync.Mutex

	info    Info
	workers int

	// Native kernels; populated by Init.
	kernels map[string]CPUKernel
}

// Create a CPU device backed by the given number of worker goroutines.
func NewCPUDevice(workers int) Device {
	if workers < 1 {
		workers = 1
	}
	return &cpuDevice{
		info: Info{
			Name:             fmt.Sprintf("Go CPU (%d workers)", workers),
			Platform:         "Go native",
			Type:             CpuDevice,
			ComputeUnits:     uint32(workers),
			MaxWorkGroupSize: 1 << 16,
			Speed:            uint32(workers),
		},
		workers: workers,
	}
}

func (d *cpuDevice) Info() Info {
	return d.info
}

// Initialize device. Kernels without a native implementation are reported
// when loaded.
func (d *cpuDevice) Init(prog *Program) error {
	d.Lock()
	defer d.Unlock()

	if prog == nil {
		return fmt.Errorf("device (%s): nil program", d.info.Name)
	}

	d.kernels = make(map[string]CPUKernel, len(prog.CPU))
	for name, k := range prog.CPU {
		d.kernels[name] = k
	}
	return nil
}

func (d *cpuDevice) Close() {
	d.Lock()
	defer d.Unlock()
	d.kernels = nil
}

func (d *cpuDevice) Buffer(name string) Buffer {
	return &cpuBuffer{
		device: d,
		name:   name,
	}
}

func (d *cpuDevice) Kernel(name string) (Kernel, error) {
	d.Lock()
	defer d.Unlock()

	if d.kernels == nil {
		return nil, fmt.Errorf("device (%s): could not load kernel %s: %w", d.info.Name, name, ErrNotInitialized)
	}

	impl, ok := d.kernels[name]
	if !ok {
		return nil, fmt.Errorf("device (%s): could not load kernel %s: %w", d.info.Name, name, ErrUnknownKernel)
	}

	return &cpuKernel{
		device: d,
		name:   name,
		impl:   impl,
	}, nil
}

type cpuBuffer struct {
	device *cpuDevice
	name   string
	data   []float32
}

func (b *cpuBuffer) Name() string {
	return b.name
}

func (b *cpuBuffer) Size() int {
	return len(b.data) * 4
}

func (b *cpuBuffer) Allocate(size int, flags MemFlags) error {
	b.Release()

	if size < 0 || size%4 != 0 {
		return fmt.Errorf("device (%s): could not allocate buffer %s of size %d; size must be a non-negative multiple of 4", b.device.info.Name, b.name, size)
	}

	b.data = make([]float32, size/4)
	return nil
}

func (b *cpuBuffer) AllocateAndWrite(data []float32, flags MemFlags) error {
	if err := b.Allocate(len(data)*4, flags); err != nil {
		return err
	}
	copy(b.data, data)
	return nil
}

func (b *cpuBuffer) WriteFloat32(data []float32, offset int) error {
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("device (%s): %w (%d) in %s for copying %d values at offset %d", b.device.info.Name, ErrInsufficientBufferSize, len(b.data), b.name, len(data), offset)
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *cpuBuffer) ReadFloat32(data []float32, offset int) error {
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("device (%s): %w (%d) in %s for reading %d values at offset %d", b.device.info.Name, ErrInsufficientBufferSize, len(b.data), b.name, len(data), offset)
	}
	copy(data, b.data[offset:offset+len(data)])
	return nil
}

func (b *cpuBuffer) Release() {
	b.data = nil
}
