//go:build opencl

package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/jgillich/go-opencl/cl"
)

// Enumerate opencl platforms and wrap their devices.
func openclPlatforms() ([]PlatformInfo, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		// No ICD loader or no vendor drivers; only the native platform is usable.
		return nil, nil
	}

	list := make([]PlatformInfo, 0, len(platforms))
	for _, p := range platforms {
		info := PlatformInfo{
			Profile:    p.Profile(),
			Version:    p.Version(),
			Name:       p.Name(),
			Vendor:     p.Vendor(),
			Extensions: p.Extensions(),
		}

		devices, err := p.GetDevices(cl.DeviceTypeAll)
		if err != nil && err != cl.ErrDeviceNotFound {
			return nil, fmt.Errorf("opencl: could not query devices for platform %s: %w", info.Name, err)
		}

		for _, d := range devices {
			info.Devices = append(info.Devices, newCLDevice(d, info.Name))
		}

		list = append(list, info)
	}

	return list, nil
}

// Wrapper around opencl-supported devices.
type clDevice struct {
	sync.Mutex

	info Info
	id   *cl.Device

	// Opencl handles; allocated when device is initialized.
	ctx      *cl.Context
	cmdQueue *cl.CommandQueue
	program  *cl.Program
}

func newCLDevice(d *cl.Device, platform string) *clDevice {
	var devType Type
	switch d.Type() {
	case cl.DeviceTypeCPU:
		devType = CpuDevice
	case cl.DeviceTypeGPU:
		devType = GpuDevice
	default:
		devType = OtherDevice
	}

	compUnits := uint32(d.MaxComputeUnits())
	clockSpeed := uint32(d.MaxClockFrequency())

	return &clDevice{
		id: d,
		info: Info{
			Name:             d.Name(),
			Platform:         platform,
			Type:             devType,
			ComputeUnits:     compUnits,
			ClockSpeed:       clockSpeed,
			MaxWorkGroupSize: d.MaxWorkGroupSize(),
			// compute units * 2ops/cycle * clock speed
			Speed: compUnits * 2 * clockSpeed / 1000,
		},
	}
}

func (d *clDevice) Info() Info {
	return d.info
}

// Initialize device and build the program sources.
func (d *clDevice) Init(prog *Program) error {
	d.Lock()
	defer d.Unlock()

	// Already initialized
	if d.ctx != nil {
		return nil
	}

	if prog == nil || len(prog.Sources) == 0 {
		return fmt.Errorf("opencl device (%s): empty program", d.info.Name)
	}

	var err error
	d.ctx, err = cl.CreateContext([]*cl.Device{d.id})
	if err != nil {
		d.close()
		return fmt.Errorf("opencl device (%s): could not create opencl context: %w", d.info.Name, err)
	}

	d.cmdQueue, err = d.ctx.CreateCommandQueue(d.id, 0)
	if err != nil {
		d.close()
		return fmt.Errorf("opencl device (%s): could not create command queue: %w", d.info.Name, err)
	}

	d.program, err = d.ctx.CreateProgramWithSource([]string{prog.Source()})
	if err != nil {
		d.close()
		return fmt.Errorf("opencl device (%s): could not create program: %w", d.info.Name, err)
	}

	if err = d.program.BuildProgram([]*cl.Device{d.id}, ""); err != nil {
		d.close()
		if buildErr, ok := err.(cl.BuildError); ok {
			return fmt.Errorf("opencl device (%s): could not build kernel:\n%s", d.info.Name, string(buildErr))
		}
		return fmt.Errorf("opencl device (%s): could not build kernel: %w", d.info.Name, err)
	}

	return nil
}

// Shut down the device.
func (d *clDevice) Close() {
	d.Lock()
	defer d.Unlock()
	d.close()
}

func (d *clDevice) close() {
	if d.program != nil {
		d.program.Release()
		d.program = nil
	}

	if d.cmdQueue != nil {
		d.cmdQueue.Release()
		d.cmdQueue = nil
	}

	if d.ctx != nil {
		d.ctx.Release()
		d.ctx = nil
	}
}

// Load kernel by name.
func (d *clDevice) Kernel(name string) (Kernel, error) {
	d.Lock()
	defer d.Unlock()

	if d.program == nil {
		return nil, fmt.Errorf("opencl device (%s): could not load kernel %s: %w", d.info.Name, name, ErrNotInitialized)
	}

	handle, err := d.program.CreateKernel(name)
	if err != nil {
		return nil, fmt.Errorf("opencl device (%s): could not load kernel %s: %w (%v)", d.info.Name, name, ErrUnknownKernel, err)
	}

	return &clKernel{
		device: d,
		handle: handle,
		name:   name,
	}, nil
}

// Create an empty buffer.
func (d *clDevice) Buffer(name string) Buffer {
	return &clBuffer{
		device: d,
		name:   name,
	}
}

type clBuffer struct {
	device *clDevice
	name   string
	size   int
	handle *cl.MemObject
}

func (b *clBuffer) Name() string {
	return b.name
}

func (b *clBuffer) Size() int {
	return b.size
}

func memFlags(flags MemFlags) cl.MemFlag {
	switch flags {
	case MemReadOnly:
		return cl.MemReadOnly
	case MemWriteOnly:
		return cl.MemWriteOnly
	}
	return cl.MemReadWrite
}

// Allocate a buffer with the given size and flags.
func (b *clBuffer) Allocate(size int, flags MemFlags) error {
	b.Release()

	if b.device.ctx == nil {
		return fmt.Errorf("opencl device (%s): could not allocate buffer %s: %w", b.device.info.Name, b.name, ErrNotInitialized)
	}

	handle, err := b.device.ctx.CreateEmptyBuffer(memFlags(flags), size)
	if err != nil {
		return fmt.Errorf("opencl device (%s): could not allocate buffer %s of size %d: %w", b.device.info.Name, b.name, size, err)
	}

	b.handle = handle
	b.size = size
	return nil
}

// Allocate a buffer large enough to hold data and copy it.
func (b *clBuffer) AllocateAndWrite(data []float32, flags MemFlags) error {
	if err := b.Allocate(len(data)*4, flags); err != nil {
		return err
	}
	return b.WriteFloat32(data, 0)
}

// Blocking copy of host data to the buffer.
func (b *clBuffer) WriteFloat32(data []float32, offset int) error {
	if len(data) == 0 {
		return nil
	}
	if offset < 0 || (offset+len(data))*4 > b.size {
		return fmt.Errorf("opencl device (%s): %w (%d) in %s for copying %d values at offset %d", b.device.info.Name, ErrInsufficientBufferSize, b.size, b.name, len(data), offset)
	}

	event, err := b.device.cmdQueue.EnqueueWriteBufferFloat32(b.handle, true, offset*4, data, nil)
	if err != nil {
		return fmt.Errorf("opencl device (%s): could not write data to buffer %s: %w", b.device.info.Name, b.name, err)
	}
	event.Release()
	return nil
}

// Blocking copy of buffer data to the host.
func (b *clBuffer) ReadFloat32(data []float32, offset int) error {
	if len(data) == 0 {
		return nil
	}
	if offset < 0 || (offset+len(data))*4 > b.size {
		return fmt.Errorf("opencl device (%s): %w (%d) in %s for reading %d values at offset %d", b.device.info.Name, ErrInsufficientBufferSize, b.size, b.name, len(data), offset)
	}

	event, err := b.device.cmdQueue.EnqueueReadBufferFloat32(b.handle, true, offset*4, data, nil)
	if err != nil {
		return fmt.Errorf("opencl device (%s): could not read data from buffer %s: %w", b.device.info.Name, b.name, err)
	}
	event.Release()
	return nil
}

// Release buffer.
func (b *clBuffer) Release() {
	if b.handle != nil {
		b.handle.Release()
		b.handle = nil
		b.size = 0
	}
}

type clKernel struct {
	device *clDevice
	handle *cl.Kernel
	name   string
}

func (k *clKernel) Name() string {
	return k.name
}

// Free any allocated resources used by this kernel.
func (k *clKernel) Release() {
	if k.handle != nil {
		k.handle.Release()
		k.handle = nil
	}
}

// Bind arguments to kernel.
func (k *clKernel) SetArgs(args ...interface{}) error {
	var err error
	for argIndex, arg := range args {
		switch v := arg.(type) {
		case *clBuffer:
			err = k.handle.SetArgBuffer(argIndex, v.handle)
		case int32:
			err = k.handle.SetArgInt32(argIndex, v)
		case uint32:
			err = k.handle.SetArgUint32(argIndex, v)
		case float32:
			err = k.handle.SetArgFloat32(argIndex, v)
		case LocalBuffer:
			err = k.handle.SetArgLocal(argIndex, int(v))
		default:
			return fmt.Errorf(
				"opencl device (%s): could not set arg %d for kernel %s; unsupported arg type: %s",
				k.device.info.Name,
				argIndex,
				k.name,
				typeName(arg),
			)
		}

		if err != nil {
			return fmt.Errorf(
				"opencl device (%s): could not set arg %d for kernel %s: %w",
				k.device.info.Name,
				argIndex,
				k.name,
				err,
			)
		}
	}

	return nil
}

// Execute 1D kernel and block until it completes.
func (k *clKernel) Exec1D(offset, globalWorkSize, localWorkSize int) (time.Duration, error) {
	if err := k.checkSize([2]int{globalWorkSize, 1}, [2]int{localWorkSize, 1}, localWorkSize == 0); err != nil {
		return 0, err
	}

	var local []int
	if localWorkSize > 0 {
		local = []int{localWorkSize}
	}
	return k.exec([]int{offset}, []int{globalWorkSize}, local)
}

// Execute 2D kernel and block until it completes.
func (k *clKernel) Exec2D(offsetX, offsetY, globalWorkSizeX, globalWorkSizeY, localWorkSizeX, localWorkSizeY int) (time.Duration, error) {
	auto := localWorkSizeX == 0 && localWorkSizeY == 0
	if err := k.checkSize([2]int{globalWorkSizeX, globalWorkSizeY}, [2]int{localWorkSizeX, localWorkSizeY}, auto); err != nil {
		return 0, err
	}

	var local []int
	if !auto {
		local = []int{localWorkSizeX, localWorkSizeY}
	}
	return k.exec([]int{offsetX, offsetY}, []int{globalWorkSizeX, globalWorkSizeY}, local)
}

func (k *clKernel) checkSize(global, local [2]int, auto bool) error {
	if auto {
		local = [2]int{}
	}
	if err := checkWorkSize(global, local); err != nil {
		return fmt.Errorf("opencl device (%s): unable to execute kernel %s: %w", k.device.info.Name, k.name, err)
	}
	return nil
}

func (k *clKernel) exec(offset, global, local []int) (time.Duration, error) {
	tick := time.Now()

	event, err := k.device.cmdQueue.EnqueueNDRangeKernel(k.handle, offset, global, local, nil)
	if err != nil {
		return 0, fmt.Errorf("opencl device (%s): unable to execute kernel %s: %w", k.device.info.Name, k.name, err)
	}
	defer event.Release()

	if err = k.device.cmdQueue.Finish(); err != nil {
		return 0, fmt.Errorf("opencl device (%s): error waiting for kernel %s to complete: %w", k.device.info.Name, k.name, err)
	}

	return time.Since(tick), nil
}
