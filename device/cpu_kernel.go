package device

import (
	"fmt"
	"reflect"
	"time"

	"golang.org/x/sync/errgroup"
)

// A native kernel implementation. It validates the bound arguments once
// per dispatch and returns the function that executes one work group.
type CPUKernel func(args Args) (GroupFunc, error)

// Executes all work items of a single work group. Work items of a group
// run sequentially on one goroutine, so code between two barriers of the
// equivalent opencl kernel is written as a loop over the local ids.
type GroupFunc func(g *WorkGroup)

// A work group being processed by the CPU device.
type WorkGroup struct {
	// Group id per dimension.
	ID [2]int

	// Number of work items per dimension. Groups at the right/bottom edge
	// may be smaller when the local work size was picked by the device.
	Size [2]int

	// Global id of the first work item (global offset included).
	Origin [2]int

	// One scratch slice per LocalBuffer argument, in argument order. The
	// contents are undefined when a group starts.
	Local [][]float32
}

// Invoke fn for every work item of the group using global ids.
func (g *WorkGroup) ForEach(fn func(x, y int)) {
	for y := g.Origin[1]; y < g.Origin[1]+g.Size[1]; y++ {
		for x := g.Origin[0]; x < g.Origin[0]+g.Size[0]; x++ {
			fn(x, y)
		}
	}
}

// Kernel arguments as passed to SetArgs.
type Args []interface{}

// Scan copies the arguments into the supplied pointers. Supported targets
// are *[]float32 (Buffer), *int (int32/uint32), *float32 and *LocalBuffer.
func (a Args) Scan(dst ...interface{}) error {
	if len(dst) != len(a) {
		return fmt.Errorf("%w: expected %d arguments; got %d", ErrInvalidKernelArgs, len(dst), len(a))
	}

	for index, target := range dst {
		arg := a[index]
		ok := true

		switch t := target.(type) {
		case *[]float32:
			var buf *cpuBuffer
			if buf, ok = arg.(*cpuBuffer); ok {
				*t = buf.data
			}
		case *int:
			switch v := arg.(type) {
			case int32:
				*t = int(v)
			case uint32:
				*t = int(v)
			default:
				ok = false
			}
		case *float32:
			*t, ok = arg.(float32)
		case *LocalBuffer:
			*t, ok = arg.(LocalBuffer)
		default:
			return fmt.Errorf("%w: unsupported scan target %T for arg %d", ErrInvalidKernelArgs, target, index)
		}

		if !ok {
			return fmt.Errorf("%w: arg %d has type %s; cannot be scanned into %T", ErrInvalidKernelArgs, index, typeName(arg), target)
		}
	}

	return nil
}

func typeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

type cpuKernel struct {
	device *cpuDevice
	name   string
	impl   CPUKernel
	args   Args
}

func (k *cpuKernel) Name() string {
	return k.name
}

func (k *cpuKernel) Release() {
	k.args = nil
}

// Bind arguments to kernel.
func (k *cpuKernel) SetArgs(args ...interface{}) error {
	for argIndex, arg := range args {
		switch v := arg.(type) {
		case *cpuBuffer:
			if v.device != k.device {
				return fmt.Errorf("device (%s): could not set arg %d for kernel %s; buffer %s belongs to another device", k.device.info.Name, argIndex, k.name, v.name)
			}
		case int32, uint32, float32:
		case LocalBuffer:
			if v <= 0 || v%4 != 0 {
				return fmt.Errorf("device (%s): could not set arg %d for kernel %s; invalid local buffer size %d", k.device.info.Name, argIndex, k.name, v)
			}
		default:
			return fmt.Errorf(
				"device (%s): could not set arg %d for kernel %s; unsupported arg type: %s",
				k.device.info.Name,
				argIndex,
				k.name,
				typeName(arg),
			)
		}
	}

	k.args = append(Args(nil), args...)
	return nil
}

func (k *cpuKernel) Exec1D(offset, globalWorkSize, localWorkSize int) (time.Duration, error) {
	return k.exec([2]int{offset, 0}, [2]int{globalWorkSize, 1}, [2]int{localWorkSize, 1}, localWorkSize == 0)
}

func (k *cpuKernel) Exec2D(offsetX, offsetY, globalWorkSizeX, globalWorkSizeY, localWorkSizeX, localWorkSizeY int) (time.Duration, error) {
	auto := localWorkSizeX == 0 && localWorkSizeY == 0
	return k.exec([2]int{offsetX, offsetY}, [2]int{globalWorkSizeX, globalWorkSizeY}, [2]int{localWorkSizeX, localWorkSizeY}, auto)
}

func (k *cpuKernel) exec(offset, global, local [2]int, auto bool) (time.Duration, error) {
	tick := time.Now()

	if !auto {
		if err := checkWorkSize(global, local); err != nil {
			return 0, fmt.Errorf("device (%s): unable to execute kernel %s: %w", k.device.info.Name, k.name, err)
		}
	} else {
		if err := checkWorkSize(global, [2]int{}); err != nil {
			return 0, fmt.Errorf("device (%s): unable to execute kernel %s: %w", k.device.info.Name, k.name, err)
		}
		local = [2]int{min(global[0], defaultTile1D), 1}
		if global[1] > 1 {
			local = [2]int{min(global[0], defaultTile2D), min(global[1], defaultTile2D)}
		}
	}

	groupFn, err := k.impl(k.args)
	if err != nil {
		return 0, fmt.Errorf("device (%s): unable to execute kernel %s: %w", k.device.info.Name, k.name, err)
	}

	// Local scratch sizes in float32 elements
	var scratchSizes []int
	for _, arg := range k.args {
		if lb, ok := arg.(LocalBuffer); ok {
			scratchSizes = append(scratchSizes, int(lb)/4)
		}
	}

	groupsX := (global[0] + local[0] - 1) / local[0]
	groupsY := (global[1] + local[1] - 1) / local[1]
	numGroups := groupsX * groupsY
	workers := min(k.device.workers, numGroups)

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("device (%s): kernel %s did not complete successfully: %v", k.device.info.Name, k.name, r)
				}
			}()

			wg := &WorkGroup{Local: make([][]float32, len(scratchSizes))}
			for i, size := range scratchSizes {
				wg.Local[i] = make([]float32, size)
			}

			for groupIndex := w; groupIndex < numGroups; groupIndex += workers {
				gx, gy := groupIndex%groupsX, groupIndex/groupsX
				wg.ID = [2]int{gx, gy}
				wg.Origin = [2]int{offset[0] + gx*local[0], offset[1] + gy*local[1]}
				wg.Size = [2]int{
					min(local[0], global[0]-gx*local[0]),
					min(local[1], global[1]-gy*local[1]),
				}
				groupFn(wg)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return 0, err
	}

	return time.Since(tick), nil
}
