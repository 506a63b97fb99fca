package quality

import (
	"github.com/achilleasa/stereoscan/device"
)

// Name of the squared error kernel in both program forms.
const KernelName = "pointSquaredError"

const kernelSource = `
__kernel void pointSquaredError(
	__global const float *reference,
	__global const float *computed,
	__global float *sqError,
	const int width,
	const int height
){
	const int x = get_global_id(0);
	const int y = get_global_id(1);
	if (x >= width || y >= height) return;

	const int idx = y * width + x;
	const float diff = reference[idx] - computed[idx];
	sqError[idx] = diff * diff;
}
`

// Program returns the squared error kernel for all device types.
func Program() *device.Program {
	return &device.Program{
		Sources: []string{kernelSource},
		CPU: map[string]device.CPUKernel{
			KernelName: pointSquaredError,
		},
	}
}

func pointSquaredError(args device.Args) (device.GroupFunc, error) {
	var (
		reference, computed, out []float32
		width, height            int
	)
	if err := args.Scan(&reference, &computed, &out, &width, &height); err != nil {
		return nil, err
	}

	return func(g *device.WorkGroup) {
		g.ForEach(func(x, y int) {
			if x >= width || y >= height {
				return
			}
			idx := y*width + x
			diff := reference[idx] - computed[idx]
			out[idx] = diff * diff
		})
	}, nil
}
