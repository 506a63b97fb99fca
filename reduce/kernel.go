package reduce

import (
	"github.com/achilleasa/stereoscan/device"
)

// Name of the partial sum kernel in both program forms.
const KernelName = "reduceSum"

// Each work group loads one chunk into local memory (zero padded past
// size) and folds it in halves until element 0 holds the chunk sum. The
// fold uses ceil(active/2) so group sizes need not be powers of two.
const kernelSource = `
__kernel void reduceSum(
	__global const float *in,
	__global float *out,
	__local float *scratch,
	const uint size
){
	const uint gid = get_global_id(0);
	const uint lid = get_local_id(0);

	scratch[lid] = gid < size ? in[gid] : 0.0f;
	barrier(CLK_LOCAL_MEM_FENCE);

	uint active = get_local_size(0);
	while (active > 1) {
		const uint upper = (active + 1) / 2;
		if (lid < active - upper) {
			scratch[lid] += scratch[lid + upper];
		}
		barrier(CLK_LOCAL_MEM_FENCE);
		active = upper;
	}

	if (lid == 0) {
		out[get_group_id(0)] = scratch[0];
	}
}
`

// Program returns the reduction kernel for all device types.
func Program() *device.Program {
	return &device.Program{
		Sources: []string{kernelSource},
		CPU: map[string]device.CPUKernel{
			KernelName: reduceSum,
		},
	}
}

// Native implementation of the reduceSum kernel. Each loop below
// corresponds to the code between two barriers of the opencl version.
func reduceSum(args device.Args) (device.GroupFunc, error) {
	var (
		in, out []float32
		scratch device.LocalBuffer
		size    int
	)
	if err := args.Scan(&in, &out, &scratch, &size); err != nil {
		return nil, err
	}

	return func(g *device.WorkGroup) {
		n := g.Size[0]
		local := g.Local[0][:n]

		for lid := range local {
			gid := g.Origin[0] + lid
			if gid < size {
				local[lid] = in[gid]
			} else {
				local[lid] = 0
			}
		}

		for active := n; active > 1; {
			upper := (active + 1) / 2
			for lid := 0; lid < active-upper; lid++ {
				local[lid] += local[lid+upper]
			}
			active = upper
		}

		out[g.ID[0]] = local[0]
	}, nil
}
