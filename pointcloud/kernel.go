package pointcloud

import (
	"math"

	"github.com/achilleasa/stereoscan/device"
)

// Name of the back-projection kernel in both program forms.
const KernelName = "pointCloud"

// Each work item writes one float4 (X, Y, Z, d). Invalid and non-finite
// disparities are rejected before any division takes place. Points whose
// coordinates overflow are written as (0, 0, 0, 0).
const kernelSource = `
__kernel void pointCloud(
	__global const float *disparity,
	__global float4 *points,
	const float focalLength,
	const float baseline,
	const int width,
	const int height,
	const float invalidAbove,
	const int preserveHigh
){
	const int j = get_global_id(0);
	const int i = get_global_id(1);
	if (j >= width || i >= height) return;

	const int idx = i * width + j;
	const float d = disparity[idx];
	if (!(d > 0.0f) || !isfinite(d) || (d >= invalidAbove && !preserveHigh)) {
		points[idx] = (float4)(0.0f, 0.0f, 0.0f, d);
		return;
	}

	const float z = focalLength * baseline / d;
	const float x = -baseline * (2.0f * j + d) / (2.0f * d);
	const float y = baseline * i / d;
	if (!isfinite(x) || !isfinite(y) || !isfinite(z)) {
		points[idx] = (float4)(0.0f, 0.0f, 0.0f, 0.0f);
		return;
	}
	points[idx] = (float4)(x, y, z, d);
}
`

// Program returns the back-projection kernel for all device types.
func Program() *device.Program {
	return &device.Program{
		Sources: []string{kernelSource},
		CPU: map[string]device.CPUKernel{
			KernelName: pointCloud,
		},
	}
}

func pointCloud(args device.Args) (device.GroupFunc, error) {
	var (
		disparity, points     []float32
		focalLength, baseline float32
		width, height         int
		invalidAbove          float32
		preserveHigh          int
	)
	if err := args.Scan(&disparity, &points, &focalLength, &baseline, &width, &height, &invalidAbove, &preserveHigh); err != nil {
		return nil, err
	}

	return func(g *device.WorkGroup) {
		g.ForEach(func(j, i int) {
			if j >= width || i >= height {
				return
			}

			idx := i*width + j
			out := points[idx*4 : idx*4+4]
			d := disparity[idx]
			if !(d > 0) || !isFinite(d) || (d >= invalidAbove && preserveHigh == 0) {
				out[0], out[1], out[2], out[3] = 0, 0, 0, d
				return
			}

			x := -baseline * (2*float32(j) + d) / (2 * d)
			y := baseline * float32(i) / d
			z := focalLength * baseline / d
			if !isFinite(x) || !isFinite(y) || !isFinite(z) {
				out[0], out[1], out[2], out[3] = 0, 0, 0, 0
				return
			}
			out[0], out[1], out[2], out[3] = x, y, z, d
		})
	}, nil
}

func isFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
