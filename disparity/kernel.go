package disparity

import (
	"math"

	"github.com/achilleasa/stereoscan/device"
)

// Name of the matching kernel in both program forms.
const KernelName = "templateMatching"

// Metric and edge policy identifiers passed as kernel args.
const (
	metricSAD int32 = iota
	metricSSD
)

const (
	edgeClamp int32 = iota
	edgeSentinel
)

const kernelSource = `
#define METRIC_SSD 1
#define EDGE_SENTINEL 1

__kernel void templateMatching(
	__global const float *left,
	__global const float *right,
	__global float *disparity,
	const int width,
	const int height,
	const int radius,
	const int minDisparity,
	const int maxDisparity,
	const int metric,
	const int edgePolicy
){
	const int x = get_global_id(0);
	const int y = get_global_id(1);
	if (x >= width || y >= height) return;

	if (edgePolicy == EDGE_SENTINEL &&
		(x - radius < 0 || x + radius >= width || y - radius < 0 || y + radius >= height)) {
		disparity[y * width + x] = -1.0f;
		return;
	}

	float bestCost = INFINITY;
	float best = -1.0f;
	for (int d = minDisparity; d < maxDisparity; d++) {
		const int xr = x - d;
		if (edgePolicy == EDGE_SENTINEL) {
			if (xr - radius < 0 || xr + radius >= width) continue;
		} else if (xr < 0 || xr >= width) {
			continue;
		}

		float cost = 0.0f;
		for (int j = -radius; j <= radius; j++) {
			const int sy = clamp(y + j, 0, height - 1);
			for (int i = -radius; i <= radius; i++) {
				const int sxl = clamp(x + i, 0, width - 1);
				const int sxr = clamp(xr + i, 0, width - 1);
				const float diff = left[sy * width + sxl] - right[sy * width + sxr];
				cost += metric == METRIC_SSD ? diff * diff : fabs(diff);
			}
		}

		if (cost < bestCost) {
			bestCost = cost;
			best = (float)d;
		}
	}

	disparity[y * width + x] = best;
}
`

// Program returns the matching kernel for all device types.
func Program() *device.Program {
	return &device.Program{
		Sources: []string{kernelSource},
		CPU: map[string]device.CPUKernel{
			KernelName: templateMatching,
		},
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Native implementation of the templateMatching kernel.
func templateMatching(args device.Args) (device.GroupFunc, error) {
	var (
		left, right, out           []float32
		width, height, radius      int
		minDisparity, maxDisparity int
		metric, edgePolicy         int
	)
	if err := args.Scan(&left, &right, &out, &width, &height, &radius, &minDisparity, &maxDisparity, &metric, &edgePolicy); err != nil {
		return nil, err
	}

	sentinel := int32(edgePolicy) == edgeSentinel
	ssd := int32(metric) == metricSSD

	return func(g *device.WorkGroup) {
		g.ForEach(func(x, y int) {
			if x >= width || y >= height {
				return
			}

			if sentinel && (x-radius < 0 || x+radius >= width || y-radius < 0 || y+radius >= height) {
				out[y*width+x] = Invalid
				return
			}

			bestCost := float32(math.Inf(1))
			best := Invalid
			for d := minDisparity; d < maxDisparity; d++ {
				xr := x - d
				if sentinel {
					if xr-radius < 0 || xr+radius >= width {
						continue
					}
				} else if xr < 0 || xr >= width {
					continue
				}

				var cost float32
				for j := -radius; j <= radius; j++ {
					row := clampInt(y+j, 0, height-1) * width
					for i := -radius; i <= radius; i++ {
						diff := left[row+clampInt(x+i, 0, width-1)] - right[row+clampInt(xr+i, 0, width-1)]
						if ssd {
							cost += diff * diff
						} else if diff < 0 {
							cost -= diff
						} else {
							cost += diff
						}
					}
				}

				if cost < bestCost {
					bestCost = cost
					best = float32(d)
				}
			}

			out[y*width+x] = best
		})
	}, nil
}
