package pipeline

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/achilleasa/stereoscan/config"
	"github.com/achilleasa/stereoscan/field"
	"github.com/achilleasa/stereoscan/pointcloud"
)

type StageStat struct {
	Stage StageType

	// Time reported by the stage; kernel time for device stages.
	Time time.Duration
}

type Stats struct {
	// A unique id for correlating the log lines of a run.
	RunID string

	// The device that executed the run.
	Device string

	// Individual stage stats in execution order.
	Stages []StageStat

	// Wall time for the entire run.
	Total time.Duration
}

// Summary statistics of the valid values of a disparity field.
type Summary struct {
	Valid   int
	Invalid int

	Min    float64
	Max    float64
	Mean   float64
	Median float64
	StdDev float64
}

// Implements Stringer.
func (s Summary) String() string {
	if s.Valid == 0 {
		return fmt.Sprintf("valid: 0, invalid: %d", s.Invalid)
	}
	return fmt.Sprintf(
		"valid: %d, invalid: %d, min: %.1f, max: %.1f, mean: %.2f, median: %.1f, stddev: %.2f",
		s.Valid, s.Invalid, s.Min, s.Max, s.Mean, s.Median, s.StdDev,
	)
}

// Summarize the disparities that fall inside the valid band.
func Summarize(disp *field.Field, bands config.Bands) Summary {
	values := make([]float64, 0, disp.Len())
	for _, d := range disp.Pix {
		if pointcloud.Valid(d, bands) {
			values = append(values, float64(d))
		}
	}

	s := Summary{
		Valid:   len(values),
		Invalid: disp.Len() - len(values),
	}
	if len(values) == 0 {
		return s
	}

	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		s.StdDev = 0
	}

	sort.Float64s(values)
	s.Median = stat.Quantile(0.5, stat.Empirical, values, nil)
	return s
}
