package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/stereoscan/asset"
	"github.com/achilleasa/stereoscan/config"
	"github.com/achilleasa/stereoscan/field"
	"github.com/achilleasa/stereoscan/pointcloud"
)

var (
	ErrMissingReference = errors.New("pipeline: stage requires a reference image")
)

type StageType uint8

// The list of stages that make up a run, in execution order.
const (
	Grayscale StageType = iota
	Disparity
	Evaluate
	Reconstruct
	//
	numStages
)

// Implements Stringer.
func (st StageType) String() string {
	switch st {
	case Grayscale:
		return "grayscale"
	case Disparity:
		return "disparity"
	case Evaluate:
		return "evaluate"
	case Reconstruct:
		return "reconstruct"
	}
	panic(fmt.Sprintf("pipeline: unsupported stage type %d", st))
}

// An alias for functions that implement a pipeline stage. A stage reads the
// outputs of earlier stages from the run state and stores its own result.
type stage func(p *Pipeline, r *run) (time.Duration, error)

// Return the stage implementation for the given type.
func stageFor(st StageType) stage {
	switch st {
	case Grayscale:
		return grayscaleStage()
	case Disparity:
		return disparityStage()
	case Evaluate:
		return evaluateStage()
	case Reconstruct:
		return reconstructStage()
	}
	panic(fmt.Sprintf("pipeline: unsupported stage type %d", st))
}

// Convert the input images to grayscale fields and validate their size.
func grayscaleStage() stage {
	return func(p *Pipeline, r *run) (time.Duration, error) {
		tick := time.Now()
		in := r.input

		if p.cfg.Resize {
			in.Left = asset.Fit(in.Left, p.cfg.Width, p.cfg.Height)
			in.Right = asset.Fit(in.Right, p.cfg.Width, p.cfg.Height)
			if in.Reference != nil {
				in.Reference = asset.Fit(in.Reference, p.cfg.Width, p.cfg.Height)
			}
		}

		var err error
		if r.left, err = field.FromImage(in.Left, p.cfg.Grayscale); err != nil {
			return 0, fmt.Errorf("left image: %w", err)
		}
		if r.right, err = field.FromImage(in.Right, p.cfg.Grayscale); err != nil {
			return 0, fmt.Errorf("right image: %w", err)
		}
		if err = p.cfg.CheckDimensions(r.left.Width, r.left.Height); err != nil {
			return 0, err
		}
		if err = r.left.CheckSameSize(r.right); err != nil {
			return 0, fmt.Errorf("right image: %w", err)
		}

		if in.Reference != nil {
			if r.reference, err = field.FromImage(in.Reference, p.cfg.Grayscale); err != nil {
				return 0, fmt.Errorf("reference image: %w", err)
			}
			if err = r.left.CheckSameSize(r.reference); err != nil {
				return 0, fmt.Errorf("reference image: %w", err)
			}
		}

		return time.Since(tick), nil
	}
}

// Run the window search and summarize the valid disparities.
func disparityStage() stage {
	return func(p *Pipeline, r *run) (time.Duration, error) {
		disp, elapsed, err := p.estimator.Estimate(r.left, r.right)
		if err != nil {
			return 0, err
		}

		r.out.Disparity = disp
		r.out.Summary = Summarize(disp, p.cfg.Bands)
		p.logger.Infof("[%s] disparity %s", r.out.Stats.RunID, r.out.Summary)
		return elapsed, nil
	}
}

// Compare the computed disparities against the reference field.
func evaluateStage() stage {
	return func(p *Pipeline, r *run) (time.Duration, error) {
		if r.reference == nil {
			return 0, ErrMissingReference
		}

		res, err := p.evaluator.Evaluate(r.out.Disparity, r.reference)
		if err != nil {
			return 0, err
		}

		r.out.Quality = &res
		p.logger.Noticef("[%s] %s", r.out.Stats.RunID, res)
		return res.Elapsed, nil
	}
}

// Back-project the selected disparity field into a colored point cloud.
func reconstructStage() stage {
	return func(p *Pipeline, r *run) (time.Duration, error) {
		src := r.out.Disparity
		if p.cfg.ReconstructFrom == config.SourceReference {
			if r.reference == nil {
				return 0, ErrMissingReference
			}
			src = r.reference
		}

		points, elapsed, err := p.reconstructor.Reconstruct(src)
		if err != nil {
			return 0, err
		}

		r.out.Points = points
		if minV, maxV, ok := pointcloud.Bounds(points); ok {
			p.logger.Infof("[%s] %d points, bounds %v - %v (diagonal %.1f)", r.out.Stats.RunID, len(points), minV, maxV, maxV.Sub(minV).Len())
		}
		return elapsed, nil
	}
}
