// Package pipeline runs the stereo stages on a compute device. Every stage
// completes before the next one starts and any failure aborts the run.
package pipeline

import (
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/achilleasa/stereoscan/config"
	"github.com/achilleasa/stereoscan/device"
	"github.com/achilleasa/stereoscan/disparity"
	"github.com/achilleasa/stereoscan/field"
	"github.com/achilleasa/stereoscan/log"
	"github.com/achilleasa/stereoscan/pointcloud"
	"github.com/achilleasa/stereoscan/quality"
	"github.com/achilleasa/stereoscan/reduce"
)

// Images processed by a run. Reference is the ground truth disparity
// (label) image; it is required by the evaluate stage and when
// reconstructing from the reference field.
type Input struct {
	Left      image.Image
	Right     image.Image
	Reference image.Image
}

// The results of a run. Fields of stages that did not run are empty.
type Output struct {
	Disparity *field.Field
	Summary   Summary
	Quality   *quality.Result
	Points    []pointcloud.Point
	Stats     Stats
}

// Mutable state shared by the stages of a single run.
type run struct {
	input     Input
	left      *field.Field
	right     *field.Field
	reference *field.Field
	out       *Output
}

// Return the complete program used by the pipeline stages.
func Program() *device.Program {
	return device.Merge(
		disparity.Program(),
		reduce.Program(),
		quality.Program(),
		pointcloud.Program(),
	)
}

// The stages executed when none are specified.
func DefaultStages() []StageType {
	return []StageType{Grayscale, Disparity, Evaluate, Reconstruct}
}

// A pipeline bound to a single device.
type Pipeline struct {
	logger log.Logger
	dev    device.Device
	cfg    *config.Config
	stages []StageType

	estimator     *disparity.Estimator
	evaluator     *quality.Evaluator
	reconstructor *pointcloud.Reconstructor
}

// Create a pipeline. The device is initialized with Program() and is
// closed by Close. The grayscale and disparity stages always run; the
// optional stages list selects evaluation and reconstruction.
func New(dev device.Device, cfg *config.Config, stages ...StageType) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(stages) == 0 {
		stages = DefaultStages()
	}
	selected := make([]bool, numStages)
	selected[Grayscale], selected[Disparity] = true, true
	for _, st := range stages {
		if st >= numStages {
			return nil, fmt.Errorf("pipeline: unsupported stage type %d", st)
		}
		selected[st] = true
	}

	p := &Pipeline{
		logger: log.New(fmt.Sprintf("pipeline (%s)", dev.Info().Name)),
		dev:    dev,
		cfg:    cfg,
	}
	for st := StageType(0); st < numStages; st++ {
		if selected[st] {
			p.stages = append(p.stages, st)
		}
	}

	if err := p.setup(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

func (p *Pipeline) setup() error {
	var err error

	p.logger.Debugf("initializing device")
	if err = p.dev.Init(Program()); err != nil {
		return err
	}

	if p.estimator, err = disparity.NewEstimator(p.dev, p.cfg.Matching); err != nil {
		return err
	}
	if p.evaluator, err = quality.NewEvaluator(p.dev, p.cfg.Quality); err != nil {
		return err
	}
	if p.reconstructor, err = pointcloud.NewReconstructor(p.dev, p.cfg.Camera, p.cfg.Bands); err != nil {
		return err
	}

	return nil
}

// Release kernels and shut down the device.
func (p *Pipeline) Close() {
	if p.estimator != nil {
		p.estimator.Close()
		p.estimator = nil
	}
	if p.evaluator != nil {
		p.evaluator.Close()
		p.evaluator = nil
	}
	if p.reconstructor != nil {
		p.reconstructor.Close()
		p.reconstructor = nil
	}
	p.dev.Close()
}

// The stages executed by Run.
func (p *Pipeline) Stages() []StageType {
	return append([]StageType(nil), p.stages...)
}

// Run executes the configured stages in order.
func (p *Pipeline) Run(in Input) (*Output, error) {
	if in.Left == nil || in.Right == nil {
		return nil, fmt.Errorf("pipeline: %w: left and right images are required", field.ErrEmptyImage)
	}

	r := &run{
		input: in,
		out: &Output{
			Stats: Stats{
				RunID:  uuid.New().String(),
				Device: p.dev.Info().Name,
			},
		},
	}

	tick := time.Now()
	for _, st := range p.stages {
		if st == Evaluate && in.Reference == nil {
			p.logger.Warningf("[%s] no reference image; skipping stage %s", r.out.Stats.RunID, st)
			continue
		}

		p.logger.Debugf("[%s] running stage %s", r.out.Stats.RunID, st)

		elapsed, err := stageFor(st)(p, r)
		if err != nil {
			return nil, fmt.Errorf("pipeline: stage %s failed: %w", st, err)
		}

		r.out.Stats.Stages = append(r.out.Stats.Stages, StageStat{Stage: st, Time: elapsed})
	}
	r.out.Stats.Total = time.Since(tick)

	p.logger.Noticef("[%s] completed %d stages in %d ms", r.out.Stats.RunID, len(r.out.Stats.Stages), r.out.Stats.Total.Nanoseconds()/1e6)
	return r.out, nil
}
