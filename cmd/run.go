package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/achilleasa/stereoscan/asset"
	"github.com/achilleasa/stereoscan/config"
	"github.com/achilleasa/stereoscan/device"
	"github.com/achilleasa/stereoscan/pipeline"
	"github.com/achilleasa/stereoscan/ply"
	"github.com/urfave/cli"
)

// Run all stages: estimate disparities, evaluate them against the label
// image (if one is given) and reconstruct a point cloud.
func Run(ctx *cli.Context) error {
	return runStages(ctx, pipeline.DefaultStages()...)
}

// Estimate the disparity map of a stereo pair.
func EstimateDisparity(ctx *cli.Context) error {
	return runStages(ctx, pipeline.Grayscale, pipeline.Disparity)
}

// Estimate disparities and report their quality against a label image.
func Evaluate(ctx *cli.Context) error {
	if ctx.String("label") == "" {
		err := errors.New("missing label image argument")
		logger.Error(err)
		return err
	}
	return runStages(ctx, pipeline.Evaluate)
}

// Estimate disparities and export the point cloud.
func Reconstruct(ctx *cli.Context) error {
	if ctx.String("out-ply") == "" {
		err := errors.New("missing point cloud output file")
		logger.Error(err)
		return err
	}
	return runStages(ctx, pipeline.Reconstruct)
}

func runStages(ctx *cli.Context, stages ...pipeline.StageType) error {
	setupLogging(ctx)

	err := execute(ctx, stages)
	if err != nil {
		logger.Error(err)
	}
	return err
}

func execute(ctx *cli.Context, stages []pipeline.StageType) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	in, err := loadInput(ctx)
	if err != nil {
		return err
	}

	dev, err := findDevice(ctx)
	if err != nil {
		return err
	}
	logger.Noticef(`using device "%s"`, dev.Info().Name)

	p, err := pipeline.New(dev, cfg, stages...)
	if err != nil {
		return err
	}
	defer p.Close()

	out, err := p.Run(in)
	if err != nil {
		return err
	}

	if path := ctx.String("out-disparity"); path != "" && out.Disparity != nil {
		start := time.Now()
		if err = asset.SaveDisparityMap(path, out.Disparity); err != nil {
			return err
		}
		logger.Noticef("wrote disparity map to %s in %d ms", path, time.Since(start).Nanoseconds()/1e6)
	}

	if path := ctx.String("out-ply"); path != "" && out.Points != nil {
		start := time.Now()
		if err = ply.WriteFile(path, out.Points); err != nil {
			return err
		}
		logger.Noticef("wrote %d points to %s in %d ms", len(out.Points), path, time.Since(start).Nanoseconds()/1e6)
	}

	displayRunStats(out)
	return nil
}

// Load the config file (if any) and apply command line overrides.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if ctx.IsSet("width") {
		cfg.Width = ctx.Int("width")
	}
	if ctx.IsSet("height") {
		cfg.Height = ctx.Int("height")
	}
	if ctx.IsSet("resize") {
		cfg.Resize = ctx.Bool("resize")
	}
	if ctx.IsSet("grayscale") {
		cfg.Grayscale = config.GrayscaleMode(ctx.String("grayscale"))
	}
	if ctx.IsSet("radius") {
		cfg.Matching.WindowRadius = ctx.Int("radius")
	}
	if ctx.IsSet("min-disparity") {
		cfg.Matching.MinDisparity = ctx.Int("min-disparity")
	}
	if ctx.IsSet("max-disparity") {
		cfg.Matching.MaxDisparity = ctx.Int("max-disparity")
	}
	if ctx.IsSet("metric") {
		cfg.Matching.Metric = config.Metric(ctx.String("metric"))
	}
	if ctx.IsSet("edge") {
		cfg.Matching.EdgePolicy = config.EdgePolicy(ctx.String("edge"))
	}
	if ctx.IsSet("group-size") {
		cfg.Quality.ReductionGroupSize = ctx.Int("group-size")
	}
	if ctx.IsSet("zero-mse") {
		cfg.Quality.ZeroMSE = config.ZeroMSEPolicy(ctx.String("zero-mse"))
	}
	if ctx.IsSet("reconstruct-from") {
		cfg.ReconstructFrom = config.Source(ctx.String("reconstruct-from"))
	}
	if ctx.IsSet("preserve-high") {
		cfg.Bands.PreserveHighDisparity = ctx.Bool("preserve-high")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadInput(ctx *cli.Context) (pipeline.Input, error) {
	var in pipeline.Input

	leftPath, rightPath := ctx.String("left"), ctx.String("right")
	if leftPath == "" || rightPath == "" {
		return in, errors.New("missing left or right image argument")
	}

	// The right and label images may be given relative to the left one.
	leftRes, err := asset.NewResource(leftPath, nil)
	if err != nil {
		return in, err
	}
	defer leftRes.Close()

	if in.Left, err = asset.DecodeImage(leftRes); err != nil {
		return in, err
	}

	if in.Right, err = asset.LoadImage(rightPath, leftRes); err != nil {
		return in, err
	}

	if labelPath := ctx.String("label"); labelPath != "" {
		if in.Reference, err = asset.LoadImage(labelPath, leftRes); err != nil {
			return in, err
		}
	}

	return in, nil
}

// Select the first device matching one of the device flags.
func findDevice(ctx *cli.Context) (device.Device, error) {
	var typeMask device.Type
	switch strings.ToLower(ctx.String("device-type")) {
	case "", "all":
		typeMask = device.AllDevices
	case "cpu":
		typeMask = device.CpuDevice
	case "gpu":
		typeMask = device.GpuDevice
	default:
		return nil, fmt.Errorf("unsupported device type %q", ctx.String("device-type"))
	}

	return device.FindDevice(typeMask, ctx.StringSlice("device")...)
}
