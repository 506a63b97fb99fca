package main

import (
	"os"

	"github.com/achilleasa/stereoscan/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "stereoscan"
	app.Usage = "estimate disparity maps and point clouds from rectified stereo pairs"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "log verbosity: debug, info, notice, warning or error",
		},
	}

	inputFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load parameters from a json config file",
		},
		cli.StringFlag{
			Name:  "left, l",
			Usage: "left image file or url",
		},
		cli.StringFlag{
			Name:  "right, r",
			Usage: "right image file or url; relative paths are resolved against the left image",
		},
		cli.StringFlag{
			Name:  "label",
			Usage: "ground truth disparity image; relative paths are resolved against the left image",
		},
		cli.IntFlag{
			Name:  "width",
			Usage: "expected image width; 0 disables the check",
		},
		cli.IntFlag{
			Name:  "height",
			Usage: "expected image height; 0 disables the check",
		},
		cli.BoolFlag{
			Name:  "resize",
			Usage: "rescale inputs to width x height instead of rejecting them",
		},
		cli.StringFlag{
			Name:  "grayscale",
			Usage: "luminance conversion: truncate or round",
		},
		cli.IntFlag{
			Name:  "radius",
			Usage: "matching window radius",
		},
		cli.IntFlag{
			Name:  "min-disparity",
			Usage: "smallest disparity candidate",
		},
		cli.IntFlag{
			Name:  "max-disparity",
			Usage: "exclusive upper bound of disparity candidates",
		},
		cli.StringFlag{
			Name:  "metric",
			Usage: "window dissimilarity metric: sad or ssd",
		},
		cli.StringFlag{
			Name:  "edge",
			Usage: "border handling: clamp or sentinel",
		},
		cli.IntFlag{
			Name:  "group-size",
			Usage: "work group size for the error reduction",
		},
		cli.StringFlag{
			Name:  "zero-mse",
			Usage: "psnr reported for identical fields: inf or cap",
		},
		cli.StringFlag{
			Name:  "reconstruct-from",
			Usage: "disparity field used for the point cloud: computed or reference",
		},
		cli.BoolFlag{
			Name:  "preserve-high",
			Usage: "keep coordinates of points above the invalid disparity band",
		},
		cli.StringFlag{
			Name:  "device-type",
			Value: "all",
			Usage: "restrict devices by type: all, cpu or gpu",
		},
		cli.StringSliceFlag{
			Name:  "device, d",
			Value: &cli.StringSlice{},
			Usage: "use the first device whose name contains this value; may be repeated",
		},
	}

	disparityFlag := cli.StringFlag{
		Name:  "out-disparity",
		Usage: "png filename for the disparity map",
	}
	plyFlag := cli.StringFlag{
		Name:  "out-ply, o",
		Usage: "ply filename for the point cloud",
	}

	app.Commands = []cli.Command{
		{
			Name:   "list-devices",
			Usage:  "list available compute devices",
			Action: cmd.ListDevices,
		},
		{
			Name:  "run",
			Usage: "run all stages",
			Description: `
Estimate the disparity map of a rectified stereo pair, evaluate it against
the label image (when one is given) and back-project it into a colored
point cloud.`,
			Flags:  append(append([]cli.Flag{}, inputFlags...), disparityFlag, plyFlag),
			Action: cmd.Run,
		},
		{
			Name:  "disparity",
			Usage: "estimate the disparity map of a stereo pair",
			Flags: append(append([]cli.Flag{}, inputFlags...), cli.StringFlag{
				Name:  "out-disparity",
				Value: "disparity.png",
				Usage: "png filename for the disparity map",
			}),
			Action: cmd.EstimateDisparity,
		},
		{
			Name:        "evaluate",
			Usage:       "report the MSE and PSNR of the estimated disparities",
			Description: `Compare the estimated disparity map with the label image.`,
			Flags:       append(append([]cli.Flag{}, inputFlags...), disparityFlag),
			Action:      cmd.Evaluate,
		},
		{
			Name:  "reconstruct",
			Usage: "export the point cloud of a stereo pair",
			Flags: append(append([]cli.Flag{}, inputFlags...), cli.StringFlag{
				Name:  "out-ply, o",
				Value: "cloud.ply",
				Usage: "ply filename for the point cloud",
			}),
			Action: cmd.Reconstruct,
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
