// Package config defines the run configuration shared by all pipeline
// stages. A Config value is created once per run and passed explicitly to
// every component constructor; no component reads process-wide settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Dissimilarity metric used by the disparity search.
type Metric string

const (
	// Sum of absolute differences.
	SAD Metric = "sad"
	// Sum of squared differences.
	SSD Metric = "ssd"
)

// Behavior of the disparity search at the field borders.
type EdgePolicy string

const (
	// Clamp window samples to the field bounds.
	EdgeClamp EdgePolicy = "clamp"
	// Assign the invalid disparity sentinel to pixels whose windows
	// leave the field.
	EdgeSentinel EdgePolicy = "sentinel"
)

// Conversion of the weighted luminance sum to an 8-bit value.
type GrayscaleMode string

const (
	// Truncate towards zero (observed reference behavior).
	GrayscaleTruncate GrayscaleMode = "truncate"
	// Round half up.
	GrayscaleRound GrayscaleMode = "round"
)

// PSNR reported when the mean squared error is exactly zero.
type ZeroMSEPolicy string

const (
	// Report +Inf.
	ZeroMSEInf ZeroMSEPolicy = "inf"
	// Report PSNRCap.
	ZeroMSECap ZeroMSEPolicy = "cap"
)

// The disparity field used as reconstruction input.
type Source string

const (
	SourceComputed  Source = "computed"
	SourceReference Source = "reference"
)

// The maximum accepted size of a JSON config file.
const maxFileSize = 1 << 20

var (
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Camera geometry.
type Camera struct {
	// Focal length in pixels.
	FocalLength float32 `json:"focal_length"`

	// Distance between the two camera centers (mm).
	Baseline float32 `json:"baseline"`
}

// Disparity search parameters.
type Matching struct {
	WindowRadius int        `json:"window_radius"`
	MinDisparity int        `json:"min_disparity"`
	MaxDisparity int        `json:"max_disparity"`
	Metric       Metric     `json:"metric"`
	EdgePolicy   EdgePolicy `json:"edge_policy"`
}

// Disparity bands used for point colors. Points with d <= 0 or
// d >= InvalidAbove are treated as unreliable.
type Bands struct {
	Cyan         float32 `json:"cyan"`
	Yellow       float32 `json:"yellow"`
	InvalidAbove float32 `json:"invalid_above"`

	// Keep the back-projected coordinates of points with
	// d >= InvalidAbove instead of collapsing them to the origin.
	PreserveHighDisparity bool `json:"preserve_high_disparity"`
}

// Quality evaluation parameters.
type Quality struct {
	ReductionGroupSize int           `json:"reduction_group_size"`
	ZeroMSE            ZeroMSEPolicy `json:"zero_mse"`
	PSNRCap            float64       `json:"psnr_cap"`
}

// Config holds all parameters of a pipeline run.
type Config struct {
	// Expected image dimensions; 0 disables the check.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Rescale inputs to Width x Height instead of rejecting them.
	Resize bool `json:"resize"`

	Grayscale       GrayscaleMode `json:"grayscale"`
	ReconstructFrom Source        `json:"reconstruct_from"`

	Camera   Camera   `json:"camera"`
	Matching Matching `json:"matching"`
	Bands    Bands    `json:"bands"`
	Quality  Quality  `json:"quality"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		Width:           1390,
		Height:          1110,
		Grayscale:       GrayscaleTruncate,
		ReconstructFrom: SourceComputed,
		Camera: Camera{
			FocalLength: 3740,
			Baseline:    160,
		},
		Matching: Matching{
			WindowRadius: 4,
			MinDisparity: 0,
			MaxDisparity: 200,
			Metric:       SAD,
			EdgePolicy:   EdgeClamp,
		},
		Bands: Bands{
			Cyan:         100,
			Yellow:       150,
			InvalidAbove: 200,
		},
		Quality: Quality{
			ReductionGroupSize: 128,
			ZeroMSE:            ZeroMSEInf,
			PSNRCap:            99,
		},
	}
}

// Load reads a JSON config file on top of the defaults. Fields omitted
// from the file retain their default values.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config: file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to stat %s: %w", cleanPath, err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config: file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", cleanPath, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all parameters are usable.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Width < 0 || c.Height < 0 {
		return invalid("negative image dimensions %dx%d", c.Width, c.Height)
	}

	switch c.Grayscale {
	case GrayscaleTruncate, GrayscaleRound:
	default:
		return invalid("unknown grayscale mode %q", c.Grayscale)
	}

	switch c.ReconstructFrom {
	case SourceComputed, SourceReference:
	default:
		return invalid("unknown reconstruction source %q", c.ReconstructFrom)
	}

	if c.Camera.FocalLength <= 0 || c.Camera.Baseline <= 0 {
		return invalid("focal length and baseline must be positive")
	}

	m := c.Matching
	if m.WindowRadius < 0 {
		return invalid("negative window radius %d", m.WindowRadius)
	}
	if m.MaxDisparity <= m.MinDisparity {
		return invalid("empty disparity range [%d, %d)", m.MinDisparity, m.MaxDisparity)
	}
	switch m.Metric {
	case SAD, SSD:
	default:
		return invalid("unknown metric %q", m.Metric)
	}
	switch m.EdgePolicy {
	case EdgeClamp, EdgeSentinel:
	default:
		return invalid("unknown edge policy %q", m.EdgePolicy)
	}

	b := c.Bands
	if !(0 < b.Cyan && b.Cyan <= b.Yellow && b.Yellow <= b.InvalidAbove) {
		return invalid("band edges must satisfy 0 < cyan <= yellow <= invalid_above; got %v/%v/%v", b.Cyan, b.Yellow, b.InvalidAbove)
	}

	q := c.Quality
	if q.ReductionGroupSize < 2 {
		return invalid("reduction group size must be at least 2; got %d", q.ReductionGroupSize)
	}
	switch q.ZeroMSE {
	case ZeroMSEInf:
	case ZeroMSECap:
		if q.PSNRCap <= 0 {
			return invalid("psnr cap must be positive; got %v", q.PSNRCap)
		}
	default:
		return invalid("unknown zero mse policy %q", q.ZeroMSE)
	}

	return nil
}

// CheckDimensions verifies that an input image matches the configured
// dimensions. A zero width or height disables the check.
func (c *Config) CheckDimensions(width, height int) error {
	if c.Width == 0 || c.Height == 0 {
		return nil
	}
	if width != c.Width || height != c.Height {
		return fmt.Errorf("%w: expected %dx%d image; got %dx%d", ErrInvalidConfig, c.Width, c.Height, width, height)
	}
	return nil
}
