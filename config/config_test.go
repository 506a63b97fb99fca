package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1390, cfg.Width)
	assert.Equal(t, 1110, cfg.Height)
	assert.Equal(t, float32(3740), cfg.Camera.FocalLength)
	assert.Equal(t, float32(160), cfg.Camera.Baseline)
	assert.Equal(t, 4, cfg.Matching.WindowRadius)
	assert.Equal(t, 128, cfg.Quality.ReductionGroupSize)
	assert.Equal(t, GrayscaleTruncate, cfg.Grayscale)
	assert.Equal(t, ZeroMSEInf, cfg.Quality.ZeroMSE)
	assert.False(t, cfg.Bands.PreserveHighDisparity)
}

func TestLoadPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	data := `{"width": 0, "matching": {"window_radius": 2, "metric": "ssd"}, "quality": {"zero_mse": "cap"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Width)
	assert.Equal(t, 1110, cfg.Height)
	assert.Equal(t, 2, cfg.Matching.WindowRadius)
	assert.Equal(t, SSD, cfg.Matching.Metric)
	// Fields of a partially specified section keep their defaults.
	assert.Equal(t, 200, cfg.Matching.MaxDisparity)
	assert.Equal(t, ZeroMSECap, cfg.Quality.ZeroMSE)
	assert.Equal(t, 99.0, cfg.Quality.PSNRCap)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("wrong extension", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "run.yaml"))
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.json"))
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"matching": {"metric": "ncc"}}`), 0o644))
		_, err := Load(path)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestValidate(t *testing.T) {
	type spec struct {
		name   string
		mutate func(*Config)
	}
	specs := []spec{
		{"negative radius", func(c *Config) { c.Matching.WindowRadius = -1 }},
		{"empty disparity range", func(c *Config) { c.Matching.MaxDisparity = c.Matching.MinDisparity }},
		{"unknown edge policy", func(c *Config) { c.Matching.EdgePolicy = "wrap" }},
		{"unordered bands", func(c *Config) { c.Bands.Yellow = 250 }},
		{"zero group size", func(c *Config) { c.Quality.ReductionGroupSize = 0 }},
		{"unit group size", func(c *Config) { c.Quality.ReductionGroupSize = 1 }},
		{"non-positive psnr cap", func(c *Config) { c.Quality.ZeroMSE = ZeroMSECap; c.Quality.PSNRCap = 0 }},
		{"zero baseline", func(c *Config) { c.Camera.Baseline = 0 }},
		{"unknown grayscale mode", func(c *Config) { c.Grayscale = "floor" }},
		{"unknown source", func(c *Config) { c.ReconstructFrom = "label" }},
	}

	for _, s := range specs {
		t.Run(s.name, func(t *testing.T) {
			cfg := Default()
			s.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestCheckDimensions(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.CheckDimensions(1390, 1110))
	assert.ErrorIs(t, cfg.CheckDimensions(695, 555), ErrInvalidConfig)

	cfg.Width = 0
	assert.NoError(t, cfg.CheckDimensions(695, 555))
}
