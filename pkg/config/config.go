// Package config provides configuration loading and management for mrinlm.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mrinlm/pkg/reconstruction"
	"mrinlm/pkg/similarity"
)

// AutoVariance selects noise variance estimation instead of a fixed value
const AutoVariance = "auto"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Denoising parameters
	Denoise struct {
		// Metric is pearson or meansquares
		Metric similarity.Metric `yaml:"metric"`

		// PatchRadius, SearchRadius and LocalStatsRadius take one value for
		// all axes or one value per axis
		PatchRadius      []int `yaml:"patchRadius"`
		SearchRadius     []int `yaml:"searchRadius"`
		LocalStatsRadius []int `yaml:"localStatsRadius"`

		// SmoothingFactor is h in the weight kernel
		SmoothingFactor float64 `yaml:"smoothingFactor"`

		// SmoothingVariance is the noise variance, or "auto" to estimate it
		SmoothingVariance string `yaml:"smoothingVariance"`

		// MeanThreshold and VarianceThreshold control the candidate
		// pre-filter; negative values disable it
		MeanThreshold     float64 `yaml:"meanThreshold"`
		VarianceThreshold float64 `yaml:"varianceThreshold"`

		Epsilon             float64 `yaml:"epsilon"`
		UseRicianNoiseModel bool    `yaml:"useRicianNoiseModel"`
	} `yaml:"denoise"`

	// Processing parameters
	Processing struct {
		// NumWorkers is the number of goroutines; 0 uses every logical core
		NumWorkers int `yaml:"numWorkers"`

		// SliceGap represents the physical distance between consecutive MRI slices in mm
		SliceGap float64 `yaml:"sliceGap"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Axis along which denoised slices are written
		Axis string `yaml:"axis"`

		// LogLevel is debug, info, warn, error or disabled
		LogLevel string `yaml:"logLevel"`
	} `yaml:"output"`

	// REST server parameters
	Server struct {
		// Addr is the listen address
		Addr string `yaml:"addr"`

		// MaxPixels bounds the pixels accepted per request, counted over
		// every channel
		MaxPixels int `yaml:"maxPixels"`

		// MaxBodyBytes bounds the size of a request body
		MaxBodyBytes int64 `yaml:"maxBodyBytes"`
	} `yaml:"server"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	p := reconstruction.DefaultParams()
	cfg.Denoise.Metric = p.Metric
	cfg.Denoise.PatchRadius = p.PatchRadius
	cfg.Denoise.SearchRadius = p.SearchRadius
	cfg.Denoise.LocalStatsRadius = p.LocalStatsRadius
	cfg.Denoise.SmoothingFactor = p.SmoothingFactor
	cfg.Denoise.SmoothingVariance = strconv.FormatFloat(p.SmoothingVariance, 'g', -1, 64)
	cfg.Denoise.MeanThreshold = p.MeanThreshold
	cfg.Denoise.VarianceThreshold = p.VarianceThreshold
	cfg.Denoise.Epsilon = p.Epsilon
	cfg.Denoise.UseRicianNoiseModel = p.UseRicianNoiseModel

	cfg.Processing.NumWorkers = 0
	cfg.Processing.SliceGap = 1.0

	cfg.Output.Axis = "z"
	cfg.Output.LogLevel = "info"

	cfg.Server.Addr = ":8080"
	cfg.Server.MaxPixels = 16 << 20
	cfg.Server.MaxBodyBytes = 1 << 30

	return cfg
}

// Params converts the denoising section into reconstruction parameters.
func (c *Config) Params() (reconstruction.Params, error) {
	p := reconstruction.DefaultParams()
	p.Metric = c.Denoise.Metric
	p.PatchRadius = c.Denoise.PatchRadius
	p.SearchRadius = c.Denoise.SearchRadius
	p.LocalStatsRadius = c.Denoise.LocalStatsRadius
	p.SmoothingFactor = c.Denoise.SmoothingFactor
	p.MeanThreshold = threshold(c.Denoise.MeanThreshold)
	p.VarianceThreshold = threshold(c.Denoise.VarianceThreshold)
	p.Epsilon = c.Denoise.Epsilon
	p.UseRicianNoiseModel = c.Denoise.UseRicianNoiseModel
	p.Workers = c.Processing.NumWorkers

	variance, auto, err := ParseVariance(c.Denoise.SmoothingVariance)
	if err != nil {
		return p, err
	}
	p.SmoothingVariance = variance
	p.EstimateNoise = auto
	return p, nil
}

func threshold(v float64) float64 {
	if v < 0 {
		return math.Inf(1)
	}
	return v
}

// ParseVariance reads a smoothing variance setting: a non-negative number
// or "auto".
func ParseVariance(s string) (variance float64, auto bool, err error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, AutoVariance) {
		return 0, true, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("smoothing variance must be a number or %q, got %q", AutoVariance, s)
	}
	if v < 0 {
		return 0, false, fmt.Errorf("smoothing variance must not be negative, got %g", v)
	}
	return v, false, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
