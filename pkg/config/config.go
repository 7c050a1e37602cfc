// Package config provides configuration loading and management for
// turbustat. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use when fanning out
		// over independent dataset pairs
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Delta-variance estimator parameters
	DeltaVariance struct {
		// DiamRatio is the ratio between the annulus and core kernel
		// diameters; must be greater than 1
		DiamRatio float64 `yaml:"diamRatio"`

		// Lags is an explicit lag set in pixels; empty selects the
		// auto-generated log-spaced set
		Lags []float64 `yaml:"lags"`

		// Bootstrap enables bootstrap confidence intervals
		Bootstrap bool `yaml:"bootstrap"`

		// BootstrapSamples is the number of resamples per lag
		BootstrapSamples int `yaml:"bootstrapSamples"`

		// BootstrapAlpha sets the confidence interval coverage
		BootstrapAlpha float64 `yaml:"bootstrapAlpha"`

		// BootstrapSeed is the base RNG seed for reproducible intervals
		BootstrapSeed uint64 `yaml:"bootstrapSeed"`
	} `yaml:"deltaVariance"`

	// Output parameters
	Output struct {
		// CurveDir, when set, is the directory where computed curves are
		// written as CSV for later reuse
		CurveDir string `yaml:"curveDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	// Set default delta-variance parameters
	cfg.DeltaVariance.DiamRatio = 1.5
	cfg.DeltaVariance.Bootstrap = false
	cfg.DeltaVariance.BootstrapSamples = 100
	cfg.DeltaVariance.BootstrapAlpha = 0.05
	cfg.DeltaVariance.BootstrapSeed = 1

	// Set default output parameters
	cfg.Output.CurveDir = ""
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
