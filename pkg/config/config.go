// Package config provides configuration loading and management for vessel-tool.
// It handles loading configuration from YAML files and provides default values.
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
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// Connectivity is the voxel neighborhood used when walking the
		// skeleton: 6, 18 or 26
		Connectivity int `yaml:"connectivity"`

		// RetainLargestComponent keeps only the biggest connected piece of
		// the skeleton and drops stray voxels
		RetainLargestComponent bool `yaml:"retainLargestComponent"`

		// MinBranchPoints is the smallest point count a side branch needs
		// to survive tree optimization
		MinBranchPoints int `yaml:"minBranchPoints"`

		// MinBranchLength is the smallest arc length a side branch needs
		// to survive tree optimization, in voxel units
		MinBranchLength float64 `yaml:"minBranchLength"`
	} `yaml:"processing"`

	// Radius parameters for the tube mesh
	Radius struct {
		// Max is the tube radius at the root's proximal end
		Max float64 `yaml:"max"`

		// Min is the tube radius at every distal tip
		Min float64 `yaml:"min"`

		// Decay scales how fast the radius shrinks toward the tips
		Decay float64 `yaml:"decay"`

		// Sides is the vertex count of each tube ring
		Sides int `yaml:"sides"`
	} `yaml:"radius"`

	// Curve fitting parameters
	Curve struct {
		// SmoothSigma is the Gaussian smoothing width in voxel units
		SmoothSigma float64 `yaml:"smoothSigma"`

		// DensifyPasses is how many midpoint insertion rounds run before
		// smoothing
		DensifyPasses int `yaml:"densifyPasses"`

		// ResampleFactor scales the curve sample count relative to the
		// branch point count
		ResampleFactor float64 `yaml:"resampleFactor"`
	} `yaml:"curve"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save intermediary processing results
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is the directory for intermediary results
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Connectivity = 26
	cfg.Processing.RetainLargestComponent = true
	cfg.Processing.MinBranchPoints = 3
	cfg.Processing.MinBranchLength = 0.0

	// Set default radius parameters
	cfg.Radius.Max = 10.0
	cfg.Radius.Min = 2.0
	cfg.Radius.Decay = 1.0
	cfg.Radius.Sides = 30

	// Set default curve parameters
	cfg.Curve.SmoothSigma = 2.0
	cfg.Curve.DensifyPasses = 1
	cfg.Curve.ResampleFactor = 1.0

	// Set default output parameters
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
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
