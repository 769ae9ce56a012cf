// Package config provides configuration loading and management for cellshape3d.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Entity describes one tracked entity whose SHE coefficients are
// reconstructed per bin (e.g. the cell membrane or the nucleus).
type Entity struct {
	// Name is the short entity name used in output file names
	Name string `yaml:"name"`

	// Prefix identifies the coefficient columns of this entity,
	// e.g. "mem_shcoeffs_L"
	Prefix string `yaml:"prefix"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Shape-space discretization parameters
	ShapeSpace struct {
		// Feature is the shape-mode column to discretize
		Feature string `yaml:"feature"`

		// NBins is the number of map-point bins along the mode
		NBins int `yaml:"nBins"`

		// FilterPercentile removes cells outside the
		// [pct, 100-pct] percentile range of any filter feature
		FilterPercentile float64 `yaml:"filterPercentile"`

		// FilterFeatures lists the columns used for extreme-point
		// filtering; empty means filter on Feature only
		FilterFeatures []string `yaml:"filterFeatures"`

		// MapPointMode selects the representative data per bin:
		// true reconstructs the exact bin-center coordinate via
		// the inverse shape-space transform, false averages the
		// coefficients of the cells in the bin
		MapPointMode bool `yaml:"mapPointMode"`
	} `yaml:"shapeSpace"`

	// Reconstruction parameters
	Reconstruction struct {
		// LMax is the maximum spherical-harmonics degree
		LMax int `yaml:"lMax"`

		// ThetaResolution and PhiResolution set the sampling grid
		// used to triangulate the reconstructed surface
		ThetaResolution int `yaml:"thetaResolution"`
		PhiResolution   int `yaml:"phiResolution"`

		// Entities lists the tracked entities, outermost first
		Entities []Entity `yaml:"entities"`

		// FixNestedPosition re-expresses the nested entity's
		// centroid in the outer entity's aligned frame, averaged
		// over each bin
		FixNestedPosition bool `yaml:"fixNestedPosition"`
	} `yaml:"reconstruction"`

	// Aggregation run parameters
	Aggregation struct {
		// NumWorkers specifies how many workers process bins in
		// distributed mode
		NumWorkers int `yaml:"numWorkers"`

		// OutputDir is the root directory for per-bin artifacts
		// and the run manifest
		OutputDir string `yaml:"outputDir"`
	} `yaml:"aggregation"`

	// Input manifest locations
	Manifests struct {
		// ShapeModePath is the manifest with shape-mode/PCA
		// coordinates and SHE coefficients, keyed by CellId
		ShapeModePath string `yaml:"shapeModePath"`

		// ParameterizationPath is the manifest with per-cell
		// representation file paths, keyed by CellId
		ParameterizationPath string `yaml:"parameterizationPath"`
	} `yaml:"manifests"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default shape-space parameters
	cfg.ShapeSpace.Feature = "DNA_MEM_PC1"
	cfg.ShapeSpace.NBins = 9
	cfg.ShapeSpace.FilterPercentile = 1.0
	cfg.ShapeSpace.MapPointMode = false

	// Set default reconstruction parameters
	cfg.Reconstruction.LMax = 32
	cfg.Reconstruction.ThetaResolution = 65
	cfg.Reconstruction.PhiResolution = 128
	cfg.Reconstruction.Entities = []Entity{
		{Name: "mem", Prefix: "mem_shcoeffs_L"},
		{Name: "dna", Prefix: "dna_shcoeffs_L"},
	}
	cfg.Reconstruction.FixNestedPosition = true

	// Set default aggregation parameters
	cfg.Aggregation.NumWorkers = runtime.NumCPU()
	cfg.Aggregation.OutputDir = "aggregations"

	// Set default manifest locations
	cfg.Manifests.ShapeModePath = "shapemode/manifest.csv"
	cfg.Manifests.ParameterizationPath = "parameterization/manifest.csv"

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
