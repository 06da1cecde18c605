// Package config provides configuration for site data preparation runs
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/gremau/ecoflux-tools/internal/resample"
)

// EnvPrefix is the prefix for environment variable overrides, so a config
// field Site is overridden by ECOFLUX_SITE.
const EnvPrefix = "ecoflux"

// Default configuration values
const (
	DefaultTimeColumn   = "TIMESTAMP_START"
	DefaultMissingValue = "-9999"
	DefaultFrequency    = "1D"
)

// GapFillPair names a target series and the series that fills its gaps.
type GapFillPair struct {
	Target string `json:"target" yaml:"target"`
	Source string `json:"source" yaml:"source"`
}

// Config describes one site preparation run: where the data lives, which
// series fill each other's gaps, and how the table resamples.
type Config struct {
	// Site is the site code the run belongs to (e.g. "US-Mpj").
	Site string `json:"site" yaml:"site" envconfig:"site"`

	// File Handling Configuration
	InputFile    string `json:"input_file" yaml:"input_file" envconfig:"input_file"`          // Path of the half-hourly input table
	OutputFile   string `json:"output_file" yaml:"output_file" envconfig:"output_file"`       // Path the prepared table is written to
	TimeColumn   string `json:"time_column" yaml:"time_column" envconfig:"time_column"`       // Name of the timestamp column
	MissingValue string `json:"missing_value" yaml:"missing_value" envconfig:"missing_value"` // Sentinel written for missing values

	// Gap filling applied before resampling, in order
	GapFills []GapFillPair `json:"gap_fills" yaml:"gap_fills" ignored:"true"`

	// Resampling Configuration
	Frequency string         `json:"frequency" yaml:"frequency" envconfig:"frequency"` // Bucket width ("30m", "1D", "1W", "1M")
	Rules     resample.Rules `json:"rules" yaml:"rules"`                               // Per-column aggregation groups

	// Location listing
	Measurements []string `json:"measurements" yaml:"measurements" envconfig:"measurements"` // Measurement types to map sensor locations for
	Exclude      string   `json:"exclude" yaml:"exclude" envconfig:"exclude"`                // Substring excluding columns from location scans

	// Debugging Configuration
	Verbose bool `json:"verbose" yaml:"verbose" envconfig:"verbose"` // Enable debug logging
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		TimeColumn:   DefaultTimeColumn,
		MissingValue: DefaultMissingValue,
		Frequency:    DefaultFrequency,
		Rules:        resample.DefaultRules(),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.Frequency != "" {
		if _, err := resample.ParseFrequency(c.Frequency); err != nil {
			return fmt.Errorf("frequency %q is not valid: %w", c.Frequency, err)
		}
	}

	if c.TimeColumn == "" {
		return fmt.Errorf("time_column must not be empty")
	}

	for i, pair := range c.GapFills {
		if pair.Target == "" || pair.Source == "" {
			return fmt.Errorf("gap_fills[%d] must name both target and source", i)
		}
		if pair.Target == pair.Source {
			return fmt.Errorf("gap_fills[%d] target and source are the same column %q", i, pair.Target)
		}
	}

	for i, meas := range c.Measurements {
		if meas == "" {
			return fmt.Errorf("measurements[%d] must not be empty", i)
		}
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.TimeColumn == "" {
		c.TimeColumn = defaults.TimeColumn
	}
	if c.MissingValue == "" {
		c.MissingValue = defaults.MissingValue
	}
	if c.Frequency == "" {
		c.Frequency = defaults.Frequency
	}
	if c.Rules.IsEmpty() {
		c.Rules = defaults.Rules
	}

	return c
}

// ParsedFrequency returns the resampling frequency described by the config.
func (c *Config) ParsedFrequency() (resample.Frequency, error) {
	if c.Frequency == "" {
		return resample.Daily(), nil
	}
	return resample.ParseFrequency(c.Frequency)
}

// LoadFromJSON parses a JSON document into a Config and applies defaults.
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile reads a .json, .yaml or .yml file into a Config and applies
// defaults. The format follows the file extension.
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// ApplyEnv overrides config fields from ECOFLUX_* environment variables.
// Fields without a matching variable keep their current value.
func ApplyEnv(c *Config) error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("reading environment overrides: %w", err)
	}
	return nil
}

// Load builds the effective configuration: the file (when given) layered
// under environment overrides, with defaults filled in.
func Load(filename string) (Config, error) {
	config := NewConfig()

	if filename != "" {
		loaded, err := LoadFromFile(filename)
		if err != nil {
			return Config{}, err
		}
		config = loaded
	}

	if err := ApplyEnv(&config); err != nil {
		return Config{}, err
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
