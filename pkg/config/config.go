// Package config provides configuration loading and management for qitools.
// It handles loading configuration from YAML files, environment variables and
// command line flags, and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"qitools/internal/logging"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. QI_PROCESSING_THREADS
const EnvPrefix = "QI"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Threads is the number of workers applying the algorithm, 0 for all CPUs
		Threads int `yaml:"threads" mapstructure:"threads"`

		// SplitsPerThread is the number of regions queued per worker,
		// 0 for as many as there are workers
		SplitsPerThread int `yaml:"splitsPerThread" mapstructure:"splitsPerThread"`

		// OutputAllResiduals writes the per-data-point residual map
		OutputAllResiduals bool `yaml:"outputAllResiduals" mapstructure:"outputAllResiduals"`
	} `yaml:"processing" mapstructure:"processing"`

	// Output parameters
	Output struct {
		// Prefix is prepended to every output file name
		Prefix string `yaml:"prefix" mapstructure:"prefix"`

		// Directory receives the output maps
		Directory string `yaml:"directory" mapstructure:"directory"`

		// Compression is a zstd level name, or "none"
		Compression string `yaml:"compression" mapstructure:"compression"`

		// SaveSlices exports JPEG slices of every parameter map
		SaveSlices bool `yaml:"saveSlices" mapstructure:"saveSlices"`

		// SlicesDir is where exported slices are written
		SlicesDir string `yaml:"slicesDir" mapstructure:"slicesDir"`

		// Window is the "LOW,HIGH" display window of exported slices,
		// empty for the 5th to 95th percentile of each map
		Window string `yaml:"window" mapstructure:"window"`

		// Stats prints summary statistics of every parameter map
		Stats bool `yaml:"stats" mapstructure:"stats"`
	} `yaml:"output" mapstructure:"output"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn or error
		Level string `yaml:"level" mapstructure:"level"`

		// Verbose reports progress while processing
		Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	} `yaml:"logging" mapstructure:"logging"`
}

// flagKeys maps command line flag names to config keys
var flagKeys = map[string]string{
	"threads":     "processing.threads",
	"splits":      "processing.splitsPerThread",
	"resids":      "processing.outputAllResiduals",
	"out":         "output.prefix",
	"dir":         "output.directory",
	"compression": "output.compression",
	"slices":      "output.saveSlices",
	"slices-dir":  "output.slicesDir",
	"window":      "output.window",
	"stats":       "output.stats",
	"log-level":   "logging.level",
	"verbose":     "logging.verbose",
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.Threads = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.SplitsPerThread = 0
	cfg.Processing.OutputAllResiduals = false

	// Set default output parameters
	cfg.Output.Prefix = ""
	cfg.Output.Directory = "."
	cfg.Output.Compression = "default"
	cfg.Output.SaveSlices = false
	cfg.Output.SlicesDir = "slices"
	cfg.Output.Window = ""
	cfg.Output.Stats = false

	cfg.Logging.Level = "info"
	cfg.Logging.Verbose = false

	return cfg
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("processing.threads", cfg.Processing.Threads)
	v.SetDefault("processing.splitsPerThread", cfg.Processing.SplitsPerThread)
	v.SetDefault("processing.outputAllResiduals", cfg.Processing.OutputAllResiduals)
	v.SetDefault("output.prefix", cfg.Output.Prefix)
	v.SetDefault("output.directory", cfg.Output.Directory)
	v.SetDefault("output.compression", cfg.Output.Compression)
	v.SetDefault("output.saveSlices", cfg.Output.SaveSlices)
	v.SetDefault("output.slicesDir", cfg.Output.SlicesDir)
	v.SetDefault("output.window", cfg.Output.Window)
	v.SetDefault("output.stats", cfg.Output.Stats)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.verbose", cfg.Logging.Verbose)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	return Load(configPath, nil)
}

// Load reads the configuration with, from lowest to highest priority, the
// defaults, the YAML file at configPath (if it exists), QI_ environment
// variables and any flags in flags that were set on the command line.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		// Check if config file exists
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if c.Processing.Threads < 0 {
		return fmt.Errorf("threads must be non-negative, got %d", c.Processing.Threads)
	}
	if c.Processing.SplitsPerThread < 0 {
		return fmt.Errorf("splitsPerThread must be non-negative, got %d", c.Processing.SplitsPerThread)
	}
	switch strings.ToLower(c.Output.Compression) {
	case "", "none", "fastest", "default", "better", "best":
	default:
		return fmt.Errorf("unknown compression %q", c.Output.Compression)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
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
