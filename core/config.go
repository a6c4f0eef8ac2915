package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"upscale_backend/autosplit"
	"upscale_backend/imaging"
	"upscale_backend/logging"
	"upscale_backend/pixruntime"
)

// ConfigFileEnv names the environment variable that points at a YAML config
// file when -config is not given.
const ConfigFileEnv = "UPSCALE_CONFIG"

// Config holds all configuration values for guided-upscale.
//
// Values are layered: built-in defaults, then the optional YAML file, then
// environment variables. Command-line flags are applied on top by main.
type Config struct {
	// Tiling
	Split autosplit.Options `yaml:"split"`

	// Devices and execution defaults
	Runtime pixruntime.RuntimeConfig `yaml:"runtime"`

	// Working color space: "lab" or "rgb"
	SplitMode string `yaml:"split_mode"`

	// SQLite run history; empty disables it
	HistoryDB string `yaml:"history_db"`
	// Days of history to keep; 0 keeps everything
	HistoryRetentionDays int `yaml:"history_retention_days"`

	// Logging
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
	DevMode  bool   `yaml:"dev_mode"`
}

// Default configuration values
const DefaultLogLevel = "info"

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Split:     autosplit.DefaultOptions(),
		Runtime:   *pixruntime.DefaultRuntimeConfig(),
		SplitMode: imaging.DefaultSplitMode.String(),
		LogLevel:  DefaultLogLevel,
	}
}

// LoadConfig builds the configuration from defaults, the YAML file at path
// (or $UPSCALE_CONFIG when path is empty) and the environment, then
// validates it. Errors are *ConfigError.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = GetEnvOrDefault(ConfigFileEnv, "")
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path. Keys missing from the file keep
// their current values; unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrConfigFileMissing(path, err)
		}
		return ErrConfigFileInvalid(path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return ErrConfigFileInvalid(path, err)
	}
	return nil
}

// ApplyEnv overrides fields whose environment variables are set. Values that
// do not parse leave the current setting in place.
func (c *Config) ApplyEnv() {
	c.Split.MinTileArea = ParseIntEnv("UPSCALE_MIN_TILE_AREA", c.Split.MinTileArea)
	c.Split.MaxTileArea = ParseIntEnv("UPSCALE_MAX_TILE_AREA", c.Split.MaxTileArea)
	c.Split.Overlap = ParseIntEnv("UPSCALE_OVERLAP", c.Split.Overlap)
	c.Split.MaxDepth = ParseIntEnv("UPSCALE_MAX_DEPTH", c.Split.MaxDepth)

	c.Runtime.ApplyEnv()

	c.SplitMode = GetEnvOrDefault("UPSCALE_SPLIT_MODE", c.SplitMode)
	c.HistoryDB = GetEnvOrDefault("UPSCALE_HISTORY_DB", c.HistoryDB)
	c.HistoryRetentionDays = ParseIntEnv("UPSCALE_HISTORY_RETENTION_DAYS", c.HistoryRetentionDays)
	c.LogFile = GetEnvOrDefault("LOG_FILE", c.LogFile)
	c.LogLevel = GetEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.DevMode = ParseBoolEnv("DEV_MODE", c.DevMode)
}

// Validate checks every section and returns the first problem as a *ConfigError.
func (c *Config) Validate() error {
	if err := c.Split.Validate(); err != nil {
		return ErrInvalidSplit(err)
	}
	if err := c.Runtime.Validate(); err != nil {
		return ErrInvalidRuntime(err)
	}
	if _, err := c.Mode(); err != nil {
		return err
	}
	if c.HistoryRetentionDays < 0 {
		return ErrInvalidHistory(fmt.Errorf("retention %d days must not be negative", c.HistoryRetentionDays))
	}
	return nil
}

// Mode parses SplitMode.
func (c *Config) Mode() (imaging.SplitMode, error) {
	mode, err := imaging.ParseSplitMode(c.SplitMode)
	if err != nil {
		return 0, ErrInvalidSplitMode(c.SplitMode, err)
	}
	return mode, nil
}

// LoggingConfig returns the logger settings for this configuration.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Development: c.DevMode,
		Level:       logging.ParseLogLevelString(c.LogLevel, logging.InfoLevel),
		FilePath:    c.LogFile,
	}
}
