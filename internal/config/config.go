// Package config loads application settings from files, environment
// variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is the application-level configuration: everything that shapes a
// run but is not per-image editing state (that lives in the settings
// store).
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// StorePath is the settings database location.
	StorePath string `mapstructure:"store_path" yaml:"store_path" json:"store_path"`

	Render RenderConfig `mapstructure:"render" yaml:"render" json:"render"`
	GPU    GPUConfig    `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
	Batch  BatchConfig  `mapstructure:"batch" yaml:"batch" json:"batch"`
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// RenderConfig contains engine settings.
type RenderConfig struct {
	// PreviewSize is the long-edge resolution interactive previews
	// render at.
	PreviewSize int `mapstructure:"preview_size" yaml:"preview_size" json:"preview_size"`
}

// GPUConfig contains acceleration settings.
type GPUConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers   int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Recursive bool   `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Format    string `mapstructure:"format" yaml:"format" json:"format"`
}

// ServerConfig contains HTTP server settings for the serve command.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		Verbose:   false,
		StorePath: defaultStorePath(),
		Render: RenderConfig{
			PreviewSize: 2048,
		},
		GPU: GPUConfig{
			Enabled: true,
		},
		Batch: BatchConfig{
			Workers:   4,
			Recursive: false,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			TimeoutSec:      300,
			ShutdownTimeout: 10,
		},
	}
}

// defaultStorePath places the settings database under the XDG config
// directory, falling back to the working directory.
func defaultStorePath() string {
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		return filepath.Join(configDir, "negproof", "settings.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "negproof", "settings.yaml")
	}
	return "negproof-settings.yaml"
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Render.PreviewSize <= 0 {
		return fmt.Errorf("invalid preview size: %d (must be positive)", c.Render.PreviewSize)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	validFormats := []string{"", "JPEG", "TIFF", "PNG"}
	if !contains(validFormats, strings.ToUpper(c.Batch.Format)) {
		return fmt.Errorf("invalid batch format: %s (must be one of: JPEG, TIFF, PNG)", c.Batch.Format)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
