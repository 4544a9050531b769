// Package config loads the optional textscore.toml run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/cognicore/textscore/pkg/textscore/internalerr"
	"github.com/cognicore/textscore/pkg/textscore/plugin"
)

// Config represents the run configuration
type Config struct {
	Mapping  string         `toml:"mapping"`
	Workers  int            `toml:"workers"`
	Encoding string         `toml:"encoding"`
	Plugins  []string       `toml:"plugins"`
	Output   OutputConfig   `toml:"output"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// OutputConfig controls where default artifacts are written
type OutputConfig struct {
	// Dir replaces the input's directory for artifacts requested without a path
	Dir string `toml:"dir"`
}

// DatabaseConfig contains run store settings
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Workers: 1,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads and parses the configuration file. An empty path returns the
// defaults; a path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", expandedPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, path[1:]), nil
}

// expandPaths expands ~ in all path fields
func (c *Config) expandPaths() error {
	var err error

	c.Mapping, err = expandPath(c.Mapping)
	if err != nil {
		return err
	}

	c.Output.Dir, err = expandPath(c.Output.Dir)
	if err != nil {
		return err
	}

	c.Database.Path, err = expandPath(c.Database.Path)
	if err != nil {
		return err
	}

	return nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}

	for _, name := range c.Plugins {
		if _, err := plugin.Lookup(name); err != nil {
			errs = append(errs, fmt.Errorf("unknown plugin %q (available: %s)", name, strings.Join(plugin.Available(), ", ")))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got '%s'", c.Log.Level))
	}

	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format must be 'json' or 'console', got '%s'", c.Log.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
