// Package config loads importwaterfall.toml, the optional file that holds
// per-project defaults for sampling and rendering.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the config file looked up from the working directory upward.
const FileName = "importwaterfall.toml"

// Format selects the renderer.
type Format string

const (
	FormatGraph Format = "graph"
	FormatHAR   Format = "har"
)

// Config is the decoded file plus where it came from.
type Config struct {
	Path   string       `toml:"-"`
	Sample SampleConfig `toml:"sample"`
	Render RenderConfig `toml:"render"`
}

// SampleConfig holds trace acquisition defaults.
type SampleConfig struct {
	Python  string   `toml:"python"`
	Runs    int      `toml:"runs"`
	Timeout Duration `toml:"timeout"`
	Env     []string `toml:"env"`
}

// RenderConfig holds output defaults.
type RenderConfig struct {
	Format         Format `toml:"format"`
	MaxDepth       int    `toml:"max_depth"`
	HideUnder      int64  `toml:"hide_under"`
	Sort           bool   `toml:"sort"`
	Cumulative     bool   `toml:"cumulative"`
	IncludeStartup bool   `toml:"include_interpreter_startup"`
	Width          int    `toml:"width"`
	Color          string `toml:"color"`
}

// Duration decodes TOML strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Sample: SampleConfig{Python: "python3", Runs: 6},
		Render: RenderConfig{Format: FormatGraph, Color: "auto"},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	cfg.Path = path
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the file named by explicit, or the nearest FileName above
// startDir. Without either it returns the defaults.
func Discover(explicit, startDir string) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Sample.Python) == "" {
		return errors.New("[sample].python must not be empty")
	}
	if c.Sample.Runs < 1 {
		return fmt.Errorf("[sample].runs must be at least 1, got %d", c.Sample.Runs)
	}
	if c.Sample.Timeout.Duration < 0 {
		return errors.New("[sample].timeout must not be negative")
	}
	for _, kv := range c.Sample.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("[sample].env entry %q is not KEY=VALUE", kv)
		}
	}
	format, err := ParseFormat(string(c.Render.Format))
	if err != nil {
		return fmt.Errorf("[render].format: %w", err)
	}
	c.Render.Format = format
	if c.Render.MaxDepth < 0 {
		return fmt.Errorf("[render].max_depth must not be negative, got %d", c.Render.MaxDepth)
	}
	if c.Render.HideUnder < 0 {
		return fmt.Errorf("[render].hide_under must not be negative, got %d", c.Render.HideUnder)
	}
	switch c.Render.Color {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("[render].color %q (expected auto|on|off)", c.Render.Color)
	}
	return nil
}

// ParseFormat normalizes a renderer name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatGraph:
		return FormatGraph, nil
	case FormatHAR:
		return FormatHAR, nil
	default:
		return "", fmt.Errorf("unsupported format %q (must be graph or har)", s)
	}
}
