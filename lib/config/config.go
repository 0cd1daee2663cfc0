// Package config loads the controller's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EPFL-LPI/keithley-picoammeter-controller/device/k6485"
	"github.com/EPFL-LPI/keithley-picoammeter-controller/run"
	"github.com/EPFL-LPI/keithley-picoammeter-controller/scpi"
)

// Config is the application configuration.
type Config struct {
	Port     string        `yaml:"port"`
	Baud     int           `yaml:"baud"`
	Backend  string        `yaml:"backend"` // "py" | "ivi"
	Timeout  time.Duration `yaml:"timeout"`
	LineFreq float64       `yaml:"line_freq"`
	Storage  StorageConfig `yaml:"storage"`
	Run      RunConfig     `yaml:"run"`
	Log      LogConfig     `yaml:"log"`
}

// StorageConfig locates the persisted readings table.
type StorageConfig struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
}

// RunConfig holds the default measurement-run settings.
type RunConfig struct {
	Range           string       `yaml:"range"`
	IntegrationTime float64      `yaml:"integration_time_ms"`
	Readings        int          `yaml:"readings"`
	Trigger         string       `yaml:"trigger"`
	Median          FilterConfig `yaml:"median"`
	Mean            MeanConfig   `yaml:"mean"`
}

// FilterConfig configures the median filter.
type FilterConfig struct {
	Enabled bool `yaml:"enabled"`
	Window  int  `yaml:"window"`
}

// MeanConfig configures the average filter. Type is "moving" or "batch".
type MeanConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"`
	Window  int    `yaml:"window"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the configuration file, applies defaults, and validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Baud == 0 {
		c.Baud = 9600
	}
	if c.Backend == "" {
		c.Backend = "py"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.LineFreq == 0 {
		c.LineFreq = k6485.DefaultLineFreq
	}
	if c.Storage.File == "" {
		c.Storage.File = "experiment.csv"
	}
	if c.Run.Range == "" {
		c.Run.Range = "auto"
	}
	if c.Run.IntegrationTime == 0 {
		c.Run.IntegrationTime = 100
	}
	if c.Run.Readings == 0 {
		c.Run.Readings = 1
	}
	if c.Run.Trigger == "" {
		c.Run.Trigger = "immediate"
	}
	if c.Run.Median.Window == 0 {
		c.Run.Median.Window = k6485.MedianRankMin
	}
	if c.Run.Mean.Window == 0 {
		c.Run.Mean.Window = k6485.AverageWinMin
	}
	if c.Run.Mean.Type == "" {
		c.Run.Mean.Type = "moving"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if _, err := c.SessionBackend(); err != nil {
		return err
	}
	if c.LineFreq <= 0 {
		return fmt.Errorf("line_freq must be positive, got %g", c.LineFreq)
	}
	if c.Run.Readings < 1 || c.Run.Readings > k6485.MaxReadings {
		return fmt.Errorf("run.readings must be between 1 and %d, got %d",
			k6485.MaxReadings, c.Run.Readings)
	}
	switch c.Run.Mean.Type {
	case "moving", "batch", "repeat":
	default:
		return fmt.Errorf("run.mean.type must be moving, batch, or repeat, got %q", c.Run.Mean.Type)
	}
	return nil
}

// SessionBackend maps the backend name to the session's enum.
func (c *Config) SessionBackend() (scpi.Backend, error) {
	switch c.Backend {
	case "py":
		return scpi.BackendPy, nil
	case "ivi":
		return scpi.BackendIVI, nil
	}
	return 0, fmt.Errorf("backend must be py or ivi, got %q", c.Backend)
}

// OutPath joins the storage directory and file name.
func (c *Config) OutPath() string {
	return filepath.Join(c.Storage.Dir, c.Storage.File)
}

// RunSettings converts the configured run defaults into a run.Config. The
// UI-facing "batch" mean type maps to the instrument's repeat mode.
func (c *Config) RunSettings() run.Config {
	mode := run.MeanMode(c.Run.Mean.Type)
	if c.Run.Mean.Type == "batch" {
		mode = run.MeanRepeat
	}
	return run.Config{
		Range:           c.Run.Range,
		IntegrationTime: c.Run.IntegrationTime,
		Readings:        c.Run.Readings,
		Trigger:         c.Run.Trigger,
		Median: run.MedianFilter{
			Enabled: c.Run.Median.Enabled,
			Window:  c.Run.Median.Window,
		},
		Mean: run.MeanFilter{
			Enabled: c.Run.Mean.Enabled,
			Mode:    mode,
			Window:  c.Run.Mean.Window,
		},
		OutPath: c.OutPath(),
	}
}
