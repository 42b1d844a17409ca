// Package config provides unified configuration loading for strangeloop.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/strangeloop/internal/constants"
	"github.com/nvandessel/strangeloop/internal/engine"
	"github.com/nvandessel/strangeloop/internal/network"
	"gopkg.in/yaml.v3"
)

// Config contains all strangeloop configuration settings.
type Config struct {
	// Simulation configures the grid, its topology and the frame loop.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Smoothing configures the Emergence Level filter.
	Smoothing SmoothingConfig `json:"smoothing" yaml:"smoothing"`

	// Server configures the HTTP/WebSocket control surface.
	Server ServerConfig `json:"server" yaml:"server"`

	// Recording configures the SQLite run recorder.
	Recording RecordingConfig `json:"recording" yaml:"recording"`

	// Logging contains settings for operational and tick logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig configures the engine and frame loop.
type SimulationConfig struct {
	GridSize             int     `json:"grid_size" yaml:"grid_size"`
	CanvasSize           float64 `json:"canvas_size" yaml:"canvas_size"`
	NeighborProbability  float64 `json:"neighbor_probability" yaml:"neighbor_probability"`
	LongRangeProbability float64 `json:"long_range_probability" yaml:"long_range_probability"`

	// Seed makes topology generation reproducible. 0 seeds from the clock.
	Seed uint64 `json:"seed" yaml:"seed"`

	// StimulusRadiusSquared is the squared radius of a pointer stimulus.
	StimulusRadiusSquared float64 `json:"stimulus_radius_squared" yaml:"stimulus_radius_squared"`

	// FrameRate is the number of frames per second the loop schedules.
	FrameRate int `json:"frame_rate" yaml:"frame_rate"`

	// StartPaused leaves the run flag off when the loop starts.
	StartPaused bool `json:"start_paused" yaml:"start_paused"`
}

// SmoothingConfig configures the Emergence Level filter.
type SmoothingConfig struct {
	Retain float64 `json:"retain" yaml:"retain"`
	Blend  float64 `json:"blend" yaml:"blend"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	// Addr is the listen address. "localhost:0" picks a free port.
	Addr string `json:"addr" yaml:"addr"`
}

// RecordingConfig configures run recording.
type RecordingConfig struct {
	// Path is the SQLite database file. Empty disables recording.
	// Supports ${VAR} syntax for env vars.
	Path string `json:"path" yaml:"path"`

	// Label is stored with every recorded run.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// LoggingConfig configures strangeloop's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables tick logging to <dir>/ticks.jsonl.
	// "trace" additionally logs every frame loop step to stderr.
	Level string `json:"level" yaml:"level"`

	// Dir is where ticks.jsonl is written. Defaults to ~/.strangeloop.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Default returns a Config with the exhibit defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			GridSize:              constants.DefaultGridSize,
			CanvasSize:            constants.DefaultCanvasSize,
			NeighborProbability:   constants.DefaultNeighborProbability,
			LongRangeProbability:  constants.DefaultLongRangeProbability,
			Seed:                  0,
			StimulusRadiusSquared: constants.DefaultStimulusRadiusSquared,
			FrameRate:             constants.DefaultFrameRate,
		},
		Smoothing: SmoothingConfig{
			Retain: constants.DefaultSmoothingRetain,
			Blend:  constants.DefaultSmoothingBlend,
		},
		Server: ServerConfig{
			Addr: constants.DefaultServerAddr,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.strangeloop/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".strangeloop", "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.strangeloop/config.yaml -> environment variables
func Load() (*Config, error) {
	return LoadWithOverride("")
}

// LoadWithOverride loads like Load, but reads path instead of the default
// file when path is non-empty. An explicit path that does not exist is an error.
// Order: defaults -> config file -> environment variables
func LoadWithOverride(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if defaultPath, err := DefaultPath(); err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			}
		}
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Keys missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Recording.Path = expandEnvVars(config.Recording.Path)
	config.Logging.Dir = expandEnvVars(config.Logging.Dir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.EngineConfig().Validate(); err != nil {
		return err
	}

	if c.Simulation.FrameRate < 1 || c.Simulation.FrameRate > constants.MaxFrameRate {
		return fmt.Errorf("frame_rate must be between 1 and %d, got %d", constants.MaxFrameRate, c.Simulation.FrameRate)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// EngineConfig converts the simulation and smoothing settings to an engine.Config.
// Threshold bounds are not configurable and keep their defaults.
func (c *Config) EngineConfig() engine.Config {
	topology := network.DefaultConfig()
	topology.GridSize = c.Simulation.GridSize
	topology.CanvasSize = c.Simulation.CanvasSize
	topology.NeighborProbability = c.Simulation.NeighborProbability
	topology.LongRangeProbability = c.Simulation.LongRangeProbability

	return engine.Config{
		Topology: topology,
		Smoothing: engine.SmoothingConfig{
			Retain: c.Smoothing.Retain,
			Blend:  c.Smoothing.Blend,
		},
		StimulusRadiusSquared: c.Simulation.StimulusRadiusSquared,
	}
}

// RandomSource returns a seeded source when Seed is set, else a clock-seeded one.
func (c *Config) RandomSource() network.RandomSource {
	if c.Simulation.Seed != 0 {
		return network.NewSeededSource(c.Simulation.Seed)
	}
	return network.NewSource()
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unparseable numeric values are ignored.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("STRANGELOOP_GRID_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.GridSize = n
		}
	}

	if v := os.Getenv("STRANGELOOP_CANVAS_SIZE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.CanvasSize = f
		}
	}

	if v := os.Getenv("STRANGELOOP_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}

	if v := os.Getenv("STRANGELOOP_STIMULUS_RADIUS_SQUARED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.StimulusRadiusSquared = f
		}
	}

	if v := os.Getenv("STRANGELOOP_FRAME_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.FrameRate = n
		}
	}

	if v := os.Getenv("STRANGELOOP_PAUSED"); v != "" {
		config.Simulation.StartPaused = v == "true" || v == "1"
	}

	if v := os.Getenv("STRANGELOOP_ADDR"); v != "" {
		config.Server.Addr = v
	}

	if v := os.Getenv("STRANGELOOP_RECORD_PATH"); v != "" {
		config.Recording.Path = v
	}

	if v := os.Getenv("STRANGELOOP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
