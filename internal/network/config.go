package network

import (
	"errors"
	"fmt"

	"github.com/nvandessel/strangeloop/internal/constants"
)

// ErrInvalidConfig is wrapped by every topology configuration error.
var ErrInvalidConfig = errors.New("invalid network config")

// Config holds the parameters of topology generation.
type Config struct {
	// GridSize is the number of units per side; the network has GridSize*GridSize units.
	GridSize int `json:"grid_size" yaml:"grid_size"`

	// CanvasSize is the side of the coordinate space. Pitch is CanvasSize/GridSize.
	CanvasSize float64 `json:"canvas_size" yaml:"canvas_size"`

	// NeighborProbability is the chance an admitted Moore neighbor is connected.
	NeighborProbability float64 `json:"neighbor_probability" yaml:"neighbor_probability"`

	// LongRangeProbability is the chance a unit gains one link to a uniformly random unit.
	LongRangeProbability float64 `json:"long_range_probability" yaml:"long_range_probability"`

	// ThresholdMin and ThresholdSpan define the uniform range [min, min+span) thresholds are drawn from.
	ThresholdMin  float64 `json:"threshold_min" yaml:"threshold_min"`
	ThresholdSpan float64 `json:"threshold_span" yaml:"threshold_span"`
}

// DefaultConfig returns the 40x40 grid on a 600-wide canvas.
func DefaultConfig() Config {
	return Config{
		GridSize:             constants.DefaultGridSize,
		CanvasSize:           constants.DefaultCanvasSize,
		NeighborProbability:  constants.DefaultNeighborProbability,
		LongRangeProbability: constants.DefaultLongRangeProbability,
		ThresholdMin:         constants.DefaultThresholdMin,
		ThresholdSpan:        constants.DefaultThresholdSpan,
	}
}

// Pitch returns the cell size implied by the config.
func (c Config) Pitch() float64 {
	return c.CanvasSize / float64(c.GridSize)
}

// Validate checks that the config describes a non-empty, well-formed grid.
func (c Config) Validate() error {
	if c.GridSize < 1 {
		return fmt.Errorf("%w: grid_size must be at least 1, got %d", ErrInvalidConfig, c.GridSize)
	}
	if c.GridSize > constants.MaxGridSize {
		return fmt.Errorf("%w: grid_size must be at most %d, got %d", ErrInvalidConfig, constants.MaxGridSize, c.GridSize)
	}
	if !(c.CanvasSize > 0) {
		return fmt.Errorf("%w: canvas_size must be positive, got %v", ErrInvalidConfig, c.CanvasSize)
	}
	if c.NeighborProbability < 0 || c.NeighborProbability > 1 {
		return fmt.Errorf("%w: neighbor_probability must be between 0 and 1, got %v", ErrInvalidConfig, c.NeighborProbability)
	}
	if c.LongRangeProbability < 0 || c.LongRangeProbability > 1 {
		return fmt.Errorf("%w: long_range_probability must be between 0 and 1, got %v", ErrInvalidConfig, c.LongRangeProbability)
	}
	if c.ThresholdMin < 0 {
		return fmt.Errorf("%w: threshold_min must be non-negative, got %v", ErrInvalidConfig, c.ThresholdMin)
	}
	if !(c.ThresholdSpan > 0) {
		return fmt.Errorf("%w: threshold_span must be positive, got %v", ErrInvalidConfig, c.ThresholdSpan)
	}
	return nil
}
