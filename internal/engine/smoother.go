package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/strangeloop/internal/constants"
)

// ErrInvalidSmoothing is wrapped by every smoothing configuration error.
var ErrInvalidSmoothing = errors.New("invalid smoothing config")

// MaxLevel is the ceiling of both the raw metric and the smoothed level.
const MaxLevel = 100.0

// SmoothingConfig holds the fixed first-order blend of the Emergence Level.
type SmoothingConfig struct {
	// Retain is the weight of the previous level. Default: 0.95.
	Retain float64 `json:"retain" yaml:"retain"`

	// Blend is the weight of the new raw metric. Default: 0.05.
	Blend float64 `json:"blend" yaml:"blend"`
}

// DefaultSmoothingConfig returns the 0.95/0.05 blend.
func DefaultSmoothingConfig() SmoothingConfig {
	return SmoothingConfig{
		Retain: constants.DefaultSmoothingRetain,
		Blend:  constants.DefaultSmoothingBlend,
	}
}

// Validate checks that both weights are in [0, 1] and sum to 1, which keeps
// the smoothed level inside [0, MaxLevel].
func (c SmoothingConfig) Validate() error {
	if !(c.Retain >= 0 && c.Retain <= 1) {
		return fmt.Errorf("%w: retain must be between 0 and 1, got %v", ErrInvalidSmoothing, c.Retain)
	}
	if !(c.Blend >= 0 && c.Blend <= 1) {
		return fmt.Errorf("%w: blend must be between 0 and 1, got %v", ErrInvalidSmoothing, c.Blend)
	}
	if math.Abs(c.Retain+c.Blend-1) > 1e-9 {
		return fmt.Errorf("%w: retain + blend must equal 1, got %v", ErrInvalidSmoothing, c.Retain+c.Blend)
	}
	return nil
}

// Smoother is an exponential moving average over the raw emergence metric.
type Smoother struct {
	retain float64
	blend  float64
	level  float64
}

// NewSmoother creates a smoother starting at level 0.
func NewSmoother(cfg SmoothingConfig) (*Smoother, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Smoother{retain: cfg.Retain, blend: cfg.Blend}, nil
}

// Update clamps raw to [0, MaxLevel], blends it into the level and returns the new level.
func (s *Smoother) Update(raw float64) float64 {
	raw = math.Max(0, math.Min(raw, MaxLevel))
	// The clamp only absorbs floating-point rounding at the ceiling.
	s.level = math.Min(s.level*s.retain+raw*s.blend, MaxLevel)
	return s.level
}

// Level returns the current smoothed level.
func (s *Smoother) Level() float64 {
	return s.level
}

// Reset returns the level to 0.
func (s *Smoother) Reset() {
	s.level = 0
}
