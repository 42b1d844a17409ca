package simulation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/strangeloop/internal/constants"
	"github.com/nvandessel/strangeloop/internal/engine"
	"github.com/nvandessel/strangeloop/internal/network"
	"github.com/nvandessel/strangeloop/internal/sanitize"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario is wrapped by every scenario validation error.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario defines a complete simulation experiment.
//
// Stimuli and resets are scheduled by tick: an event at tick N is applied
// after N steps have run, so tick 0 happens before the first step. On the
// same tick, resets are applied before stimuli.
type Scenario struct {
	Name string `yaml:"name"`

	// Seed is always used as given; 0 is a valid, reproducible seed.
	Seed uint64 `yaml:"seed"`

	// GridSize and CanvasSize default to the 40x40 / 600 exhibit grid when zero.
	GridSize   int     `yaml:"grid_size,omitempty"`
	CanvasSize float64 `yaml:"canvas_size,omitempty"`

	// LongRangeProbability overrides the default 0.03 when set.
	LongRangeProbability *float64 `yaml:"long_range_probability,omitempty"`

	// Ticks is the number of steps to run.
	Ticks int `yaml:"ticks"`

	Stimuli []Stimulus `yaml:"stimuli,omitempty"`
	ResetAt []int64    `yaml:"reset_at,omitempty"`
}

// Stimulus is one scheduled stimulus injection.
type Stimulus struct {
	Tick int64   `yaml:"tick"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`

	// RadiusSquared defaults to the engine's configured radius when zero.
	RadiusSquared float64 `yaml:"radius_squared,omitempty"`
}

// Point returns the stimulus location.
func (s Stimulus) Point() network.Point {
	return network.Point{X: s.X, Y: s.Y}
}

// EngineConfig returns the engine configuration the scenario runs with.
func (s Scenario) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if s.GridSize != 0 {
		cfg.Topology.GridSize = s.GridSize
	}
	if s.CanvasSize != 0 {
		cfg.Topology.CanvasSize = s.CanvasSize
	}
	if s.LongRangeProbability != nil {
		cfg.Topology.LongRangeProbability = *s.LongRangeProbability
	}
	return cfg
}

// Validate checks the grid, the tick count and every scheduled event.
func (s Scenario) Validate() error {
	if err := s.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidScenario, s.Name, err)
	}
	if s.Ticks < 0 || s.Ticks > constants.MaxScenarioTicks {
		return fmt.Errorf("%w: %s: ticks must be between 0 and %d, got %d", ErrInvalidScenario, s.Name, constants.MaxScenarioTicks, s.Ticks)
	}
	for i, st := range s.Stimuli {
		if st.Tick < 0 || st.Tick >= int64(s.Ticks) {
			return fmt.Errorf("%w: %s: stimulus %d at tick %d is outside [0, %d)", ErrInvalidScenario, s.Name, i, st.Tick, s.Ticks)
		}
		if st.RadiusSquared < 0 {
			return fmt.Errorf("%w: %s: stimulus %d has negative radius_squared", ErrInvalidScenario, s.Name, i)
		}
	}
	for _, tick := range s.ResetAt {
		if tick < 0 || tick >= int64(s.Ticks) {
			return fmt.Errorf("%w: %s: reset at tick %d is outside [0, %d)", ErrInvalidScenario, s.Name, tick, s.Ticks)
		}
	}
	return nil
}

// Truncate returns a copy of s that runs for ticks steps. Stimuli and
// resets scheduled at or after the new tick count are dropped; dropped
// reports how many.
func (s Scenario) Truncate(ticks int) (out Scenario, dropped int) {
	out = s
	out.Ticks = ticks
	out.Stimuli = nil
	for _, st := range s.Stimuli {
		if st.Tick >= int64(ticks) {
			dropped++
			continue
		}
		out.Stimuli = append(out.Stimuli, st)
	}
	out.ResetAt = nil
	for _, tick := range s.ResetAt {
		if tick >= int64(ticks) {
			dropped++
			continue
		}
		out.ResetAt = append(out.ResetAt, tick)
	}
	return out, dropped
}

// LoadScenario reads a scenario from a YAML file and validates it. The name
// is reduced to safe characters and defaults to the file's base name.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario file: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario file: %w", err)
	}
	sc.Name = sanitize.SanitizeName(sc.Name)
	if sc.Name == "" {
		sc.Name = sanitize.SanitizeName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Result captures the trajectory of one scenario run.
type Result struct {
	Scenario Scenario

	// Ticks holds the stats of every step, in order. Ticks[i].Tick == i+1.
	Ticks []engine.TickStats

	// MaxActivations[i] is the largest unit activation after step i+1.
	MaxActivations []float64

	// Stimulated counts unit hits across all stimuli.
	Stimulated int

	PeakLevel     float64
	FinalLevel    float64
	MaxActivation float64

	// Network is the final state, activations included.
	Network *network.Network
}

// LevelAt returns the Emergence Level after the given step (1-based).
func (r *Result) LevelAt(tick int64) (float64, bool) {
	if tick < 1 || tick > int64(len(r.Ticks)) {
		return 0, false
	}
	return r.Ticks[tick-1].Level, true
}
