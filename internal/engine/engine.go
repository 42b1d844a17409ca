// Package engine implements the discrete-time spiking simulation over a
// network.Network. Each Step is a synchronous update: every unit reads the
// current activations and writes into a separate next-tick buffer, so the
// order units are visited in does not matter.
//
// An Engine is not safe for concurrent use. The loop package owns one on a
// single goroutine and serializes stimulus, control and render against Step.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/nvandessel/strangeloop/internal/constants"
	"github.com/nvandessel/strangeloop/internal/network"
)

// Step dynamics. These are fixed; changing any of them changes the
// qualitative long-run behavior of the network.
const (
	// FireIncrement is added to every target of a firing unit, once per listed connection.
	FireIncrement = 0.25

	// DecayFactor scales a unit's own activation into its next-tick value, fired or not.
	DecayFactor = 0.85

	// ActivationCeiling is the hard clamp applied after every step.
	ActivationCeiling = 1.5

	// StimulusActivation is forced onto stimulated units. It is above the
	// ceiling and stays unclamped until the next step.
	StimulusActivation = 2.0

	// ComplexConnectionThreshold is the out-degree a firing unit must exceed
	// to count as a complex event.
	ComplexConnectionThreshold = 4

	// ComplexEventDivisor scales complex events into the raw metric.
	ComplexEventDivisor = 10.0
)

// Config holds everything needed to construct an Engine.
type Config struct {
	Topology  network.Config  `json:"topology" yaml:"topology"`
	Smoothing SmoothingConfig `json:"smoothing" yaml:"smoothing"`

	// StimulusRadiusSquared is the squared radius Stimulate uses. Default: 4000.
	StimulusRadiusSquared float64 `json:"stimulus_radius_squared" yaml:"stimulus_radius_squared"`
}

// DefaultConfig returns the 40x40 exhibit configuration.
func DefaultConfig() Config {
	return Config{
		Topology:              network.DefaultConfig(),
		Smoothing:             DefaultSmoothingConfig(),
		StimulusRadiusSquared: constants.DefaultStimulusRadiusSquared,
	}
}

// Validate checks the topology, the smoothing weights and the stimulus radius.
func (c Config) Validate() error {
	if err := c.Topology.Validate(); err != nil {
		return err
	}
	if err := c.Smoothing.Validate(); err != nil {
		return err
	}
	if !(c.StimulusRadiusSquared > 0) {
		return fmt.Errorf("%w: stimulus_radius_squared must be positive, got %v", network.ErrInvalidConfig, c.StimulusRadiusSquared)
	}
	return nil
}

// TickStats summarizes one step.
type TickStats struct {
	Tick          int64   `json:"tick"`
	Active        int     `json:"active"`
	ComplexEvents int     `json:"complex_events"`
	RawMetric     float64 `json:"raw_metric"`
	Level         float64 `json:"level"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandomSource sets the source used to build (and rebuild) the topology.
func WithRandomSource(src network.RandomSource) Option {
	return func(e *Engine) { e.src = src }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithNetwork uses an existing network instead of building one.
// The engine takes ownership of net.
func WithNetwork(net *network.Network) Option {
	return func(e *Engine) { e.net = net }
}

// Engine owns a network and its Emergence Level.
type Engine struct {
	cfg      Config
	net      *network.Network
	smoother *Smoother
	src      network.RandomSource
	logger   *slog.Logger

	next    []float64
	tick    int64
	last    TickStats
	running bool
}

// New validates cfg, builds the topology and returns a paused engine with all
// activations at 0.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	smoother, err := NewSmoother(cfg.Smoothing)
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, smoother: smoother}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.src == nil {
		e.src = network.NewSource()
	}

	if e.net == nil {
		net, err := network.Build(cfg.Topology, e.src)
		if err != nil {
			return nil, fmt.Errorf("build network: %w", err)
		}
		e.net = net
	}
	if e.net.Len() == 0 {
		return nil, fmt.Errorf("%w: network has no units", network.ErrInvalidConfig)
	}

	e.next = make([]float64, e.net.Len())
	e.logger.Debug("engine initialized",
		"units", e.net.Len(),
		"edges", e.net.EdgeCount(),
		"grid", e.net.Width())

	return e, nil
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	units := e.net.Units
	next := e.next
	clear(next)
	e.tick++

	active := 0
	complexEvents := 0
	for i := range units {
		u := &units[i]
		if u.Activation > u.Threshold {
			for _, j := range u.Connections {
				next[j] += FireIncrement
			}
			u.LastFired = e.tick
			active++
			if len(u.Connections) > ComplexConnectionThreshold {
				complexEvents++
			}
		}
		// Firing does not reset the unit's own contribution.
		next[i] += u.Activation * DecayFactor
	}

	for i := range units {
		units[i].Activation = math.Min(next[i], ActivationCeiling)
	}

	raw := float64(active)/float64(len(units))*100 + float64(complexEvents)/ComplexEventDivisor
	raw = math.Min(raw, MaxLevel)
	level := e.smoother.Update(raw)

	e.last = TickStats{
		Tick:          e.tick,
		Active:        active,
		ComplexEvents: complexEvents,
		RawMetric:     raw,
		Level:         level,
	}
}

// InjectStimulus forces StimulusActivation onto every unit whose squared
// distance to p is strictly less than radiusSquared. It does not step and
// applies whether or not the engine is running. Returns the number of units hit.
func (e *Engine) InjectStimulus(p network.Point, radiusSquared float64) int {
	hit := 0
	for i := range e.net.Units {
		if e.net.Units[i].Position.DistanceSquared(p) < radiusSquared {
			e.net.Units[i].Activation = StimulusActivation
			hit++
		}
	}
	return hit
}

// Stimulate injects a stimulus at p using the configured radius.
func (e *Engine) Stimulate(p network.Point) int {
	return e.InjectStimulus(p, e.cfg.StimulusRadiusSquared)
}

// Reset zeroes every activation and the Emergence Level. Topology is kept.
func (e *Engine) Reset() {
	for i := range e.net.Units {
		e.net.Units[i].Activation = 0
		e.net.Units[i].LastFired = 0
	}
	e.smoother.Reset()
	e.last = TickStats{Tick: e.tick}
	e.logger.Debug("engine reset", "tick", e.tick)
}

// Reinitialize regenerates the topology from the engine's random source and
// zeroes all state.
func (e *Engine) Reinitialize() error {
	net, err := network.Build(e.cfg.Topology, e.src)
	if err != nil {
		return fmt.Errorf("rebuild network: %w", err)
	}
	e.net = net
	e.next = make([]float64, net.Len())
	e.smoother.Reset()
	e.last = TickStats{Tick: e.tick}
	e.logger.Debug("engine reinitialized", "units", net.Len(), "edges", net.EdgeCount())
	return nil
}

// SetRunning sets the run/pause flag. The flag is read by the frame loop; Step
// itself ignores it.
func (e *Engine) SetRunning(running bool) {
	e.running = running
}

// ToggleRunning flips the run/pause flag and returns the new value.
func (e *Engine) ToggleRunning() bool {
	e.running = !e.running
	return e.running
}

// Running reports the run/pause flag.
func (e *Engine) Running() bool {
	return e.running
}

// EmergenceLevel returns the smoothed level in [0, 100].
func (e *Engine) EmergenceLevel() float64 {
	return e.smoother.Level()
}

// LastTick returns the stats of the most recent step.
func (e *Engine) LastTick() TickStats {
	return e.last
}

// Tick returns how many steps have run since construction.
func (e *Engine) Tick() int64 {
	return e.tick
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Len returns the number of units.
func (e *Engine) Len() int {
	return e.net.Len()
}

// Width returns the grid width.
func (e *Engine) Width() int {
	return e.net.Width()
}

// Units returns a deep copy of every unit.
func (e *Engine) Units() []network.Unit {
	return e.net.Clone().Units
}

// Activations returns a copy of the current activation of every unit, by ID.
func (e *Engine) Activations() []float64 {
	out := make([]float64, len(e.net.Units))
	for i := range e.net.Units {
		out[i] = e.net.Units[i].Activation
	}
	return out
}

// Snapshot returns a deep copy of the network including current activations.
func (e *Engine) Snapshot() *network.Network {
	return e.net.Clone()
}
