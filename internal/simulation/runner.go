package simulation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/nvandessel/strangeloop/internal/engine"
	"github.com/nvandessel/strangeloop/internal/loop"
	"github.com/nvandessel/strangeloop/internal/network"
)

// Option configures a Run.
type Option func(*runner)

// WithRecorder records the stats of every step.
func WithRecorder(r loop.TickRecorder) Option {
	return func(rn *runner) {
		if r != nil {
			rn.recorders = append(rn.recorders, r)
		}
	}
}

// WithLogger sets the logger handed to the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(rn *runner) { rn.logger = logger }
}

// WithNetwork runs the scenario on an existing topology instead of building
// one from the seed. The network's grid must match the scenario's.
func WithNetwork(net *network.Network) Option {
	return func(rn *runner) { rn.net = net }
}

// WithTopologyHook is called with the freshly built network before the first
// step, for example to record it.
func WithTopologyHook(fn func(*network.Network) error) Option {
	return func(rn *runner) { rn.onTopology = fn }
}

type runner struct {
	recorders  []loop.TickRecorder
	logger     *slog.Logger
	net        *network.Network
	onTopology func(*network.Network) error
}

// Run executes the scenario headlessly and returns its trajectory.
// It checks ctx between steps.
func Run(ctx context.Context, sc Scenario, opts ...Option) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	rn := &runner{}
	for _, opt := range opts {
		opt(rn)
	}
	if rn.logger == nil {
		rn.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engOpts := []engine.Option{
		engine.WithRandomSource(network.NewSeededSource(sc.Seed)),
		engine.WithLogger(rn.logger),
	}
	if rn.net != nil {
		cfg := sc.EngineConfig().Topology
		if rn.net.Width() != cfg.GridSize {
			return nil, fmt.Errorf("%w: %s: network grid %d does not match scenario grid %d",
				ErrInvalidScenario, sc.Name, rn.net.Width(), cfg.GridSize)
		}
		engOpts = append(engOpts, engine.WithNetwork(rn.net.Clone()))
	}

	eng, err := engine.New(sc.EngineConfig(), engOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine for scenario %s: %w", sc.Name, err)
	}
	if rn.onTopology != nil {
		if err := rn.onTopology(eng.Snapshot()); err != nil {
			return nil, fmt.Errorf("topology hook: %w", err)
		}
	}

	stimuli := make(map[int64][]Stimulus, len(sc.Stimuli))
	for _, st := range sc.Stimuli {
		stimuli[st.Tick] = append(stimuli[st.Tick], st)
	}
	resets := make(map[int64]bool, len(sc.ResetAt))
	for _, tick := range sc.ResetAt {
		resets[tick] = true
	}

	result := &Result{
		Scenario:       sc,
		Ticks:          make([]engine.TickStats, 0, sc.Ticks),
		MaxActivations: make([]float64, 0, sc.Ticks),
	}

	for tick := int64(0); tick < int64(sc.Ticks); tick++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if resets[tick] {
			eng.Reset()
		}
		for _, st := range stimuli[tick] {
			r2 := st.RadiusSquared
			if r2 == 0 {
				r2 = eng.Config().StimulusRadiusSquared
			}
			result.Stimulated += eng.InjectStimulus(st.Point(), r2)
		}

		eng.Step()
		stats := eng.LastTick()
		for _, r := range rn.recorders {
			if err := r.RecordTick(ctx, stats); err != nil {
				return nil, fmt.Errorf("recording tick %d: %w", stats.Tick, err)
			}
		}

		peak := maxOf(eng.Activations())
		result.Ticks = append(result.Ticks, stats)
		result.MaxActivations = append(result.MaxActivations, peak)
		result.MaxActivation = math.Max(result.MaxActivation, peak)
		result.PeakLevel = math.Max(result.PeakLevel, stats.Level)
	}

	result.FinalLevel = eng.EmergenceLevel()
	result.Network = eng.Snapshot()

	rn.logger.Debug("scenario complete",
		"scenario", sc.Name,
		"ticks", sc.Ticks,
		"peak_level", result.PeakLevel,
		"final_level", result.FinalLevel)

	return result, nil
}

func maxOf(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
