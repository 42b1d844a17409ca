// Package loop drives an engine.Engine at a fixed frame rate.
//
// A Loop is the only goroutine that touches its engine. Every frame it steps
// the engine if the run flag is set and then hands a Frame to the renderer,
// whether or not it stepped, so stimulus injected while paused is still
// visible. Control commands from other goroutines are queued to the loop and
// executed between frames.
package loop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nvandessel/strangeloop/internal/constants"
	"github.com/nvandessel/strangeloop/internal/engine"
	"github.com/nvandessel/strangeloop/internal/logging"
	"github.com/nvandessel/strangeloop/internal/network"
)

var (
	// ErrStopped is returned by commands posted after Run has returned.
	ErrStopped = errors.New("loop stopped")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("loop already running")
)

// Frame is the state handed to the renderer once per frame.
type Frame struct {
	Tick           int64            `json:"tick"`
	Running        bool             `json:"running"`
	EmergenceLevel float64          `json:"emergence_level"`
	GridSize       int              `json:"grid_size"`
	Stats          engine.TickStats `json:"stats"`
	Activations    []float64        `json:"activations"`
}

// Renderer receives every frame on the loop goroutine. Implementations must
// not block.
type Renderer interface {
	Render(Frame)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame)

// Render calls f(frame).
func (f RendererFunc) Render(frame Frame) { f(frame) }

// TickRecorder persists the stats of each step.
type TickRecorder interface {
	RecordTick(ctx context.Context, stats engine.TickStats) error
}

// TopologyRecorder is implemented by tick recorders that track which
// topology their ticks belong to. After every successful Reinitialize the
// loop calls RecordTopology with the new network, before the next step.
type TopologyRecorder interface {
	RecordTopology(ctx context.Context, net *network.Network) error
}

// Option configures a Loop.
type Option func(*Loop)

// WithFrameRate sets frames per second. Non-positive values are ignored.
func WithFrameRate(fps int) Option {
	return func(l *Loop) {
		if fps > 0 {
			l.interval = time.Second / time.Duration(fps)
		}
	}
}

// WithRenderer sets the frame renderer.
func WithRenderer(r Renderer) Option {
	return func(l *Loop) { l.renderer = r }
}

// WithRecorder records the stats of every step, including StepOnce steps.
// It may be given more than once; recorders run in order. Recorders are
// called with the context passed to Run, never a command's context.
func WithRecorder(r TickRecorder) Option {
	return func(l *Loop) {
		if r != nil {
			l.recorders = append(l.recorders, r)
		}
	}
}

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

type request struct {
	fn   func(*engine.Engine)
	done chan struct{}
}

// Loop owns an engine and serializes all access to it.
type Loop struct {
	eng       *engine.Engine
	interval  time.Duration
	renderer  Renderer
	recorders []TickRecorder
	logger    *slog.Logger

	// ctx is the Run context. It is set before the first frame and only
	// read on the loop goroutine.
	ctx context.Context

	requests chan request
	stopped  chan struct{}
	started  atomic.Bool
	frames   atomic.Int64
}

// New creates a loop around eng. The loop must be started with Run; until
// then commands block.
func New(eng *engine.Engine, opts ...Option) *Loop {
	l := &Loop{
		eng:      eng,
		interval: time.Second / constants.DefaultFrameRate,
		ctx:      context.Background(),
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

// Run drives frames until ctx is cancelled. It returns nil on cancellation.
// A loop can be run once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.stopped)
	l.ctx = ctx

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Debug("frame loop started", "interval", l.interval, "running", l.eng.Running())
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("frame loop stopped", "frames", l.frames.Load(), "tick", l.eng.Tick())
			return nil
		case req := <-l.requests:
			req.fn(l.eng)
			close(req.done)
		case <-ticker.C:
			l.frame()
		}
	}
}

// Frames returns how many frames have been rendered.
func (l *Loop) Frames() int64 {
	return l.frames.Load()
}

func (l *Loop) frame() {
	if l.eng.Running() {
		l.step()
	}
	l.render()
}

func (l *Loop) step() {
	l.eng.Step()
	stats := l.eng.LastTick()
	l.logger.Log(l.ctx, logging.LevelTrace, "step",
		"tick", stats.Tick,
		"active", stats.Active,
		"complex", stats.ComplexEvents,
		"level", stats.Level)

	for _, r := range l.recorders {
		if err := r.RecordTick(l.ctx, stats); err != nil {
			l.logger.Warn("failed to record tick", "tick", stats.Tick, "error", err)
		}
	}
}

func (l *Loop) render() {
	l.frames.Add(1)
	if l.renderer == nil {
		return
	}
	l.renderer.Render(l.snapshot())
}

func (l *Loop) snapshot() Frame {
	return Frame{
		Tick:           l.eng.Tick(),
		Running:        l.eng.Running(),
		EmergenceLevel: l.eng.EmergenceLevel(),
		GridSize:       l.eng.Width(),
		Stats:          l.eng.LastTick(),
		Activations:    l.eng.Activations(),
	}
}

// Do runs fn on the loop goroutine between frames and waits for it to finish.
// fn must not regenerate the topology itself; Reinitialize does that and
// notifies the recorders.
func (l *Loop) Do(ctx context.Context, fn func(*engine.Engine)) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case l.requests <- req:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}

// Stimulate injects a stimulus at p with the engine's configured radius and
// returns the number of units hit.
func (l *Loop) Stimulate(ctx context.Context, p network.Point) (int, error) {
	var hit int
	err := l.Do(ctx, func(e *engine.Engine) { hit = e.Stimulate(p) })
	return hit, err
}

// InjectStimulus injects a stimulus at p with an explicit squared radius.
func (l *Loop) InjectStimulus(ctx context.Context, p network.Point, radiusSquared float64) (int, error) {
	var hit int
	err := l.Do(ctx, func(e *engine.Engine) { hit = e.InjectStimulus(p, radiusSquared) })
	return hit, err
}

// SetRunning sets the run flag.
func (l *Loop) SetRunning(ctx context.Context, running bool) error {
	return l.Do(ctx, func(e *engine.Engine) { e.SetRunning(running) })
}

// Toggle flips the run flag and returns the new value.
func (l *Loop) Toggle(ctx context.Context) (bool, error) {
	var running bool
	err := l.Do(ctx, func(e *engine.Engine) { running = e.ToggleRunning() })
	return running, err
}

// Reset zeroes activations and the Emergence Level, keeping the topology.
func (l *Loop) Reset(ctx context.Context) error {
	return l.Do(ctx, func(e *engine.Engine) { e.Reset() })
}

// Reinitialize regenerates the topology and hands the new network to every
// TopologyRecorder. A recorder failure is logged; the new topology stays.
func (l *Loop) Reinitialize(ctx context.Context) error {
	var rerr error
	err := l.Do(ctx, func(e *engine.Engine) {
		if rerr = e.Reinitialize(); rerr == nil {
			l.recordTopology()
		}
	})
	if err != nil {
		return err
	}
	return rerr
}

func (l *Loop) recordTopology() {
	var net *network.Network
	for _, r := range l.recorders {
		tr, ok := r.(TopologyRecorder)
		if !ok {
			continue
		}
		if net == nil {
			net = l.eng.Snapshot()
		}
		if err := tr.RecordTopology(l.ctx, net); err != nil {
			l.logger.Warn("failed to record topology", "tick", l.eng.Tick(), "error", err)
		}
	}
}

// StepOnce advances the engine n times regardless of the run flag, renders
// once, and returns the stats of the last step.
func (l *Loop) StepOnce(ctx context.Context, n int) (engine.TickStats, error) {
	var stats engine.TickStats
	err := l.Do(ctx, func(e *engine.Engine) {
		for range n {
			l.step()
		}
		stats = e.LastTick()
		l.render()
	})
	return stats, err
}

// Snapshot returns the current frame without stepping.
func (l *Loop) Snapshot(ctx context.Context) (Frame, error) {
	var frame Frame
	err := l.Do(ctx, func(*engine.Engine) { frame = l.snapshot() })
	return frame, err
}

// Network returns a deep copy of the network including current activations.
func (l *Loop) Network(ctx context.Context) (*network.Network, error) {
	var net *network.Network
	err := l.Do(ctx, func(e *engine.Engine) { net = e.Snapshot() })
	return net, err
}
