// Package store records simulation runs: the topology a run started from and
// the stats of every tick it stepped.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nvandessel/strangeloop/internal/engine"
	"github.com/nvandessel/strangeloop/internal/network"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunInfo describes a recorded run.
type RunInfo struct {
	ID         int64     `json:"id"`
	Label      string    `json:"label"`
	Seed       uint64    `json:"seed"`
	GridSize   int       `json:"grid_size"`
	CanvasSize float64   `json:"canvas_size"`
	StartedAt  time.Time `json:"started_at"`
	TickCount  int64     `json:"tick_count"`
	PeakLevel  float64   `json:"peak_level"`
}

// RunStore persists runs.
type RunStore interface {
	// BeginRun stores the run header and its topology and returns the new run ID.
	BeginRun(ctx context.Context, info RunInfo, net *network.Network) (int64, error)

	RecordTick(ctx context.Context, runID int64, stats engine.TickStats) error
	RecordTicks(ctx context.Context, runID int64, stats []engine.TickStats) error

	ListRuns(ctx context.Context) ([]RunInfo, error)
	GetRun(ctx context.Context, runID int64) (*RunInfo, error)
	GetTicks(ctx context.Context, runID int64) ([]engine.TickStats, error)

	// LoadNetwork rebuilds the topology a run started from. Activations are zero.
	LoadNetwork(ctx context.Context, runID int64) (*network.Network, error)

	Close() error
}

// RunRecorder binds a RunStore to the run currently being recorded so it can
// be handed to the frame loop as its tick recorder. Each regenerated topology
// starts a new run, so a run's ticks always belong to the topology stored
// with it.
type RunRecorder struct {
	store RunStore
	info  RunInfo
	runID atomic.Int64
}

// NewRunRecorder returns a recorder writing ticks for runID into s.
func NewRunRecorder(s RunStore, runID int64) *RunRecorder {
	r := &RunRecorder{store: s}
	r.runID.Store(runID)
	return r
}

// StartRun begins a run for net and returns a recorder bound to it. info is
// the header template for this run and every run RecordTopology begins.
func StartRun(ctx context.Context, s RunStore, info RunInfo, net *network.Network) (*RunRecorder, error) {
	r := &RunRecorder{store: s, info: info}
	if err := r.RecordTopology(ctx, net); err != nil {
		return nil, err
	}
	return r, nil
}

// RunID returns the run ticks are written to, or 0 if none is open.
func (r *RunRecorder) RunID() int64 {
	return r.runID.Load()
}

// RecordTick writes one tick. It is a no-op while no run is open.
func (r *RunRecorder) RecordTick(ctx context.Context, stats engine.TickStats) error {
	id := r.runID.Load()
	if id == 0 {
		return nil
	}
	return r.store.RecordTick(ctx, id, stats)
}

// RecordTopology begins a new run for net. If the run cannot be stored, no
// run is open and ticks are dropped until the next successful call.
func (r *RunRecorder) RecordTopology(ctx context.Context, net *network.Network) error {
	info := r.info
	info.StartedAt = time.Now().UTC()

	id, err := r.store.BeginRun(ctx, info, net)
	if err != nil {
		r.runID.Store(0)
		return fmt.Errorf("begin run: %w", err)
	}
	r.runID.Store(id)
	return nil
}

// NopRecorder discards every tick.
type NopRecorder struct{}

// RecordTick does nothing.
func (NopRecorder) RecordTick(context.Context, engine.TickStats) error { return nil }
