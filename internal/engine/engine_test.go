package engine

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/nvandessel/strangeloop/internal/network"
)

const epsilon = 1e-9

// smallConfig returns a size x size grid with unit pitch.
func smallConfig(size int) Config {
	cfg := DefaultConfig()
	cfg.Topology.GridSize = size
	cfg.Topology.CanvasSize = float64(size)
	return cfg
}

// newAssembled is a test helper that builds an engine over an explicit topology.
func newAssembled(t *testing.T, size int, specs []network.UnitSpec) *Engine {
	t.Helper()
	cfg := smallConfig(size)
	net, err := network.Assemble(cfg.Topology, specs)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	e, err := New(cfg, WithNetwork(net))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

// isolated returns n units with the given threshold and no connections.
func isolated(n int, threshold float64) []network.UnitSpec {
	specs := make([]network.UnitSpec, n)
	for i := range specs {
		specs[i].Threshold = threshold
	}
	return specs
}

func TestNew_Defaults(t *testing.T) {
	e, err := New(DefaultConfig(), WithRandomSource(network.NewSeededSource(1)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.Len() != 1600 {
		t.Errorf("Len() = %d, want 1600", e.Len())
	}
	if e.Running() {
		t.Error("new engine should start paused")
	}
	if e.EmergenceLevel() != 0 {
		t.Errorf("EmergenceLevel() = %v, want 0", e.EmergenceLevel())
	}
	for i, a := range e.Activations() {
		if a != 0 {
			t.Fatalf("unit %d starts at %v, want 0", i, a)
		}
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero grid", func(c *Config) { c.Topology.GridSize = 0 }, network.ErrInvalidConfig},
		{"retain out of range", func(c *Config) { c.Smoothing.Retain = 1.2 }, ErrInvalidSmoothing},
		{"weights do not sum to one", func(c *Config) { c.Smoothing.Blend = 0.5 }, ErrInvalidSmoothing},
		{"zero stimulus radius", func(c *Config) { c.StimulusRadiusSquared = 0 }, network.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStep_DecayWithoutReset(t *testing.T) {
	// Unit 0 fires into unit 1; nothing connects into unit 0.
	specs := isolated(4, 0.7)
	specs[0].Connections = []int{1}
	e := newAssembled(t, 2, specs)
	e.net.Units[0].Activation = 1.2

	e.Step()

	if got, want := e.net.Units[0].Activation, 0.85*1.2; math.Abs(got-want) > epsilon {
		t.Errorf("fired unit activation = %v, want %v", got, want)
	}
	if got := e.net.Units[1].Activation; math.Abs(got-FireIncrement) > epsilon {
		t.Errorf("target activation = %v, want %v", got, FireIncrement)
	}
	if e.net.Units[0].LastFired != 1 {
		t.Errorf("LastFired = %d, want 1", e.net.Units[0].LastFired)
	}
}

func TestStep_BelowThresholdOnlyDecays(t *testing.T) {
	specs := isolated(1, 0.9)
	specs[0].Connections = []int{0}
	e := newAssembled(t, 1, specs)
	e.net.Units[0].Activation = 0.8

	e.Step()

	if got, want := e.net.Units[0].Activation, 0.8*0.85; math.Abs(got-want) > epsilon {
		t.Errorf("activation = %v, want %v", got, want)
	}
	if stats := e.LastTick(); stats.Active != 0 || stats.RawMetric != 0 {
		t.Errorf("LastTick() = %+v, want no activity", stats)
	}
}

func TestStep_ThresholdIsStrict(t *testing.T) {
	e := newAssembled(t, 1, isolated(1, 0.8))
	e.net.Units[0].Activation = 0.8

	e.Step()

	if e.LastTick().Active != 0 {
		t.Error("unit at exactly its threshold must not fire")
	}
}

func TestStep_ClampsAtCeiling(t *testing.T) {
	// Unit 0 receives from four firing units plus its own decay.
	specs := isolated(9, 0.6)
	for _, id := range []int{1, 2, 3, 4} {
		specs[id].Connections = []int{0}
	}
	e := newAssembled(t, 3, specs)
	for _, id := range []int{0, 1, 2, 3, 4} {
		e.net.Units[id].Activation = StimulusActivation
	}

	e.Step()

	if got := e.net.Units[0].Activation; got != ActivationCeiling {
		t.Errorf("activation = %v, want ceiling %v", got, ActivationCeiling)
	}
}

func TestStep_DuplicateConnectionsAccumulate(t *testing.T) {
	specs := isolated(4, 0.7)
	specs[0].Connections = []int{3, 3, 3}
	e := newAssembled(t, 2, specs)
	e.net.Units[0].Activation = 1.0

	e.Step()

	if got, want := e.net.Units[3].Activation, 3*FireIncrement; math.Abs(got-want) > epsilon {
		t.Errorf("activation = %v, want %v", got, want)
	}
}

func TestStep_SynchronousUpdate(t *testing.T) {
	// 0 -> 1 -> 2. Only unit 0 is above threshold at the start, so unit 2
	// must not see anything this tick even though unit 1 is visited later.
	specs := isolated(4, 0.2)
	specs[0].Connections = []int{1}
	specs[1].Connections = []int{2}
	e := newAssembled(t, 2, specs)
	e.net.Units[0].Activation = 1.0

	e.Step()

	if got := e.net.Units[2].Activation; got != 0 {
		t.Errorf("unit 2 activation = %v, want 0 after one tick", got)
	}
	if got := e.net.Units[1].Activation; math.Abs(got-FireIncrement) > epsilon {
		t.Errorf("unit 1 activation = %v, want %v", got, FireIncrement)
	}
}

func TestStep_CountsComplexEvents(t *testing.T) {
	specs := isolated(9, 0.6)
	specs[4].Connections = []int{0, 1, 2, 3, 5}
	specs[0].Connections = []int{1, 2, 3, 4}
	e := newAssembled(t, 3, specs)
	e.net.Units[4].Activation = 1.0
	e.net.Units[0].Activation = 1.0

	e.Step()

	stats := e.LastTick()
	if stats.Active != 2 {
		t.Errorf("Active = %d, want 2", stats.Active)
	}
	if stats.ComplexEvents != 1 {
		t.Errorf("ComplexEvents = %d, want 1 (only out-degree > 4 counts)", stats.ComplexEvents)
	}
	wantRaw := 2.0/9.0*100 + 1.0/10.0
	if math.Abs(stats.RawMetric-wantRaw) > epsilon {
		t.Errorf("RawMetric = %v, want %v", stats.RawMetric, wantRaw)
	}
}

func TestStep_EmergenceSmoothing(t *testing.T) {
	// A single self-sustaining unit keeps the raw metric at 100.
	e := newAssembled(t, 1, isolated(1, 0.7))
	e.net.Units[0].Activation = StimulusActivation

	e.Step()
	if got := e.EmergenceLevel(); math.Abs(got-5.0) > epsilon {
		t.Fatalf("level after one step = %v, want 5.0", got)
	}
	if got := e.LastTick().RawMetric; got != 100 {
		t.Fatalf("raw metric = %v, want 100", got)
	}

	e.Step()
	if got := e.EmergenceLevel(); math.Abs(got-9.75) > epsilon {
		t.Errorf("level after two steps = %v, want 9.75", got)
	}
}

func TestStep_Bounds(t *testing.T) {
	e, err := New(DefaultConfig(), WithRandomSource(network.NewSeededSource(99)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e.Stimulate(network.Point{X: 300, Y: 300})
	e.Stimulate(network.Point{X: 100, Y: 500})

	for tick := 0; tick < 500; tick++ {
		if tick%50 == 0 {
			e.Stimulate(network.Point{X: float64(tick % 600), Y: 200})
		}
		e.Step()
		for _, u := range e.net.Units {
			if u.Activation < 0 || u.Activation > ActivationCeiling {
				t.Fatalf("tick %d: unit %d activation %v outside [0, %v]", tick, u.ID, u.Activation, ActivationCeiling)
			}
		}
		if lvl := e.EmergenceLevel(); lvl < 0 || lvl > MaxLevel {
			t.Fatalf("tick %d: level %v outside [0, 100]", tick, lvl)
		}
	}
}

func TestInjectStimulus_CenterOnly(t *testing.T) {
	e := newAssembled(t, 3, isolated(9, 0.8))

	hit := e.InjectStimulus(network.Point{X: 1.5, Y: 1.5}, 1)

	if hit != 1 {
		t.Errorf("InjectStimulus() hit %d units, want 1", hit)
	}
	for i, a := range e.Activations() {
		want := 0.0
		if i == 4 {
			want = StimulusActivation
		}
		if a != want {
			t.Errorf("unit %d activation = %v, want %v", i, a, want)
		}
	}
}

func TestInjectStimulus_StrictRadius(t *testing.T) {
	e := newAssembled(t, 3, isolated(9, 0.8))

	// Neighbors sit at squared distance 1 and diagonals at 2.
	hit := e.InjectStimulus(network.Point{X: 1.5, Y: 1.5}, 2)

	if hit != 5 {
		t.Errorf("InjectStimulus() hit %d units, want 5 (centre plus orthogonal neighbors)", hit)
	}
	if a := e.Activations()[0]; a != 0 {
		t.Errorf("diagonal unit activation = %v, want 0", a)
	}
}

func TestInjectStimulus_NotClampedUntilStep(t *testing.T) {
	e := newAssembled(t, 1, isolated(1, 0.7))
	e.InjectStimulus(network.Point{X: 0.5, Y: 0.5}, 1)

	if got := e.Activations()[0]; got != StimulusActivation {
		t.Fatalf("activation = %v, want %v before step", got, StimulusActivation)
	}
	if e.Tick() != 0 {
		t.Error("InjectStimulus must not step")
	}

	e.Step()
	if got := e.Activations()[0]; got != ActivationCeiling {
		t.Errorf("activation = %v, want %v after step", got, ActivationCeiling)
	}
}

func TestStimulate_UsesConfiguredRadius(t *testing.T) {
	e, err := New(DefaultConfig(), WithRandomSource(network.NewSeededSource(4)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p := network.Point{X: 300, Y: 300}

	hit := e.Stimulate(p)

	want := 0
	for _, u := range e.Units() {
		if u.Position.DistanceSquared(p) < 4000 {
			want++
		}
	}
	if hit != want || hit == 0 {
		t.Errorf("Stimulate() hit %d units, want %d", hit, want)
	}
}

func TestReset_KeepsTopology(t *testing.T) {
	e, err := New(DefaultConfig(), WithRandomSource(network.NewSeededSource(8)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	before := e.Snapshot().Specs()

	e.Stimulate(network.Point{X: 300, Y: 300})
	for i := 0; i < 20; i++ {
		e.Step()
	}
	if e.EmergenceLevel() == 0 {
		t.Fatal("expected activity before reset")
	}

	e.Reset()

	if e.EmergenceLevel() != 0 {
		t.Errorf("EmergenceLevel() = %v after reset, want 0", e.EmergenceLevel())
	}
	for i, a := range e.Activations() {
		if a != 0 {
			t.Fatalf("unit %d activation = %v after reset, want 0", i, a)
		}
	}
	if e.Len() != 1600 {
		t.Errorf("Len() = %d after reset, want 1600", e.Len())
	}
	if !reflect.DeepEqual(e.Snapshot().Specs(), before) {
		t.Error("reset changed the topology")
	}
}

func TestReinitialize_RegeneratesTopology(t *testing.T) {
	e, err := New(DefaultConfig(), WithRandomSource(network.NewSeededSource(8)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	before := e.Snapshot().Specs()
	e.Stimulate(network.Point{X: 300, Y: 300})
	e.Step()

	if err := e.Reinitialize(); err != nil {
		t.Fatalf("Reinitialize() error = %v", err)
	}

	if reflect.DeepEqual(e.Snapshot().Specs(), before) {
		t.Error("Reinitialize kept the old topology")
	}
	if e.EmergenceLevel() != 0 {
		t.Errorf("EmergenceLevel() = %v, want 0", e.EmergenceLevel())
	}
	for i, a := range e.Activations() {
		if a != 0 {
			t.Fatalf("unit %d activation = %v, want 0", i, a)
		}
	}
}

func TestRunningFlag(t *testing.T) {
	e := newAssembled(t, 1, isolated(1, 0.7))

	if !e.ToggleRunning() {
		t.Error("first toggle should start the engine")
	}
	if e.ToggleRunning() {
		t.Error("second toggle should pause the engine")
	}
	e.SetRunning(true)
	if !e.Running() {
		t.Error("SetRunning(true) did not take effect")
	}
}

func TestUnits_ReturnsCopy(t *testing.T) {
	specs := isolated(1, 0.7)
	specs[0].Connections = []int{0}
	e := newAssembled(t, 1, specs)

	units := e.Units()
	units[0].Activation = 1
	units[0].Connections[0] = 99

	if e.net.Units[0].Activation != 0 || e.net.Units[0].Connections[0] != 0 {
		t.Error("Units() exposed engine state")
	}
}
