package network

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

// scriptedSource replays fixed values so tests control every draw.
type scriptedSource struct {
	floats     []float64
	ints       []int
	floatCalls int
	intCalls   int
}

func (s *scriptedSource) Float64() float64 {
	v := s.floats[s.floatCalls%len(s.floats)]
	s.floatCalls++
	return v
}

func (s *scriptedSource) IntN(n int) int {
	s.intCalls++
	if len(s.ints) == 0 {
		return 0
	}
	return s.ints[(s.intCalls-1)%len(s.ints)] % n
}

func gridConfig(size int, pitch float64) Config {
	cfg := DefaultConfig()
	cfg.GridSize = size
	cfg.CanvasSize = float64(size) * pitch
	return cfg
}

func TestBuild_UnitCountAndIDs(t *testing.T) {
	net, err := Build(DefaultConfig(), NewSeededSource(1))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if net.Len() != 1600 {
		t.Fatalf("Len() = %d, want 1600", net.Len())
	}
	if net.Width() != 40 {
		t.Errorf("Width() = %d, want 40", net.Width())
	}
	if net.Pitch() != 15 {
		t.Errorf("Pitch() = %v, want 15", net.Pitch())
	}
	for i, u := range net.Units {
		if u.ID != i {
			t.Fatalf("Units[%d].ID = %d", i, u.ID)
		}
		if u.Activation != 0 {
			t.Errorf("unit %d starts with activation %v, want 0", i, u.Activation)
		}
	}
}

func TestBuild_PositionsAreCellCenters(t *testing.T) {
	net, err := Build(gridConfig(3, 1), NewSeededSource(1))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tests := []struct {
		id   int
		want Point
	}{
		{0, Point{0.5, 0.5}},
		{2, Point{2.5, 0.5}},
		{4, Point{1.5, 1.5}},
		{6, Point{0.5, 2.5}},
		{8, Point{2.5, 2.5}},
	}
	for _, tt := range tests {
		if got := net.Units[tt.id].Position; got != tt.want {
			t.Errorf("unit %d position = %+v, want %+v", tt.id, got, tt.want)
		}
	}
}

func TestBuild_ThresholdRange(t *testing.T) {
	net, err := Build(DefaultConfig(), NewSeededSource(7))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, u := range net.Units {
		if u.Threshold < 0.6 || u.Threshold >= 1.0 {
			t.Fatalf("unit %d threshold %v outside [0.6, 1.0)", u.ID, u.Threshold)
		}
	}
}

func TestBuild_ConnectionTargetsInRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LongRangeProbability = 0.5
	net, err := Build(cfg, NewSeededSource(3))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, u := range net.Units {
		for _, target := range u.Connections {
			if target < 0 || target >= net.Len() {
				t.Fatalf("unit %d connects to %d, outside [0, %d)", u.ID, target, net.Len())
			}
		}
	}
}

func TestBuild_NoRowWrap(t *testing.T) {
	cfg := gridConfig(10, 1)
	cfg.NeighborProbability = 1
	cfg.LongRangeProbability = 0
	net, err := Build(cfg, NewSeededSource(11))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	w := net.Width()
	for _, u := range net.Units {
		for _, target := range u.Connections {
			dr := target/w - u.ID/w
			dc := target%w - u.ID%w
			if math.Abs(float64(dr)) > 1 || math.Abs(float64(dc)) > 1 || target == u.ID {
				t.Errorf("unit %d -> %d is not a Moore neighbor (drow=%d, dcol=%d)", u.ID, target, dr, dc)
			}
		}
	}
}

func TestBuild_FullNeighborhoodOnSmallGrid(t *testing.T) {
	cfg := gridConfig(3, 1)
	cfg.NeighborProbability = 1
	cfg.LongRangeProbability = 0
	net, err := Build(cfg, NewSeededSource(5))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tests := []struct {
		name string
		id   int
		want []int
	}{
		{"top-left corner", 0, []int{1, 3, 4}},
		{"top edge", 1, []int{0, 2, 3, 4, 5}},
		{"left edge does not wrap to previous row end", 3, []int{0, 1, 4, 6, 7}},
		{"centre", 4, []int{0, 1, 2, 3, 5, 6, 7, 8}},
		{"right edge does not wrap to next row start", 5, []int{1, 2, 4, 7, 8}},
		{"bottom-right corner", 8, []int{4, 5, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := net.Units[tt.id].Connections
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("unit %d connections = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestBuild_DrawCount(t *testing.T) {
	// 3x3: nine threshold draws, one draw per admitted neighbor (corners 3,
	// edges 5, centre 8) and one long-range draw per unit. 0.99 never passes.
	src := &scriptedSource{floats: []float64{0.99}}
	net, err := Build(gridConfig(3, 1), src)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if want := 9 + (4*3 + 4*5 + 8) + 9; src.floatCalls != want {
		t.Errorf("Float64 called %d times, want %d", src.floatCalls, want)
	}
	if src.intCalls != 0 {
		t.Errorf("IntN called %d times, want 0", src.intCalls)
	}
	if net.EdgeCount() != 0 {
		t.Errorf("EdgeCount() = %d, want 0", net.EdgeCount())
	}
}

func TestBuild_LongRangeSelfLoopKept(t *testing.T) {
	// 3x3 with neighbors disabled: unit 0's long-range draw picks unit 0.
	cfg := gridConfig(3, 1)
	cfg.NeighborProbability = 0
	src := &scriptedSource{floats: []float64{0.0}, ints: []int{0, 5}}
	net, err := Build(cfg, src)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := net.Units[0].Connections; !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("connections = %v, want [0]", got)
	}
	if got := net.Units[1].Connections; !reflect.DeepEqual(got, []int{5}) {
		t.Errorf("unit 1 connections = %v, want [5]", got)
	}
}

func TestBuild_NarrowGridWrapsOntoSelf(t *testing.T) {
	// On a 1x1 grid the offsets (-1,+1) and (+1,-1) both wrap to unit 0 and
	// pass the column guard. Draws: threshold 0.5, neighbor 0.0 (pass),
	// neighbor 0.5 (fail), long-range 0.0 (pass, IntN picks 0).
	src := &scriptedSource{floats: []float64{0.5, 0.0}, ints: []int{0}}
	net, err := Build(gridConfig(1, 1), src)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := net.Units[0].Connections; !reflect.DeepEqual(got, []int{0, 0}) {
		t.Errorf("connections = %v, want [0 0]", got)
	}
	if src.floatCalls != 4 {
		t.Errorf("Float64 called %d times, want 4", src.floatCalls)
	}
	if got := net.Units[0].Threshold; math.Abs(got-0.8) > 1e-12 {
		t.Errorf("threshold = %v, want 0.8", got)
	}
}

func TestBuild_NarrowGridRepeatsNeighbor(t *testing.T) {
	// On a 2x2 grid unit 0 reaches unit 1 both at (0,+1) and, wrapped, at
	// (+1,-1). Every draw passes.
	src := &scriptedSource{floats: []float64{0.0}, ints: []int{3}}
	net, err := Build(gridConfig(2, 1), src)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []int{1, 1, 2, 3, 3}
	if got := net.Units[0].Connections; !reflect.DeepEqual(got, want) {
		t.Errorf("unit 0 connections = %v, want %v", got, want)
	}
}

func TestBuild_LongRangeMayDuplicateNeighbor(t *testing.T) {
	// Every draw passes; IntN picks unit 1, which is already a neighbor of unit 0.
	src := &scriptedSource{floats: []float64{0.0}, ints: []int{1}}
	net, err := Build(gridConfig(3, 1), src)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []int{1, 3, 4, 1}
	if got := net.Units[0].Connections; !reflect.DeepEqual(got, want) {
		t.Errorf("unit 0 connections = %v, want %v", got, want)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := Build(DefaultConfig(), NewSeededSource(42))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	b, err := Build(DefaultConfig(), NewSeededSource(42))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !reflect.DeepEqual(a.Specs(), b.Specs()) {
		t.Error("same seed produced different topologies")
	}

	c, err := Build(DefaultConfig(), NewSeededSource(43))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if reflect.DeepEqual(a.Specs(), c.Specs()) {
		t.Error("different seeds produced identical topologies")
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero grid", func(c *Config) { c.GridSize = 0 }},
		{"negative grid", func(c *Config) { c.GridSize = -4 }},
		{"oversized grid", func(c *Config) { c.GridSize = 513 }},
		{"zero canvas", func(c *Config) { c.CanvasSize = 0 }},
		{"NaN canvas", func(c *Config) { c.CanvasSize = math.NaN() }},
		{"neighbor probability above one", func(c *Config) { c.NeighborProbability = 1.5 }},
		{"negative long-range probability", func(c *Config) { c.LongRangeProbability = -0.1 }},
		{"negative threshold", func(c *Config) { c.ThresholdMin = -1 }},
		{"zero threshold span", func(c *Config) { c.ThresholdSpan = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := Build(cfg, NewSeededSource(1))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Build() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestAssemble(t *testing.T) {
	cfg := gridConfig(2, 1)

	t.Run("round trip", func(t *testing.T) {
		orig, err := Build(cfg, NewSeededSource(9))
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		got, err := Assemble(cfg, orig.Specs())
		if err != nil {
			t.Fatalf("Assemble() error = %v", err)
		}
		if !reflect.DeepEqual(got.Units, orig.Units) {
			t.Errorf("Assemble(Specs()) = %+v, want %+v", got.Units, orig.Units)
		}
	})

	t.Run("wrong unit count", func(t *testing.T) {
		_, err := Assemble(cfg, make([]UnitSpec, 3))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Assemble() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("target out of range", func(t *testing.T) {
		specs := make([]UnitSpec, 4)
		specs[2].Connections = []int{4}
		_, err := Assemble(cfg, specs)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Assemble() error = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestNetwork_CloneIsIndependent(t *testing.T) {
	net, err := Build(gridConfig(3, 1), NewSeededSource(2))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	net.Units[4].Connections = []int{0, 1}

	clone := net.Clone()
	clone.Units[4].Activation = 1
	clone.Units[4].Connections[0] = 8

	if net.Units[4].Activation != 0 {
		t.Error("clone shares activation with original")
	}
	if net.Units[4].Connections[0] != 0 {
		t.Error("clone shares connection slice with original")
	}
}
