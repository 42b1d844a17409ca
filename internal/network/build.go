package network

import "fmt"

// Build generates a network of cfg.GridSize^2 units.
//
// Thresholds are drawn for every unit first, in ID order. Connections are
// then wired per unit in ID order: each of the eight Moore offsets whose
// flat ID lands in the grid with a column at most one away draws once
// against NeighborProbability, and then a single draw against
// LongRangeProbability may add a link to any unit, including the unit itself.
//
// The column guard only catches row wrap on grids at least three wide. On
// narrower grids a wrapped offset can land on the unit itself or on a
// neighbor it already drew for, so those links may repeat.
func Build(cfg Config, src RandomSource) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = NewSource()
	}

	width := cfg.GridSize
	total := width * width
	pitch := cfg.Pitch()

	units := make([]Unit, total)
	for row := 0; row < width; row++ {
		for col := 0; col < width; col++ {
			id := row*width + col
			units[id] = Unit{
				ID:        id,
				Position:  cellCenter(row, col, pitch),
				Threshold: cfg.ThresholdMin + src.Float64()*cfg.ThresholdSpan,
			}
		}
	}

	for i := range units {
		u := &units[i]

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nid := u.ID + dy*width + dx
				if !admitsNeighbor(u.ID, nid, width, total) {
					continue
				}
				if src.Float64() < cfg.NeighborProbability {
					u.Connections = append(u.Connections, nid)
				}
			}
		}

		if src.Float64() < cfg.LongRangeProbability {
			u.Connections = append(u.Connections, src.IntN(total))
		}
	}

	return &Network{Units: units, width: width, pitch: pitch, canvas: cfg.CanvasSize}, nil
}

// admitsNeighbor reports whether nid may be wired as a Moore neighbor of id.
// The column guard stops units on a row edge from wrapping onto the opposite edge.
func admitsNeighbor(id, nid, width, total int) bool {
	if nid < 0 || nid >= total {
		return false
	}
	return abs(nid%width-id%width) <= 1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// UnitSpec is the persisted form of a unit: everything Build draws at random.
type UnitSpec struct {
	Threshold   float64 `json:"threshold"`
	Connections []int   `json:"connections"`
}

// Assemble builds a network from explicit thresholds and connection lists.
// specs is indexed by unit ID and must hold exactly cfg.GridSize^2 entries.
func Assemble(cfg Config, specs []UnitSpec) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	width := cfg.GridSize
	total := width * width
	if len(specs) != total {
		return nil, fmt.Errorf("%w: expected %d units for grid %d, got %d", ErrInvalidConfig, total, width, len(specs))
	}

	pitch := cfg.Pitch()
	units := make([]Unit, total)
	for id, spec := range specs {
		for _, target := range spec.Connections {
			if target < 0 || target >= total {
				return nil, fmt.Errorf("%w: unit %d connects to %d, outside [0, %d)", ErrInvalidConfig, id, target, total)
			}
		}
		units[id] = Unit{
			ID:          id,
			Position:    cellCenter(id/width, id%width, pitch),
			Threshold:   spec.Threshold,
			Connections: append([]int(nil), spec.Connections...),
		}
	}

	return &Network{Units: units, width: width, pitch: pitch, canvas: cfg.CanvasSize}, nil
}

// Specs returns the topology of n in the form Assemble accepts.
func (n *Network) Specs() []UnitSpec {
	specs := make([]UnitSpec, len(n.Units))
	for i, u := range n.Units {
		specs[i] = UnitSpec{
			Threshold:   u.Threshold,
			Connections: append([]int(nil), u.Connections...),
		}
	}
	return specs
}
