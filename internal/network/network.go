// Package network builds the fixed unit grid and its small-world connection
// graph. A Network is generated once and never rewired; only unit activation
// (and the informational LastFired tick) changes over its lifetime.
package network

// Point is a coordinate in the canvas space unit positions live in.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceSquared returns the squared Euclidean distance between p and q.
func (p Point) DistanceSquared(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// Unit is a single cell of the network.
type Unit struct {
	// ID is row*width + col and is the only way connections address units.
	ID int `json:"id"`

	// Position is the centre of the unit's grid cell.
	Position Point `json:"position"`

	// Activation is the unit's current potential.
	Activation float64 `json:"activation"`

	// Threshold is the activation the unit must exceed to fire. Fixed at construction.
	Threshold float64 `json:"threshold"`

	// Connections lists outgoing targets. Duplicates and self-loops are legal.
	Connections []int `json:"connections"`

	// LastFired is the engine tick of the most recent firing, 0 if never.
	// Nothing in the step function reads it.
	LastFired int64 `json:"last_fired"`
}

// Firing reports whether the unit's activation exceeds its threshold.
func (u Unit) Firing() bool {
	return u.Activation > u.Threshold
}

// Network owns every unit of one grid.
type Network struct {
	// Units is indexed by unit ID. Callers outside the engine must treat it as read-only.
	Units []Unit

	width  int
	pitch  float64
	canvas float64
}

// Len returns the number of units.
func (n *Network) Len() int {
	return len(n.Units)
}

// Width returns the number of units per grid row.
func (n *Network) Width() int {
	return n.width
}

// Pitch returns the cell size in canvas coordinates.
func (n *Network) Pitch() float64 {
	return n.pitch
}

// CanvasSize returns the side of the coordinate space the grid spans.
func (n *Network) CanvasSize() float64 {
	return n.canvas
}

// EdgeCount returns the total number of directed connections, duplicates included.
func (n *Network) EdgeCount() int {
	total := 0
	for i := range n.Units {
		total += len(n.Units[i].Connections)
	}
	return total
}

// Clone returns a deep copy of the network.
func (n *Network) Clone() *Network {
	units := make([]Unit, len(n.Units))
	for i, u := range n.Units {
		u.Connections = append([]int(nil), u.Connections...)
		units[i] = u
	}
	return &Network{Units: units, width: n.width, pitch: n.pitch, canvas: n.canvas}
}

// cellCenter returns the position of the unit at (row, col).
func cellCenter(row, col int, pitch float64) Point {
	return Point{
		X: float64(col)*pitch + pitch/2,
		Y: float64(row)*pitch + pitch/2,
	}
}
