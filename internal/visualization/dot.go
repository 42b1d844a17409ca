// Package visualization exports network topology and serves the HTTP and
// WebSocket control surface around a running frame loop.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/strangeloop/internal/engine"
	"github.com/nvandessel/strangeloop/internal/network"
	"github.com/nvandessel/strangeloop/internal/ranking"
)

// HubCount is the number of top-ranked units a Graph lists as hubs.
const HubCount = 5

// Node is one unit in exported graph form.
type Node struct {
	ID         int     `json:"id"`
	Row        int     `json:"row"`
	Col        int     `json:"col"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Threshold  float64 `json:"threshold"`
	Activation float64 `json:"activation"`
	Firing     bool    `json:"firing"`
	LastFired  int64   `json:"last_fired"`
	OutDegree  int     `json:"out_degree"`

	// Rank is the unit's PageRank over the connection graph, normalized to
	// a maximum of 1.
	Rank float64 `json:"rank"`
}

// Edge is a directed source->target link. Count is how many times the
// target appears in the source's connection list.
type Edge struct {
	Source    int  `json:"source"`
	Target    int  `json:"target"`
	Count     int  `json:"count"`
	LongRange bool `json:"long_range"`
}

// TopologyStats summarizes a network's connection graph.
type TopologyStats struct {
	Units       int `json:"units"`
	Connections int `json:"connections"`
	UniqueEdges int `json:"unique_edges"`

	// LongRange counts connections whose target is not a Moore neighbour.
	// A long-range draw that lands on a neighbour is indistinguishable from a
	// neighbour link and is counted as local.
	LongRange  int `json:"long_range"`
	SelfLoops  int `json:"self_loops"`
	Duplicates int `json:"duplicates"`

	// ComplexUnits counts units whose firing would register a complex event.
	ComplexUnits  int     `json:"complex_units"`
	Firing        int     `json:"firing"`
	MaxOutDegree  int     `json:"max_out_degree"`
	MeanOutDegree float64 `json:"mean_out_degree"`
}

// Graph is the JSON export of a network.
type Graph struct {
	GridSize   int           `json:"grid_size"`
	Pitch      float64       `json:"pitch"`
	CanvasSize float64       `json:"canvas_size"`
	Nodes      []Node        `json:"nodes"`
	Edges      []Edge        `json:"edges"`
	Stats      TopologyStats `json:"stats"`

	// Hubs lists the highest-ranked unit IDs, best first.
	Hubs []int `json:"hubs"`
}

// RenderDOT produces a Graphviz DOT representation of the network. Nodes are
// pinned to their canvas position (use neato -n), firing units are filled red
// and long-range links are dashed. activations overrides unit activations
// when it has one entry per unit; pass nil to use the network's own.
func RenderDOT(net *network.Network, activations []float64) string {
	var b strings.Builder
	b.WriteString("digraph strangeloop {\n")
	b.WriteString("  node [shape=circle, style=filled, fontsize=8, width=0.2, fixedsize=true];\n")
	b.WriteString("  edge [arrowsize=0.3];\n")

	for _, u := range net.Units {
		a := activationOf(net, activations, u.ID)
		fill := "lightgray"
		if a > u.Threshold {
			fill = "tomato"
		}
		fmt.Fprintf(&b, "  %q [label=%q, pos=\"%g,%g!\", fillcolor=%q, tooltip=%q];\n",
			nodeName(u.ID), fmt.Sprint(u.ID), u.Position.X, -u.Position.Y, fill,
			fmt.Sprintf("a=%.3f t=%.3f", a, u.Threshold))
	}

	for _, e := range collectEdges(net) {
		attrs := []string{}
		if e.LongRange {
			attrs = append(attrs, "style=dashed")
		}
		if e.Count > 1 {
			attrs = append(attrs, fmt.Sprintf("label=\"x%d\"", e.Count), fmt.Sprintf("penwidth=%d", e.Count))
		}
		if len(attrs) == 0 {
			fmt.Fprintf(&b, "  %q -> %q;\n", nodeName(e.Source), nodeName(e.Target))
			continue
		}
		fmt.Fprintf(&b, "  %q -> %q [%s];\n", nodeName(e.Source), nodeName(e.Target), strings.Join(attrs, ", "))
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces a Graph for the network. activations is handled as in RenderDOT.
func RenderJSON(net *network.Network, activations []float64) *Graph {
	width := net.Width()
	ranks, err := ranking.ComputePageRank(net, ranking.DefaultPageRankConfig())
	if err != nil {
		// The default config is valid.
		ranks = make([]float64, net.Len())
	}
	nodes := make([]Node, 0, net.Len())
	for _, u := range net.Units {
		a := activationOf(net, activations, u.ID)
		nodes = append(nodes, Node{
			ID:         u.ID,
			Row:        u.ID / width,
			Col:        u.ID % width,
			X:          u.Position.X,
			Y:          u.Position.Y,
			Threshold:  u.Threshold,
			Activation: a,
			Firing:     a > u.Threshold,
			LastFired:  u.LastFired,
			OutDegree:  len(u.Connections),
			Rank:       ranks[u.ID],
		})
	}

	return &Graph{
		GridSize:   width,
		Pitch:      net.Pitch(),
		CanvasSize: net.CanvasSize(),
		Nodes:      nodes,
		Edges:      collectEdges(net),
		Stats:      Summarize(net, activations),
		Hubs:       ranking.TopUnits(ranks, HubCount),
	}
}

// Summarize computes topology statistics for the network.
func Summarize(net *network.Network, activations []float64) TopologyStats {
	stats := TopologyStats{Units: net.Len()}
	width := net.Width()

	for _, u := range net.Units {
		deg := len(u.Connections)
		stats.Connections += deg
		if deg > stats.MaxOutDegree {
			stats.MaxOutDegree = deg
		}
		if deg > engine.ComplexConnectionThreshold {
			stats.ComplexUnits++
		}
		if activationOf(net, activations, u.ID) > u.Threshold {
			stats.Firing++
		}
		for _, target := range u.Connections {
			if target == u.ID {
				stats.SelfLoops++
			}
			if !isNeighbor(u.ID, target, width) {
				stats.LongRange++
			}
		}
	}

	stats.UniqueEdges = len(collectEdges(net))
	stats.Duplicates = stats.Connections - stats.UniqueEdges
	if stats.Units > 0 {
		stats.MeanOutDegree = float64(stats.Connections) / float64(stats.Units)
	}
	return stats
}

// collectEdges folds each unit's connection list into unique edges, in id
// order and then first-appearance order of targets.
func collectEdges(net *network.Network) []Edge {
	width := net.Width()
	edges := make([]Edge, 0, net.EdgeCount())
	for _, u := range net.Units {
		index := make(map[int]int, len(u.Connections))
		for _, target := range u.Connections {
			if i, ok := index[target]; ok {
				edges[i].Count++
				continue
			}
			index[target] = len(edges)
			edges = append(edges, Edge{
				Source:    u.ID,
				Target:    target,
				Count:     1,
				LongRange: !isNeighbor(u.ID, target, width),
			})
		}
	}
	return edges
}

// isNeighbor reports whether b is in a's Moore neighbourhood. A unit is not
// its own neighbour, so self-loops are long-range.
func isNeighbor(a, b, width int) bool {
	if a == b {
		return false
	}
	dr := a/width - b/width
	dc := a%width - b%width
	return dr >= -1 && dr <= 1 && dc >= -1 && dc <= 1
}

func activationOf(net *network.Network, activations []float64, id int) float64 {
	if len(activations) == net.Len() {
		return activations[id]
	}
	return net.Units[id].Activation
}

func nodeName(id int) string {
	return fmt.Sprintf("u%d", id)
}
