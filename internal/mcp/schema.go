package mcp

import (
	"github.com/nvandessel/strangeloop/internal/engine"
	"github.com/nvandessel/strangeloop/internal/visualization"
)

// Tool names.
const (
	ToolState    = "strangeloop_state"
	ToolStep     = "strangeloop_step"
	ToolStimulus = "strangeloop_stimulus"
	ToolReset    = "strangeloop_reset"
	ToolToggle   = "strangeloop_toggle"
	ToolTopology = "strangeloop_topology"
)

// StateInput defines the input for the strangeloop_state tool.
type StateInput struct {
	IncludeUnits bool `json:"include_units,omitempty" jsonschema:"Include the activation of every unit, indexed by unit ID (default: false)"`
}

// StateOutput defines the output for the strangeloop_state tool.
type StateOutput struct {
	Tick           int64            `json:"tick" jsonschema:"Number of steps taken since the engine was created"`
	Running        bool             `json:"running" jsonschema:"Whether the frame loop is stepping the engine"`
	EmergenceLevel float64          `json:"emergence_level" jsonschema:"Smoothed activity metric in [0, 100]"`
	GridSize       int              `json:"grid_size" jsonschema:"Units per side of the grid"`
	Firing         int              `json:"firing" jsonschema:"Units whose activation currently exceeds their threshold"`
	MaxActivation  float64          `json:"max_activation" jsonschema:"Highest unit activation"`
	LastTick       engine.TickStats `json:"last_tick" jsonschema:"Stats of the most recent step"`
	Activations    []float64        `json:"activations,omitempty" jsonschema:"Unit activations by ID (only with include_units)"`
}

// StepInput defines the input for the strangeloop_step tool.
type StepInput struct {
	Count int `json:"count,omitempty" jsonschema:"Number of steps to advance, 1 to 1000 (default: 1)"`
}

// StepOutput defines the output for the strangeloop_step tool.
type StepOutput struct {
	Steps          int              `json:"steps" jsonschema:"Number of steps taken"`
	Tick           int64            `json:"tick" jsonschema:"Tick after stepping"`
	EmergenceLevel float64          `json:"emergence_level" jsonschema:"Emergence Level after stepping"`
	LastTick       engine.TickStats `json:"last_tick" jsonschema:"Stats of the final step"`
}

// StimulusInput defines the input for the strangeloop_stimulus tool.
type StimulusInput struct {
	X             float64 `json:"x" jsonschema:"Canvas x coordinate of the stimulus centre"`
	Y             float64 `json:"y" jsonschema:"Canvas y coordinate of the stimulus centre"`
	RadiusSquared float64 `json:"radius_squared,omitempty" jsonschema:"Squared radius of the stimulus (default: configured radius, 4000)"`
}

// StimulusOutput defines the output for the strangeloop_stimulus tool.
type StimulusOutput struct {
	Stimulated int    `json:"stimulated" jsonschema:"Number of units forced to the stimulus activation"`
	Message    string `json:"message" jsonschema:"Human-readable result message"`
}

// ResetInput defines the input for the strangeloop_reset tool.
type ResetInput struct {
	Reinitialize bool `json:"reinitialize,omitempty" jsonschema:"Also regenerate the topology instead of keeping it (default: false)"`
}

// ResetOutput defines the output for the strangeloop_reset tool.
type ResetOutput struct {
	Reinitialized bool   `json:"reinitialized" jsonschema:"Whether the topology was regenerated"`
	Tick          int64  `json:"tick" jsonschema:"Tick counter after the reset"`
	Message       string `json:"message" jsonschema:"Human-readable result message"`
}

// ToggleInput defines the input for the strangeloop_toggle tool.
type ToggleInput struct {
	Running *bool `json:"running,omitempty" jsonschema:"Set the run flag explicitly; omit to flip it"`
}

// ToggleOutput defines the output for the strangeloop_toggle tool.
type ToggleOutput struct {
	Running bool `json:"running" jsonschema:"Run flag after the call"`
}

// TopologyInput defines the input for the strangeloop_topology tool.
type TopologyInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: 'dot' or 'json' (default: summary only)"`
}

// TopologyOutput defines the output for the strangeloop_topology tool.
type TopologyOutput struct {
	Format string                      `json:"format,omitempty" jsonschema:"Format of graph, empty when only stats were requested"`
	Graph  interface{}                 `json:"graph,omitempty" jsonschema:"Rendered graph (DOT string or JSON object)"`
	Stats  visualization.TopologyStats `json:"stats" jsonschema:"Connection graph statistics"`
}
