package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/strangeloop/internal/constants"
	"github.com/nvandessel/strangeloop/internal/engine"
	"github.com/nvandessel/strangeloop/internal/network"
	"github.com/nvandessel/strangeloop/internal/ratelimit"
	"github.com/nvandessel/strangeloop/internal/visualization"
)

// registerTools registers all strangeloop MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolState,
		Description: "Get the current simulation state: tick, run flag, Emergence Level, firing units and last step stats",
	}, s.handleState)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolStep,
		Description: "Advance the simulation by count steps (1-1000) regardless of the run flag",
	}, s.handleStep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolStimulus,
		Description: "Inject a stimulus: force every unit within the squared radius of (x, y) to activation 2.0",
	}, s.handleStimulus)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolReset,
		Description: "Zero all activations and the Emergence Level, optionally regenerating the topology",
	}, s.handleReset)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolToggle,
		Description: "Pause or resume the frame loop",
	}, s.handleToggle)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolTopology,
		Description: "Summarize the connection graph, optionally rendering it in DOT (Graphviz) or JSON",
	}, s.handleTopology)
}

// handleState implements the strangeloop_state tool.
func (s *Server) handleState(ctx context.Context, req *sdk.CallToolRequest, args StateInput) (_ *sdk.CallToolResult, out StateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolState, start, out.Tick, retErr, sanitizeToolParams(map[string]interface{}{
			"include_units": args.IncludeUnits,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ToolState); err != nil {
		return nil, StateOutput{}, err
	}

	err := s.loop.Do(ctx, func(e *engine.Engine) {
		out = StateOutput{
			Tick:           e.Tick(),
			Running:        e.Running(),
			EmergenceLevel: e.EmergenceLevel(),
			GridSize:       e.Width(),
			LastTick:       e.LastTick(),
		}
		for _, u := range e.Units() {
			if u.Firing() {
				out.Firing++
			}
			if u.Activation > out.MaxActivation {
				out.MaxActivation = u.Activation
			}
		}
		if args.IncludeUnits {
			out.Activations = e.Activations()
		}
	})
	if err != nil {
		return nil, StateOutput{}, fmt.Errorf("read state: %w", err)
	}

	return nil, out, nil
}

// handleStep implements the strangeloop_step tool.
func (s *Server) handleStep(ctx context.Context, req *sdk.CallToolRequest, args StepInput) (_ *sdk.CallToolResult, out StepOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolStep, start, out.Tick, retErr, sanitizeToolParams(map[string]interface{}{
			"count": args.Count,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ToolStep); err != nil {
		return nil, StepOutput{}, err
	}

	count := args.Count
	if count == 0 {
		count = 1
	}
	if count < 1 || count > constants.MaxStepsPerRequest {
		return nil, StepOutput{}, fmt.Errorf("count must be between 1 and %d, got %d", constants.MaxStepsPerRequest, args.Count)
	}

	stats, err := s.loop.StepOnce(ctx, count)
	if err != nil {
		return nil, StepOutput{}, fmt.Errorf("step: %w", err)
	}

	return nil, StepOutput{
		Steps:          count,
		Tick:           stats.Tick,
		EmergenceLevel: stats.Level,
		LastTick:       stats,
	}, nil
}

// handleStimulus implements the strangeloop_stimulus tool.
func (s *Server) handleStimulus(ctx context.Context, req *sdk.CallToolRequest, args StimulusInput) (_ *sdk.CallToolResult, _ StimulusOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolStimulus, start, 0, retErr, sanitizeToolParams(map[string]interface{}{
			"x":              args.X,
			"y":              args.Y,
			"radius_squared": args.RadiusSquared,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ToolStimulus); err != nil {
		return nil, StimulusOutput{}, err
	}

	if args.RadiusSquared < 0 {
		return nil, StimulusOutput{}, fmt.Errorf("radius_squared must not be negative, got %v", args.RadiusSquared)
	}

	p := network.Point{X: args.X, Y: args.Y}
	var (
		hit int
		err error
	)
	if args.RadiusSquared == 0 {
		hit, err = s.loop.Stimulate(ctx, p)
	} else {
		hit, err = s.loop.InjectStimulus(ctx, p, args.RadiusSquared)
	}
	if err != nil {
		return nil, StimulusOutput{}, fmt.Errorf("stimulus: %w", err)
	}

	msg := fmt.Sprintf("Stimulated %d units around (%g, %g)", hit, args.X, args.Y)
	if hit == 0 {
		msg = fmt.Sprintf("No units within range of (%g, %g)", args.X, args.Y)
	}
	return nil, StimulusOutput{Stimulated: hit, Message: msg}, nil
}

// handleReset implements the strangeloop_reset tool.
func (s *Server) handleReset(ctx context.Context, req *sdk.CallToolRequest, args ResetInput) (_ *sdk.CallToolResult, out ResetOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolReset, start, out.Tick, retErr, sanitizeToolParams(map[string]interface{}{
			"reinitialize": args.Reinitialize,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ToolReset); err != nil {
		return nil, ResetOutput{}, err
	}

	var err error
	if args.Reinitialize {
		err = s.loop.Reinitialize(ctx)
	} else {
		err = s.loop.Reset(ctx)
	}
	if err == nil {
		err = s.loop.Do(ctx, func(e *engine.Engine) { out.Tick = e.Tick() })
	}
	if err != nil {
		return nil, ResetOutput{}, fmt.Errorf("reset: %w", err)
	}

	out.Reinitialized = args.Reinitialize
	out.Message = "Activations and Emergence Level cleared; topology kept"
	if args.Reinitialize {
		out.Message = "Topology regenerated; activations and Emergence Level cleared"
	}
	return nil, out, nil
}

// handleToggle implements the strangeloop_toggle tool.
func (s *Server) handleToggle(ctx context.Context, req *sdk.CallToolRequest, args ToggleInput) (_ *sdk.CallToolResult, _ ToggleOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolToggle, start, 0, retErr, sanitizeToolParams(map[string]interface{}{
			"running": args.Running,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ToolToggle); err != nil {
		return nil, ToggleOutput{}, err
	}

	if args.Running != nil {
		if err := s.loop.SetRunning(ctx, *args.Running); err != nil {
			return nil, ToggleOutput{}, fmt.Errorf("set running: %w", err)
		}
		return nil, ToggleOutput{Running: *args.Running}, nil
	}

	running, err := s.loop.Toggle(ctx)
	if err != nil {
		return nil, ToggleOutput{}, fmt.Errorf("toggle: %w", err)
	}
	return nil, ToggleOutput{Running: running}, nil
}

// handleTopology implements the strangeloop_topology tool.
func (s *Server) handleTopology(ctx context.Context, req *sdk.CallToolRequest, args TopologyInput) (_ *sdk.CallToolResult, _ TopologyOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolTopology, start, 0, retErr, sanitizeToolParams(map[string]interface{}{
			"format": args.Format,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ToolTopology); err != nil {
		return nil, TopologyOutput{}, err
	}

	format := constants.Format(args.Format)
	if format != "" && !format.Valid() {
		return nil, TopologyOutput{}, fmt.Errorf("unsupported format %q (use 'dot' or 'json')", args.Format)
	}

	snapshot, err := s.loop.Network(ctx)
	if err != nil {
		return nil, TopologyOutput{}, fmt.Errorf("read network: %w", err)
	}

	out := TopologyOutput{
		Format: string(format),
		Stats:  visualization.Summarize(snapshot, nil),
	}
	switch format {
	case constants.FormatDOT:
		out.Graph = visualization.RenderDOT(snapshot, nil)
	case constants.FormatJSON:
		out.Graph = visualization.RenderJSON(snapshot, nil)
	}
	return nil, out, nil
}
