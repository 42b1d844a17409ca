package simulation

import (
	"fmt"
	"strconv"
	"strings"
)

// CenterStimulus returns a default-radius stimulus at the centre of the
// scenario's canvas.
func CenterStimulus(sc Scenario, tick int64) Stimulus {
	canvas := sc.EngineConfig().Topology.CanvasSize
	return Stimulus{Tick: tick, X: canvas / 2, Y: canvas / 2}
}

// ParseStimulus parses "x,y" or "x,y,radiusSquared" into a tick-0 stimulus.
func ParseStimulus(s string) (Stimulus, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return Stimulus{}, fmt.Errorf("stimulus %q: want x,y or x,y,radius_squared", s)
	}

	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Stimulus{}, fmt.Errorf("stimulus %q: %w", s, err)
		}
		values[i] = v
	}

	st := Stimulus{X: values[0], Y: values[1]}
	if len(values) == 3 {
		if values[2] <= 0 {
			return Stimulus{}, fmt.Errorf("stimulus %q: radius_squared must be positive", s)
		}
		st.RadiusSquared = values[2]
	}
	return st, nil
}
