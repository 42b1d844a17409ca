package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ExportTicksJSONL writes every tick of a run to w, one JSON object per line.
func ExportTicksJSONL(ctx context.Context, s RunStore, runID int64, w io.Writer) (int, error) {
	ticks, err := s.GetTicks(ctx, runID)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for i, t := range ticks {
		if err := enc.Encode(t); err != nil {
			return i, fmt.Errorf("failed to write tick %d: %w", t.Tick, err)
		}
	}
	return len(ticks), nil
}
