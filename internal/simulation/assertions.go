package simulation

import (
	"testing"

	"github.com/nvandessel/strangeloop/internal/engine"
)

// AssertActivationBounded asserts that no unit exceeded the activation
// ceiling after any step.
func AssertActivationBounded(t testing.TB, result *Result) {
	t.Helper()
	for i, a := range result.MaxActivations {
		if a < 0 || a > engine.ActivationCeiling {
			t.Errorf("AssertActivationBounded: tick %d: max activation %.6f outside [0, %.2f]", i+1, a, engine.ActivationCeiling)
		}
	}
}

// AssertLevelBounded asserts that the Emergence Level stayed in [0, 100].
func AssertLevelBounded(t testing.TB, result *Result) {
	t.Helper()
	for _, st := range result.Ticks {
		if st.Level < 0 || st.Level > engine.MaxLevel {
			t.Errorf("AssertLevelBounded: tick %d: level %.6f outside [0, %.0f]", st.Tick, st.Level, engine.MaxLevel)
		}
		if st.RawMetric < 0 || st.RawMetric > engine.MaxLevel {
			t.Errorf("AssertLevelBounded: tick %d: raw metric %.6f outside [0, %.0f]", st.Tick, st.RawMetric, engine.MaxLevel)
		}
	}
}

// AssertLevelRises asserts that the level after step `to` is strictly above
// the level after step `from`.
func AssertLevelRises(t testing.TB, result *Result, from, to int64) {
	t.Helper()
	before, ok := result.LevelAt(from)
	if !ok {
		t.Errorf("AssertLevelRises: tick %d not in result (%d ticks)", from, len(result.Ticks))
		return
	}
	after, ok := result.LevelAt(to)
	if !ok {
		t.Errorf("AssertLevelRises: tick %d not in result (%d ticks)", to, len(result.Ticks))
		return
	}
	if after <= before {
		t.Errorf("AssertLevelRises: level at tick %d (%.6f) not above level at tick %d (%.6f)", to, after, from, before)
	}
}

// AssertQuiescent asserts that no unit fired on any step in [from, to].
func AssertQuiescent(t testing.TB, result *Result, from, to int64) {
	t.Helper()
	for _, st := range result.Ticks {
		if st.Tick < from || st.Tick > to {
			continue
		}
		if st.Active != 0 {
			t.Errorf("AssertQuiescent: tick %d: %d units fired", st.Tick, st.Active)
		}
	}
}

// AssertPeakAbove asserts that the level reached at least min at some point.
func AssertPeakAbove(t testing.TB, result *Result, min float64) {
	t.Helper()
	if result.PeakLevel < min {
		t.Errorf("AssertPeakAbove: peak level %.6f below %.6f", result.PeakLevel, min)
	}
}
