// Package simulation runs scripted, deterministic experiments against the
// real engine and checks properties of the resulting trajectory.
//
// A Scenario fixes the seed, grid and tick count and schedules stimuli and
// resets by tick. Scenarios are Go values in tests and YAML files for the
// "run --scenario" command. Run steps the engine headlessly, without a frame
// loop, so results are identical across machines.
//
// Usage:
//
//	func TestCentreBurstSpreads(t *testing.T) {
//	    result, err := simulation.Run(ctx, simulation.Scenario{
//	        Name:    "centre-burst",
//	        Seed:    1,
//	        Ticks:   200,
//	        Stimuli: []simulation.Stimulus{simulation.CenterStimulus(simulation.Scenario{}, 0)},
//	    })
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    simulation.AssertActivationBounded(t, result)
//	    simulation.AssertLevelRises(t, result, 1, 20)
//	}
package simulation
