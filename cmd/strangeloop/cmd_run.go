package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/strangeloop/internal/config"
	"github.com/nvandessel/strangeloop/internal/network"
	"github.com/nvandessel/strangeloop/internal/simulation"
	"github.com/nvandessel/strangeloop/internal/store"
	"github.com/spf13/cobra"
)

// runSummary is the result of a headless run.
type runSummary struct {
	Scenario      string  `json:"scenario"`
	Seed          uint64  `json:"seed"`
	GridSize      int     `json:"grid_size"`
	Ticks         int     `json:"ticks"`
	Stimulated    int     `json:"stimulated"`
	FinalActive   int     `json:"final_active"`
	PeakLevel     float64 `json:"peak_level"`
	FinalLevel    float64 `json:"final_level"`
	MaxActivation float64 `json:"max_activation"`
	RunID         int64   `json:"run_id,omitempty"`
	ReplayOf      int64   `json:"replay_of,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headlessly",
		Long: `Run the simulation for a fixed number of ticks without rendering and print
a summary of the Emergence Level trajectory.

Stimuli given with --stimulus are applied before the first step. A scenario
file schedules stimuli and resets at arbitrary ticks; flags given alongside
it override the file's seed, grid and tick count.

Examples:
  strangeloop run --ticks 500 --center              # Burst at the canvas centre
  strangeloop run --seed 7 --stimulus 100,100       # Reproducible, off-centre burst
  strangeloop run --scenario burst.yaml --record runs.db
  strangeloop run --replay 3 --db runs.db --center  # Rerun recorded topology 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			scenarioPath, _ := cmd.Flags().GetString("scenario")
			recordPath, _ := cmd.Flags().GetString("record")
			replay, _ := cmd.Flags().GetInt64("replay")
			dbPath, _ := cmd.Flags().GetString("db")
			label, _ := cmd.Flags().GetString("label")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			sc, err := buildScenario(cmd, cfg, scenarioPath, logger)
			if err != nil {
				return err
			}

			var opts []simulation.Option
			opts = append(opts, simulation.WithLogger(logger))

			tickLogger := newTickLogger(cfg)
			defer tickLogger.Close()
			if tickLogger != nil {
				opts = append(opts, simulation.WithRecorder(tickLogger))
			}

			if replay != 0 {
				db, err := openHistoryDB(cfg, dbPath)
				if err != nil {
					return err
				}
				info, err := db.GetRun(ctx, replay)
				if err != nil {
					db.Close()
					return err
				}
				net, err := db.LoadNetwork(ctx, replay)
				db.Close()
				if err != nil {
					return err
				}
				sc.Seed = info.Seed
				sc.GridSize = info.GridSize
				sc.CanvasSize = info.CanvasSize
				opts = append(opts, simulation.WithNetwork(net))
			}

			rec, err := openRecorder(cfg, recordPath)
			if err != nil {
				return err
			}
			var runID int64
			if rec != nil {
				defer rec.Close()
				if label == "" {
					label = cfg.Recording.Label
				}
				if label == "" {
					label = sc.Name
				}
				opts = append(opts, simulation.WithTopologyHook(func(net *network.Network) error {
					id, err := rec.BeginRun(ctx, store.RunInfo{
						Label:      label,
						Seed:       sc.Seed,
						GridSize:   net.Width(),
						CanvasSize: net.CanvasSize(),
						StartedAt:  time.Now().UTC(),
					}, net)
					runID = id
					return err
				}))
			}

			result, err := simulation.Run(ctx, sc, opts...)
			if err != nil {
				return err
			}

			if rec != nil {
				if err := rec.RecordTicks(ctx, runID, result.Ticks); err != nil {
					return fmt.Errorf("record ticks: %w", err)
				}
				logger.Info("run recorded", "run_id", runID, "path", rec.Path(), "ticks", len(result.Ticks))
			}

			summary := runSummary{
				Scenario:      sc.Name,
				Seed:          sc.Seed,
				GridSize:      result.Network.Width(),
				Ticks:         len(result.Ticks),
				Stimulated:    result.Stimulated,
				PeakLevel:     result.PeakLevel,
				FinalLevel:    result.FinalLevel,
				MaxActivation: result.MaxActivation,
				RunID:         runID,
				ReplayOf:      replay,
			}
			if n := len(result.Ticks); n > 0 {
				summary.FinalActive = result.Ticks[n-1].Active
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			printRunSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().Int("ticks", 500, "Number of steps to run")
	cmd.Flags().Uint64("seed", 0, "Topology seed (default: config seed, else clock)")
	cmd.Flags().Int("grid", 0, "Units per side (default: config grid_size)")
	cmd.Flags().StringArray("stimulus", nil, "Stimulus at tick 0 as x,y or x,y,radius_squared (repeatable)")
	cmd.Flags().Bool("center", false, "Add a default-radius stimulus at the canvas centre at tick 0")
	cmd.Flags().String("scenario", "", "Scenario YAML file")
	cmd.Flags().String("record", "", "Record the run to this SQLite file (default: config recording.path)")
	cmd.Flags().String("label", "", "Label stored with the recorded run")
	cmd.Flags().Int64("replay", 0, "Rerun the topology of a recorded run")
	cmd.Flags().String("db", "", "Run database for --replay (default: recording.path or ~/.strangeloop/runs.db)")

	return cmd
}

// buildScenario assembles the scenario from the config, an optional file
// and explicitly set flags, in that order of precedence. A --ticks override
// drops file events scheduled at or past the new tick count.
func buildScenario(cmd *cobra.Command, cfg *config.Config, path string, logger *slog.Logger) (simulation.Scenario, error) {
	var sc simulation.Scenario
	if path != "" {
		loaded, err := simulation.LoadScenario(path)
		if err != nil {
			return simulation.Scenario{}, err
		}
		sc = loaded
	} else {
		long := cfg.Simulation.LongRangeProbability
		sc = simulation.Scenario{
			Name:                 "cli",
			Seed:                 resolveSeed(cfg),
			GridSize:             cfg.Simulation.GridSize,
			CanvasSize:           cfg.Simulation.CanvasSize,
			LongRangeProbability: &long,
		}
		sc.Ticks, _ = cmd.Flags().GetInt("ticks")
	}

	if cmd.Flags().Changed("seed") {
		sc.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	if cmd.Flags().Changed("grid") {
		sc.GridSize, _ = cmd.Flags().GetInt("grid")
	}
	if cmd.Flags().Changed("ticks") {
		ticks, _ := cmd.Flags().GetInt("ticks")
		var dropped int
		sc, dropped = sc.Truncate(ticks)
		if dropped > 0 {
			logger.Debug("dropped scenario events past --ticks", "scenario", sc.Name, "ticks", ticks, "dropped", dropped)
		}
	}

	if center, _ := cmd.Flags().GetBool("center"); center {
		sc.Stimuli = append(sc.Stimuli, simulation.CenterStimulus(sc, 0))
	}
	raw, _ := cmd.Flags().GetStringArray("stimulus")
	for _, s := range raw {
		st, err := simulation.ParseStimulus(s)
		if err != nil {
			return simulation.Scenario{}, err
		}
		sc.Stimuli = append(sc.Stimuli, st)
	}

	if err := sc.Validate(); err != nil {
		return simulation.Scenario{}, err
	}
	return sc, nil
}

func printRunSummary(cmd *cobra.Command, s runSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scenario:        %s\n", s.Scenario)
	fmt.Fprintf(out, "Seed:            %d\n", s.Seed)
	fmt.Fprintf(out, "Grid:            %dx%d\n", s.GridSize, s.GridSize)
	fmt.Fprintf(out, "Ticks:           %d\n", s.Ticks)
	fmt.Fprintf(out, "Stimulated:      %d\n", s.Stimulated)
	fmt.Fprintf(out, "Active at end:   %d\n", s.FinalActive)
	fmt.Fprintf(out, "Peak level:      %.3f\n", s.PeakLevel)
	fmt.Fprintf(out, "Final level:     %.3f\n", s.FinalLevel)
	fmt.Fprintf(out, "Max activation:  %.3f\n", s.MaxActivation)
	if s.ReplayOf != 0 {
		fmt.Fprintf(out, "Replay of run:   %d\n", s.ReplayOf)
	}
	if s.RunID != 0 {
		fmt.Fprintf(out, "Recorded as run: %d\n", s.RunID)
	}
}
