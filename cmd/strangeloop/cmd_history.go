package main

import (
	"fmt"

	"github.com/nvandessel/strangeloop/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
		Long: `List the runs recorded in a run database, show the per-tick trajectory
of one run, export it as JSON Lines, or delete it.

Examples:
  strangeloop history                       # List runs
  strangeloop history --run 3               # Tick table of run 3
  strangeloop history --run 3 --export      # JSONL, one tick per line
  strangeloop history --delete 3
  strangeloop history --db runs.db --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dbPath, _ := cmd.Flags().GetString("db")
			runID, _ := cmd.Flags().GetInt64("run")
			export, _ := cmd.Flags().GetBool("export")
			deleteID, _ := cmd.Flags().GetInt64("delete")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openHistoryDB(cfg, dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case deleteID != 0:
				if err := db.DeleteRun(ctx, deleteID); err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(out, map[string]interface{}{
						"status": "deleted",
						"run_id": deleteID,
					})
				}
				fmt.Fprintf(out, "Deleted run %d\n", deleteID)
				return nil

			case runID != 0 && export:
				if _, err := db.GetRun(ctx, runID); err != nil {
					return err
				}
				_, err := store.ExportTicksJSONL(ctx, db, runID, out)
				return err

			case runID != 0:
				info, err := db.GetRun(ctx, runID)
				if err != nil {
					return err
				}
				ticks, err := db.GetTicks(ctx, runID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(out, map[string]interface{}{
						"run":   info,
						"ticks": ticks,
					})
				}
				printRunHeader(cmd, *info)
				fmt.Fprintln(out)
				fmt.Fprintf(out, "%8s  %6s  %7s  %8s  %8s\n", "TICK", "ACTIVE", "COMPLEX", "RAW", "LEVEL")
				for _, t := range ticks {
					fmt.Fprintf(out, "%8d  %6d  %7d  %8.3f  %8.3f\n", t.Tick, t.Active, t.ComplexEvents, t.RawMetric, t.Level)
				}
				return nil

			case export:
				return fmt.Errorf("--export requires --run")
			}

			runs, err := db.ListRuns(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				if runs == nil {
					runs = []store.RunInfo{}
				}
				return writeJSON(out, map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
					"path":  db.Path(),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs recorded in %s\n", db.Path())
				return nil
			}
			fmt.Fprintf(out, "%d runs in %s:\n\n", len(runs), db.Path())
			fmt.Fprintf(out, "%4s  %-20s  %-20s  %4s  %6s  %8s  %s\n", "ID", "STARTED", "SEED", "GRID", "TICKS", "PEAK", "LABEL")
			for _, r := range runs {
				fmt.Fprintf(out, "%4d  %-20s  %-20d  %4d  %6d  %8.3f  %s\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Seed, r.GridSize, r.TickCount, r.PeakLevel, r.Label)
			}
			return nil
		},
	}

	cmd.Flags().String("db", "", "Run database (default: recording.path or ~/.strangeloop/runs.db)")
	cmd.Flags().Int64("run", 0, "Show the ticks of this run")
	cmd.Flags().Bool("export", false, "With --run, write ticks as JSON Lines")
	cmd.Flags().Int64("delete", 0, "Delete this run and its ticks")

	return cmd
}

func printRunHeader(cmd *cobra.Command, r store.RunInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %d", r.ID)
	if r.Label != "" {
		fmt.Fprintf(out, " (%s)", r.Label)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Started:    %s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Seed:       %d\n", r.Seed)
	fmt.Fprintf(out, "  Grid:       %dx%d on %g\n", r.GridSize, r.GridSize, r.CanvasSize)
	fmt.Fprintf(out, "  Ticks:      %d\n", r.TickCount)
	fmt.Fprintf(out, "  Peak level: %.3f\n", r.PeakLevel)
}
