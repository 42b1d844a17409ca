package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nvandessel/strangeloop/internal/constants"
	"github.com/nvandessel/strangeloop/internal/network"
	"github.com/nvandessel/strangeloop/internal/ranking"
	"github.com/nvandessel/strangeloop/internal/visualization"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the connection graph",
		Long: `Generate a topology and output it in DOT (Graphviz) or JSON format.

Units are pinned at their grid positions, so "neato -n" renders the canvas
layout. Long-range links are dashed; repeated links carry an xN label.

Examples:
  strangeloop graph --seed 7 | neato -n -Tsvg > net.svg
  strangeloop graph --format json --grid 10
  strangeloop graph --replay 3 --db runs.db   # Topology of a recorded run
  strangeloop graph --stats --seed 7          # Degree summary only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			replay, _ := cmd.Flags().GetInt64("replay")
			dbPath, _ := cmd.Flags().GetString("db")
			statsOnly, _ := cmd.Flags().GetBool("stats")
			jsonOut, _ := cmd.Flags().GetBool("json")

			f := constants.Format(format)
			if !f.Valid() {
				return fmt.Errorf("unsupported format %q (use 'dot' or 'json')", format)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Simulation.Seed, _ = cmd.Flags().GetUint64("seed")
			}
			if cmd.Flags().Changed("grid") {
				cfg.Simulation.GridSize, _ = cmd.Flags().GetInt("grid")
			}

			var net *network.Network
			if replay != 0 {
				db, err := openHistoryDB(cfg, dbPath)
				if err != nil {
					return err
				}
				net, err = db.LoadNetwork(cmd.Context(), replay)
				db.Close()
				if err != nil {
					return err
				}
			} else {
				seed := resolveSeed(cfg)
				net, err = network.Build(cfg.EngineConfig().Topology, network.NewSeededSource(seed))
				if err != nil {
					return fmt.Errorf("build topology: %w", err)
				}
			}

			if statsOnly {
				stats := visualization.Summarize(net, nil)
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				ranks, err := ranking.ComputePageRank(net, ranking.DefaultPageRankConfig())
				if err != nil {
					return fmt.Errorf("rank units: %w", err)
				}
				printTopologyStats(cmd.OutOrStdout(), stats, ranking.TopUnits(ranks, visualization.HubCount))
				return nil
			}

			var buf bytes.Buffer
			switch f {
			case constants.FormatDOT:
				buf.WriteString(visualization.RenderDOT(net, nil))
			case constants.FormatJSON:
				enc := json.NewEncoder(&buf)
				enc.SetIndent("", "  ")
				if err := enc.Encode(visualization.RenderJSON(net, nil)); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
				return fmt.Errorf("write graph file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().Uint64("seed", 0, "Topology seed (default: config seed, else clock)")
	cmd.Flags().Int("grid", 0, "Units per side (default: config grid_size)")
	cmd.Flags().Int64("replay", 0, "Export the topology of a recorded run")
	cmd.Flags().String("db", "", "Run database for --replay (default: recording.path or ~/.strangeloop/runs.db)")
	cmd.Flags().Bool("stats", false, "Print degree statistics instead of the graph")

	return cmd
}

func printTopologyStats(w io.Writer, s visualization.TopologyStats, hubs []int) {
	fmt.Fprintf(w, "Units:            %d\n", s.Units)
	fmt.Fprintf(w, "Connections:      %d\n", s.Connections)
	fmt.Fprintf(w, "Unique edges:     %d\n", s.UniqueEdges)
	fmt.Fprintf(w, "Long-range:       %d\n", s.LongRange)
	fmt.Fprintf(w, "Self-loops:       %d\n", s.SelfLoops)
	fmt.Fprintf(w, "Duplicates:       %d\n", s.Duplicates)
	fmt.Fprintf(w, "Complex units:    %d\n", s.ComplexUnits)
	fmt.Fprintf(w, "Max out-degree:   %d\n", s.MaxOutDegree)
	fmt.Fprintf(w, "Mean out-degree:  %.3f\n", s.MeanOutDegree)
	fmt.Fprint(w, "Top hubs:        ")
	for _, id := range hubs {
		fmt.Fprintf(w, " u%d", id)
	}
	fmt.Fprintln(w)
}
