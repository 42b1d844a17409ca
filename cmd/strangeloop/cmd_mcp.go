package main

import (
	"fmt"

	"github.com/nvandessel/strangeloop/internal/mcp"
	"github.com/nvandessel/strangeloop/internal/store"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run an MCP server over stdio",
		Long: `Run the frame loop and expose it as MCP tools over stdin/stdout.

Tools:
  strangeloop_state     Read the current frame
  strangeloop_step      Advance the engine by count steps
  strangeloop_stimulus  Stimulate units around a point
  strangeloop_reset     Zero activations, optionally regenerating the topology
  strangeloop_toggle    Flip or set the run flag
  strangeloop_topology  Describe the connection graph as DOT or JSON

Every call is appended to ~/.strangeloop/audit.jsonl. Logs go to stderr.

Example client configuration:
  {"command": "strangeloop", "args": ["mcp-server", "--paused"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("paused") {
				cfg.Simulation.StartPaused, _ = cmd.Flags().GetBool("paused")
			}
			recordPath, _ := cmd.Flags().GetString("record")

			logger := newLogger(cfg)
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rt, err := startRuntime(ctx, cfg, recordPath, logger)
			if err != nil {
				return err
			}
			defer rt.close()

			auditDir, err := store.GlobalPath()
			if err != nil {
				logger.Warn("audit log disabled", "error", err)
				auditDir = ""
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "strangeloop",
				Version:  version,
				Loop:     rt.loop,
				AuditDir: auditDir,
				Logger:   logger,
			})
			if err != nil {
				return fmt.Errorf("create MCP server: %w", err)
			}
			defer server.Close()

			err = server.Run(ctx)
			cancel()
			return err
		},
	}

	cmd.Flags().Bool("paused", false, "Start with the run flag off")
	cmd.Flags().String("record", "", "Record every step to this SQLite file (default: config recording.path)")

	return cmd
}
