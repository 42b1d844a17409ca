package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/nvandessel/strangeloop/internal/config"
	"github.com/nvandessel/strangeloop/internal/logging"
	"github.com/nvandessel/strangeloop/internal/store"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "strangeloop",
		Short: "Spiking network emergence simulator",
		Long: `strangeloop simulates a grid of threshold units wired as a small-world
network and tracks a smoothed Emergence Level of their collective firing.

Run it headless, serve it over HTTP and WebSocket, or drive it from an
MCP client.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.strangeloop/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newServeCmd(),
		newMCPServerCmd(),
		newGraphCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)

	return rootCmd
}

// loadConfig loads and validates configuration, honouring --config and --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithOverride(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns the operational logger. It always writes to stderr so
// stdout stays free for command output and the MCP stdio transport.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, os.Stderr)
}

// newTickLogger opens ticks.jsonl under the logging directory. It returns
// nil at info level.
func newTickLogger(cfg *config.Config) *logging.TickLogger {
	dir := cfg.Logging.Dir
	if dir == "" {
		global, err := store.GlobalPath()
		if err != nil {
			return nil
		}
		dir = global
	}
	return logging.NewTickLogger(dir, cfg.Logging.Level)
}

// resolveSeed replaces a zero seed with a clock-derived one so every run
// has a seed that reproduces it.
func resolveSeed(cfg *config.Config) uint64 {
	if cfg.Simulation.Seed == 0 {
		cfg.Simulation.Seed = uint64(time.Now().UnixNano())
	}
	return cfg.Simulation.Seed
}

// openRecorder opens the run database at path, falling back to the
// configured recording path. It returns nil when recording is disabled.
func openRecorder(cfg *config.Config, path string) (*store.SQLiteRecorder, error) {
	if path == "" {
		path = cfg.Recording.Path
	}
	if path == "" {
		return nil, nil
	}
	rec, err := store.NewSQLiteRecorder(path)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	return rec, nil
}

// openHistoryDB opens the database history commands read, defaulting to
// the configured recording path and then ~/.strangeloop/runs.db.
func openHistoryDB(cfg *config.Config, path string) (*store.SQLiteRecorder, error) {
	if path == "" {
		path = cfg.Recording.Path
	}
	if path == "" {
		defaultPath, err := store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("run database %s: %w", path, err)
	}
	return store.NewSQLiteRecorder(path)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
