package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/strangeloop/internal/config"
	"github.com/nvandessel/strangeloop/internal/engine"
	"github.com/nvandessel/strangeloop/internal/loop"
	"github.com/nvandessel/strangeloop/internal/store"
	"github.com/nvandessel/strangeloop/internal/visualization"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the frame loop behind an HTTP and WebSocket control surface",
		Long: `Start the frame loop and serve it over HTTP.

Endpoints:
  GET  /api/state      Current frame (tick, run flag, Emergence Level, activations)
  GET  /api/topology   Connection graph (?format=json|dot)
  POST /api/stimulus   {"x": 300, "y": 300, "radius_squared": 4000}
  POST /api/toggle     Flip the run flag, or {"running": true}
  POST /api/reset      Zero activations and the Emergence Level
  POST /api/reinit     Regenerate the topology
  POST /api/step       {"count": 10}
  GET  /ws             WebSocket stream of every frame

Stops on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("paused") {
				cfg.Simulation.StartPaused, _ = cmd.Flags().GetBool("paused")
			}
			recordPath, _ := cmd.Flags().GetString("record")

			logger := newLogger(cfg)
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			hub := visualization.NewHub(logger)
			rt, err := startRuntime(ctx, cfg, recordPath, logger, loop.WithRenderer(hub))
			if err != nil {
				return err
			}
			defer rt.close()

			srv := visualization.NewServer(rt.loop,
				visualization.WithAddr(cfg.Server.Addr),
				visualization.WithHub(hub),
				visualization.WithLogger(logger),
			)

			serveErr := make(chan error, 1)
			go func() { serveErr <- srv.ListenAndServe(ctx) }()

			go func() {
				for srv.Addr() == "" {
					select {
					case <-ctx.Done():
						return
					case <-time.After(10 * time.Millisecond):
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "strangeloop serving on http://%s\n", srv.Addr())
			}()

			select {
			case err := <-serveErr:
				cancel()
				rt.wait()
				return err
			case err := <-rt.done:
				rt.exited = true
				cancel()
				<-serveErr
				return err
			}
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: config server.addr, localhost:0)")
	cmd.Flags().Bool("paused", false, "Start with the run flag off")
	cmd.Flags().String("record", "", "Record every step to this SQLite file (default: config recording.path)")

	return cmd
}

// runtime is a started frame loop with its recorders.
type runtime struct {
	loop       *loop.Loop
	done       chan error
	rec        *store.SQLiteRecorder
	tickLogger interface{ Close() }
	exited     bool
}

// startRuntime builds the engine from cfg, starts a recording if a database
// is configured, and runs the loop until ctx is cancelled.
func startRuntime(ctx context.Context, cfg *config.Config, recordPath string, logger *slog.Logger, opts ...loop.Option) (*runtime, error) {
	seed := resolveSeed(cfg)
	eng, err := engine.New(cfg.EngineConfig(),
		engine.WithRandomSource(cfg.RandomSource()),
		engine.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	eng.SetRunning(!cfg.Simulation.StartPaused)

	rt := &runtime{done: make(chan error, 1)}

	opts = append(opts, loop.WithFrameRate(cfg.Simulation.FrameRate), loop.WithLogger(logger))

	if tl := newTickLogger(cfg); tl != nil {
		rt.tickLogger = tl
		opts = append(opts, loop.WithRecorder(tl))
	}

	rec, err := openRecorder(cfg, recordPath)
	if err != nil {
		rt.close()
		return nil, err
	}
	if rec != nil {
		rt.rec = rec
		runRec, err := store.StartRun(ctx, rec, store.RunInfo{
			Label: cfg.Recording.Label,
			Seed:  seed,
		}, eng.Snapshot())
		if err != nil {
			rt.close()
			return nil, err
		}
		logger.Info("recording run", "run_id", runRec.RunID(), "path", rec.Path())
		opts = append(opts, loop.WithRecorder(runRec))
	}

	rt.loop = loop.New(eng, opts...)
	go func() { rt.done <- rt.loop.Run(ctx) }()

	logger.Debug("frame loop starting",
		"seed", seed,
		"grid", cfg.Simulation.GridSize,
		"frame_rate", cfg.Simulation.FrameRate,
		"running", !cfg.Simulation.StartPaused)
	return rt, nil
}

// wait blocks until the loop has returned.
func (rt *runtime) wait() {
	if !rt.exited {
		<-rt.done
		rt.exited = true
	}
}

// close releases the recorders. The loop must have stopped or be stopping.
func (rt *runtime) close() {
	if rt.loop != nil {
		rt.wait()
	}
	if rt.rec != nil {
		rt.rec.Close()
	}
	if rt.tickLogger != nil {
		rt.tickLogger.Close()
	}
}
