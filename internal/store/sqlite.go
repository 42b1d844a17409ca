package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/strangeloop/internal/engine"
	"github.com/nvandessel/strangeloop/internal/network"
	"github.com/nvandessel/strangeloop/internal/sanitize"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder is a RunStore backed by a single SQLite file.
type SQLiteRecorder struct {
	db   *sql.DB
	path string
}

var _ RunStore = (*SQLiteRecorder)(nil)

// NewSQLiteRecorder opens (or creates) the database at path.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRecorder{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteRecorder) Path() string {
	return s.path
}

// BeginRun stores the run header and every unit of net in one transaction.
func (s *SQLiteRecorder) BeginRun(ctx context.Context, info RunInfo, net *network.Network) (int64, error) {
	if net == nil || net.Len() == 0 {
		return 0, errors.New("cannot record a run without a network")
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	info.Label = sanitize.SanitizeLabel(info.Label)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (label, seed, grid_size, canvas_size, started_at) VALUES (?, ?, ?, ?, ?)`,
		info.Label, int64(info.Seed), net.Width(), net.CanvasSize(),
		info.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO units (run_id, unit_id, threshold, connections) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare unit insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range net.Units {
		conns := u.Connections
		if conns == nil {
			conns = []int{}
		}
		data, err := json.Marshal(conns)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal connections of unit %d: %w", u.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, u.ID, u.Threshold, string(data)); err != nil {
			return 0, fmt.Errorf("failed to insert unit %d: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// RecordTick writes one tick. Re-recording a tick replaces it.
func (s *SQLiteRecorder) RecordTick(ctx context.Context, runID int64, stats engine.TickStats) error {
	_, err := s.db.ExecContext(ctx, insertTickSQL,
		runID, stats.Tick, stats.Active, stats.ComplexEvents, stats.RawMetric, stats.Level)
	if err != nil {
		return fmt.Errorf("failed to record tick %d: %w", stats.Tick, err)
	}
	return nil
}

// RecordTicks writes a batch of ticks in one transaction.
func (s *SQLiteRecorder) RecordTicks(ctx context.Context, runID int64, stats []engine.TickStats) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTickSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare tick insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range stats {
		if _, err := stmt.ExecContext(ctx, runID, st.Tick, st.Active, st.ComplexEvents, st.RawMetric, st.Level); err != nil {
			return fmt.Errorf("failed to record tick %d: %w", st.Tick, err)
		}
	}
	return tx.Commit()
}

const insertTickSQL = `INSERT OR REPLACE INTO ticks (run_id, tick, active, complex_events, raw_metric, level)
VALUES (?, ?, ?, ?, ?, ?)`

const selectRunSQL = `
SELECT r.id, r.label, r.seed, r.grid_size, r.canvas_size, r.started_at,
       COUNT(t.tick), COALESCE(MAX(t.level), 0)
FROM runs r
LEFT JOIN ticks t ON t.run_id = r.id`

// ListRuns returns every run, newest first.
func (s *SQLiteRecorder) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, selectRunSQL+` GROUP BY r.id ORDER BY r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		info, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run or ErrRunNotFound.
func (s *SQLiteRecorder) GetRun(ctx context.Context, runID int64) (*RunInfo, error) {
	row := s.db.QueryRowContext(ctx, selectRunSQL+` WHERE r.id = ? GROUP BY r.id`, runID)
	info, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return info, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunInfo, error) {
	var info RunInfo
	var seed int64
	var startedAt string
	if err := row.Scan(&info.ID, &info.Label, &seed, &info.GridSize, &info.CanvasSize, &startedAt,
		&info.TickCount, &info.PeakLevel); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	info.Seed = uint64(seed)
	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at of run %d: %w", info.ID, err)
	}
	info.StartedAt = t
	return &info, nil
}

// GetTicks returns every recorded tick of a run in tick order.
func (s *SQLiteRecorder) GetTicks(ctx context.Context, runID int64) ([]engine.TickStats, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, active, complex_events, raw_metric, level FROM ticks WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []engine.TickStats
	for rows.Next() {
		var st engine.TickStats
		if err := rows.Scan(&st.Tick, &st.Active, &st.ComplexEvents, &st.RawMetric, &st.Level); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		ticks = append(ticks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ticks: %w", err)
	}
	return ticks, nil
}

// LoadNetwork reassembles the topology recorded for a run.
func (s *SQLiteRecorder) LoadNetwork(ctx context.Context, runID int64) (*network.Network, error) {
	info, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, threshold, connections FROM units WHERE run_id = ? ORDER BY unit_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	specs := make([]network.UnitSpec, 0, info.GridSize*info.GridSize)
	for rows.Next() {
		var id int
		var spec network.UnitSpec
		var conns string
		if err := rows.Scan(&id, &spec.Threshold, &conns); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		if id != len(specs) {
			return nil, fmt.Errorf("run %d is missing unit %d", runID, len(specs))
		}
		if err := json.Unmarshal([]byte(conns), &spec.Connections); err != nil {
			return nil, fmt.Errorf("failed to parse connections of unit %d: %w", id, err)
		}
		if len(spec.Connections) == 0 {
			spec.Connections = nil
		}
		specs = append(specs, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read units: %w", err)
	}

	cfg := network.DefaultConfig()
	cfg.GridSize = info.GridSize
	cfg.CanvasSize = info.CanvasSize
	net, err := network.Assemble(cfg, specs)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble run %d: %w", runID, err)
	}
	return net, nil
}

// DeleteRun removes a run with its units and ticks.
func (s *SQLiteRecorder) DeleteRun(ctx context.Context, runID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRecorder) Close() error {
	return s.db.Close()
}
