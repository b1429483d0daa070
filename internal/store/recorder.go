// Package store persists planner outcomes in sqlite so that strategies can be
// compared offline. Maps and targets are not persisted.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"voxel-planner/internal/grid"
	"voxel-planner/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS planner_runs (
	run_id     TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS planner_outcomes (
	outcome_id TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES planner_runs(run_id),
	tick       INTEGER NOT NULL,
	planner    TEXT NOT NULL,
	status     TEXT NOT NULL,
	waypoints  INTEGER NOT NULL,
	cost       REAL NOT NULL,
	expanded   INTEGER NOT NULL,
	iterations INTEGER NOT NULL,
	path_json  TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_planner_outcomes_run ON planner_outcomes(run_id, tick);
`

// Outcome is one recorded change of a planner's result.
type Outcome struct {
	OutcomeID  string          `json:"outcome_id"`
	RunID      string          `json:"run_id"`
	Tick       int64           `json:"tick"`
	Planner    string          `json:"planner"`
	Status     string          `json:"status"`
	Waypoints  int             `json:"waypoints"`
	Cost       float64         `json:"cost"`
	Expanded   int             `json:"expanded"`
	Iterations int             `json:"iterations"`
	PathJSON   json.RawMessage `json:"path_json,omitempty"`
	CreatedAt  int64           `json:"created_at"`
}

// Recorder is a session.Publisher that stores every change of a planner's
// status or path under a per-process run id.
type Recorder struct {
	db    *sql.DB
	runID string

	mu   sync.Mutex
	last map[string]session.Result
}

// Open opens (or creates) the database at path and starts a new run.
func Open(ctx context.Context, path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open outcome store: %w", err)
	}
	// A single connection keeps :memory: databases alive and serializes writes.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	r := &Recorder{
		db:    db,
		runID: uuid.New().String(),
		last:  make(map[string]session.Result),
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO planner_runs (run_id, started_at) VALUES (?, ?)`,
		r.runID, time.Now().UnixNano(),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("insert run: %w", err)
	}

	log.Info().Str("path", path).Str("run_id", r.runID).Msg("outcome store opened")
	return r, nil
}

// RunID identifies the outcomes written by this recorder.
func (r *Recorder) RunID() string { return r.runID }

// Close releases the database.
func (r *Recorder) Close() error { return r.db.Close() }

// Publish records the results that changed since the previous tick.
func (r *Recorder) Publish(ctx context.Context, tick uint64, results []session.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []session.Result
	for _, res := range results {
		prev, ok := r.last[res.Planner]
		if ok && !session.Changed(prev, res) {
			continue
		}
		changed = append(changed, res)
	}
	if len(changed) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outcome tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	for _, res := range changed {
		var pathJSON any
		if len(res.Path) > 0 {
			raw, err := json.Marshal(encodePath(res.Path))
			if err != nil {
				return fmt.Errorf("encode path: %w", err)
			}
			pathJSON = string(raw)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO planner_outcomes (
				outcome_id, run_id, tick, planner, status, waypoints,
				cost, expanded, iterations, path_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), r.runID, int64(tick), res.Planner, res.Status.String(), len(res.Path),
			res.Cost, res.Stats.Expanded, res.Stats.Iterations, pathJSON, now,
		)
		if err != nil {
			return fmt.Errorf("insert outcome for %s: %w", res.Planner, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outcomes: %w", err)
	}

	for _, res := range changed {
		r.last[res.Planner] = res
	}
	return nil
}

// Outcomes returns the outcomes of a run ordered by tick and planner.
func (r *Recorder) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT outcome_id, run_id, tick, planner, status, waypoints,
		       cost, expanded, iterations, path_json, created_at
		FROM planner_outcomes
		WHERE run_id = ?
		ORDER BY tick, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		var pathStr sql.NullString
		if err := rows.Scan(
			&o.OutcomeID, &o.RunID, &o.Tick, &o.Planner, &o.Status, &o.Waypoints,
			&o.Cost, &o.Expanded, &o.Iterations, &pathStr, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if pathStr.Valid {
			o.PathJSON = json.RawMessage(pathStr.String)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func encodePath(path []grid.Point) [][3]float64 {
	out := make([][3]float64, len(path))
	for i, p := range path {
		out[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return out
}
