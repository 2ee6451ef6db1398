// Package benchstore persists driver results in a sqlite database so thread
// counts and scenarios can be compared across runs.
package benchstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"crowdsim/internal/scenario"
)

// ErrNotFound is returned when no run matches a query.
var ErrNotFound = errors.New("run not found")

// schema.sql creates the runs table and the per-cycle timings.
//
//go:embed schema.sql
var schemaSQL string

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store wraps the benchmark database.
type Store struct {
	*sql.DB
	now func() time.Time
}

// Run is one stored driver result.
type Run struct {
	ID        string
	Scenario  string
	Threads   int
	Persons   int
	Cycles    int
	Ticks     uint64
	Conflicts int64
	Summary   scenario.Summary
	CreatedAt time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{DB: db, now: time.Now}, nil
}

// Record stores res under its run ID for the named scenario.
func (s *Store) Record(ctx context.Context, scenarioName string, res scenario.Result) (Run, error) {
	run := Run{
		ID:        res.RunID,
		Scenario:  scenarioName,
		Threads:   res.Threads,
		Persons:   res.Persons,
		Cycles:    len(res.Cycles),
		Ticks:     res.Ticks,
		Conflicts: res.Conflicts,
		Summary:   res.Summary,
		CreatedAt: s.now(),
	}
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, threads, persons, cycles, ticks, conflicts,
		                  mean_ms, std_ms, min_ms, max_ms, created_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Scenario, run.Threads, run.Persons, run.Cycles, int64(run.Ticks), run.Conflicts,
		run.Summary.MeanMS, run.Summary.StdMS, run.Summary.MinMS, run.Summary.MaxMS, run.CreatedAt.UnixNano())
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	for i, d := range res.Cycles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cycles (run_id, cycle, duration_ns) VALUES (?, ?, ?)`,
			run.ID, i, int64(d)); err != nil {
			return Run{}, fmt.Errorf("failed to insert cycle %d of run %s: %w", i, run.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return run, nil
}

const runColumns = `id, scenario, threads, persons, cycles, ticks, conflicts,
	mean_ms, std_ms, min_ms, max_ms, created_ns`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r       Run
		ticks   int64
		created int64
	)
	err := row.Scan(&r.ID, &r.Scenario, &r.Threads, &r.Persons, &r.Cycles, &ticks, &r.Conflicts,
		&r.Summary.MeanMS, &r.Summary.StdMS, &r.Summary.MinMS, &r.Summary.MaxMS, &created)
	if err != nil {
		return Run{}, err
	}
	r.Ticks = uint64(ticks)
	r.Summary.Count = r.Cycles
	r.CreatedAt = time.Unix(0, created)
	return r, nil
}

// Runs lists the runs of a scenario, oldest first.
func (s *Store) Runs(ctx context.Context, scenarioName string) ([]Run, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE scenario = ? ORDER BY created_ns, id`, scenarioName)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Best returns the run of a scenario with the lowest mean cycle time.
func (s *Store) Best(ctx context.Context, scenarioName string) (Run, error) {
	row := s.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE scenario = ? ORDER BY mean_ms, threads LIMIT 1`, scenarioName)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("scenario %q: %w", scenarioName, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query best run: %w", err)
	}
	return r, nil
}

// Cycles returns the stored cycle durations of a run in order.
func (s *Store) Cycles(ctx context.Context, runID string) ([]time.Duration, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT duration_ns FROM cycles WHERE run_id = ? ORDER BY cycle`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var out []time.Duration
	for rows.Next() {
		var ns int64
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		out = append(out, time.Duration(ns))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return out, nil
}
