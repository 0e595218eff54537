// Package history records completed reconciliation cycles in a local SQLite
// database so operators can see what changed and when.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"gitlab.bluewillows.net/root/dhdnssync/internal/reconciler"
)

// Cycle is one stored reconciliation cycle.
type Cycle struct {
	ID              int64
	StartedAt       time.Time
	FinishedAt      time.Time
	Address         string
	RecordsDeclared int
	RecordsLive     int
	Added           int
	Removed         int
	Failed          int
	DryRun          bool

	// Changes holds the non-skipped actions of the cycle in execution order.
	Changes []Change
}

// Change is one stored add or remove.
type Change struct {
	Phase  string
	Status string
	Zone   string
	Name   string
	Type   string
	Value  string
	Error  string
}

// Store persists cycles. It satisfies reconciler.Recorder.
type Store struct {
	db *sql.DB
}

var _ reconciler.Recorder = (*Store)(nil)

// OpenAt creates or opens a SQLite database at the given path.
// The parent directory is created if it does not exist.
func OpenAt(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("history: failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS cycles (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at       TEXT    NOT NULL,
			finished_at      TEXT    NOT NULL,
			address          TEXT    NOT NULL DEFAULT '',
			records_declared INTEGER NOT NULL DEFAULT 0,
			records_live     INTEGER NOT NULL DEFAULT 0,
			added            INTEGER NOT NULL DEFAULT 0,
			removed          INTEGER NOT NULL DEFAULT 0,
			failed           INTEGER NOT NULL DEFAULT 0,
			dry_run          INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS changes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id    INTEGER NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
			phase       TEXT    NOT NULL,
			status      TEXT    NOT NULL,
			zone        TEXT    NOT NULL DEFAULT '',
			name        TEXT    NOT NULL,
			type        TEXT    NOT NULL,
			value       TEXT    NOT NULL DEFAULT '',
			error       TEXT    NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_changes_cycle ON changes(cycle_id);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migration failed: %w", err)
	}
	return nil
}

// Save stores a completed cycle and its non-skipped actions.
func (s *Store) Save(ctx context.Context, result *reconciler.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cycles (started_at, finished_at, address, records_declared, records_live, added, removed, failed, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.StartTime.UTC().Format(time.RFC3339Nano), result.EndTime.UTC().Format(time.RFC3339Nano),
		result.Address, result.RecordsDeclared, result.RecordsLive,
		result.AddedCount(), result.RemovedCount(), result.FailedCount(), result.DryRun,
	)
	if err != nil {
		return fmt.Errorf("history: insert cycle: %w", err)
	}
	cycleID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("history: cycle id: %w", err)
	}

	for _, a := range result.Actions {
		if a.Status == reconciler.StatusSkipped {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO changes (cycle_id, phase, status, zone, name, type, value, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			cycleID, string(a.Phase), string(a.Status), a.Zone, a.Name, a.Type, a.Value, a.Error,
		); err != nil {
			return fmt.Errorf("history: insert change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// ListRecent returns the most recent n cycles, newest first, with their changes.
func (s *Store) ListRecent(ctx context.Context, n int) ([]Cycle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, address, records_declared, records_live, added, removed, failed, dry_run
		FROM cycles ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: list cycles: %w", err)
	}

	var cycles []Cycle
	for rows.Next() {
		var (
			c                 Cycle
			started, finished string
		)
		if err := rows.Scan(&c.ID, &started, &finished, &c.Address, &c.RecordsDeclared, &c.RecordsLive,
			&c.Added, &c.Removed, &c.Failed, &c.DryRun); err != nil {
			rows.Close()
			return nil, fmt.Errorf("history: scan cycle: %w", err)
		}
		var err error
		if c.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			rows.Close()
			return nil, fmt.Errorf("history: parse started_at of cycle %d: %w", c.ID, err)
		}
		if c.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			rows.Close()
			return nil, fmt.Errorf("history: parse finished_at of cycle %d: %w", c.ID, err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("history: list cycles: %w", err)
	}
	rows.Close()

	for i := range cycles {
		changes, err := s.changes(ctx, cycles[i].ID)
		if err != nil {
			return nil, err
		}
		cycles[i].Changes = changes
	}

	return cycles, nil
}

func (s *Store) changes(ctx context.Context, cycleID int64) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phase, status, zone, name, type, value, error
		FROM changes WHERE cycle_id = ? ORDER BY id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("history: list changes: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var ch Change
		if err := rows.Scan(&ch.Phase, &ch.Status, &ch.Zone, &ch.Name, &ch.Type, &ch.Value, &ch.Error); err != nil {
			return nil, fmt.Errorf("history: scan change: %w", err)
		}
		changes = append(changes, ch)
	}
	return changes, rows.Err()
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}
