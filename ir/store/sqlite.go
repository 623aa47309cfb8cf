package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file Store: WAL mode, a busy timeout, and a
// single writer connection.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store at
// path. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	block TEXT NOT NULL,
	vals TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(run_id, step)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON checkpoints(run_id);
CREATE INDEX IF NOT EXISTS idx_checkpoints_label ON checkpoints(run_id, label);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, cp Checkpoint) error {
	valsJSON, err := json.Marshal(cp.Vals)
	if err != nil {
		return fmt.Errorf("marshal vals: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, step, block, vals, label) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, step) DO UPDATE SET block=excluded.block, vals=excluded.vals, label=excluded.label`,
		cp.RunID, cp.Step, cp.Block, string(valsJSON), cp.Label)
	return err
}

func (s *SQLiteStore) LoadLatest(ctx context.Context, runID string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, step, block, vals, label, created_at FROM checkpoints
		 WHERE run_id = ? ORDER BY step DESC LIMIT 1`, runID)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) LoadLabel(ctx context.Context, runID, label string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, step, block, vals, label, created_at FROM checkpoints
		 WHERE run_id = ? AND label = ? LIMIT 1`, runID, label)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (Checkpoint, error) {
	var cp Checkpoint
	var valsJSON string
	if err := row.Scan(&cp.RunID, &cp.Step, &cp.Block, &valsJSON, &cp.Label, &cp.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return Checkpoint{}, ErrNotFound
		}
		return Checkpoint{}, err
	}
	if err := json.Unmarshal([]byte(valsJSON), &cp.Vals); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal vals: %w", err)
	}
	return cp, nil
}
