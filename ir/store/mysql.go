package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed Store: pooled connections and a
// ping on open.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL-backed store. dsn follows the
// go-sql-driver/mysql DSN format, e.g.
// "user:pass@tcp(localhost:3306)/layeredvm?parseTime=true".
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	run_id VARCHAR(255) NOT NULL,
	step INT NOT NULL,
	block VARCHAR(255) NOT NULL,
	vals JSON NOT NULL,
	label VARCHAR(255) NOT NULL DEFAULT '',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_run_step (run_id, step),
	KEY idx_run (run_id),
	KEY idx_label (run_id, label)
)`
	_, err := m.db.ExecContext(ctx, schema)
	return err
}

func (m *MySQLStore) Save(ctx context.Context, cp Checkpoint) error {
	valsJSON, err := json.Marshal(cp.Vals)
	if err != nil {
		return fmt.Errorf("marshal vals: %w", err)
	}
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, step, block, vals, label) VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE block=VALUES(block), vals=VALUES(vals), label=VALUES(label)`,
		cp.RunID, cp.Step, cp.Block, string(valsJSON), cp.Label)
	return err
}

func (m *MySQLStore) LoadLatest(ctx context.Context, runID string) (Checkpoint, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT run_id, step, block, vals, label, created_at FROM checkpoints
		 WHERE run_id = ? ORDER BY step DESC LIMIT 1`, runID)
	return scanCheckpoint(row)
}

func (m *MySQLStore) LoadLabel(ctx context.Context, runID, label string) (Checkpoint, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT run_id, step, block, vals, label, created_at FROM checkpoints
		 WHERE run_id = ? AND label = ? LIMIT 1`, runID, label)
	return scanCheckpoint(row)
}

func (m *MySQLStore) Close() error {
	return m.db.Close()
}
