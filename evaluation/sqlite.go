package evaluation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists outcomes in SQLite so calibration survives restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to an in-memory database is a separate database
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			task TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL,
			correct INTEGER NOT NULL,
			recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_agent ON outcomes(agent_id, recorded_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// Record implements Store.
func (s *SQLiteStore) Record(ctx context.Context, o Outcome) error {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}

	correct := 0
	if o.Correct {
		correct = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (agent_id, task, confidence, correct, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		o.AgentID, o.Task, o.Confidence, correct, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	return nil
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context, agentID string) (Stats, error) {
	var st Stats

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(confidence), 0),
			COALESCE(SUM(correct), 0),
			COALESCE(SUM(confidence * confidence), 0),
			COALESCE(SUM(confidence * correct), 0)
		FROM outcomes WHERE agent_id = ?`, agentID)

	if err := row.Scan(&st.N, &st.SumP, &st.SumY, &st.SumPP, &st.SumPY); err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}

	return st, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
