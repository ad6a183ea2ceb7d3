// Package cache persists the last-settled task snapshot in a local SQLite
// database, so a fresh session has data to show before its first fetch
// settles. The cache is never authoritative; loaded entries are re-filtered
// before they reach the view.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/taskboard/taskboard/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshot (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// Snapshot is a SQLite-backed task snapshot.
type Snapshot struct {
	db *sql.DB
}

// Open opens (or creates) the snapshot database at path. The caller is
// responsible for calling Close.
func Open(path string) (*Snapshot, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Snapshot{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Snapshot) Close() error { return s.db.Close() }

// Save atomically replaces the stored snapshot with the given tasks.
func (s *Snapshot) Save(tasks []task.Task) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM snapshot`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode task %s: %w", t.ID, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO snapshot (id, data, created_at) VALUES (?,?,?)`,
			t.ID, string(data), t.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load returns the stored tasks, newest first. Rows that no longer decode
// are skipped rather than failing the whole load.
func (s *Snapshot) Load() ([]task.Task, error) {
	rows, err := s.db.Query(`SELECT data FROM snapshot ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t task.Task
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
