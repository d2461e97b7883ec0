// Package history keeps a SQLite-backed record of past runs: which tool ran
// against which database, what it found, and where the artifact went.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS runs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           TEXT NOT NULL,
	tool             TEXT NOT NULL,
	connection       TEXT,
	database_name    TEXT,
	root_table       TEXT,
	mode             TEXT,
	tables_processed INTEGER,
	records_found    INTEGER,
	max_level        INTEGER,
	committed        BOOLEAN DEFAULT FALSE,
	duration_ms      INTEGER,
	artifact         TEXT,
	started_at       DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// Run is one recorded invocation. For cleanup runs, RootTable names the
// cascade root and Committed reports whether an execute-mode transaction
// went through; other tools leave those zero.
type Run struct {
	ID         int64
	RunID      string
	Tool       string
	Connection string // sanitized, never carries credentials
	Database   string
	RootTable  string
	Mode       string
	Tables     int
	Records    int
	MaxLevel   int
	Committed  bool
	DurationMS int64
	Artifact   string
	StartedAt  time.Time
}

// Store provides SQLite-backed run history storage.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and ensures the
// schema exists. Parent directories are created as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Add inserts a new run record. A zero StartedAt is stamped with the
// current time.
func (s *Store) Add(run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, tool, connection, database_name, root_table, mode,
		                   tables_processed, records_found, max_level, committed,
		                   duration_ms, artifact, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.Tool,
		run.Connection,
		run.Database,
		run.RootTable,
		run.Mode,
		run.Tables,
		run.Records,
		run.MaxLevel,
		run.Committed,
		run.DurationMS,
		run.Artifact,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("history add: %w", err)
	}
	return nil
}

const selectColumns = `id, run_id, tool, connection, database_name, root_table, mode,
	tables_processed, records_found, max_level, committed, duration_ms, artifact, started_at`

// Search returns runs whose root table, database, or tool matches the given
// SQL LIKE pattern. Results are ordered by most recent first, limited to
// limit rows.
func (s *Store) Search(pattern string, limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT `+selectColumns+`
		 FROM runs
		 WHERE root_table LIKE ? OR database_name LIKE ? OR tool LIKE ?
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`,
		pattern, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Recent returns the most recent runs, limited to limit rows.
func (s *Store) Recent(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT `+selectColumns+`
		 FROM runs
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Clear deletes all run records.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanRuns reads all rows from the result set into a slice of Run.
func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.Tool,
			&r.Connection,
			&r.Database,
			&r.RootTable,
			&r.Mode,
			&r.Tables,
			&r.Records,
			&r.MaxLevel,
			&r.Committed,
			&r.DurationMS,
			&r.Artifact,
			&r.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return runs, nil
}
