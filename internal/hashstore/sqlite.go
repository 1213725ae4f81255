package hashstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const createTable = `CREATE TABLE IF NOT EXISTS hashes (
	slug        TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL
)`

// SQLiteStore keeps hashes in a single SQLite table. Save replaces all rows in one
// transaction, so a failed save leaves the previous rows in place.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hash database: %w", err)
	}

	// One writer, and :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads every row. An empty table is a first run.
func (s *SQLiteStore) Load(ctx context.Context) (Hashes, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug, fingerprint FROM hashes`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	defer rows.Close()

	raw := map[string]string{}

	for rows.Next() {
		var slug, fp string
		if err := rows.Scan(&slug, &fp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
		}

		raw[slug] = fp
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	return validate(raw)
}

// Save replaces the table contents with hashes.
func (s *SQLiteStore) Save(ctx context.Context, hashes Hashes) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM hashes`); err != nil {
		return fmt.Errorf("failed to clear hashes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO hashes (slug, fingerprint) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for slug, fp := range hashes {
		if _, err := stmt.ExecContext(ctx, slug, fp.String()); err != nil {
			return fmt.Errorf("failed to insert hash for %s: %w", slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit hashes: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
