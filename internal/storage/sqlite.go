// Package storage opens the SQLite history database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures the history tables exist. The path must be on a local filesystem.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}
	if err := requireLocal(path, detectFilesystemType); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the history recorder serialises its own inserts.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS surfaces (
  id           TEXT PRIMARY KEY,
  title        TEXT NOT NULL DEFAULT '',
  kind         TEXT NOT NULL,
  export_path  TEXT,
  download_dir TEXT,
  created_at   TEXT NOT NULL,
  closed_at    TEXT,
  close_reason TEXT
);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
  id         TEXT PRIMARY KEY,
  surface_id TEXT NOT NULL,
  kind       TEXT NOT NULL,
  path       TEXT NOT NULL,
  checksum   TEXT,
  created_at TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS results (
  id         TEXT PRIMARY KEY,
  surface_id TEXT NOT NULL,
  bytes      INTEGER NOT NULL,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS surfaces_created_at_idx ON surfaces(created_at);`,
		`CREATE INDEX IF NOT EXISTS artifacts_surface_idx ON artifacts(surface_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS results_surface_idx ON results(surface_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
