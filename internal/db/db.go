// Package db opens the workspace-local SQLite database. All state lives in a
// hidden data directory inside the workspace, so deleting the workspace
// removes the database with it.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const dataDir = ".campusline"

// Path reports where Open places the database for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, dataDir, "campusline.db")
}

// Open opens the workspace database, creating the data directory on first
// use. Foreign keys are enforced, and writers wait out brief lock contention
// instead of failing.
func Open(workspace string) (*sql.DB, error) {
	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return conn, nil
}
