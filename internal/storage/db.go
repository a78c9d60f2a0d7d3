// Package storage persists user accounts in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle. database/sql already serializes access;
// WAL mode keeps readers from blocking the writer.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database in the given directory.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "users.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                       INTEGER PRIMARY KEY AUTOINCREMENT,
			username                 TEXT NOT NULL,
			login                    TEXT NOT NULL UNIQUE,
			password                 TEXT NOT NULL,
			role                     TEXT NOT NULL DEFAULT 'Base',
			two_factor_enabled       INTEGER NOT NULL DEFAULT 0,
			two_factor_code          TEXT,
			two_factor_code_expires  INTEGER,
			created_at               DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create users table: %w", err)
	}

	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
