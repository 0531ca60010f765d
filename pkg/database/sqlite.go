package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // cgo-free SQLite driver
)

// MemoryDSN opens a private in-memory database. Callers must keep a single connection.
const MemoryDSN = ":memory:"

// OpenSQLite opens the SQLite database at path and applies connection pragmas.
// An in-memory database is limited to one connection so every query sees the same data.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if path == MemoryDSN {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}

	slog.Info("database: opened SQLite", "path", path)

	return db, nil
}
