package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// ErrMissingFile is returned by OpenExisting when the database file does not exist.
var ErrMissingFile = errors.New("database file does not exist")

// connPragmas run on every new pooled connection, not just the first one.
var connPragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// DSN builds a modernc.org/sqlite data source name for dbPath with the
// connection pragmas attached.
func DSN(dbPath string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return dbPath + "?" + q.Encode()
}

// Open opens a SQLite database, sets recommended pragmas, and validates connectivity.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(driverName, DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return db, nil
}

// OpenExisting opens a single-connection handle on a database file that
// must already exist. Unlike Open it never creates the file.
func OpenExisting(ctx context.Context, dbPath string) (*sql.DB, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, dbPath)
		}
		return nil, fmt.Errorf("stat sqlite database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("sqlite database path %s is a directory", dbPath)
	}

	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set sqlite pragmas: %w", err)
	}

	return db, nil
}
