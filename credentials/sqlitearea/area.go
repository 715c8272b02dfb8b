// Package sqlitearea stores a credential area in an SQLite file so that a
// "remember me" session survives restarts of the host process.
package sqlitearea

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrsteele09/lms-session/credentials"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `CREATE TABLE IF NOT EXISTS credential_items (
	namespace TEXT NOT NULL,
	name      TEXT NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (namespace, name)
)`

var _ credentials.Area = (*Area)(nil)

// Area is a credentials.Area persisted in one SQLite table, partitioned by namespace.
type Area struct {
	db        *sql.DB
	namespace string
}

// Open opens (creating if needed) the database at path. The file is created with owner-only permissions.
func Open(path, namespace string) (*Area, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlitearea.Open mkdir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("sqlitearea.Open create: %w", err)
	}
	_ = f.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitearea.Open: %w", err)
	}
	// A single connection serialises writers and avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	a, err := New(context.Background(), db, namespace)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// New wraps an existing database handle, creating the items table when missing.
func New(ctx context.Context, db *sql.DB, namespace string) (*Area, error) {
	if namespace == "" {
		namespace = "default"
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("sqlitearea.New schema: %w", err)
	}
	return &Area{db: db, namespace: namespace}, nil
}

func (a *Area) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := a.db.QueryRowContext(ctx,
		`SELECT value FROM credential_items WHERE namespace = ? AND name = ?`,
		a.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlitearea.Get %s: %w", key, err)
	}
	return value, true, nil
}

func (a *Area) Set(ctx context.Context, items map[string]string) error {
	return a.inTx(ctx, func(tx *sql.Tx) error {
		for k, v := range items {
			if k == "" {
				return credentials.ErrEmptyItemName
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO credential_items (namespace, name, value) VALUES (?, ?, ?)
				 ON CONFLICT(namespace, name) DO UPDATE SET value = excluded.value`,
				a.namespace, k, v,
			); err != nil {
				return fmt.Errorf("sqlitearea.Set %s: %w", k, err)
			}
		}
		return nil
	})
}

func (a *Area) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return a.inTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM credential_items WHERE namespace = ? AND name = ?`,
				a.namespace, k,
			); err != nil {
				return fmt.Errorf("sqlitearea.Delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// DB exposes the underlying handle so other namespaces can share one file.
func (a *Area) DB() *sql.DB {
	return a.db
}

// Close releases the database handle.
func (a *Area) Close() error {
	return a.db.Close()
}

func (a *Area) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitearea begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitearea commit: %w", err)
	}
	return nil
}
