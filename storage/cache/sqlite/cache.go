// Package sqlitecache is the device cache: a key/value table in a local sqlite file.
package sqlitecache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/trezcool/siku/core/progress"
)

type Cache struct {
	db *sqlx.DB
}

var _ progress.Cache = (*Cache)(nil)

// Open opens (or creates) the cache file at path.
func Open(ctx context.Context, path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating cache dir")
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite")
	}
	db.SetMaxOpenConns(1)

	const ddl = `
CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`
	if _, err = db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating kv table")
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	if err := c.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE key = ?`, key); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "reading %q", key)
	}
	return value, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string) error {
	const stmt = `
INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value;`
	_, err := c.db.ExecContext(ctx, stmt, key, value)
	return errors.Wrapf(err, "writing %q", key)
}

func (c *Cache) Remove(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return errors.Wrapf(err, "removing %q", key)
}

func (c *Cache) Close() error {
	return c.db.Close()
}
