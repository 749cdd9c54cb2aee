// Package sqlite implements store.Driver over modernc.org/sqlite, the
// teacher's actual go.mod dependency (the retrieved sqlite.go used
// mattn/go-sqlite3 under CGO for the sqlite-vec extension; this expansion
// follows go.mod instead and computes cosine similarity at the application
// layer exactly as the teacher's own memo_embedding.go fallback path does).
//
// SQLite is the single-process, local-file backend: development and
// client-side deployment, not the concurrent multi-writer target postgres
// serves.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite"

	"github.com/mnemograph/mnemograph/store"
	"github.com/mnemograph/mnemograph/store/memoryid"
)

type DB struct {
	db  *sql.DB
	gen *memoryid.Generator
}

// NewDB opens (and migrates) a SQLite database at dsn.
func NewDB(dsn string) (store.Driver, error) {
	if dsn == "" {
		return nil, errors.New("sqlite: dsn required")
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: open dsn %s", dsn)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			return nil, errors.Wrapf(err, "sqlite: set pragma %q", p)
		}
	}

	// A single connection is optimal for SQLite under WAL (mirrors the
	// teacher's own pool settings for local-file usage).
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	d := &DB{db: sqlDB, gen: memoryid.NewGenerator()}
	if err := d.migrate(context.Background()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '[]',
			timestamp INTEGER NOT NULL,
			created_ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_user ON memory(user_id)`,
		`CREATE TABLE IF NOT EXISTS memory_embedding (
			memory_id TEXT PRIMARY KEY REFERENCES memory(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL,
			vector TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_embedding_user ON memory_embedding(user_id)`,
		`CREATE TABLE IF NOT EXISTS repair_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			memory_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			queued_at INTEGER NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS cache_entry (
			user_id INTEGER NOT NULL,
			artifact TEXT NOT NULL,
			payload BLOB NOT NULL,
			generated_at INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (user_id, artifact)
		)`,
		`CREATE TABLE IF NOT EXISTS cluster_snapshot (
			user_id INTEGER PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "sqlite: migrate")
		}
	}
	return nil
}
