// Package postgres implements store.Driver over PostgreSQL with pgvector,
// grounded on store/db/postgres/episodic_memory_embedding.go's placeholder
// conventions and its use of github.com/pgvector/pgvector-go's cosine `<=>`
// operator.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mnemograph/mnemograph/store"
	"github.com/mnemograph/mnemograph/store/memoryid"
)

type DB struct {
	db  *sql.DB
	gen *memoryid.Generator
}

// NewDB opens (and migrates) a PostgreSQL database at dsn.
func NewDB(dsn string) (store.Driver, error) {
	if dsn == "" {
		return nil, errors.New("postgres: dsn required")
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "postgres: open dsn %s", dsn)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

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
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS memory (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			content TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			keywords JSONB NOT NULL DEFAULT '[]',
			"timestamp" TIMESTAMPTZ NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_user ON memory(user_id)`,
		`CREATE TABLE IF NOT EXISTS memory_embedding (
			memory_id TEXT PRIMARY KEY REFERENCES memory(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL,
			embedding vector(3072) NOT NULL,
			version BIGINT NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_embedding_user ON memory_embedding(user_id)`,
		`CREATE TABLE IF NOT EXISTS repair_queue (
			id BIGSERIAL PRIMARY KEY,
			memory_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			queued_at TIMESTAMPTZ NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS cache_entry (
			user_id BIGINT NOT NULL,
			artifact TEXT NOT NULL,
			payload BYTEA NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL,
			ttl_seconds BIGINT NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (user_id, artifact)
		)`,
		`CREATE TABLE IF NOT EXISTS cluster_snapshot (
			user_id BIGINT PRIMARY KEY,
			payload BYTEA NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "postgres: migrate")
		}
	}
	return nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func placeholders(n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ", "
		}
		out += placeholder(i)
	}
	return out
}
