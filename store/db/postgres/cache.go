package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/mnemograph/mnemograph/store"
)

func (d *DB) LoadCacheEntry(ctx context.Context, userID int64, artifact string) (*store.CacheEntry, bool, error) {
	var e store.CacheEntry
	var ttlSeconds int64
	e.UserID = userID
	e.Artifact = artifact

	stmt := `SELECT payload, generated_at, ttl_seconds, digest FROM cache_entry
		WHERE user_id = ` + placeholder(1) + ` AND artifact = ` + placeholder(2)
	err := d.db.QueryRowContext(ctx, stmt, userID, artifact).
		Scan(&e.Payload, &e.GeneratedAt, &ttlSeconds, &e.Digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "postgres: load cache entry")
	}
	e.TTL = time.Duration(ttlSeconds) * time.Second
	return &e, true, nil
}

func (d *DB) SaveCacheEntry(ctx context.Context, entry *store.CacheEntry) error {
	stmt := `
		INSERT INTO cache_entry (user_id, artifact, payload, generated_at, ttl_seconds, digest)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (user_id, artifact) DO UPDATE SET
			payload = EXCLUDED.payload,
			generated_at = EXCLUDED.generated_at,
			ttl_seconds = EXCLUDED.ttl_seconds,
			digest = EXCLUDED.digest
	`
	_, err := d.db.ExecContext(ctx, stmt,
		entry.UserID, entry.Artifact, entry.Payload, entry.GeneratedAt, int64(entry.TTL/time.Second), entry.Digest)
	return pkgerrors.Wrap(err, "postgres: save cache entry")
}

func (d *DB) DeleteCacheEntry(ctx context.Context, userID int64, artifact string) error {
	stmt := `DELETE FROM cache_entry WHERE user_id = ` + placeholder(1) + ` AND artifact = ` + placeholder(2)
	_, err := d.db.ExecContext(ctx, stmt, userID, artifact)
	return pkgerrors.Wrap(err, "postgres: delete cache entry")
}

func (d *DB) DeleteAllCacheEntries(ctx context.Context, userID int64) error {
	stmt := `DELETE FROM cache_entry WHERE user_id = ` + placeholder(1)
	_, err := d.db.ExecContext(ctx, stmt, userID)
	return pkgerrors.Wrap(err, "postgres: delete all cache entries")
}
