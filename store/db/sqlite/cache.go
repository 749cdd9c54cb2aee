package sqlite

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
	var generatedAt int64
	var ttlSeconds int64
	e.UserID = userID
	e.Artifact = artifact

	err := d.db.QueryRowContext(ctx,
		`SELECT payload, generated_at, ttl_seconds, digest FROM cache_entry WHERE user_id = ? AND artifact = ?`,
		userID, artifact,
	).Scan(&e.Payload, &generatedAt, &ttlSeconds, &e.Digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "sqlite: load cache entry")
	}
	e.GeneratedAt = unixToTime(generatedAt)
	e.TTL = time.Duration(ttlSeconds) * time.Second
	return &e, true, nil
}

func (d *DB) SaveCacheEntry(ctx context.Context, entry *store.CacheEntry) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO cache_entry (user_id, artifact, payload, generated_at, ttl_seconds, digest)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, artifact) DO UPDATE SET
			payload = excluded.payload,
			generated_at = excluded.generated_at,
			ttl_seconds = excluded.ttl_seconds,
			digest = excluded.digest
	`, entry.UserID, entry.Artifact, entry.Payload, entry.GeneratedAt.Unix(), int64(entry.TTL/time.Second), entry.Digest)
	if err != nil {
		return pkgerrors.Wrap(err, "sqlite: save cache entry")
	}
	return nil
}

func (d *DB) DeleteCacheEntry(ctx context.Context, userID int64, artifact string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM cache_entry WHERE user_id = ? AND artifact = ?`, userID, artifact)
	return pkgerrors.Wrap(err, "sqlite: delete cache entry")
}

func (d *DB) DeleteAllCacheEntries(ctx context.Context, userID int64) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM cache_entry WHERE user_id = ?`, userID)
	return pkgerrors.Wrap(err, "sqlite: delete all cache entries")
}
