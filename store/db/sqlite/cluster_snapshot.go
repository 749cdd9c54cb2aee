package sqlite

import (
	"context"
	"database/sql"
	"errors"

	pkgerrors "github.com/pkg/errors"
)

func (d *DB) LoadClusterSnapshot(ctx context.Context, userID int64) ([]byte, bool, error) {
	var payload []byte
	err := d.db.QueryRowContext(ctx, `SELECT payload FROM cluster_snapshot WHERE user_id = ?`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "sqlite: load cluster snapshot")
	}
	return payload, true, nil
}

func (d *DB) SaveClusterSnapshot(ctx context.Context, userID int64, payload []byte) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO cluster_snapshot (user_id, payload) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload
	`, userID, payload)
	return pkgerrors.Wrap(err, "sqlite: save cluster snapshot")
}
