package postgres

import (
	"context"
	"database/sql"
	"errors"

	pkgerrors "github.com/pkg/errors"
)

func (d *DB) LoadClusterSnapshot(ctx context.Context, userID int64) ([]byte, bool, error) {
	var payload []byte
	stmt := `SELECT payload FROM cluster_snapshot WHERE user_id = ` + placeholder(1)
	err := d.db.QueryRowContext(ctx, stmt, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "postgres: load cluster snapshot")
	}
	return payload, true, nil
}

func (d *DB) SaveClusterSnapshot(ctx context.Context, userID int64, payload []byte) error {
	stmt := `
		INSERT INTO cluster_snapshot (user_id, payload) VALUES (` + placeholders(2) + `)
		ON CONFLICT (user_id) DO UPDATE SET payload = EXCLUDED.payload
	`
	_, err := d.db.ExecContext(ctx, stmt, userID, payload)
	return pkgerrors.Wrap(err, "postgres: save cluster snapshot")
}
