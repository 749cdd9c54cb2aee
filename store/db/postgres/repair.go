package postgres

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mnemograph/mnemograph/store"
)

func (d *DB) QueueRepair(ctx context.Context, entry *store.RepairEntry) error {
	stmt := `INSERT INTO repair_queue (memory_id, reason, queued_at, resolved) VALUES (` + placeholders(4) + `)`
	_, err := d.db.ExecContext(ctx, stmt, entry.MemoryID, entry.Reason, entry.QueuedAt, false)
	return errors.Wrap(err, "postgres: queue repair")
}

func (d *DB) ListRepairQueue(ctx context.Context, limit int) ([]*store.RepairEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT memory_id, reason, queued_at, resolved FROM repair_queue
		 WHERE resolved = FALSE ORDER BY queued_at ASC LIMIT `+placeholder(1), limit)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list repair queue")
	}
	defer rows.Close()

	var out []*store.RepairEntry
	for rows.Next() {
		var e store.RepairEntry
		if err := rows.Scan(&e.MemoryID, &e.Reason, &e.QueuedAt, &e.Resolved); err != nil {
			return nil, errors.Wrap(err, "postgres: scan repair entry")
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
