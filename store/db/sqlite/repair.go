package sqlite

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mnemograph/mnemograph/store"
)

func (d *DB) QueueRepair(ctx context.Context, entry *store.RepairEntry) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO repair_queue (memory_id, reason, queued_at, resolved) VALUES (?, ?, ?, 0)`,
		entry.MemoryID, entry.Reason, entry.QueuedAt.Unix())
	if err != nil {
		return errors.Wrap(err, "sqlite: queue repair")
	}
	return nil
}

func (d *DB) ListRepairQueue(ctx context.Context, limit int) ([]*store.RepairEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT memory_id, reason, queued_at, resolved FROM repair_queue
		 WHERE resolved = 0 ORDER BY queued_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list repair queue")
	}
	defer rows.Close()

	var out []*store.RepairEntry
	for rows.Next() {
		var e store.RepairEntry
		var queuedAt int64
		var resolved int
		if err := rows.Scan(&e.MemoryID, &e.Reason, &queuedAt, &resolved); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan repair entry")
		}
		e.QueuedAt = unixToTime(queuedAt)
		e.Resolved = resolved != 0
		out = append(out, &e)
	}
	return out, rows.Err()
}
