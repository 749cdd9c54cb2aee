package sqlite

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/mnemograph/mnemograph/store"
)

// UpsertMemoryEmbedding inserts or replaces a memory's vector, bumping its
// version. SQLite has no vector extension wired here (spec §4.B); the
// vector is stored as a JSON array and compared in Go by engine/vectorindex
// and engine/cluster, the way the teacher's memo_embedding.go falls back to
// application-layer cosine similarity when sqlite-vec isn't loaded.
func (d *DB) UpsertMemoryEmbedding(ctx context.Context, e *store.MemoryEmbedding) error {
	var userID int64
	if err := d.db.QueryRowContext(ctx, `SELECT user_id FROM memory WHERE id = ?`, e.MemoryID).Scan(&userID); err != nil {
		return errors.Wrapf(err, "sqlite: resolve user for memory %s", e.MemoryID)
	}

	vector, err := json.Marshal(e.Vector)
	if err != nil {
		return errors.Wrap(err, "sqlite: marshal vector")
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO memory_embedding (memory_id, user_id, vector, version)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(memory_id) DO UPDATE SET
			vector = excluded.vector,
			version = memory_embedding.version + 1
	`, e.MemoryID, userID, string(vector))
	if err != nil {
		return errors.Wrap(err, "sqlite: upsert memory embedding")
	}
	return nil
}

func (d *DB) ListMemoryEmbeddings(ctx context.Context, userID int64) ([]*store.MemoryEmbedding, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT memory_id, vector, version FROM memory_embedding WHERE user_id = ?`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list memory embeddings")
	}
	defer rows.Close()

	var out []*store.MemoryEmbedding
	for rows.Next() {
		var e store.MemoryEmbedding
		var vector string
		if err := rows.Scan(&e.MemoryID, &vector, &e.Version); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan memory embedding")
		}
		if err := json.Unmarshal([]byte(vector), &e.Vector); err != nil {
			return nil, errors.Wrap(err, "sqlite: unmarshal vector")
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
