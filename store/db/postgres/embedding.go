package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/mnemograph/mnemograph/store"
)

// UpsertMemoryEmbedding inserts or replaces a memory's vector via pgvector,
// bumping its version, grounded directly on
// store/db/postgres/episodic_memory_embedding.go's upsert shape.
func (d *DB) UpsertMemoryEmbedding(ctx context.Context, e *store.MemoryEmbedding) error {
	var userID int64
	if err := d.db.QueryRowContext(ctx, `SELECT user_id FROM memory WHERE id = `+placeholder(1), e.MemoryID).Scan(&userID); err != nil {
		return errors.Wrapf(err, "postgres: resolve user for memory %s", e.MemoryID)
	}

	vector := pgvector.NewVector(e.Vector)
	stmt := `
		INSERT INTO memory_embedding (memory_id, user_id, embedding, version)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (memory_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			version = memory_embedding.version + 1
	`
	_, err := d.db.ExecContext(ctx, stmt, e.MemoryID, userID, vector, 1)
	if err != nil {
		return errors.Wrap(err, "postgres: upsert memory embedding")
	}
	return nil
}

func (d *DB) ListMemoryEmbeddings(ctx context.Context, userID int64) ([]*store.MemoryEmbedding, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT memory_id, embedding, version FROM memory_embedding WHERE user_id = `+placeholder(1), userID)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list memory embeddings")
	}
	defer rows.Close()

	var out []*store.MemoryEmbedding
	for rows.Next() {
		var e store.MemoryEmbedding
		var vector pgvector.Vector
		if err := rows.Scan(&e.MemoryID, &vector, &e.Version); err != nil {
			return nil, errors.Wrap(err, "postgres: scan memory embedding")
		}
		e.Vector = vector.Slice()
		out = append(out, &e)
	}
	return out, rows.Err()
}
