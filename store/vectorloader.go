package store

import (
	"context"

	"github.com/mnemograph/mnemograph/engine/vectorindex"
)

// VectorLoader adapts Store to engine/vectorindex.Loader, mirroring
// ClusterLoader's reason for existing as a distinct wrapper type.
type VectorLoader struct{ Store *Store }

func (l VectorLoader) ListEmbeddings(ctx context.Context, userID int64) ([]vectorindex.MemoryVector, error) {
	rows, err := l.Store.ListMemoryVectors(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]vectorindex.MemoryVector, len(rows))
	for i, r := range rows {
		out[i] = vectorindex.MemoryVector{MemoryID: r.MemoryID, Vector: r.Vector}
	}
	return out, nil
}

func (l VectorLoader) EmbeddingDigest(ctx context.Context, userID int64) (string, error) {
	return l.Store.EmbeddingDigest(ctx, userID)
}
