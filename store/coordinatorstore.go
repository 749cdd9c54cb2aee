package store

import (
	"context"

	"github.com/mnemograph/mnemograph/engine/coordinator"
	"github.com/mnemograph/mnemograph/engine/topic"
)

// CoordinatorStore adapts *Store to engine/coordinator.Store. It exists
// because the coordinator deliberately declares its own MemoryInput/Memory
// vocabulary (grounded on ai/memory/simple/generator.go's own local
// MemoryStore interface) instead of depending on this package's types
// directly, so the two concrete shapes are bridged once, here, at the
// composition root rather than inside either package.
type CoordinatorStore struct {
	Store *Store
}

func (c CoordinatorStore) CreateMemory(ctx context.Context, input coordinator.MemoryInput) (coordinator.Memory, error) {
	m, err := c.Store.CreateMemory(ctx, CreateMemoryParams{
		UserID:   input.UserID,
		Content:  input.Content,
		Type:     input.Type,
		Summary:  input.Summary,
		Keywords: input.Keywords,
	})
	if err != nil {
		return coordinator.Memory{}, err
	}
	return toCoordinatorMemory(m), nil
}

func (c CoordinatorStore) EmbeddingDigest(ctx context.Context, userID int64) (string, error) {
	return c.Store.EmbeddingDigest(ctx, userID)
}

func (c CoordinatorStore) ListMemoryInfo(ctx context.Context, userID int64) (map[string]topic.MemoryInfo, error) {
	return c.Store.ListMemoryInfo(ctx, userID)
}

func (c CoordinatorStore) ListMemoriesMissingEmbedding(ctx context.Context, userID int64) ([]coordinator.Memory, error) {
	const batchLimit = 500
	rows, err := c.Store.ListMemoriesWithoutEmbedding(ctx, userID, batchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]coordinator.Memory, 0, len(rows))
	for _, m := range rows {
		out = append(out, toCoordinatorMemory(m))
	}
	return out, nil
}

func (c CoordinatorStore) UpsertEmbedding(ctx context.Context, memoryID string, vector []float32) error {
	return c.Store.UpsertMemoryEmbedding(ctx, &MemoryEmbedding{MemoryID: memoryID, Vector: vector})
}

func (c CoordinatorStore) QueueRepair(ctx context.Context, memoryID string, reason string) error {
	return c.Store.QueueRepair(ctx, memoryID, reason)
}

func toCoordinatorMemory(m *Memory) coordinator.Memory {
	return coordinator.Memory{
		ID:        m.ID,
		UserID:    m.UserID,
		Content:   m.Content,
		Type:      m.Type,
		Summary:   m.Summary,
		Keywords:  m.Keywords,
		Timestamp: m.Timestamp,
	}
}
