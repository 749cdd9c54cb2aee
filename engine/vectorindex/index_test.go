package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	digest  string
	vectors []MemoryVector
	calls   int
}

func (f *fakeLoader) ListEmbeddings(ctx context.Context, userID int64) ([]MemoryVector, error) {
	f.calls++
	return f.vectors, nil
}

func (f *fakeLoader) EmbeddingDigest(ctx context.Context, userID int64) (string, error) {
	return f.digest, nil
}

func TestLoadCachesUntilDigestChanges(t *testing.T) {
	loader := &fakeLoader{
		digest: "d1",
		vectors: []MemoryVector{
			{MemoryID: "m1", Vector: []float32{1, 0}},
		},
	}
	idx := New(loader, 10, time.Minute)

	_, err := idx.Load(context.Background(), 1)
	require.NoError(t, err)
	_, err = idx.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls, "second load should hit cache")

	loader.digest = "d2"
	_, err = idx.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls, "digest change should force reload")
}

func TestTopKRanksByCosineSimilarity(t *testing.T) {
	loader := &fakeLoader{
		digest: "d1",
		vectors: []MemoryVector{
			{MemoryID: "m-aligned", Vector: []float32{1, 0}},
			{MemoryID: "m-orthogonal", Vector: []float32{0, 1}},
			{MemoryID: "m-opposite", Vector: []float32{-1, 0}},
		},
	}
	idx := New(loader, 10, time.Minute)

	results, err := idx.TopK(context.Background(), 1, []float32{1, 0}, 5, -1)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "m-aligned", results[0].MemoryID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "m-opposite", results[2].MemoryID)
}

func TestTopKAppliesMinScoreAndLimit(t *testing.T) {
	loader := &fakeLoader{
		digest: "d1",
		vectors: []MemoryVector{
			{MemoryID: "m1", Vector: []float32{1, 0}},
			{MemoryID: "m2", Vector: []float32{0, 1}},
		},
	}
	idx := New(loader, 10, time.Minute)

	results, err := idx.TopK(context.Background(), 1, []float32{1, 0}, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].MemoryID)
}

func TestTopKBreaksTiesByHigherMemoryID(t *testing.T) {
	loader := &fakeLoader{
		digest: "d1",
		vectors: []MemoryVector{
			{MemoryID: "20260101000000000001", Vector: []float32{1, 0}},
			{MemoryID: "20260101000000000002", Vector: []float32{2, 0}},
		},
	}
	idx := New(loader, 10, time.Minute)

	results, err := idx.TopK(context.Background(), 1, []float32{1, 0}, 5, -1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "20260101000000000002", results[0].MemoryID, "equal scores should break ties toward the higher (more recent) id")
}

func TestTopKRejectsZeroQueryVector(t *testing.T) {
	loader := &fakeLoader{digest: "d1"}
	idx := New(loader, 10, time.Minute)
	_, err := idx.TopK(context.Background(), 1, []float32{0, 0}, 5, 0)
	assert.Error(t, err)
}

func TestInvalidateForcesReload(t *testing.T) {
	loader := &fakeLoader{digest: "d1", vectors: []MemoryVector{{MemoryID: "m1", Vector: []float32{1}}}}
	idx := New(loader, 10, time.Minute)

	_, _ = idx.Load(context.Background(), 1)
	idx.Invalidate(1)
	_, _ = idx.Load(context.Background(), 1)
	assert.Equal(t, 2, loader.calls)
}
