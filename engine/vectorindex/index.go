// Package vectorindex implements component C, the Vector Index: on demand
// it loads a user's (memoryId, vector) pairs, caches them under an LRU
// keyed by userId, and answers top-K cosine similarity queries.
//
// Grounded on divinesense's ai/vector/interface.go (VectorService's
// similarity-search contract) and ai/cache/lru.go (the LRU backing the
// cache, here engine/lrucache).
package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mnemograph/mnemograph/engine/errs"
	"github.com/mnemograph/mnemograph/engine/lrucache"
)

// MemoryVector pairs a memory id with its embedding.
type MemoryVector struct {
	MemoryID string
	Vector   []float32
}

// Scored is one TopK result.
type Scored struct {
	MemoryID string
	Score    float32
}

// Loader is the subset of the Memory Store's contract the index needs: the
// full embedding set for a user, and a cheap digest to detect staleness.
type Loader interface {
	ListEmbeddings(ctx context.Context, userID int64) ([]MemoryVector, error)
	EmbeddingDigest(ctx context.Context, userID int64) (string, error)
}

type userSnapshot struct {
	digest   string
	vectors  []MemoryVector
	unitVecs [][]float32
}

// Index is the read-mostly vector cache. Writes (a rebuild on digest
// mismatch) take an exclusive per-user lock; the cached snapshot itself is
// read via a copy-on-read reference, never mutated in place, so concurrent
// TopK callers never race a rebuild.
type Index struct {
	loader Loader
	cache  *lrucache.Cache[int64, *userSnapshot]

	buildMu sync.Map // userID -> *sync.Mutex, serializes rebuilds per user
}

// New constructs a vector Index over loader with the given cache capacity
// and TTL (entries past TTL are dropped; a live entry is still
// digest-checked against the store before use).
func New(loader Loader, capacity int, ttl time.Duration) *Index {
	return &Index{
		loader: loader,
		cache:  lrucache.New[int64, *userSnapshot](capacity, ttl),
	}
}

// Load returns the current vector set for a user, refreshing from the
// Loader if uncached or the stored digest no longer matches the store's.
func (idx *Index) Load(ctx context.Context, userID int64) ([]MemoryVector, error) {
	snap, err := idx.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return snap.vectors, nil
}

func (idx *Index) snapshot(ctx context.Context, userID int64) (*userSnapshot, error) {
	digest, err := idx.loader.EmbeddingDigest(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, err, "vectorindex: digest lookup")
	}

	if snap, ok := idx.cache.Get(userID); ok && snap.digest == digest {
		return snap, nil
	}

	muAny, _ := idx.buildMu.LoadOrStore(userID, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	// Re-check: another goroutine may have rebuilt while we waited.
	if snap, ok := idx.cache.Get(userID); ok && snap.digest == digest {
		return snap, nil
	}

	vectors, err := idx.loader.ListEmbeddings(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, err, "vectorindex: list embeddings")
	}

	snap := &userSnapshot{
		digest:   digest,
		vectors:  vectors,
		unitVecs: normalizeAll(vectors),
	}
	idx.cache.Set(userID, snap, 0)
	return snap, nil
}

// Invalidate drops a user's cached snapshot, forcing the next Load/TopK to
// reload from the store regardless of digest.
func (idx *Index) Invalidate(userID int64) {
	idx.cache.Remove(userID)
}

// TopK returns up to k memories with cosine similarity >= minScore against
// query, highest score first; ties are broken by the lexicographically
// greater memory id (ids are time-sortable, so this favors recency).
func (idx *Index) TopK(ctx context.Context, userID int64, query []float32, k int, minScore float32) ([]Scored, error) {
	if k <= 0 {
		return nil, errs.New(errs.InvalidInput, "vectorindex: k must be positive")
	}
	snap, err := idx.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	unitQuery, ok := normalize(query)
	if !ok {
		return nil, errs.New(errs.InvalidInput, "vectorindex: zero-length query vector")
	}

	results := make([]Scored, 0, len(snap.vectors))
	for i, mv := range snap.vectors {
		uv := snap.unitVecs[i]
		if uv == nil {
			continue
		}
		score := dot(unitQuery, uv)
		if score < minScore {
			continue
		}
		results = append(results, Scored{MemoryID: mv.MemoryID, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].MemoryID > results[j].MemoryID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func normalizeAll(vectors []MemoryVector) [][]float32 {
	out := make([][]float32, len(vectors))
	for i, mv := range vectors {
		if uv, ok := normalize(mv.Vector); ok {
			out[i] = uv
		}
	}
	return out
}

// normalize returns a unit-length copy of v, or ok=false if v has zero
// (or near-zero) magnitude and cannot be normalized.
func normalize(v []float32) ([]float32, bool) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1e-12 {
		return nil, false
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
