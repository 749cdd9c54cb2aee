package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mnemograph/mnemograph/engine/cluster"
	"github.com/mnemograph/mnemograph/engine/embedding"
	"github.com/mnemograph/mnemograph/engine/errs"
	"github.com/mnemograph/mnemograph/engine/resultcache"
	"github.com/mnemograph/mnemograph/engine/topic"
	"github.com/mnemograph/mnemograph/engine/vectorindex"
	"github.com/mnemograph/mnemograph/store/memoryid"
)

// fakeStore is an in-memory Store plus cluster.Loader/vectorindex.Loader
// (via its adapter wrappers below), so the same fixture drives the whole
// pipeline in tests without any database.
type fakeStore struct {
	mu        sync.Mutex
	gen       *memoryid.Generator
	memories  map[string]Memory
	embedding map[string][]float32
	repairs   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		gen:       memoryid.NewGenerator(),
		memories:  make(map[string]Memory),
		embedding: make(map[string][]float32),
	}
}

func (f *fakeStore) CreateMemory(ctx context.Context, input MemoryInput) (Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := Memory{
		ID:        f.gen.Next(),
		UserID:    input.UserID,
		Content:   input.Content,
		Type:      input.Type,
		Summary:   input.Summary,
		Keywords:  input.Keywords,
		Timestamp: time.Now(),
	}
	f.memories[m.ID] = m
	return m, nil
}

// seedMemory bypasses Ingest for setting up pre-existing rows (S3's
// missing-embedding fixture).
func (f *fakeStore) seedMemory(m Memory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memories[m.ID] = m
}

func (f *fakeStore) EmbeddingDigest(ctx context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0)
	for id, m := range f.memories {
		if m.UserID != userID {
			continue
		}
		if _, ok := f.embedding[id]; ok {
			ids = append(ids, id)
		}
	}
	return fmt.Sprintf("digest-%d", len(ids)*31+hashIDs(ids)), nil
}

func hashIDs(ids []string) int {
	h := 0
	for _, id := range ids {
		for _, r := range id {
			h = h*31 + int(r)
		}
	}
	return h
}

func (f *fakeStore) ListMemoryInfo(ctx context.Context, userID int64) (map[string]topic.MemoryInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]topic.MemoryInfo)
	for id, m := range f.memories {
		if m.UserID != userID {
			continue
		}
		vec, ok := f.embedding[id]
		if !ok {
			continue
		}
		out[id] = topic.MemoryInfo{MemoryID: id, Content: m.Content, Keywords: m.Keywords, Vector: vec}
	}
	return out, nil
}

func (f *fakeStore) ListMemoriesMissingEmbedding(ctx context.Context, userID int64) ([]Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Memory
	for id, m := range f.memories {
		if m.UserID != userID {
			continue
		}
		if _, ok := f.embedding[id]; !ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertEmbedding(ctx context.Context, memoryID string, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedding[memoryID] = vector
	return nil
}

func (f *fakeStore) QueueRepair(ctx context.Context, memoryID string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repairs = append(f.repairs, memoryID)
	return nil
}

func (f *fakeStore) embeddingsForUser(userID int64) []cluster.Vector {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cluster.Vector
	for id, m := range f.memories {
		if m.UserID != userID {
			continue
		}
		if vec, ok := f.embedding[id]; ok {
			out = append(out, cluster.Vector{MemoryID: id, Vector: vec})
		}
	}
	return out
}

// clusterLoader adapts fakeStore to engine/cluster.Loader.
type clusterLoader struct{ store *fakeStore }

func (l clusterLoader) ListEmbeddings(ctx context.Context, userID int64) ([]cluster.Vector, error) {
	return l.store.embeddingsForUser(userID), nil
}

func (l clusterLoader) EmbeddingDigest(ctx context.Context, userID int64) (string, error) {
	return l.store.EmbeddingDigest(ctx, userID)
}

// vectorLoader adapts fakeStore to engine/vectorindex.Loader.
type vectorLoader struct{ store *fakeStore }

func (l vectorLoader) ListEmbeddings(ctx context.Context, userID int64) ([]vectorindex.MemoryVector, error) {
	cvs := l.store.embeddingsForUser(userID)
	out := make([]vectorindex.MemoryVector, len(cvs))
	for i, v := range cvs {
		out[i] = vectorindex.MemoryVector{MemoryID: v.MemoryID, Vector: v.Vector}
	}
	return out, nil
}

func (l vectorLoader) EmbeddingDigest(ctx context.Context, userID int64) (string, error) {
	return l.store.EmbeddingDigest(ctx, userID)
}

// fakeHistory is an in-memory cluster.History.
type fakeHistory struct {
	mu   sync.Mutex
	byID map[int64][]cluster.Cluster
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{byID: make(map[int64][]cluster.Cluster)}
}

func (h *fakeHistory) LoadPrevious(ctx context.Context, userID int64) ([]cluster.Cluster, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.byID[userID], nil
}

func (h *fakeHistory) SavePrevious(ctx context.Context, userID int64, clusters []cluster.Cluster) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byID[userID] = clusters
	return nil
}

// fakeCacheStore is an in-memory resultcache.PersistentStore.
type fakeCacheStore struct {
	mu      sync.Mutex
	entries map[string]resultcache.Entry
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: make(map[string]resultcache.Entry)}
}

func (s *fakeCacheStore) key(userID int64, artifact resultcache.Artifact) string {
	return fmt.Sprintf("%d:%s", userID, artifact)
}

func (s *fakeCacheStore) LoadCacheEntry(ctx context.Context, userID int64, artifact resultcache.Artifact) (resultcache.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[s.key(userID, artifact)]
	return e, ok, nil
}

func (s *fakeCacheStore) SaveCacheEntry(ctx context.Context, userID int64, artifact resultcache.Artifact, entry resultcache.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[s.key(userID, artifact)] = entry
	return nil
}

func (s *fakeCacheStore) DeleteCacheEntry(ctx context.Context, userID int64, artifact resultcache.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, s.key(userID, artifact))
	return nil
}

func (s *fakeCacheStore) DeleteAllCacheEntries(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		delete(s.entries, k)
	}
	return nil
}

// fakeEmbedder maps content to a deterministic low-dimension vector by
// keyword match, so clustering behavior is controllable and reproducible.
type fakeEmbedder struct {
	dims     int
	byWord   map[string][]float32
	fallback []float32
	delay    time.Duration
	calls    int32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		dims: 4,
		byWord: map[string][]float32{
			"apple":  {1, 0, 0, 0},
			"orange": {0.95, 0.05, 0, 0},
			"pear":   {0.9, 0.1, 0, 0},
			"sedan":  {0, 0, 1, 0},
			"suv":    {0, 0, 0.95, 0.05},
			"truck":  {0, 0, 0.9, 0.1},
			"soccer": {0, 1, 0, 0},
			"tennis": {0, 0.95, 0, 0.05},
			"golf":   {0, 0.9, 0, 0.1},
		},
		fallback: []float32{0.5, 0.5, 0.5, 0.5},
	}
}

func (e *fakeEmbedder) Dimensions() int { return e.dims }

func (e *fakeEmbedder) Embed(ctx context.Context, text string, task embedding.TaskType, highPriority bool) ([]float32, error) {
	atomic.AddInt32(&e.calls, 1)
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, errs.Wrap(errs.Timeout, ctx.Err(), "fakeEmbedder: embed cancelled")
		}
	}
	return e.vectorFor(text), nil
}

func (e *fakeEmbedder) vectorFor(text string) []float32 {
	lower := strings.ToLower(text)
	for word, vec := range e.byWord {
		if strings.Contains(lower, word) {
			return vec
		}
	}
	return e.fallback
}

func (e *fakeEmbedder) count() int32 { return atomic.LoadInt32(&e.calls) }

// countingClusterEngine wraps a real cluster.Engine and counts invocations,
// used to assert build-coalescing (property 7 / scenario S4).
type countingClusterEngine struct {
	delegate ClusterEngine
	calls    int32
}

func (c *countingClusterEngine) Cluster(ctx context.Context, userID int64) (cluster.Result, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.delegate.Cluster(ctx, userID)
}

func (c *countingClusterEngine) count() int32 { return atomic.LoadInt32(&c.calls) }
