// Package store implements component B, the Memory Store: Memory, keyword,
// and embedding persistence, the result-cache's persistent tier, and the
// cluster engine's stable-identity history, behind a dialect-agnostic
// Driver satisfied by store/db/postgres and store/db/sqlite.
//
// Grounded on store/store.go's Store-delegates-to-Driver split and
// store/episodic_memory_embedding.go's Find/Upsert/List conventions.
package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mnemograph/mnemograph/engine/cluster"
	"github.com/mnemograph/mnemograph/engine/resultcache"
	"github.com/mnemograph/mnemograph/engine/topic"
)

// Store provides access to every persisted object the engine needs,
// delegating to a Driver for the actual dialect-specific I/O.
type Store struct {
	driver Driver
}

// New wraps a Driver in a Store.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// CreateMemoryParams is what a caller submits to persist a new memory.
type CreateMemoryParams struct {
	UserID   int64
	Content  string
	Type     string
	Summary  string
	Keywords []string
}

// CreateMemory persists a new memory row. The memory id itself is assigned
// by the Driver (store/memoryid.Generator, spec §6.5).
func (s *Store) CreateMemory(ctx context.Context, p CreateMemoryParams) (*Memory, error) {
	m := &Memory{
		UserID:    p.UserID,
		Content:   p.Content,
		Type:      p.Type,
		Summary:   p.Summary,
		Keywords:  normalizeKeywords(p.Keywords),
		Timestamp: time.Now(),
	}
	return s.driver.CreateMemory(ctx, m)
}

// normalizeKeywords case-folds and dedupes keywords at insert time, per
// spec §3: callers may submit mixed-case or repeated keywords, but the
// store is the single point where they're canonicalized, preserving
// first-seen order.
func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		lower := strings.ToLower(kw)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, lower)
	}
	return out
}

// ListMemories returns every memory a user owns, embedded or not.
func (s *Store) ListMemories(ctx context.Context, userID int64) ([]*Memory, error) {
	return s.driver.ListMemories(ctx, &FindMemory{UserID: &userID})
}

// ListUserIDs returns every distinct user with at least one memory, used by
// plugin/trajectory's scheduled projection to know which users to refresh.
func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	return s.driver.ListUserIDs(ctx)
}

// ListMemoriesWithoutEmbedding is the repair-queue source query, mirroring
// store/db/postgres/episodic_memory_embedding.go's
// FindEpisodicMemoriesWithoutEmbedding.
func (s *Store) ListMemoriesWithoutEmbedding(ctx context.Context, userID int64, limit int) ([]*Memory, error) {
	return s.driver.ListMemoriesWithoutEmbedding(ctx, userID, limit)
}

// UpsertMemoryEmbedding stores or replaces a memory's embedding, bumping
// its version.
func (s *Store) UpsertMemoryEmbedding(ctx context.Context, e *MemoryEmbedding) error {
	return s.driver.UpsertMemoryEmbedding(ctx, e)
}

// QueueRepair records why a memory's embedding could not be produced.
func (s *Store) QueueRepair(ctx context.Context, memoryID, reason string) error {
	return s.driver.QueueRepair(ctx, &RepairEntry{MemoryID: memoryID, Reason: reason, QueuedAt: time.Now()})
}

// ListRepairQueue lists outstanding repair entries, for operator tooling.
func (s *Store) ListRepairQueue(ctx context.Context, limit int) ([]*RepairEntry, error) {
	return s.driver.ListRepairQueue(ctx, limit)
}

// EmbeddingDigest xors fnv64(memoryId) with each embedding's version
// across a user's whole embedded set, then appends the set size so that
// the digest still changes on an add+remove pair that would otherwise
// xor-cancel (spec §4.B, testable property 3).
func (s *Store) EmbeddingDigest(ctx context.Context, userID int64) (string, error) {
	embeddings, err := s.driver.ListMemoryEmbeddings(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "store: list embeddings for digest")
	}
	var acc uint64
	for _, e := range embeddings {
		h := fnv.New64a()
		_, _ = h.Write([]byte(e.MemoryID))
		acc ^= h.Sum64() ^ uint64(e.Version)
	}
	return fmt.Sprintf("%016x-%d", acc, len(embeddings)), nil
}

// MemoryVector pairs a memory id with its stored embedding, the row shape
// both cluster.Loader and vectorindex.Loader adapt from.
type MemoryVector struct {
	MemoryID string
	Vector   []float32
}

// ListMemoryVectors loads every embedded memory's vector for a user.
func (s *Store) ListMemoryVectors(ctx context.Context, userID int64) ([]MemoryVector, error) {
	embeddings, err := s.driver.ListMemoryEmbeddings(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "store: list memory vectors")
	}
	out := make([]MemoryVector, len(embeddings))
	for i, e := range embeddings {
		out[i] = MemoryVector{MemoryID: e.MemoryID, Vector: e.Vector}
	}
	return out, nil
}

// ListMemoryInfo returns the subset of embedded memories the Topic Labeler
// needs, keyed by memory id.
func (s *Store) ListMemoryInfo(ctx context.Context, userID int64) (map[string]topic.MemoryInfo, error) {
	memories, err := s.driver.ListMemories(ctx, &FindMemory{UserID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "store: list memories for topic labeling")
	}
	embeddings, err := s.driver.ListMemoryEmbeddings(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "store: list embeddings for topic labeling")
	}
	vectors := make(map[string][]float32, len(embeddings))
	for _, e := range embeddings {
		vectors[e.MemoryID] = e.Vector
	}

	out := make(map[string]topic.MemoryInfo, len(memories))
	for _, m := range memories {
		vec, ok := vectors[m.ID]
		if !ok {
			continue
		}
		out[m.ID] = topic.MemoryInfo{
			MemoryID: m.ID,
			Content:  m.Content,
			Keywords: m.Keywords,
			Vector:   vec,
		}
	}
	return out, nil
}

// ClusterLoader adapts Store to engine/cluster.Loader. A separate wrapper
// type is needed (rather than a method directly on Store) because
// cluster.Loader and vectorindex.Loader both declare a ListEmbeddings
// method with the same name but different element types.
type ClusterLoader struct{ Store *Store }

func (l ClusterLoader) ListEmbeddings(ctx context.Context, userID int64) ([]cluster.Vector, error) {
	rows, err := l.Store.ListMemoryVectors(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]cluster.Vector, len(rows))
	for i, r := range rows {
		out[i] = cluster.Vector{MemoryID: r.MemoryID, Vector: r.Vector}
	}
	return out, nil
}

func (l ClusterLoader) EmbeddingDigest(ctx context.Context, userID int64) (string, error) {
	return l.Store.EmbeddingDigest(ctx, userID)
}

// LoadPrevious and SavePrevious satisfy engine/cluster.History directly:
// the previous run's centroids are the stable-identity input to the next
// Hungarian-matching pass (spec §4.D).
func (s *Store) LoadPrevious(ctx context.Context, userID int64) ([]cluster.Cluster, error) {
	payload, found, err := s.driver.LoadClusterSnapshot(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "store: load cluster snapshot")
	}
	if !found {
		return nil, nil
	}
	return decodeClusters(payload)
}

func (s *Store) SavePrevious(ctx context.Context, userID int64, clusters []cluster.Cluster) error {
	payload, err := encodeClusters(clusters)
	if err != nil {
		return errors.Wrap(err, "store: encode cluster snapshot")
	}
	return s.driver.SaveClusterSnapshot(ctx, userID, payload)
}

// LoadCacheEntry, SaveCacheEntry, DeleteCacheEntry, and DeleteAllCacheEntries
// satisfy engine/resultcache.PersistentStore directly: Store owns
// CacheEntry rows exclusively, per spec §3's ownership rule.
func (s *Store) LoadCacheEntry(ctx context.Context, userID int64, artifact resultcache.Artifact) (resultcache.Entry, bool, error) {
	row, found, err := s.driver.LoadCacheEntry(ctx, userID, string(artifact))
	if err != nil {
		return resultcache.Entry{}, false, errors.Wrap(err, "store: load cache entry")
	}
	if !found {
		return resultcache.Entry{}, false, nil
	}
	return resultcache.Entry{
		Payload:     row.Payload,
		Digest:      row.Digest,
		GeneratedAt: row.GeneratedAt,
		TTL:         row.TTL,
	}, true, nil
}

func (s *Store) SaveCacheEntry(ctx context.Context, userID int64, artifact resultcache.Artifact, entry resultcache.Entry) error {
	return s.driver.SaveCacheEntry(ctx, &CacheEntry{
		UserID:      userID,
		Artifact:    string(artifact),
		Payload:     entry.Payload,
		GeneratedAt: entry.GeneratedAt,
		TTL:         entry.TTL,
		Digest:      entry.Digest,
	})
}

func (s *Store) DeleteCacheEntry(ctx context.Context, userID int64, artifact resultcache.Artifact) error {
	return s.driver.DeleteCacheEntry(ctx, userID, string(artifact))
}

func (s *Store) DeleteAllCacheEntries(ctx context.Context, userID int64) error {
	return s.driver.DeleteAllCacheEntries(ctx, userID)
}
