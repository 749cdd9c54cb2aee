// Package coordinator implements component H, the Pipeline Coordinator: it
// is the single public entry point gluing the Embedding Gateway, Cluster
// Engine, Topic Labeler, Graph Builder, Vector Index, and Result Cache into
// the five operations a caller sees (Ingest, GetClusters, GetTopics,
// GetGraph, Search).
//
// Build coordination follows the per-(userId, artifact) flight-key pattern
// already present in engine/resultcache; the retry/backoff and config-struct
// conventions are grounded on ai/agents/orchestrator's executor/types split,
// generalized from multi-agent task dispatch to cache-chain rebuilding.
package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mnemograph/mnemograph/engine/cluster"
	"github.com/mnemograph/mnemograph/engine/embedding"
	"github.com/mnemograph/mnemograph/engine/errs"
	"github.com/mnemograph/mnemograph/engine/graph"
	"github.com/mnemograph/mnemograph/engine/resultcache"
	"github.com/mnemograph/mnemograph/engine/topic"
	"github.com/mnemograph/mnemograph/engine/vectorindex"
)

// MemoryInput is what a caller submits to Ingest.
type MemoryInput struct {
	UserID   int64
	Content  string
	Type     string
	Summary  string
	Keywords []string
}

// Memory is a persisted memory row as the coordinator sees it.
type Memory struct {
	ID        string
	UserID    int64
	Content   string
	Type      string
	Summary   string
	Keywords  []string
	Timestamp time.Time
}

// Store is the persistence boundary the coordinator depends on. Concrete
// implementations live under the store package; this interface exists so
// the coordinator (and its tests) never depend on a storage driver.
type Store interface {
	CreateMemory(ctx context.Context, input MemoryInput) (Memory, error)
	EmbeddingDigest(ctx context.Context, userID int64) (string, error)
	ListMemoryInfo(ctx context.Context, userID int64) (map[string]topic.MemoryInfo, error)
	ListMemoriesMissingEmbedding(ctx context.Context, userID int64) ([]Memory, error)
	UpsertEmbedding(ctx context.Context, memoryID string, vector []float32) error
	QueueRepair(ctx context.Context, memoryID string, reason string) error
}

// Embedder is the subset of engine/embedding.Gateway the coordinator uses.
type Embedder interface {
	Embed(ctx context.Context, text string, task embedding.TaskType, highPriority bool) ([]float32, error)
	Dimensions() int
}

// ClusterEngine is satisfied by *engine/cluster.Engine.
type ClusterEngine interface {
	Cluster(ctx context.Context, userID int64) (cluster.Result, error)
}

// TopicLabeler is satisfied by *engine/topic.Labeler.
type TopicLabeler interface {
	Label(ctx context.Context, clusters []topic.ClusterInput, memories map[string]topic.MemoryInfo) []topic.Topic
}

// GraphBuilder is satisfied by *engine/graph.Builder.
type GraphBuilder interface {
	Build(clusters []cluster.Cluster, topics []topic.Topic, memories map[string]topic.MemoryInfo, version string) graph.Graph
}

// VectorIndex is satisfied by *engine/vectorindex.Index.
type VectorIndex interface {
	TopK(ctx context.Context, userID int64, query []float32, k int, minScore float32) ([]vectorindex.Scored, error)
	Invalidate(userID int64)
}

// Config tunes the background ingestion pool and search defaults.
type Config struct {
	IngestWorkers   int
	IngestQueueSize int
	IngestTimeout   time.Duration
	SearchMinScore  float32
}

// DefaultConfig mirrors the teacher's memory generator defaults
// (ai/memory/simple.DefaultConfig: concurrency 5, timeout 30s).
func DefaultConfig() Config {
	return Config{
		IngestWorkers:   5,
		IngestQueueSize: 256,
		IngestTimeout:   30 * time.Second,
		SearchMinScore:  0,
	}
}

// ClustersResponse wraps a clustering result with cache-staleness metadata.
type ClustersResponse struct {
	Result      cluster.Result
	Stale       bool
	GeneratedAt time.Time
}

// TopicsResponse wraps a labeling result with cache-staleness metadata.
type TopicsResponse struct {
	Topics      []topic.Topic
	Stale       bool
	GeneratedAt time.Time
}

// GraphResponse wraps a graph build with cache-staleness metadata.
type GraphResponse struct {
	Graph       graph.Graph
	Stale       bool
	GeneratedAt time.Time
}

// SearchResult is one ranked hit returned by Search.
type SearchResult struct {
	MemoryID string
	Score    float32
}

// Coordinator is the single entry point described in spec §4.H.
type Coordinator struct {
	store    Store
	clusters ClusterEngine
	topics   TopicLabeler
	graphs   GraphBuilder
	vectors  VectorIndex
	embedder Embedder
	cache    *resultcache.Cache
	cfg      Config

	jobs chan ingestJob
	done chan struct{}
}

// New wires the seven dependencies into a Coordinator and starts the
// background ingestion workers.
func New(store Store, clusters ClusterEngine, topics TopicLabeler, graphs GraphBuilder, vectors VectorIndex, embedder Embedder, cache *resultcache.Cache, cfg Config) *Coordinator {
	if cfg.IngestWorkers <= 0 {
		cfg.IngestWorkers = DefaultConfig().IngestWorkers
	}
	if cfg.IngestQueueSize <= 0 {
		cfg.IngestQueueSize = DefaultConfig().IngestQueueSize
	}
	if cfg.IngestTimeout <= 0 {
		cfg.IngestTimeout = DefaultConfig().IngestTimeout
	}

	co := &Coordinator{
		store:    store,
		clusters: clusters,
		topics:   topics,
		graphs:   graphs,
		vectors:  vectors,
		embedder: embedder,
		cache:    cache,
		cfg:      cfg,
		jobs:     make(chan ingestJob, cfg.IngestQueueSize),
		done:     make(chan struct{}),
	}
	co.startWorkers()
	return co
}

// Ingest persists a memory durably and returns its id immediately; the
// embedding is computed asynchronously by the background worker pool
// (spec §6.1: "returns as soon as durable persistence is acknowledged").
func (co *Coordinator) Ingest(ctx context.Context, input MemoryInput) (string, error) {
	if input.Content == "" {
		return "", errs.New(errs.InvalidInput, "coordinator: content is required")
	}
	mem, err := co.store.CreateMemory(ctx, input)
	if err != nil {
		return "", err
	}

	job := ingestJob{
		requestID: uuid.NewString(),
		userID:    mem.UserID,
		memoryID:  mem.ID,
		content:   mem.Content,
	}
	select {
	case co.jobs <- job:
	case <-ctx.Done():
		slog.Warn("coordinator: ingest enqueue cancelled", "memory_id", mem.ID, "error", ctx.Err())
	}
	return mem.ID, nil
}

// GetClusters returns userID's clustering, rebuilding if stale or if
// forceRefresh is set; on build failure it falls back to the last good
// cached artifact, marking the response Stale.
func (co *Coordinator) GetClusters(ctx context.Context, userID int64, forceRefresh bool) (ClustersResponse, error) {
	digest, err := co.store.EmbeddingDigest(ctx, userID)
	if err != nil {
		return ClustersResponse{}, err
	}

	build := func(ctx context.Context) ([]byte, string, error) {
		result, err := co.clusters.Cluster(ctx, userID)
		if err != nil {
			return nil, "", err
		}
		payload, merr := json.Marshal(result)
		if merr != nil {
			return nil, "", errs.Wrap(errs.Transient, merr, "coordinator: marshal clusters")
		}
		return payload, result.Digest, nil
	}

	entry, stale, err := co.buildOrStale(ctx, userID, resultcache.ArtifactClusters, digest, forceRefresh, build)
	if err != nil {
		return ClustersResponse{}, err
	}

	var result cluster.Result
	if uerr := json.Unmarshal(entry.Payload, &result); uerr != nil {
		return ClustersResponse{}, errs.Wrap(errs.Transient, uerr, "coordinator: decode clusters")
	}
	return ClustersResponse{Result: result, Stale: stale, GeneratedAt: entry.GeneratedAt}, nil
}

// GetTopics requires fresh clusters (chained transparently per spec §4.H)
// and labels each one.
func (co *Coordinator) GetTopics(ctx context.Context, userID int64, forceRefresh bool) (TopicsResponse, error) {
	clustersResp, err := co.GetClusters(ctx, userID, forceRefresh)
	if err != nil {
		return TopicsResponse{}, err
	}
	return co.getTopicsFor(ctx, userID, forceRefresh, clustersResp)
}

func (co *Coordinator) getTopicsFor(ctx context.Context, userID int64, forceRefresh bool, clustersResp ClustersResponse) (TopicsResponse, error) {
	digest, err := co.store.EmbeddingDigest(ctx, userID)
	if err != nil {
		return TopicsResponse{}, err
	}

	build := func(ctx context.Context) ([]byte, string, error) {
		memories, err := co.store.ListMemoryInfo(ctx, userID)
		if err != nil {
			return nil, "", err
		}
		topics := co.topics.Label(ctx, clusterInputs(clustersResp.Result.Clusters), memories)
		payload, merr := json.Marshal(topics)
		if merr != nil {
			return nil, "", errs.Wrap(errs.Transient, merr, "coordinator: marshal topics")
		}
		return payload, digest, nil
	}

	entry, stale, err := co.buildOrStale(ctx, userID, resultcache.ArtifactTopics, digest, forceRefresh, build)
	if err != nil {
		return TopicsResponse{}, err
	}

	var topics []topic.Topic
	if uerr := json.Unmarshal(entry.Payload, &topics); uerr != nil {
		return TopicsResponse{}, errs.Wrap(errs.Transient, uerr, "coordinator: decode topics")
	}
	return TopicsResponse{Topics: topics, Stale: clustersResp.Stale || stale, GeneratedAt: entry.GeneratedAt}, nil
}

// GetGraph requires fresh topics (which in turn requires fresh clusters)
// and composes the knowledge graph.
func (co *Coordinator) GetGraph(ctx context.Context, userID int64, forceRefresh bool) (GraphResponse, error) {
	clustersResp, err := co.GetClusters(ctx, userID, forceRefresh)
	if err != nil {
		return GraphResponse{}, err
	}
	topicsResp, err := co.getTopicsFor(ctx, userID, forceRefresh, clustersResp)
	if err != nil {
		return GraphResponse{}, err
	}

	digest, err := co.store.EmbeddingDigest(ctx, userID)
	if err != nil {
		return GraphResponse{}, err
	}

	build := func(ctx context.Context) ([]byte, string, error) {
		memories, err := co.store.ListMemoryInfo(ctx, userID)
		if err != nil {
			return nil, "", err
		}
		g := co.graphs.Build(clustersResp.Result.Clusters, topicsResp.Topics, memories, digest)
		payload, merr := json.Marshal(g)
		if merr != nil {
			return nil, "", errs.Wrap(errs.Transient, merr, "coordinator: marshal graph")
		}
		return payload, digest, nil
	}

	entry, stale, err := co.buildOrStale(ctx, userID, resultcache.ArtifactGraph, digest, forceRefresh, build)
	if err != nil {
		return GraphResponse{}, err
	}

	var g graph.Graph
	if uerr := json.Unmarshal(entry.Payload, &g); uerr != nil {
		return GraphResponse{}, errs.Wrap(errs.Transient, uerr, "coordinator: decode graph")
	}
	return GraphResponse{Graph: g, Stale: clustersResp.Stale || topicsResp.Stale || stale, GeneratedAt: entry.GeneratedAt}, nil
}

// Search embeds the query with interactive (high) priority and returns the
// top-k nearest memories, synchronously.
func (co *Coordinator) Search(ctx context.Context, userID int64, query string, k int) ([]SearchResult, error) {
	vec, err := co.embedder.Embed(ctx, query, embedding.TaskQuery, true)
	if err != nil {
		return nil, err
	}
	scored, err := co.vectors.TopK(ctx, userID, vec, k, co.cfg.SearchMinScore)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, len(scored))
	for i, s := range scored {
		results[i] = SearchResult{MemoryID: s.MemoryID, Score: s.Score}
	}
	return results, nil
}

// Repair re-embeds every memory missing (or with invalid) embeddings for a
// user, per spec §6.2's repair endpoint.
func (co *Coordinator) Repair(ctx context.Context, userID int64) (int, error) {
	missing, err := co.store.ListMemoriesMissingEmbedding(ctx, userID)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, m := range missing {
		vec, err := co.embedder.Embed(ctx, m.Content, embedding.TaskDocument, false)
		if err != nil {
			slog.Warn("coordinator: repair embed failed", "memory_id", m.ID, "error", err)
			continue
		}
		if err := co.store.UpsertEmbedding(ctx, m.ID, vec); err != nil {
			slog.Warn("coordinator: repair upsert failed", "memory_id", m.ID, "error", err)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		co.vectors.Invalidate(userID)
		if err := co.cache.InvalidateAll(ctx, userID); err != nil {
			slog.Warn("coordinator: repair cache invalidation failed", "user_id", userID, "error", err)
		}
	}
	return repaired, nil
}

// Shutdown drains the ingestion queue and waits for in-flight jobs, or
// returns ctx's error if it expires first.
func (co *Coordinator) Shutdown(ctx context.Context) error {
	close(co.jobs)
	select {
	case <-co.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildOrStale runs build through the result cache; on failure it falls
// back to the last cached entry (whatever its digest) while that entry's
// TTL has not expired, per spec §4.H/§7: a clustering/topic/graph build
// failure never discards a previously-good artifact. A Timeout is returned
// as is, and a failure with no unexpired cached entry to fall back on
// surfaces as Unavailable.
func (co *Coordinator) buildOrStale(ctx context.Context, userID int64, artifact resultcache.Artifact, digest string, forceRefresh bool, build resultcache.BuildFunc) (resultcache.Entry, bool, error) {
	entry, err := co.cache.GetOrBuildEntry(ctx, userID, artifact, digest, forceRefresh, build)
	if err == nil {
		return entry, false, nil
	}
	if errs.Is(err, errs.Timeout) {
		return resultcache.Entry{}, false, err
	}

	stale, ok, serr := co.cache.GetStale(ctx, userID, artifact)
	if serr != nil || !ok {
		return resultcache.Entry{}, false, errs.Wrap(errs.Unavailable, err, "coordinator: build failed with no cached fallback")
	}
	if time.Since(stale.GeneratedAt) >= stale.TTL {
		return resultcache.Entry{}, false, errs.Wrap(errs.Unavailable, err,
			"coordinator: build failed and the cached artifact generated at "+stale.GeneratedAt.Format(time.RFC3339)+" has expired")
	}
	slog.Warn("coordinator: build failed, serving stale artifact", "artifact", string(artifact), "user_id", userID, "error", err)
	return stale, true, nil
}

func clusterInputs(clusters []cluster.Cluster) []topic.ClusterInput {
	inputs := make([]topic.ClusterInput, len(clusters))
	for i, c := range clusters {
		inputs[i] = topic.ClusterInput{ID: c.ID, Centroid: c.Centroid, Members: c.Members}
	}
	return inputs
}
