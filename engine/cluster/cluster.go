// Package cluster implements component D, the Cluster Engine: it groups a
// user's embeddings into K clusters via k-means++ seeding and Lloyd's
// iteration, then re-identifies clusters against the previous run so a
// cluster's id is stable across incremental rebuilds as long as its
// membership is materially unchanged.
//
// The member-set hashing used for fresh ids, and the pattern of caching a
// previous run's centroids to compare against, are grounded on the
// greedy-clustering Temporal activity in the example pack
// (BuildClusters / makeStableClusterID / loadCentroidCache); the k-means++
// / Lloyd's / Hungarian-matching algorithm itself is this package's own,
// built to the contract spec §4.D specifies.
package cluster

import (
	"context"
	"crypto/sha1"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"

	"github.com/mnemograph/mnemograph/engine/errs"
)

// Vector pairs a memory id with its embedding.
type Vector struct {
	MemoryID string
	Vector   []float32
}

// Cluster is one group of memories sharing a centroid.
type Cluster struct {
	ID       string
	Centroid []float32
	Members  []string
}

// Size returns the member count.
func (c Cluster) Size() int { return len(c.Members) }

// Result is the outcome of a Cluster run.
type Result struct {
	Clusters []Cluster
	Digest   string
}

// minClusterableMemories is the N below which Cluster returns an empty
// clustering rather than attempting to fit K >= 3 groups (spec §4.D
// step 1).
const minClusterableMemories = 5

// matchThreshold is the maximum cosine distance between a new and a
// previous centroid for them to be considered the same cluster under
// Hungarian matching; beyond this, the new cluster is treated as novel.
const matchThreshold = 0.6

// Loader supplies the embeddings to cluster.
type Loader interface {
	ListEmbeddings(ctx context.Context, userID int64) ([]Vector, error)
	EmbeddingDigest(ctx context.Context, userID int64) (string, error)
}

// History persists the previous run's clusters so stable identity can be
// computed on the next run; a fresh user (or one with no history) simply
// has LoadPrevious return an empty slice.
type History interface {
	LoadPrevious(ctx context.Context, userID int64) ([]Cluster, error)
	SavePrevious(ctx context.Context, userID int64, clusters []Cluster) error
}

// Engine runs the clustering algorithm.
type Engine struct {
	loader  Loader
	history History
}

// New constructs a clustering Engine.
func New(loader Loader, history History) *Engine {
	return &Engine{loader: loader, history: history}
}

// Cluster groups userID's current embeddings, matching against the
// previous run to preserve cluster identity, and persists the result as
// the new "previous run" for next time.
func (e *Engine) Cluster(ctx context.Context, userID int64) (Result, error) {
	digest, err := e.loader.EmbeddingDigest(ctx, userID)
	if err != nil {
		return Result{}, errs.Wrap(errs.Transient, err, "cluster: digest lookup")
	}

	raw, err := e.loader.ListEmbeddings(ctx, userID)
	if err != nil {
		return Result{}, errs.Wrap(errs.Transient, err, "cluster: list embeddings")
	}

	if len(raw) < minClusterableMemories {
		return Result{Clusters: nil, Digest: digest}, nil
	}

	ids := make([]string, len(raw))
	vectors := make([][]float32, len(raw))
	for i, v := range raw {
		ids[i] = v.MemoryID
		unit, ok := normalize(v.Vector)
		if !ok {
			unit = make([]float32, len(v.Vector))
		}
		vectors[i] = unit
	}

	k := chooseK(len(raw))
	rng := rand.New(rand.NewSource(seedFromDigest(digest)))
	initial := seedKMeansPlusPlus(rng, vectors, k)
	lloyd := runLloyd(rng, vectors, initial)

	rawClusters := make([]Cluster, k)
	for c := 0; c < k; c++ {
		rawClusters[c] = Cluster{Centroid: lloyd.centroids[c]}
	}
	for i, c := range lloyd.assignment {
		rawClusters[c].Members = append(rawClusters[c].Members, ids[i])
	}
	// Drop any cluster that ended up with no members (possible only if
	// reseeding itself picked an already-assigned point under extreme
	// degeneracy); this keeps downstream consumers from seeing an empty
	// cluster with a meaningless centroid.
	nonEmpty := rawClusters[:0]
	for _, c := range rawClusters {
		if len(c.Members) > 0 {
			nonEmpty = append(nonEmpty, c)
		}
	}
	rawClusters = nonEmpty

	previous, err := e.history.LoadPrevious(ctx, userID)
	if err != nil {
		return Result{}, errs.Wrap(errs.Transient, err, "cluster: load previous run")
	}

	final := assignStableIDs(rawClusters, previous)
	sort.Slice(final, func(i, j int) bool { return final[i].ID < final[j].ID })

	if err := e.history.SavePrevious(ctx, userID, final); err != nil {
		return Result{}, errs.Wrap(errs.Transient, err, "cluster: save run for stable identity")
	}

	return Result{Clusters: final, Digest: digest}, nil
}

// chooseK implements spec §4.D step 2: K = clamp(round(sqrt(N/2)), 3, 12).
func chooseK(n int) int {
	k := int(math.Round(math.Sqrt(float64(n) / 2)))
	if k < 3 {
		k = 3
	}
	if k > 12 {
		k = 12
	}
	if k > n {
		k = n
	}
	return k
}

// assignStableIDs matches rawClusters to previous by minimum cosine
// distance under the Hungarian assignment rule; matched pairs within
// matchThreshold inherit the previous id, everything else gets a fresh
// one derived from its member set (spec §4.D step 6).
func assignStableIDs(raw []Cluster, previous []Cluster) []Cluster {
	final := make([]Cluster, len(raw))
	copy(final, raw)

	if len(previous) == 0 || len(raw) == 0 {
		for i := range final {
			final[i].ID = freshClusterID(final[i].Members)
		}
		return final
	}

	size := len(raw)
	if len(previous) > size {
		size = len(previous)
	}
	cost := make([][]float64, size)
	for i := range cost {
		cost[i] = make([]float64, size)
		for j := range cost[i] {
			cost[i][j] = 2.0 // max possible cosine distance, used as dummy-pad cost
		}
	}
	for i, c := range raw {
		for j, p := range previous {
			if c.Centroid == nil || p.Centroid == nil {
				continue
			}
			cost[i][j] = 1 - float64(dot(c.Centroid, p.Centroid))
		}
	}

	assignment := hungarianAssignment(cost)
	used := make([]bool, len(final))
	for i := 0; i < len(raw); i++ {
		j := assignment[i]
		if j < 0 || j >= len(previous) {
			continue
		}
		if cost[i][j] <= matchThreshold {
			final[i].ID = previous[j].ID
			used[i] = true
		}
	}
	for i := range final {
		if !used[i] {
			final[i].ID = freshClusterID(final[i].Members)
		}
	}
	return final
}

// freshClusterID derives a stable-within-a-run identifier from the sorted
// member set, so an identical membership always hashes to the same id
// even before any history exists to match against.
func freshClusterID(members []string) string {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	h := sha1.New()
	for _, m := range sorted {
		h.Write([]byte(m))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("cluster-%x", h.Sum(nil)[:10])
}

func seedFromDigest(digest string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(digest))
	return int64(h.Sum64())
}

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
