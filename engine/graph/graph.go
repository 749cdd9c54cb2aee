// Package graph implements component F, the Graph Builder: it composes
// cluster/keyword/memory nodes and typed edges, inferring relation kinds
// by centroid-cosine thresholds and a keyword-overlap rule layer.
//
// Node/edge emission in the shape "one event per upserted node, one per
// upserted edge" is grounded on the example pack's greedy-clustering
// Temporal activity (its kbEvent upsert_node/upsert_edge stream); the
// relation-typing rules themselves are this package's own, built to the
// contract spec §4.F specifies.
package graph

import (
	"math"
	"sort"

	"github.com/mnemograph/mnemograph/engine/cluster"
	"github.com/mnemograph/mnemograph/engine/topic"
)

// NodeKind tags which tagged-union arm a Node occupies.
type NodeKind string

const (
	ClusterNodeKind NodeKind = "cluster"
	KeywordNodeKind NodeKind = "keyword"
	MemoryNodeKind  NodeKind = "memory"
)

// EdgeKind tags the inferred relation type of an Edge.
type EdgeKind string

const (
	EdgeContains     EdgeKind = "contains"
	EdgeReferences   EdgeKind = "references"
	EdgeApplies      EdgeKind = "applies"
	EdgeSimilar      EdgeKind = "similar"
	EdgeComplements  EdgeKind = "complements"
	EdgePrerequisite EdgeKind = "prerequisite"
	EdgeRelated      EdgeKind = "related"
)

// Node is one tagged-union graph vertex.
type Node struct {
	ID    string
	Kind  NodeKind
	Label string
	Size  float64
}

// Edge is one typed, weighted, directed graph edge.
type Edge struct {
	Source string
	Target string
	Kind   EdgeKind
	Weight float32
}

// Graph is the composed output of a build, with a version for cache-key /
// ETag purposes.
type Graph struct {
	Nodes   []Node
	Edges   []Edge
	Version string
}

const (
	similarThreshold     = 0.7
	relatedLowThreshold  = 0.4
	complementsThreshold = 0.5
	minKeywordOccurrence = 2
)

// defaultMemoryNodeCap bounds how many MemoryNodes appear in one graph;
// beyond this, the eligible set is sampled deterministically by id.
const defaultMemoryNodeCap = 2000

// Builder composes a Graph from clustering + labeling output.
type Builder struct {
	memoryNodeCap int
}

// New constructs a Builder. cap <= 0 uses defaultMemoryNodeCap.
func New(maxMemoryNodes int) *Builder {
	if maxMemoryNodes <= 0 {
		maxMemoryNodes = defaultMemoryNodeCap
	}
	return &Builder{memoryNodeCap: maxMemoryNodes}
}

// Build composes the graph. memories must contain an entry for every
// memory id referenced by clusters' Members; entries absent are skipped.
func (b *Builder) Build(clusters []cluster.Cluster, topics []topic.Topic, memories map[string]topic.MemoryInfo, version string) Graph {
	topicByCluster := make(map[string]topic.Topic, len(topics))
	for _, t := range topics {
		topicByCluster[t.ClusterID] = t
	}

	memberOf := make(map[string]string) // memoryId -> clusterId
	for _, c := range clusters {
		for _, m := range c.Members {
			memberOf[m] = c.ID
		}
	}

	eligibleMemories := sampleMemoryIDs(memberOf, b.memoryNodeCap)
	eligibleSet := make(map[string]bool, len(eligibleMemories))
	for _, id := range eligibleMemories {
		eligibleSet[id] = true
	}

	keywordFreq := keywordFrequency(eligibleMemories, memories)

	var nodes []Node
	var edges []Edge

	for _, c := range clusters {
		nodes = append(nodes, Node{
			ID:    clusterNodeID(c.ID),
			Kind:  ClusterNodeKind,
			Label: labelFor(topicByCluster, c.ID),
			Size:  math.Log1p(float64(len(c.Members))),
		})
	}

	for kw, freq := range keywordFreq {
		if freq < minKeywordOccurrence {
			continue
		}
		nodes = append(nodes, Node{
			ID:    keywordNodeID(kw),
			Kind:  KeywordNodeKind,
			Label: kw,
			Size:  float64(freq),
		})
	}

	for _, id := range eligibleMemories {
		nodes = append(nodes, Node{
			ID:    memoryNodeID(id),
			Kind:  MemoryNodeKind,
			Label: id,
			Size:  1,
		})
	}

	for _, c := range clusters {
		for _, memberID := range c.Members {
			if !eligibleSet[memberID] {
				continue
			}
			info, ok := memories[memberID]
			if !ok {
				continue
			}
			edges = append(edges, Edge{
				Source: clusterNodeID(c.ID),
				Target: memoryNodeID(memberID),
				Kind:   EdgeContains,
				Weight: clampWeight(cosine(info.Vector, c.Centroid)),
			})
			for _, kw := range info.Keywords {
				if keywordFreq[kw] < minKeywordOccurrence {
					continue
				}
				edges = append(edges, Edge{
					Source: memoryNodeID(memberID),
					Target: keywordNodeID(kw),
					Kind:   EdgeReferences,
					Weight: 1,
				})
			}
		}
	}

	edges = append(edges, clusterRelationEdges(clusters, topicByCluster)...)

	return Graph{Nodes: nodes, Edges: edges, Version: version}
}

func labelFor(topics map[string]topic.Topic, clusterID string) string {
	if t, ok := topics[clusterID]; ok && t.Label != "" {
		return t.Label
	}
	return clusterID
}

// sampleMemoryIDs returns every clustered memory id when the set fits
// within cap, else the cap lexicographically largest (most recent) ids;
// either way the result is sorted by id ascending.
func sampleMemoryIDs(memberOf map[string]string, maxIDs int) []string {
	ids := make([]string, 0, len(memberOf))
	for id := range memberOf {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) <= maxIDs {
		// Ascending order keeps the output deterministic; no truncation
		// needed, so recency bias doesn't matter here.
		return ids
	}
	// Bias toward recency: ids are time-sortable, so the tail is newest.
	start := len(ids) - maxIDs
	return ids[start:]
}

func keywordFrequency(eligible []string, memories map[string]topic.MemoryInfo) map[string]int {
	freq := make(map[string]int)
	for _, id := range eligible {
		info, ok := memories[id]
		if !ok {
			continue
		}
		seen := make(map[string]bool, len(info.Keywords))
		for _, kw := range info.Keywords {
			if !seen[kw] {
				seen[kw] = true
				freq[kw]++
			}
		}
	}
	return freq
}

// clusterRelationEdges computes the single winning relation edge for
// every cluster pair, per spec §4.F's precedence rule: a keyword-overlap
// rule (prerequisite > applies > complements) outranks a pure
// centroid-cosine rule (similar > related); if neither fires, no edge is
// emitted for that pair.
func clusterRelationEdges(clusters []cluster.Cluster, topics map[string]topic.Topic) []Edge {
	var edges []Edge
	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			a, b := clusters[i], clusters[j]
			kind, weight, ok := relationFor(a, b, topics)
			if !ok {
				continue
			}
			edges = append(edges, Edge{
				Source: clusterNodeID(a.ID),
				Target: clusterNodeID(b.ID),
				Kind:   kind,
				Weight: weight,
			})
		}
	}
	return edges
}

func relationFor(a, b cluster.Cluster, topics map[string]topic.Topic) (EdgeKind, float32, bool) {
	setA := keywordSet(topics[a.ID])
	setB := keywordSet(topics[b.ID])

	if kind, weight, ok := keywordRule(setA, setB); ok {
		return kind, weight, true
	}

	sim := cosine(a.Centroid, b.Centroid)
	switch {
	case sim >= similarThreshold:
		return EdgeSimilar, clampWeight(sim), true
	case sim >= relatedLowThreshold:
		return EdgeRelated, clampWeight(sim), true
	default:
		return "", 0, false
	}
}

// keywordRule implements the optional rule layer: a pure subset relation
// (one cluster's keywords wholly contained in the other's) is
// prerequisite; symmetric partial overlap above complementsThreshold is
// complements; any other nonzero overlap is the weaker applies relation.
func keywordRule(a, b map[string]bool) (EdgeKind, float32, bool) {
	if len(a) == 0 || len(b) == 0 {
		return "", 0, false
	}
	inter := intersectionSize(a, b)
	if inter == 0 {
		return "", 0, false
	}
	union := len(a) + len(b) - inter
	jaccard := float32(inter) / float32(union)

	if inter == len(a) && len(a) != len(b) {
		return EdgePrerequisite, jaccard, true
	}
	if inter == len(b) && len(a) != len(b) {
		return EdgePrerequisite, jaccard, true
	}
	if jaccard > complementsThreshold {
		return EdgeComplements, jaccard, true
	}
	return EdgeApplies, jaccard, true
}

func keywordSet(t topic.Topic) map[string]bool {
	set := make(map[string]bool, len(t.Keywords))
	for _, kw := range t.Keywords {
		set[kw] = true
	}
	return set
}

func intersectionSize(a, b map[string]bool) int {
	n := 0
	for kw := range a {
		if b[kw] {
			n++
		}
	}
	return n
}

func clusterNodeID(id string) string { return "cluster:" + id }
func keywordNodeID(kw string) string { return "keyword:" + kw }
func memoryNodeID(id string) string  { return "memory:" + id }

func clampWeight(w float32) float32 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
