package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemograph/mnemograph/engine/cluster"
	"github.com/mnemograph/mnemograph/engine/topic"
)

func findNode(nodes []Node, id string) (Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

func findEdge(edges []Edge, source, target string) (Edge, bool) {
	for _, e := range edges {
		if e.Source == source && e.Target == target {
			return e, true
		}
	}
	return Edge{}, false
}

func TestBuildEmitsClusterKeywordAndMemoryNodes(t *testing.T) {
	clusters := []cluster.Cluster{
		{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1", "m2"}},
	}
	topics := []topic.Topic{{ClusterID: "c1", Label: "fruit", Keywords: []string{"apple"}}}
	memories := map[string]topic.MemoryInfo{
		"m1": {MemoryID: "m1", Vector: []float32{1, 0}, Keywords: []string{"apple"}},
		"m2": {MemoryID: "m2", Vector: []float32{0.9, 0.1}, Keywords: []string{"apple"}},
	}

	b := New(0)
	g := b.Build(clusters, topics, memories, "v1")

	clusterNode, ok := findNode(g.Nodes, "cluster:c1")
	require.True(t, ok)
	assert.Equal(t, ClusterNodeKind, clusterNode.Kind)
	assert.Equal(t, "fruit", clusterNode.Label)

	_, ok = findNode(g.Nodes, "keyword:apple")
	assert.True(t, ok, "keyword appearing in 2 memories should become a node")

	_, ok = findNode(g.Nodes, "memory:m1")
	assert.True(t, ok)
}

func TestKeywordBelowThresholdIsNotANode(t *testing.T) {
	clusters := []cluster.Cluster{{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1"}}}
	memories := map[string]topic.MemoryInfo{
		"m1": {MemoryID: "m1", Vector: []float32{1, 0}, Keywords: []string{"onlyone"}},
	}

	b := New(0)
	g := b.Build(clusters, nil, memories, "v1")
	_, ok := findNode(g.Nodes, "keyword:onlyone")
	assert.False(t, ok, "keyword in only 1 memory should not become a node")
}

func TestContainsEdgeWeightIsCosineToCentroid(t *testing.T) {
	clusters := []cluster.Cluster{{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1", "m2"}}}
	memories := map[string]topic.MemoryInfo{
		"m1": {MemoryID: "m1", Vector: []float32{1, 0}, Keywords: []string{"a", "b"}},
		"m2": {MemoryID: "m2", Vector: []float32{1, 0}, Keywords: []string{"a", "b"}},
	}

	b := New(0)
	g := b.Build(clusters, nil, memories, "v1")
	edge, ok := findEdge(g.Edges, "cluster:c1", "memory:m1")
	require.True(t, ok)
	assert.Equal(t, EdgeContains, edge.Kind)
	assert.InDelta(t, 1.0, edge.Weight, 1e-6)
}

func TestReferencesEdgeOnlyForQualifyingKeywords(t *testing.T) {
	clusters := []cluster.Cluster{{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1", "m2"}}}
	memories := map[string]topic.MemoryInfo{
		"m1": {MemoryID: "m1", Vector: []float32{1, 0}, Keywords: []string{"shared", "lonely"}},
		"m2": {MemoryID: "m2", Vector: []float32{1, 0}, Keywords: []string{"shared"}},
	}

	b := New(0)
	g := b.Build(clusters, nil, memories, "v1")

	_, ok := findEdge(g.Edges, "memory:m1", "keyword:shared")
	assert.True(t, ok)
	_, ok = findEdge(g.Edges, "memory:m1", "keyword:lonely")
	assert.False(t, ok, "keyword appearing only once should not get a references edge")
}

func TestClusterSimilarEdgeAboveThreshold(t *testing.T) {
	clusters := []cluster.Cluster{
		{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1"}},
		{ID: "c2", Centroid: []float32{0.95, 0.05}, Members: []string{"m2"}},
	}
	memories := map[string]topic.MemoryInfo{
		"m1": {MemoryID: "m1", Vector: []float32{1, 0}},
		"m2": {MemoryID: "m2", Vector: []float32{0.95, 0.05}},
	}

	b := New(0)
	g := b.Build(clusters, nil, memories, "v1")
	edge, ok := findEdge(g.Edges, "cluster:c1", "cluster:c2")
	require.True(t, ok)
	assert.Equal(t, EdgeSimilar, edge.Kind)
}

func TestClusterUnrelatedBelowRelatedThresholdEmitsNoEdge(t *testing.T) {
	clusters := []cluster.Cluster{
		{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1"}},
		{ID: "c2", Centroid: []float32{0, 1}, Members: []string{"m2"}},
	}
	memories := map[string]topic.MemoryInfo{
		"m1": {MemoryID: "m1", Vector: []float32{1, 0}},
		"m2": {MemoryID: "m2", Vector: []float32{0, 1}},
	}

	b := New(0)
	g := b.Build(clusters, nil, memories, "v1")
	_, ok := findEdge(g.Edges, "cluster:c1", "cluster:c2")
	assert.False(t, ok)
}

func TestPrerequisiteRuleFiresOnPureSubsetOverlap(t *testing.T) {
	topics := []topic.Topic{
		{ClusterID: "c1", Keywords: []string{"loops"}},
		{ClusterID: "c2", Keywords: []string{"loops", "recursion", "closures"}},
	}
	clusters := []cluster.Cluster{
		{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1"}},
		{ID: "c2", Centroid: []float32{0, 1}, Members: []string{"m2"}},
	}
	memories := map[string]topic.MemoryInfo{
		"m1": {MemoryID: "m1", Vector: []float32{1, 0}},
		"m2": {MemoryID: "m2", Vector: []float32{0, 1}},
	}

	b := New(0)
	g := b.Build(clusters, topics, memories, "v1")
	edge, ok := findEdge(g.Edges, "cluster:c1", "cluster:c2")
	require.True(t, ok, "keyword subset relation should still produce an edge even though centroids are orthogonal")
	assert.Equal(t, EdgePrerequisite, edge.Kind)
}

func TestComplementsRuleFiresOnSymmetricPartialOverlap(t *testing.T) {
	topics := []topic.Topic{
		{ClusterID: "c1", Keywords: []string{"a", "b", "c", "d"}},
		{ClusterID: "c2", Keywords: []string{"a", "b", "c", "e"}},
	}
	clusters := []cluster.Cluster{
		{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1"}},
		{ID: "c2", Centroid: []float32{0, 1}, Members: []string{"m2"}},
	}
	memories := map[string]topic.MemoryInfo{
		"m1": {MemoryID: "m1", Vector: []float32{1, 0}},
		"m2": {MemoryID: "m2", Vector: []float32{0, 1}},
	}

	b := New(0)
	g := b.Build(clusters, topics, memories, "v1")
	edge, ok := findEdge(g.Edges, "cluster:c1", "cluster:c2")
	require.True(t, ok)
	assert.Equal(t, EdgeComplements, edge.Kind)
}

func TestSampleMemoryIDsCapsDeterministically(t *testing.T) {
	memberOf := map[string]string{"1": "c", "2": "c", "3": "c", "4": "c"}
	ids := sampleMemoryIDs(memberOf, 2)
	assert.Equal(t, []string{"3", "4"}, ids, "should keep the lexicographically-largest (most recent) ids")
}
