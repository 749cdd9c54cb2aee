package topic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemograph/mnemograph/engine/llmsummary"
)

func memSet(entries ...MemoryInfo) map[string]MemoryInfo {
	out := make(map[string]MemoryInfo, len(entries))
	for _, e := range entries {
		out[e.MemoryID] = e
	}
	return out
}

func TestLabelDominantKeywordWins(t *testing.T) {
	memories := memSet(
		MemoryInfo{MemoryID: "m1", Keywords: []string{"golang", "golang", "concurrency"}, Vector: []float32{1, 0}},
		MemoryInfo{MemoryID: "m2", Keywords: []string{"golang"}, Vector: []float32{0.9, 0.1}},
	)
	cluster := ClusterInput{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1", "m2"}}

	l := New(nil)
	topics := l.Label(context.Background(), []ClusterInput{cluster}, memories)
	require.Len(t, topics, 1)
	assert.Equal(t, "golang", topics[0].Label)
	assert.Equal(t, "m1", topics[0].RepresentativeMemoryID)
}

func TestLabelFallsBackToPhraseWhenNoDominantKeyword(t *testing.T) {
	memories := memSet(
		MemoryInfo{MemoryID: "m1", Keywords: []string{"alpha"}, Vector: []float32{1, 0}},
		MemoryInfo{MemoryID: "m2", Keywords: []string{"beta"}, Vector: []float32{1, 0}},
		MemoryInfo{MemoryID: "m3", Keywords: []string{"gamma"}, Vector: []float32{1, 0}},
	)
	cluster := ClusterInput{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1", "m2", "m3"}}

	l := New(nil)
	topics := l.Label(context.Background(), []ClusterInput{cluster}, memories)
	require.Len(t, topics, 1)
	assert.Contains(t, topics[0].Label, "/")
}

func TestLabelSkipsMissingMemories(t *testing.T) {
	memories := memSet(MemoryInfo{MemoryID: "m1", Keywords: []string{"x"}, Vector: []float32{1, 0}})
	cluster := ClusterInput{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1", "missing"}}

	l := New(nil)
	topics := l.Label(context.Background(), []ClusterInput{cluster}, memories)
	require.Len(t, topics, 1)
	assert.Equal(t, "x", topics[0].Label)
}

type fakeSummarizer struct {
	label string
	err   error
}

func (f *fakeSummarizer) Chat(ctx context.Context, messages []llmsummary.Message) (string, *llmsummary.Stats, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.label, &llmsummary.Stats{}, nil
}

func TestLabelUsesLLMWhenConfigured(t *testing.T) {
	memories := memSet(MemoryInfo{MemoryID: "m1", Content: "notes about graph theory", Keywords: []string{"alpha"}, Vector: []float32{1, 0}})
	cluster := ClusterInput{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1"}}

	l := New(&fakeSummarizer{label: "Graph Theory Basics"})
	topics := l.Label(context.Background(), []ClusterInput{cluster}, memories)
	require.Len(t, topics, 1)
	assert.Equal(t, "Graph Theory Basics", topics[0].Label)
}

func TestLabelFallsBackToKeywordOnLLMFailure(t *testing.T) {
	memories := memSet(MemoryInfo{MemoryID: "m1", Content: "notes", Keywords: []string{"alpha"}, Vector: []float32{1, 0}})
	cluster := ClusterInput{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"m1"}}

	l := New(&fakeSummarizer{err: errors.New("provider down")})
	topics := l.Label(context.Background(), []ClusterInput{cluster}, memories)
	require.Len(t, topics, 1)
	assert.Equal(t, "alpha", topics[0].Label)
}

func TestRepresentativeMemoryPicksClosestToCentroid(t *testing.T) {
	memories := memSet(
		MemoryInfo{MemoryID: "far", Vector: []float32{0, 1}},
		MemoryInfo{MemoryID: "near", Vector: []float32{1, 0.01}},
	)
	cluster := ClusterInput{ID: "c1", Centroid: []float32{1, 0}, Members: []string{"far", "near"}}
	assert.Equal(t, "near", representativeMemory(cluster, memories))
}
