// Package topic implements component E, the Topic Labeler: it aggregates
// member keywords per cluster, ranks them by TF-IDF across a user's
// clusters, and derives a human-readable label — optionally refined by an
// LLM summarization pass over representative memory snippets that never
// blocks the graph build on failure.
//
// The keyword-then-LLM-fallback shape is grounded on divinesense's
// ai/memory/simple/generator.go (generateSummary falls back to a
// truncated/derived string whenever the LLM call errors); the chat client
// itself is engine/llmsummary.
package topic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mnemograph/mnemograph/engine/llmsummary"
)

// dominanceRatio is the minimum ratio between the top and second keyword
// weight for the label to be just the top keyword (spec §4.E).
const dominanceRatio = 1.5

// phraseKeywordCount is how many top keywords are joined into a phrase
// label when no single keyword dominates.
const phraseKeywordCount = 3

// representativeSnippets is how many member memories are sent to the LLM
// summarizer, nearest-to-centroid first.
const representativeSnippets = 5

// ClusterInput is the subset of a cluster the labeler needs.
type ClusterInput struct {
	ID       string
	Centroid []float32
	Members  []string
}

// MemoryInfo is the subset of a memory the labeler needs: its content (for
// LLM snippets), its keywords, and its embedding (to find the
// representative member).
type MemoryInfo struct {
	MemoryID string
	Content  string
	Keywords []string
	Vector   []float32
}

// Topic is the labeling result for one cluster.
type Topic struct {
	ClusterID              string
	Label                  string
	RepresentativeMemoryID string
	Keywords               []string
}

// Summarizer is the optional LLM path; engine/llmsummary.Client satisfies
// this directly.
type Summarizer interface {
	Chat(ctx context.Context, messages []llmsummary.Message) (string, *llmsummary.Stats, error)
}

// Labeler assigns labels to clusters. Summarizer may be nil, in which case
// every label comes from the keyword/TF-IDF path.
type Labeler struct {
	summarizer Summarizer
}

// New constructs a Labeler. Pass a nil summarizer to disable the LLM path
// entirely (keyword-only labeling).
func New(summarizer Summarizer) *Labeler {
	return &Labeler{summarizer: summarizer}
}

// Label produces one Topic per cluster. memories must contain an entry for
// every memoryId referenced by any cluster's Members; missing entries are
// skipped rather than treated as an error, since a memory can legitimately
// be mid-deletion when a build races it.
func (l *Labeler) Label(ctx context.Context, clusters []ClusterInput, memories map[string]MemoryInfo) []Topic {
	df := documentFrequency(clusters, memories)
	n := len(clusters)

	topics := make([]Topic, 0, len(clusters))
	for _, c := range clusters {
		weighted := rankedKeywords(c, memories, df, n)
		keywords := keywordsOnly(weighted)
		rep := representativeMemory(c, memories)
		label := keywordLabel(weighted)

		if l.summarizer != nil {
			if refined, ok := l.tryLLMLabel(ctx, c, memories); ok {
				label = refined
			}
		}

		topics = append(topics, Topic{
			ClusterID:              c.ID,
			Label:                  label,
			RepresentativeMemoryID: rep,
			Keywords:               keywords,
		})
	}
	return topics
}

func keywordsOnly(weighted []weightedKeyword) []string {
	out := make([]string, len(weighted))
	for i, w := range weighted {
		out[i] = w.keyword
	}
	return out
}

// documentFrequency counts, for each keyword, how many clusters contain at
// least one member exhibiting it.
func documentFrequency(clusters []ClusterInput, memories map[string]MemoryInfo) map[string]int {
	df := make(map[string]int)
	for _, c := range clusters {
		seen := make(map[string]bool)
		for _, memberID := range c.Members {
			info, ok := memories[memberID]
			if !ok {
				continue
			}
			for _, kw := range info.Keywords {
				if !seen[kw] {
					seen[kw] = true
					df[kw]++
				}
			}
		}
	}
	return df
}

type weightedKeyword struct {
	keyword string
	weight  float64
}

// rankedKeywords computes TF-IDF weight for every keyword appearing in
// cluster c's members and returns them ranked, highest weight first.
func rankedKeywords(c ClusterInput, memories map[string]MemoryInfo, df map[string]int, totalClusters int) []weightedKeyword {
	tf := make(map[string]int)
	for _, memberID := range c.Members {
		info, ok := memories[memberID]
		if !ok {
			continue
		}
		for _, kw := range info.Keywords {
			tf[kw]++
		}
	}

	weighted := make([]weightedKeyword, 0, len(tf))
	for kw, freq := range tf {
		idf := math.Log(float64(totalClusters+1)/float64(df[kw]+1)) + 1
		weighted = append(weighted, weightedKeyword{keyword: kw, weight: float64(freq) * idf})
	}
	sort.Slice(weighted, func(i, j int) bool {
		if weighted[i].weight != weighted[j].weight {
			return weighted[i].weight > weighted[j].weight
		}
		return weighted[i].keyword < weighted[j].keyword
	})
	return weighted
}

// keywordLabel implements spec §4.E's dominance rule: the top keyword
// alone if it outweighs the runner-up by dominanceRatio, else a
// deduplicated phrase of the top phraseKeywordCount keywords.
func keywordLabel(ranked []weightedKeyword) string {
	if len(ranked) == 0 {
		return "untitled"
	}
	if len(ranked) == 1 {
		return ranked[0].keyword
	}
	if ranked[1].weight > 0 && ranked[0].weight/ranked[1].weight >= dominanceRatio {
		return ranked[0].keyword
	}

	n := phraseKeywordCount
	if n > len(ranked) {
		n = len(ranked)
	}
	phrase := make([]string, n)
	for i := 0; i < n; i++ {
		phrase[i] = ranked[i].keyword
	}
	return strings.Join(dedupe(phrase), " / ")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// representativeMemory picks the member with the highest cosine similarity
// to the cluster centroid.
func representativeMemory(c ClusterInput, memories map[string]MemoryInfo) string {
	best := ""
	bestScore := math.Inf(-1)
	for _, memberID := range c.Members {
		info, ok := memories[memberID]
		if !ok || len(info.Vector) == 0 {
			continue
		}
		score := float64(cosine(info.Vector, c.Centroid))
		if score > bestScore {
			bestScore = score
			best = memberID
		}
	}
	return best
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

// tryLLMLabel attempts the optional LLM summarization path; any failure
// (timeout, empty response, provider error) results in ok=false so the
// caller keeps its keyword-derived label rather than blocking the build.
func (l *Labeler) tryLLMLabel(ctx context.Context, c ClusterInput, memories map[string]MemoryInfo) (string, bool) {
	snippets := representativeSnippetsFor(c, memories)
	if len(snippets) == 0 {
		return "", false
	}

	prompt := strings.Builder{}
	prompt.WriteString("Produce a short topic label (3-6 words) summarizing these related notes:\n")
	for i, s := range snippets {
		fmt.Fprintf(&prompt, "%d. %s\n", i+1, s)
	}

	content, _, err := l.summarizer.Chat(ctx, []llmsummary.Message{
		llmsummary.SystemPrompt("You produce concise topic labels, no punctuation at the end, no quotes."),
		llmsummary.UserMessage(prompt.String()),
	})
	if err != nil {
		return "", false
	}
	label := strings.TrimSpace(content)
	if label == "" {
		return "", false
	}
	return label, true
}

// representativeSnippetsFor returns up to representativeSnippets member
// contents, nearest-to-centroid first.
func representativeSnippetsFor(c ClusterInput, memories map[string]MemoryInfo) []string {
	type scored struct {
		content string
		score   float32
	}
	var candidates []scored
	for _, memberID := range c.Members {
		info, ok := memories[memberID]
		if !ok || info.Content == "" {
			continue
		}
		candidates = append(candidates, scored{content: info.Content, score: cosine(info.Vector, c.Centroid)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	n := representativeSnippets
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[i].content
	}
	return out
}
