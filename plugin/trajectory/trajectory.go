// Package trajectory implements the learning-trajectory synthesis that
// spec §9's open question leaves to callers: this expansion resolves it as
// a peripheral projection over engine/graph + engine/topic output (not part
// of the Pipeline Coordinator's core artifact set), run on a schedule by
// plugin/cron, grounded on engine/resultcache's own Artifact/TTL/digest
// conventions so it shares the same cache-staleness contract as the three
// core artifacts (clusters, topics, graph).
package trajectory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/mnemograph/mnemograph/engine/coordinator"
	"github.com/mnemograph/mnemograph/engine/errs"
	"github.com/mnemograph/mnemograph/engine/graph"
	"github.com/mnemograph/mnemograph/engine/resultcache"
	"github.com/mnemograph/mnemograph/engine/topic"
)

// clusterNodePrefix mirrors engine/graph's own node-id scheme
// ("cluster:"+cluster.ID); graph nodes carry the prefixed id, but
// topic.Topic.ClusterID is the raw cluster id, so lookups between the two
// need to strip it back off.
const clusterNodePrefix = "cluster:"

// TopicProgress is one entry of a user's trajectory: a topic, how much of
// the graph it occupies, and a one-line suggestion for what to revisit.
type TopicProgress struct {
	ClusterID  string  `json:"clusterId"`
	Label      string  `json:"label"`
	NodeShare  float64 `json:"nodeShare"`
	Suggestion string  `json:"suggestion"`
}

// Trajectory is the projected artifact: an ordered view of a user's
// learning topics by graph weight, with a per-topic suggestion.
type Trajectory struct {
	UserID  int64           `json:"userId"`
	Topics  []TopicProgress `json:"topics"`
	Version string          `json:"version"`
}

// Source is the subset of the Coordinator the projector reads from; it
// never writes through the Coordinator, only through its own cache slot.
type Source interface {
	GetGraph(ctx context.Context, userID int64, forceRefresh bool) (coordinator.GraphResponse, error)
	GetTopics(ctx context.Context, userID int64, forceRefresh bool) (coordinator.TopicsResponse, error)
}

// Projector computes and caches the Trajectory artifact.
type Projector struct {
	source Source
	cache  *resultcache.Cache
}

// New constructs a Projector over a Coordinator (satisfying Source) and the
// same Cache instance the Coordinator itself uses, so trajectory entries
// live alongside clusters/topics/graph under one (userId, artifact) space.
func New(source Source, cache *resultcache.Cache) *Projector {
	return &Projector{source: source, cache: cache}
}

// Refresh rebuilds (or returns the still-fresh cached) Trajectory for one
// user. forceRefresh bypasses the cache the way the core artifacts do.
func (p *Projector) Refresh(ctx context.Context, userID int64, forceRefresh bool) (Trajectory, error) {
	graphResp, err := p.source.GetGraph(ctx, userID, forceRefresh)
	if err != nil {
		return Trajectory{}, err
	}
	topicsResp, err := p.source.GetTopics(ctx, userID, forceRefresh)
	if err != nil {
		return Trajectory{}, err
	}

	build := func(_ context.Context) ([]byte, string, error) {
		traj := project(userID, graphResp.Graph, topicsResp.Topics)
		payload, merr := json.Marshal(traj)
		if merr != nil {
			return nil, "", errs.Wrap(errs.Transient, merr, "trajectory: marshal")
		}
		return payload, graphResp.Graph.Version, nil
	}

	entry, err := p.cache.GetOrBuildEntry(ctx, userID, resultcache.ArtifactTrajectory, graphResp.Graph.Version, forceRefresh, build)
	if err != nil {
		return Trajectory{}, err
	}

	var traj Trajectory
	if uerr := json.Unmarshal(entry.Payload, &traj); uerr != nil {
		return Trajectory{}, errs.Wrap(errs.Transient, uerr, "trajectory: decode")
	}
	return traj, nil
}

// RefreshAll runs Refresh for every user id in userIDs, continuing past
// individual failures (one user's build error shouldn't block the rest of
// a scheduled sweep); it returns the last error seen, if any, for logging.
func (p *Projector) RefreshAll(ctx context.Context, userIDs []int64) error {
	var lastErr error
	for _, userID := range userIDs {
		if _, err := p.Refresh(ctx, userID, false); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func project(userID int64, g graph.Graph, topics []topic.Topic) Trajectory {
	labelByCluster := make(map[string]string, len(topics))
	keywordsByCluster := make(map[string][]string, len(topics))
	for _, t := range topics {
		labelByCluster[t.ClusterID] = t.Label
		keywordsByCluster[t.ClusterID] = t.Keywords
	}

	totalSize := 0.0
	type weighted struct {
		id   string
		size float64
	}
	var clusters []weighted
	for _, n := range g.Nodes {
		if n.Kind != graph.ClusterNodeKind {
			continue
		}
		clusters = append(clusters, weighted{id: strings.TrimPrefix(n.ID, clusterNodePrefix), size: n.Size})
		totalSize += n.Size
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].size > clusters[j].size })

	out := make([]TopicProgress, 0, len(clusters))
	for _, c := range clusters {
		share := 0.0
		if totalSize > 0 {
			share = c.size / totalSize
		}
		out = append(out, TopicProgress{
			ClusterID:  c.id,
			Label:      labelByCluster[c.id],
			NodeShare:  share,
			Suggestion: suggestionFor(share, keywordsByCluster[c.id]),
		})
	}

	return Trajectory{UserID: userID, Topics: out, Version: g.Version}
}

// suggestionFor picks a canned nudge from a topic's relative weight: small
// topics (little reinforcement yet) get a "revisit" prompt, large ones get
// an "go deeper" prompt.
func suggestionFor(share float64, keywords []string) string {
	focus := "this topic"
	if len(keywords) > 0 {
		focus = keywords[0]
	}
	switch {
	case share < 0.05:
		return "Revisit " + focus + " — it hasn't come up much lately."
	case share > 0.3:
		return "You've built strong coverage of " + focus + "; consider a deeper dive."
	default:
		return "Keep reinforcing " + focus + "."
	}
}

// TTL returns the §4.G default for the trajectory artifact, exported for
// callers (e.g. plugin/cron wiring) that want to log or assert on it
// without reaching into engine/resultcache directly.
func TTL() time.Duration {
	return resultcache.DefaultTTL(resultcache.ArtifactTrajectory)
}
