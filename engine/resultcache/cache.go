// Package resultcache implements component G, the Result Cache: a
// two-tier per-(userId, artifact) cache — a hot in-process LRU plus a
// persistent row — with digest+TTL freshness, atomic invalidation, and
// singleflight coalescing of concurrent misses.
//
// The hot tier reuses engine/lrucache (itself grounded on divinesense's
// ai/cache/lru.go); coalescing follows the same golang.org/x/sync/
// singleflight dependency the teacher's module already carries for
// request deduplication.
package resultcache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mnemograph/mnemograph/engine/errs"
	"github.com/mnemograph/mnemograph/engine/lrucache"
)

// Artifact names the kind of payload cached for a user.
type Artifact string

const (
	ArtifactClusters   Artifact = "clusters"
	ArtifactTopics     Artifact = "topics"
	ArtifactGraph      Artifact = "graph"
	ArtifactTrajectory Artifact = "trajectory"
)

// DefaultTTL returns spec §4.G's default TTL per artifact.
func DefaultTTL(a Artifact) time.Duration {
	switch a {
	case ArtifactClusters:
		return time.Hour
	case ArtifactTopics:
		return time.Hour
	case ArtifactGraph:
		return 30 * time.Minute
	case ArtifactTrajectory:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// Entry is one cached payload, opaque to this package beyond its digest
// and timestamps.
type Entry struct {
	Payload     []byte
	Digest      string
	GeneratedAt time.Time
	TTL         time.Duration
}

// Fresh reports whether e is still valid against currentDigest as of now.
func (e Entry) Fresh(now time.Time, currentDigest string) bool {
	return e.Digest == currentDigest && now.Sub(e.GeneratedAt) < e.TTL
}

// PersistentStore is the durable row backing per (userId, artifact),
// exclusively owned by this package per spec §3's Ownership note.
type PersistentStore interface {
	LoadCacheEntry(ctx context.Context, userID int64, artifact Artifact) (Entry, bool, error)
	SaveCacheEntry(ctx context.Context, userID int64, artifact Artifact, entry Entry) error
	DeleteCacheEntry(ctx context.Context, userID int64, artifact Artifact) error
	DeleteAllCacheEntries(ctx context.Context, userID int64) error
}

// BuildFunc produces a fresh payload and its digest for a (userId,
// artifact) on a cache miss.
type BuildFunc func(ctx context.Context) ([]byte, string, error)

// Cache is the two-tier result cache.
type Cache struct {
	hot    *lrucache.Cache[string, Entry]
	store  PersistentStore
	flight singleflight.Group
}

// New constructs a Cache with a hot tier of the given capacity (entries
// past TTL are still digest/TTL-checked on read, not blindly trusted).
func New(store PersistentStore, hotCapacity int) *Cache {
	return &Cache{
		hot:   lrucache.New[string, Entry](hotCapacity, 24*time.Hour),
		store: store,
	}
}

// Get returns the cached payload for (userId, artifact) iff it is fresh
// against currentDigest; a miss or stale entry causes ok=false so the
// caller knows to rebuild.
func (c *Cache) Get(ctx context.Context, userID int64, artifact Artifact, currentDigest string) ([]byte, bool, error) {
	e, ok, err := c.GetEntry(ctx, userID, artifact, currentDigest)
	if err != nil || !ok {
		return nil, false, err
	}
	return e.Payload, true, nil
}

// GetEntry is Get, but returns the full Entry (GeneratedAt, TTL included)
// rather than just the payload.
func (c *Cache) GetEntry(ctx context.Context, userID int64, artifact Artifact, currentDigest string) (Entry, bool, error) {
	key := cacheKey(userID, artifact)

	if e, ok := c.hot.Get(key); ok && e.Fresh(time.Now(), currentDigest) {
		return e, true, nil
	}

	e, found, err := c.store.LoadCacheEntry(ctx, userID, artifact)
	if err != nil {
		return Entry{}, false, errs.Wrap(errs.Transient, err, "resultcache: load persistent entry")
	}
	if !found || !e.Fresh(time.Now(), currentDigest) {
		return Entry{}, false, nil
	}

	c.hot.Set(key, e, e.TTL)
	return e, true, nil
}

// GetStale returns the last-known entry for (userId, artifact) regardless
// of freshness, so a caller whose rebuild failed can still surface a
// stale-but-usable artifact instead of an outright Unavailable.
func (c *Cache) GetStale(ctx context.Context, userID int64, artifact Artifact) (Entry, bool, error) {
	key := cacheKey(userID, artifact)
	if e, ok := c.hot.Get(key); ok {
		return e, true, nil
	}
	e, found, err := c.store.LoadCacheEntry(ctx, userID, artifact)
	if err != nil {
		return Entry{}, false, errs.Wrap(errs.Transient, err, "resultcache: load stale entry")
	}
	return e, found, nil
}

// GetOrBuild implements the read path with singleflight coalescing:
// concurrent misses for the same (userId, artifact) key share one
// in-flight build and all receive the same result (testable property for
// scenario S4). forceRefresh bypasses the freshness check but still
// coalesces through the same flight key.
func (c *Cache) GetOrBuild(ctx context.Context, userID int64, artifact Artifact, currentDigest string, forceRefresh bool, build BuildFunc) ([]byte, error) {
	e, err := c.GetOrBuildEntry(ctx, userID, artifact, currentDigest, forceRefresh, build)
	if err != nil {
		return nil, err
	}
	return e.Payload, nil
}

// GetOrBuildEntry is GetOrBuild, but returns the full Entry.
func (c *Cache) GetOrBuildEntry(ctx context.Context, userID int64, artifact Artifact, currentDigest string, forceRefresh bool, build BuildFunc) (Entry, error) {
	key := cacheKey(userID, artifact)

	if !forceRefresh {
		if e, ok, err := c.GetEntry(ctx, userID, artifact, currentDigest); err != nil {
			return Entry{}, err
		} else if ok {
			return e, nil
		}
	}

	result, err, _ := c.flight.Do(key, func() (any, error) {
		payload, digest, err := build(ctx)
		if err != nil {
			return nil, err
		}
		entry := Entry{
			Payload:     payload,
			Digest:      digest,
			GeneratedAt: time.Now(),
			TTL:         DefaultTTL(artifact),
		}
		c.hot.Set(key, entry, entry.TTL)
		if saveErr := c.store.SaveCacheEntry(ctx, userID, artifact, entry); saveErr != nil {
			return nil, errs.Wrap(errs.Transient, saveErr, "resultcache: persist entry")
		}
		return entry, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return result.(Entry), nil
}

// Invalidate atomically drops a user's cached entry for one artifact from
// both tiers.
func (c *Cache) Invalidate(ctx context.Context, userID int64, artifact Artifact) error {
	c.hot.Remove(cacheKey(userID, artifact))
	if err := c.store.DeleteCacheEntry(ctx, userID, artifact); err != nil {
		return errs.Wrap(errs.Transient, err, "resultcache: invalidate entry")
	}
	return nil
}

// InvalidateAll atomically drops every artifact cached for userID, used
// on ingestion (a new/changed memory invalidates clusters, topics, and
// graph together).
func (c *Cache) InvalidateAll(ctx context.Context, userID int64) error {
	c.hot.Invalidate(fmt.Sprintf("%d:", userID) + "*")
	if err := c.store.DeleteAllCacheEntries(ctx, userID); err != nil {
		return errs.Wrap(errs.Transient, err, "resultcache: invalidate all entries")
	}
	return nil
}

func cacheKey(userID int64, artifact Artifact) string {
	return fmt.Sprintf("%d:%s", userID, artifact)
}
