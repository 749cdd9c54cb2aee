package resultcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]Entry)}
}

func (f *fakeStore) key(userID int64, artifact Artifact) string {
	return cacheKey(userID, artifact)
}

func (f *fakeStore) LoadCacheEntry(ctx context.Context, userID int64, artifact Artifact) (Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[f.key(userID, artifact)]
	return e, ok, nil
}

func (f *fakeStore) SaveCacheEntry(ctx context.Context, userID int64, artifact Artifact, entry Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[f.key(userID, artifact)] = entry
	return nil
}

func (f *fakeStore) DeleteCacheEntry(ctx context.Context, userID int64, artifact Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, f.key(userID, artifact))
	return nil
}

func (f *fakeStore) DeleteAllCacheEntries(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.entries {
		delete(f.entries, k)
	}
	return nil
}

func TestGetOrBuildMissesThenHitsHotTier(t *testing.T) {
	store := newFakeStore()
	c := New(store, 10)

	var builds int32
	build := func(ctx context.Context) ([]byte, string, error) {
		atomic.AddInt32(&builds, 1)
		return []byte("payload"), "digest-1", nil
	}

	payload, err := c.GetOrBuild(context.Background(), 1, ArtifactClusters, "digest-1", false, build)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(payload))

	payload, err = c.GetOrBuild(context.Background(), 1, ArtifactClusters, "digest-1", false, build)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(payload))
	assert.EqualValues(t, 1, builds, "second call should hit the cache, not rebuild")
}

func TestGetOrBuildRebuildsOnDigestChange(t *testing.T) {
	store := newFakeStore()
	c := New(store, 10)
	var builds int32
	build := func(ctx context.Context) ([]byte, string, error) {
		n := atomic.AddInt32(&builds, 1)
		return []byte("payload"), "digest-v" + string(rune('0'+n)), nil
	}

	_, err := c.GetOrBuild(context.Background(), 1, ArtifactClusters, "digest-v1", false, build)
	require.NoError(t, err)
	_, err = c.GetOrBuild(context.Background(), 1, ArtifactClusters, "digest-v2", false, build)
	require.NoError(t, err)
	assert.EqualValues(t, 2, builds)
}

func TestGetOrBuildCoalescesConcurrentMisses(t *testing.T) {
	store := newFakeStore()
	c := New(store, 10)

	var builds int32
	release := make(chan struct{})
	build := func(ctx context.Context) ([]byte, string, error) {
		atomic.AddInt32(&builds, 1)
		<-release
		return []byte("payload"), "d1", nil
	}

	const callers = 50
	results := make([][]byte, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			payload, err := c.GetOrBuild(context.Background(), 1, ArtifactGraph, "d1", false, build)
			assert.NoError(t, err)
			results[idx] = payload
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, builds, "concurrent misses on the same key should coalesce into a single build")
	for _, r := range results {
		assert.Equal(t, "payload", string(r))
	}
}

func TestForceRefreshBypassesFreshnessButStillCoalesces(t *testing.T) {
	store := newFakeStore()
	c := New(store, 10)
	_, err := c.GetOrBuild(context.Background(), 1, ArtifactTopics, "d1", false, func(ctx context.Context) ([]byte, string, error) {
		return []byte("first"), "d1", nil
	})
	require.NoError(t, err)

	var builds int32
	payload, err := c.GetOrBuild(context.Background(), 1, ArtifactTopics, "d1", true, func(ctx context.Context) ([]byte, string, error) {
		atomic.AddInt32(&builds, 1)
		return []byte("second"), "d1", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "second", string(payload))
	assert.EqualValues(t, 1, builds)
}

func TestInvalidateRemovesFromBothTiers(t *testing.T) {
	store := newFakeStore()
	c := New(store, 10)
	_, err := c.GetOrBuild(context.Background(), 1, ArtifactClusters, "d1", false, func(ctx context.Context) ([]byte, string, error) {
		return []byte("x"), "d1", nil
	})
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(context.Background(), 1, ArtifactClusters))

	_, ok, err := c.Get(context.Background(), 1, ArtifactClusters, "d1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetOrBuildPropagatesBuildError(t *testing.T) {
	store := newFakeStore()
	c := New(store, 10)
	_, err := c.GetOrBuild(context.Background(), 1, ArtifactClusters, "d1", false, func(ctx context.Context) ([]byte, string, error) {
		return nil, "", errors.New("build failed")
	})
	assert.Error(t, err)
}

func TestEntryFreshRequiresDigestMatchAndTTL(t *testing.T) {
	e := Entry{Digest: "d1", GeneratedAt: time.Now(), TTL: time.Minute}
	assert.True(t, e.Fresh(time.Now(), "d1"))
	assert.False(t, e.Fresh(time.Now(), "d2"))
	assert.False(t, e.Fresh(time.Now().Add(2*time.Minute), "d1"))
}
