package store

import "time"

// CacheEntry is the persistent-tier row backing engine/resultcache (spec
// §4.G, §3). The hot LRU tier never touches the store directly; it only
// ever reads/writes through resultcache.PersistentStore, which Store
// satisfies in cache.go.
type CacheEntry struct {
	UserID      int64
	Artifact    string
	Payload     []byte
	GeneratedAt time.Time
	TTL         time.Duration
	Digest      string
}
