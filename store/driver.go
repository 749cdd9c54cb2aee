package store

import "context"

// Driver is the dialect-agnostic persistence boundary, implemented once per
// backend under store/db/postgres and store/db/sqlite. store.Store delegates
// every call to a Driver the way store/store.go's original Store delegated
// to a Driver for AIConversation/AIBlock access; this expansion generalizes
// that same split to the memory-engine's own tables (spec §4.B names this
// interface as implied, not present, in the retrieval pack).
type Driver interface {
	Close() error

	CreateMemory(ctx context.Context, m *Memory) (*Memory, error)
	ListMemories(ctx context.Context, find *FindMemory) ([]*Memory, error)
	ListUserIDs(ctx context.Context) ([]int64, error)

	UpsertMemoryEmbedding(ctx context.Context, e *MemoryEmbedding) error
	ListMemoryEmbeddings(ctx context.Context, userID int64) ([]*MemoryEmbedding, error)
	ListMemoriesWithoutEmbedding(ctx context.Context, userID int64, limit int) ([]*Memory, error)

	QueueRepair(ctx context.Context, entry *RepairEntry) error
	ListRepairQueue(ctx context.Context, limit int) ([]*RepairEntry, error)

	LoadCacheEntry(ctx context.Context, userID int64, artifact string) (*CacheEntry, bool, error)
	SaveCacheEntry(ctx context.Context, entry *CacheEntry) error
	DeleteCacheEntry(ctx context.Context, userID int64, artifact string) error
	DeleteAllCacheEntries(ctx context.Context, userID int64) error

	LoadClusterSnapshot(ctx context.Context, userID int64) ([]byte, bool, error)
	SaveClusterSnapshot(ctx context.Context, userID int64, payload []byte) error
}
