package store

import "time"

// Memory is a persisted unit of content a user asked the engine to remember.
// Ownership: the Memory Store owns Memory rows (keywords included, as the
// Keywords column) and MemoryEmbedding rows;
// every other component only ever sees derived, transient values.
type Memory struct {
	ID        string
	UserID    int64
	Content   string
	Type      string
	Summary   string
	Keywords  []string
	Timestamp time.Time
	CreatedTs int64
}

// FindMemory specifies the conditions for listing memories.
type FindMemory struct {
	ID     *string
	UserID *int64
	Limit  int
	Offset int
}

// MemoryEmbedding is the vector representation of a Memory. Version is
// bumped on every upsert and feeds EmbeddingDigest (spec §4.B), so a
// memory's embedding history doesn't need its own timestamp column.
type MemoryEmbedding struct {
	MemoryID string
	Vector   []float32
	Version  int64
}

// RepairEntry records why a memory's embedding attempt failed, for the
// repair queue backing POST .../repair (spec §6.2, §9).
type RepairEntry struct {
	MemoryID string
	Reason   string
	QueuedAt time.Time
	Resolved bool
}
