package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mnemograph/mnemograph/engine/embedding"
	"github.com/mnemograph/mnemograph/engine/errs"
)

// ingestJob is one queued embed-and-invalidate task, produced by Ingest and
// consumed by the worker pool started in startWorkers.
type ingestJob struct {
	requestID string
	userID    int64
	memoryID  string
	content   string
}

// startWorkers launches cfg.IngestWorkers goroutines draining co.jobs,
// bounding ingestion concurrency the way ai/memory/simple.Generator bounds
// its own background generation with a semaphore — here a fixed pool
// reading off a channel serves the same purpose and matches the bounded
// worker pool spec §5 calls for.
func (co *Coordinator) startWorkers() {
	var wg sync.WaitGroup
	for i := 0; i < co.cfg.IngestWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range co.jobs {
				co.processIngest(job)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(co.done)
	}()
}

// processIngest embeds one memory's content and persists the resulting
// vector. A dimension failure is fatal for this record and queued for
// repair; any other failure is only logged, and the memory stays without an
// embedding until a Repair call re-embeds it (later ingestions do not retry
// it). Neither blocks cluster rebuilds, per spec §4.H.
func (co *Coordinator) processIngest(job ingestJob) {
	ctx, cancel := context.WithTimeout(context.Background(), co.cfg.IngestTimeout)
	defer cancel()

	vec, err := co.embedder.Embed(ctx, job.content, embedding.TaskDocument, false)
	if err != nil {
		if errs.KindOf(err) == errs.Dimension {
			if qerr := co.store.QueueRepair(ctx, job.memoryID, err.Error()); qerr != nil {
				slog.Error("coordinator: queue repair failed",
					"request_id", job.requestID, "memory_id", job.memoryID, "error", qerr)
			}
			return
		}
		slog.Warn("coordinator: embedding failed, left for repair",
			"request_id", job.requestID, "memory_id", job.memoryID, "error", err)
		return
	}

	if err := co.store.UpsertEmbedding(ctx, job.memoryID, vec); err != nil {
		slog.Error("coordinator: embedding persist failed",
			"request_id", job.requestID, "memory_id", job.memoryID, "error", err)
		return
	}

	co.vectors.Invalidate(job.userID)
	if err := co.cache.InvalidateAll(ctx, job.userID); err != nil {
		slog.Warn("coordinator: cache invalidation failed",
			"request_id", job.requestID, "user_id", job.userID, "error", err)
	}
}
