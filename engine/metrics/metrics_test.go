package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderExposesCounters(t *testing.T) {
	r := New()
	r.ObserveBuild("clusters", "fresh")
	r.ObserveCache("topics", true)
	r.ObserveCache("topics", false)
	r.ObserveEmbeddingLatency("retrieval document", 250*time.Millisecond)
	r.IncRepairQueued()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "mnemograph_artifact_builds_total")
	assert.Contains(t, body, "mnemograph_result_cache_hits_total")
	assert.Contains(t, body, "mnemograph_result_cache_misses_total")
	assert.Contains(t, body, "mnemograph_embedding_request_duration_seconds")
	assert.Contains(t, body, "mnemograph_repair_queue_entries_total 1")
	assert.True(t, strings.Contains(body, `artifact="clusters"`))
}

func TestNilRecorderIsNoOp(t *testing.T) {
	var r *Recorder
	r.ObserveBuild("clusters", "fresh")
	r.ObserveCache("clusters", true)
	r.ObserveEmbeddingLatency("retrieval query", time.Second)
	r.IncRepairQueued()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
