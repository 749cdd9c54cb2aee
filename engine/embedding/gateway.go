// Package embedding implements component A, the Embedding Gateway: it
// resolves text to fixed-dimension vectors via an OpenAI-compatible
// embedding endpoint, enforcing dimension, retry, and rate-limit policy
// before a vector is allowed to reach the store.
//
// Grounded on the bridge EmbeddingService in divinesense's ai/embedding.go
// (github.com/sashabaranov/go-openai client wiring) and ai/config.go's
// EmbeddingConfig shape.
package embedding

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	baseerrs "github.com/mnemograph/mnemograph/engine/errs"
	"github.com/mnemograph/mnemograph/engine/ratelimit"
)

// TaskType tags the purpose of an embedding request, forwarded to providers
// that discriminate between document and query embeddings.
type TaskType string

const (
	// TaskDocument is used when embedding memory content for storage.
	TaskDocument TaskType = "retrieval document"
	// TaskQuery is used when embedding a search query.
	TaskQuery TaskType = "retrieval query"
)

// maxInputChars bounds a single text's length before it is rejected as
// InvalidInput without ever reaching the provider.
const maxInputChars = 32000

// Config configures a Gateway.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// Gateway is the embedding service: config + retry + rate shaping.
type Gateway struct {
	client     *openai.Client
	model      string
	dimensions int
	bucket     *ratelimit.Bucket
	retry      retryPolicy
}

// New constructs a Gateway bound to an OpenAI-compatible endpoint and a
// shared rate-limit Bucket (process-wide, per spec §5's backpressure rule).
func New(cfg Config, bucket *ratelimit.Bucket) (*Gateway, error) {
	if cfg.Dimensions <= 0 {
		return nil, baseerrs.New(baseerrs.InvalidInput, "embedding: dimensions must be positive")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &Gateway{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		bucket:     bucket,
		retry:      defaultRetryPolicy(),
	}, nil
}

// Dimensions returns the fixed vector width D this Gateway enforces.
func (g *Gateway) Dimensions() int {
	return g.dimensions
}

// Result is one slot of an EmbedBatch response: exactly one of Vector/Err
// is set, preserving the caller's input ordering even on partial failure.
type Result struct {
	Vector []float32
	Err    error
}

// Embed resolves a single text to a vector. high marks an interactive
// (Search) caller, which draws from the reserved priority share of the
// rate bucket instead of the standard share.
func (g *Gateway) Embed(ctx context.Context, text string, task TaskType, high bool) ([]float32, error) {
	results := g.EmbedBatch(ctx, []string{text}, task, high)
	if len(results) != 1 {
		return nil, baseerrs.New(baseerrs.Transient, "embedding: empty batch result")
	}
	return results[0].Vector, results[0].Err
}

// EmbedBatch resolves the texts with one provider call, permitting partial
// success: an item that fails input validation or the dimension check does
// not prevent the others from succeeding, while a failed provider call is
// reported on every valid item. The returned slice always has len(texts)
// entries in input order.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string, task TaskType, high bool) []Result {
	results := make([]Result, len(texts))
	if len(texts) == 0 {
		return results
	}

	valid := make([]string, 0, len(texts))
	validIdx := make([]int, 0, len(texts))
	for i, t := range texts {
		if err := validateInput(t); err != nil {
			results[i] = Result{Err: err}
			continue
		}
		valid = append(valid, t)
		validIdx = append(validIdx, i)
	}
	if len(valid) == 0 {
		return results
	}

	vectors, err := g.embedWithRetry(ctx, valid, task, high)
	if err != nil {
		for _, i := range validIdx {
			results[i] = Result{Err: err}
		}
		return results
	}
	for n, i := range validIdx {
		if n >= len(vectors) {
			results[i] = Result{Err: baseerrs.New(baseerrs.Transient, "embedding: short provider response")}
			continue
		}
		vec := vectors[n]
		if err := validateDimension(vec, g.dimensions); err != nil {
			results[i] = Result{Err: err}
			continue
		}
		results[i] = Result{Vector: vec}
	}
	return results
}

func validateInput(text string) error {
	if text == "" {
		return baseerrs.New(baseerrs.InvalidInput, "embedding: empty text")
	}
	if len(text) > maxInputChars {
		return baseerrs.New(baseerrs.InvalidInput, "embedding: text exceeds maximum length")
	}
	return nil
}

func validateDimension(vec []float32, want int) error {
	if len(vec) != want {
		return baseerrs.Newf(baseerrs.Dimension, "embedding: provider returned %d dims, want %d", len(vec), want)
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return baseerrs.New(baseerrs.Dimension, "embedding: vector contains NaN/Inf")
		}
	}
	return nil
}

// embedWithRetry runs the rate-limited provider call, retrying Transient
// failures with exponential backoff+jitter. Dimension failures are
// surfaced by the caller after the raw vectors come back, so they never
// enter this retry loop.
func (g *Gateway) embedWithRetry(ctx context.Context, texts []string, task TaskType, high bool) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < g.retry.MaxAttempts; attempt++ {
		if err := g.waitForCapacity(ctx, high); err != nil {
			return nil, err
		}

		vectors, err := g.callProvider(ctx, texts, task)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if baseerrs.KindOf(err) != baseerrs.Transient {
			return nil, err
		}
		if attempt == g.retry.MaxAttempts-1 {
			break
		}
		if sleepErr := g.retry.sleep(ctx, attempt); sleepErr != nil {
			return nil, baseerrs.Wrap(baseerrs.Timeout, sleepErr, "embedding: retry wait cancelled")
		}
	}
	return nil, lastErr
}

func (g *Gateway) waitForCapacity(ctx context.Context, high bool) error {
	if g.bucket == nil {
		return nil
	}
	if high {
		return g.bucket.WaitPriority(ctx)
	}
	return g.bucket.Wait(ctx)
}

func (g *Gateway) callProvider(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(g.model),
		Dimensions: g.dimensions,
	}
	resp, err := g.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, baseerrs.Classify(errors.Wrap(err, "create embeddings"))
	}
	if len(resp.Data) == 0 {
		return nil, baseerrs.New(baseerrs.Transient, "embedding: empty provider response")
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
