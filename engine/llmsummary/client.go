// Package llmsummary is a trimmed chat-completion client used by the Topic
// Labeler's optional LLM summarization path. Grounded on divinesense's
// ai/core/llm/service.go and schema.go: same Config shape, same
// openai.Client wiring and per-call timeout, with ChatStream/ChatWithTools
// dropped since topic labeling only ever needs one-shot synchronous Chat.
package llmsummary

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/mnemograph/mnemograph/engine/errs"
)

// Message is one turn in a chat prompt.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// Stats carries token usage and timing for a single call.
type Stats struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	DurationMs       int64
}

// Config configures a Client.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	// Timeout is the per-call deadline in seconds; defaults to 30 when <= 0
	// (topic labeling is an interactive-adjacent path, so it gets a much
	// tighter budget than the chat subsystem's 120s default).
	Timeout int
}

// Client is a minimal synchronous chat-completion client.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// New constructs a Client bound to an OpenAI-compatible endpoint.
func New(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     time.Duration(timeout) * time.Second,
	}
}

// Chat performs a synchronous chat completion.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, *Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages:    convertMessages(messages),
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", nil, errs.Classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, errs.New(errs.Transient, "llmsummary: empty response")
	}

	duration := time.Since(start)
	stats := &Stats{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		DurationMs:       duration.Milliseconds(),
	}

	content := resp.Choices[0].Message.Content
	slog.Debug("llmsummary: chat completion", "model", c.model, "tokens", stats.TotalTokens, "duration_ms", stats.DurationMs)
	return content, stats, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost: 10,
		},
	}
}

// SystemPrompt builds a system-role message.
func SystemPrompt(content string) Message { return Message{Role: "system", Content: content} }

// UserMessage builds a user-role message.
func UserMessage(content string) Message { return Message{Role: "user", Content: content} }
