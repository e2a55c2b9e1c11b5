// Package llm implements the provider adapter layer: a uniform interface for
// invoking heterogeneous LLM backends, both streaming and non-streaming.
//
// Each provider family speaks a different wire format (ChatML-style
// chat/completions shared by OpenAI and xAI, Anthropic's message blocks,
// Gemini's content parts, plus the OpenRouter aggregator which also speaks
// ChatML). The adapter normalizes all of them to a single Result shape and a
// single streaming callback protocol.
//
// The adapter never retries: a failed provider call is surfaced immediately
// and the orchestrator decides whether it is a partial failure.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tbourn/go-debate-backend/internal/config"
)

// Configuration errors: these fail fast, before any network request.
var (
	// ErrUnknownModel indicates a logical model id absent from the catalog.
	ErrUnknownModel = errors.New("unknown model id")

	// ErrNoCredential indicates that no credential source resolved a usable key.
	ErrNoCredential = errors.New("no usable credential for provider")

	// ErrProviderMismatch indicates a caller-supplied key for a provider the
	// target model does not belong to. This is a hard input error, not
	// silently ignored.
	ErrProviderMismatch = errors.New("credential provider does not match model provider")
)

// ProviderError wraps a non-2xx or malformed upstream response with the
// provider name and HTTP status for diagnostics.
type ProviderError struct {
	Provider Provider
	Status   int
	Body     string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.Status, truncate(e.Body, 200))
}

// Message is a single conversational turn sent to a provider.
// Role is one of "system", "user", or "assistant"; providers that use other
// role vocabularies translate internally.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the normalized outcome of a completed (or fully streamed)
// provider invocation.
//
// Token counts come from provider-reported usage where available; when a
// provider or streaming mode omits usage, they are estimated from character
// length (~4 chars/token). The estimate - and therefore EstimatedCostUSD -
// is an approximation, not billing-grade precision.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	EstimatedCostUSD float64
}

// Callbacks is the streaming protocol. OnToken is invoked synchronously per
// incremental delta; exactly one of OnComplete or OnError terminates the
// stream. Errors never escape the streaming boundary as returned errors,
// because partial output already delivered must not be lost on failure.
type Callbacks struct {
	OnToken    func(delta string)
	OnComplete func(res *Result)
	OnError    func(err error)
}

// Credential is a caller-supplied key bound to a named provider. A nil
// credential means "platform keys only".
type Credential struct {
	Provider Provider
	Key      string
}

// provider is the closed per-family adapter contract. Adding a provider
// family means adding one implementation, not touching a central switch.
type provider interface {
	// complete performs a blocking invocation and returns the raw wire result.
	complete(ctx context.Context, key, wireName string, msgs []Message, maxTokens int) (*wireResult, error)
	// stream performs a streaming invocation, calling onDelta per text delta,
	// and returns the concatenated result when the stream ends.
	stream(ctx context.Context, key, wireName string, msgs []Message, maxTokens int, onDelta func(string)) (*wireResult, error)
}

// wireResult is the provider-internal result before pricing is applied.
// usageReported distinguishes provider-reported counts from estimates.
type wireResult struct {
	text             string
	promptTokens     int
	completionTokens int
	usageReported    bool
}

// Client is the uniform entry point for all LLM invocations. It is safe for
// concurrent use.
type Client struct {
	cfg       config.LLMConfig
	catalog   Catalog
	providers map[Provider]provider
	sources   []credSource
}

// NewClient constructs a Client from configuration, wiring one adapter per
// provider family and the ordered credential fallback chain.
func NewClient(cfg config.LLMConfig) *Client {
	httpc := &http.Client{Timeout: cfg.RequestTimeout}
	c := &Client{
		cfg:     cfg,
		catalog: DefaultCatalog(),
		providers: map[Provider]provider{
			ProviderOpenAI:     &chatMLProvider{httpc: httpc, name: ProviderOpenAI, baseURL: cfg.OpenAIBaseURL},
			ProviderXAI:        &chatMLProvider{httpc: httpc, name: ProviderXAI, baseURL: cfg.XAIBaseURL},
			ProviderOpenRouter: &chatMLProvider{httpc: httpc, name: ProviderOpenRouter, baseURL: cfg.OpenRouterBaseURL, routed: true},
			ProviderAnthropic:  &anthropicProvider{httpc: httpc, baseURL: cfg.AnthropicBaseURL},
			ProviderGemini:     &geminiProvider{httpc: httpc, baseURL: cfg.GeminiBaseURL},
		},
	}
	c.sources = platformSources(cfg)
	return c
}

// Invoke resolves modelID, picks a credential, and performs one blocking
// completion. Configuration failures (unknown model, no credential, provider
// mismatch) are returned before any network I/O.
func (c *Client) Invoke(ctx context.Context, modelID string, msgs []Message, maxTokens int, cred *Credential) (*Result, error) {
	info, ok := c.catalog.Lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}
	route, err := c.resolve(info, cred)
	if err != nil {
		return nil, err
	}
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	wr, err := c.providers[route.provider].complete(ctx, route.key, route.wireName, msgs, maxTokens)
	observeCall(info.Provider, modelID, err)
	if err != nil {
		return nil, err
	}
	return c.finish(info, msgs, wr), nil
}

// Stream resolves modelID and credential, then drives a streaming completion
// through cb. Pre-flight configuration errors are returned synchronously;
// once the stream is underway all outcomes flow through cb, with exactly one
// terminal callback (OnComplete or OnError).
func (c *Client) Stream(ctx context.Context, modelID string, msgs []Message, maxTokens int, cred *Credential, cb Callbacks) error {
	info, ok := c.catalog.Lookup(modelID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}
	route, err := c.resolve(info, cred)
	if err != nil {
		return err
	}
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	wr, err := c.providers[route.provider].stream(ctx, route.key, route.wireName, msgs, maxTokens, func(delta string) {
		if cb.OnToken != nil && delta != "" {
			cb.OnToken(delta)
		}
	})
	observeCall(info.Provider, modelID, err)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return nil
	}
	if cb.OnComplete != nil {
		cb.OnComplete(c.finish(info, msgs, wr))
	}
	return nil
}

// Catalog exposes the model catalog backing this client.
func (c *Client) Catalog() Catalog { return c.catalog }

// finish applies token estimation fallback and pricing to a wire result.
func (c *Client) finish(info ModelInfo, msgs []Message, wr *wireResult) *Result {
	in, out := wr.promptTokens, wr.completionTokens
	if !wr.usageReported {
		in = estimateTokens(joinContents(msgs))
		out = estimateTokens(wr.text)
	}
	observeTokens(info.Provider, in, out)
	return &Result{
		Text:             wr.text,
		PromptTokens:     in,
		CompletionTokens: out,
		EstimatedCostUSD: estimateCost(info, in, out),
	}
}

func joinContents(msgs []Message) string {
	var n int
	for _, m := range msgs {
		n += len(m.Content)
	}
	buf := make([]byte, 0, n)
	for _, m := range msgs {
		buf = append(buf, m.Content...)
	}
	return string(buf)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
