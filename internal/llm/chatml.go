// Package llm – ChatML-family adapter.
//
// This wire format (POST /v1/chat/completions, choices/delta JSON) is shared
// by OpenAI and xAI, and by the OpenRouter aggregator. One implementation
// serves all three; only the base URL, auth header target, and model naming
// differ.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

type chatMLProvider struct {
	httpc   *http.Client
	name    Provider
	baseURL string
	routed  bool // true for OpenRouter: models are addressed by vendor/slug
}

type chatMLRequest struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	StreamOptions *chatMLStreamOp `json:"stream_options,omitempty"`
}

type chatMLStreamOp struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMLUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatMLResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *chatMLUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *chatMLProvider) endpoint() string { return p.baseURL + "/v1/chat/completions" }

func (p *chatMLProvider) do(ctx context.Context, key string, body any) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{Provider: p.name, Status: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}

func (p *chatMLProvider) complete(ctx context.Context, key, wireName string, msgs []Message, maxTokens int) (*wireResult, error) {
	resp, err := p.do(ctx, key, chatMLRequest{Model: wireName, Messages: msgs, MaxTokens: maxTokens})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out chatMLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: p.name, Status: resp.StatusCode, Body: "malformed response payload"}
	}
	if out.Error != nil {
		return nil, &ProviderError{Provider: p.name, Status: resp.StatusCode, Body: out.Error.Message}
	}
	if len(out.Choices) == 0 {
		return nil, &ProviderError{Provider: p.name, Status: resp.StatusCode, Body: "no choices in response"}
	}

	wr := &wireResult{text: out.Choices[0].Message.Content}
	if out.Usage != nil {
		wr.promptTokens = out.Usage.PromptTokens
		wr.completionTokens = out.Usage.CompletionTokens
		wr.usageReported = true
	}
	return wr, nil
}

func (p *chatMLProvider) stream(ctx context.Context, key, wireName string, msgs []Message, maxTokens int, onDelta func(string)) (*wireResult, error) {
	resp, err := p.do(ctx, key, chatMLRequest{
		Model:         wireName,
		Messages:      msgs,
		MaxTokens:     maxTokens,
		Stream:        true,
		StreamOptions: &chatMLStreamOp{IncludeUsage: true},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var (
		text  bytes.Buffer
		usage *chatMLUsage
	)
	errDone := errors.New("done")
	err = scanSSE(resp.Body, func(payload string) error {
		if payload == "[DONE]" {
			return errDone
		}
		var chunk chatMLResponse
		if jerr := json.Unmarshal([]byte(payload), &chunk); jerr != nil {
			return nil // skip unparseable frames, keep the stream alive
		}
		if chunk.Error != nil {
			return &ProviderError{Provider: p.name, Status: resp.StatusCode, Body: chunk.Error.Message}
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			text.WriteString(chunk.Choices[0].Delta.Content)
			onDelta(chunk.Choices[0].Delta.Content)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDone) {
		return nil, err
	}

	wr := &wireResult{text: text.String()}
	if usage != nil {
		wr.promptTokens = usage.PromptTokens
		wr.completionTokens = usage.CompletionTokens
		wr.usageReported = true
	}
	return wr, nil
}
