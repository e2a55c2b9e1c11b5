// Package llm – Anthropic adapter.
//
// Anthropic's /v1/messages API uses a proprietary message-block format:
// system text travels in a dedicated top-level field, responses arrive as a
// list of typed content blocks, and streaming emits typed events
// (message_start, content_block_delta, message_delta).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const anthropicVersion = "2023-06-01"

type anthropicProvider struct {
	httpc   *http.Client
	baseURL string
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *anthropicUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// anthropicEvent covers the subset of stream event shapes the adapter needs.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Usage *anthropicUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// splitSystem separates system-role turns (joined into the top-level system
// field) from the conversational turns.
func splitSystem(msgs []Message) (system string, rest []Message) {
	var sys bytes.Buffer
	rest = make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			if sys.Len() > 0 {
				sys.WriteString("\n\n")
			}
			sys.WriteString(m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return sys.String(), rest
}

func (p *anthropicProvider) do(ctx context.Context, key string, body anthropicRequest) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", ProviderAnthropic, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{Provider: ProviderAnthropic, Status: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}

func (p *anthropicProvider) complete(ctx context.Context, key, wireName string, msgs []Message, maxTokens int) (*wireResult, error) {
	system, rest := splitSystem(msgs)
	resp, err := p.do(ctx, key, anthropicRequest{Model: wireName, MaxTokens: maxTokens, System: system, Messages: rest})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: ProviderAnthropic, Status: resp.StatusCode, Body: "malformed response payload"}
	}
	if out.Error != nil {
		return nil, &ProviderError{Provider: ProviderAnthropic, Status: resp.StatusCode, Body: out.Error.Message}
	}

	var text bytes.Buffer
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	wr := &wireResult{text: text.String()}
	if out.Usage != nil {
		wr.promptTokens = out.Usage.InputTokens
		wr.completionTokens = out.Usage.OutputTokens
		wr.usageReported = true
	}
	return wr, nil
}

func (p *anthropicProvider) stream(ctx context.Context, key, wireName string, msgs []Message, maxTokens int, onDelta func(string)) (*wireResult, error) {
	system, rest := splitSystem(msgs)
	resp, err := p.do(ctx, key, anthropicRequest{Model: wireName, MaxTokens: maxTokens, System: system, Messages: rest, Stream: true})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var (
		text    bytes.Buffer
		inToks  int
		outToks int
		usageOK bool
	)
	err = scanSSE(resp.Body, func(payload string) error {
		var ev anthropicEvent
		if jerr := json.Unmarshal([]byte(payload), &ev); jerr != nil {
			return nil
		}
		switch ev.Type {
		case "message_start":
			inToks = ev.Message.Usage.InputTokens
			usageOK = true
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				text.WriteString(ev.Delta.Text)
				onDelta(ev.Delta.Text)
			}
		case "message_delta":
			if ev.Usage != nil {
				outToks = ev.Usage.OutputTokens
			}
		case "error":
			msg := "stream error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			return &ProviderError{Provider: ProviderAnthropic, Status: resp.StatusCode, Body: msg}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wireResult{text: text.String(), promptTokens: inToks, completionTokens: outToks, usageReported: usageOK}, nil
}
