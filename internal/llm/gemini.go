// Package llm – Gemini adapter.
//
// Gemini's generateContent API uses a content-parts format: each turn holds
// a list of typed parts, the assistant role is called "model", and system
// text travels as a systemInstruction. The key is passed as a query
// parameter rather than a header.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type geminiProvider struct {
	httpc   *http.Client
	baseURL string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// toGemini translates chat messages into the content-parts shape.
func toGemini(msgs []Message, maxTokens int) geminiRequest {
	var req geminiRequest
	req.GenerationConfig.MaxOutputTokens = maxTokens
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if req.SystemInstruction == nil {
				req.SystemInstruction = &geminiContent{}
			}
			req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, geminiPart{Text: m.Content})
		case "assistant":
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	return req
}

func (g geminiResponse) text() string {
	var buf bytes.Buffer
	for _, c := range g.Candidates {
		for _, p := range c.Content.Parts {
			buf.WriteString(p.Text)
		}
	}
	return buf.String()
}

func (p *geminiProvider) do(ctx context.Context, key, wireName, verb string, body geminiRequest, sse bool) (*http.Response, error) {
	q := url.Values{"key": {key}}
	if sse {
		q.Set("alt", "sse")
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:%s?%s", p.baseURL, wireName, verb, q.Encode())

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", ProviderGemini, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{Provider: ProviderGemini, Status: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}

func (p *geminiProvider) complete(ctx context.Context, key, wireName string, msgs []Message, maxTokens int) (*wireResult, error) {
	resp, err := p.do(ctx, key, wireName, "generateContent", toGemini(msgs, maxTokens), false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Status: resp.StatusCode, Body: "malformed response payload"}
	}
	if out.Error != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Status: resp.StatusCode, Body: out.Error.Message}
	}

	wr := &wireResult{text: out.text()}
	if out.UsageMetadata != nil {
		wr.promptTokens = out.UsageMetadata.PromptTokenCount
		wr.completionTokens = out.UsageMetadata.CandidatesTokenCount
		wr.usageReported = true
	}
	return wr, nil
}

func (p *geminiProvider) stream(ctx context.Context, key, wireName string, msgs []Message, maxTokens int, onDelta func(string)) (*wireResult, error) {
	resp, err := p.do(ctx, key, wireName, "streamGenerateContent", toGemini(msgs, maxTokens), true)
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
		var chunk geminiResponse
		if jerr := json.Unmarshal([]byte(payload), &chunk); jerr != nil {
			return nil
		}
		if chunk.Error != nil {
			return &ProviderError{Provider: ProviderGemini, Status: resp.StatusCode, Body: chunk.Error.Message}
		}
		if delta := chunk.text(); delta != "" {
			text.WriteString(delta)
			onDelta(delta)
		}
		if chunk.UsageMetadata != nil {
			inToks = chunk.UsageMetadata.PromptTokenCount
			outToks = chunk.UsageMetadata.CandidatesTokenCount
			usageOK = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wireResult{text: text.String(), promptTokens: inToks, completionTokens: outToks, usageReported: usageOK}, nil
}
