package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: "system", Content: "You are a debater."},
		{Role: "user", Content: "Question?"},
		{Role: "system", Content: "Stay concise."},
		{Role: "assistant", Content: "Answer."},
	})
	if system != "You are a debater.\n\nStay concise." {
		t.Fatalf("system = %q", system)
	}
	want := []Message{{Role: "user", Content: "Question?"}, {Role: "assistant", Content: "Answer."}}
	if !reflect.DeepEqual(rest, want) {
		t.Fatalf("rest = %#v", rest)
	}
}

func TestAnthropic_Complete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "ak-test" || r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("headers unexpected: %v", r.Header)
		}
		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.System != "sys" || len(req.Messages) != 1 {
			t.Errorf("request unexpected: %+v", req)
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"block one "},{"type":"tool_use","text":"skip"},{"type":"text","text":"block two"}],
		 "usage":{"input_tokens":8,"output_tokens":4}}`)
	}))
	defer srv.Close()

	p := &anthropicProvider{httpc: srv.Client(), baseURL: srv.URL}
	wr, err := p.complete(context.Background(), "ak-test", "claude-sonnet-4-20250514",
		[]Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}}, 128)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if wr.text != "block one block two" {
		t.Fatalf("text = %q (non-text blocks must be skipped)", wr.text)
	}
	if !wr.usageReported || wr.promptTokens != 8 || wr.completionTokens != 4 {
		t.Fatalf("usage unexpected: %+v", wr)
	}
}

func TestAnthropic_Stream_TypedEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, "data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":20}}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi \"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"there\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_delta\",\"usage\":{\"output_tokens\":5}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	p := &anthropicProvider{httpc: srv.Client(), baseURL: srv.URL}
	var deltas int
	wr, err := p.stream(context.Background(), "k", "m", []Message{{Role: "user", Content: "hi"}}, 64,
		func(string) { deltas++ })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if wr.text != "Hi there" || deltas != 2 {
		t.Fatalf("text=%q deltas=%d", wr.text, deltas)
	}
	if !wr.usageReported || wr.promptTokens != 20 || wr.completionTokens != 5 {
		t.Fatalf("usage unexpected: %+v", wr)
	}
}

func TestAnthropic_Stream_ErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":{\"message\":\"overloaded_error\"}}\n\n")
	}))
	defer srv.Close()

	p := &anthropicProvider{httpc: srv.Client(), baseURL: srv.URL}
	_, err := p.stream(context.Background(), "k", "m", nil, 0, func(string) {})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Body != "overloaded_error" {
		t.Fatalf("expected error-event ProviderError, got %v", err)
	}
}
