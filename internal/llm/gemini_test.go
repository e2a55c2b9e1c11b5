package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestToGemini_RoleTranslation(t *testing.T) {
	req := toGemini([]Message{
		{Role: "system", Content: "rules"},
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	}, 99)
	if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "rules" {
		t.Fatalf("system instruction missing: %+v", req.SystemInstruction)
	}
	if len(req.Contents) != 2 || req.Contents[0].Role != "user" || req.Contents[1].Role != "model" {
		t.Fatalf("contents unexpected: %+v", req.Contents)
	}
	if req.GenerationConfig.MaxOutputTokens != 99 {
		t.Fatalf("max tokens not set: %+v", req.GenerationConfig)
	}
}

func TestGemini_Complete_KeyInQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1beta/models/gemini-2.0-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-test" {
			t.Errorf("key query param = %q", r.URL.Query().Get("key"))
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"pong"}]}}],
		 "usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":1}}`)
	}))
	defer srv.Close()

	p := &geminiProvider{httpc: srv.Client(), baseURL: srv.URL}
	wr, err := p.complete(context.Background(), "g-test", "gemini-2.0-flash",
		[]Message{{Role: "user", Content: "ping"}}, 32)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if wr.text != "pong" || !wr.usageReported || wr.promptTokens != 7 || wr.completionTokens != 1 {
		t.Fatalf("wire result unexpected: %+v", wr)
	}
}

func TestGemini_Stream_AltSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("alt query param = %q", r.URL.Query().Get("alt"))
		}
		if !strings.Contains(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"par\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"tial\"}]}}],\"usageMetadata\":{\"promptTokenCount\":3,\"candidatesTokenCount\":2}}\n\n")
	}))
	defer srv.Close()

	p := &geminiProvider{httpc: srv.Client(), baseURL: srv.URL}
	var got []string
	wr, err := p.stream(context.Background(), "k", "gemini-2.0-flash",
		[]Message{{Role: "user", Content: "hi"}}, 16,
		func(d string) { got = append(got, d) })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if wr.text != "partial" || len(got) != 2 {
		t.Fatalf("text=%q deltas=%v", wr.text, got)
	}
	if !wr.usageReported || wr.promptTokens != 3 || wr.completionTokens != 2 {
		t.Fatalf("usage unexpected: %+v", wr)
	}
}

func TestGemini_Complete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	p := &geminiProvider{httpc: srv.Client(), baseURL: srv.URL}
	if _, err := p.complete(context.Background(), "k", "m", nil, 0); err == nil {
		t.Fatalf("expected error on 403")
	}
}
