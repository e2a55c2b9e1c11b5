// Package llm – server-sent-event frame decoding shared by the streaming
// provider adapters.
package llm

import (
	"bufio"
	"io"
	"strings"
)

// scanSSE incrementally reads line-delimited SSE frames from r and invokes
// onData with each non-empty "data:" payload. Comment lines and event-name
// lines are skipped; the caller interprets payload JSON per provider format.
//
// The reader is consumed to EOF (or error). A transport error mid-stream is
// returned so the caller can surface it through the streaming error path.
func scanSSE(r io.Reader, onData func(payload string) error) error {
	sc := bufio.NewScanner(r)
	// Provider deltas are small, but synthesis frames can carry whole
	// paragraphs; allow frames up to 1 MiB.
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue // event:/id:/retry: fields
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		if err := onData(payload); err != nil {
			return err
		}
	}
	return sc.Err()
}
