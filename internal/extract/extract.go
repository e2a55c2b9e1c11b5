// Package extract defines the document augmentation boundary: turning an
// attached document reference into plain text suitable for embedding in
// prompts. The actual PDF/text extraction is an external collaborator; this
// package specifies the contract and ships a plain-text implementation.
//
// Failure policy: extraction failure degrades to "no document context" -
// prompt construction is never aborted because an attachment could not be
// read. Callers log and continue.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TruncationMarker is appended when document text exceeds the size budget.
const TruncationMarker = "\n[truncated]"

// Extractor turns an attachment reference into plain text, prefixed with a
// page-count header and truncated to budget characters when oversized.
type Extractor interface {
	Extract(ctx context.Context, ref string, budget int) (string, error)
}

// FileExtractor reads plain-text attachments from the local filesystem.
// Page count is approximated as one page per 3000 characters, matching the
// header format richer extractors produce.
type FileExtractor struct{}

// Extract implements Extractor.
func (FileExtractor) Extract(ctx context.Context, ref string, budget int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read attachment %q: %w", ref, err)
	}
	text := strings.TrimSpace(string(b))
	pages := len(text)/3000 + 1

	truncated := false
	if budget > 0 && len(text) > budget {
		text = text[:budget]
		truncated = true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[Document: %d pages]\n", pages)
	sb.WriteString(text)
	if truncated {
		sb.WriteString(TruncationMarker)
	}
	return sb.String(), nil
}
