// Package parse extracts structured signals (votes, analytics, assessment
// markers) from free-text model output.
//
// Model output cannot be trusted to follow instructions exactly, so every
// extraction here is layered, best-effort pattern matching with a nil/zero
// fallback - never an error. Votes and analytics feed leaderboard points and
// UI; getting no signal must never block a round from completing.
package parse

import (
	"regexp"
	"sort"
	"strings"
)

// Vote is a successfully extracted and resolved peer vote.
type Vote struct {
	VotedFor  string // resolved participant name (member of the candidate set)
	Rationale string
}

// votePatterns is the ordered (pattern, first-match-wins) chain for the
// voted-for name. The explicit marker format comes first, looser phrasings
// after it. Each pattern captures the candidate name in group 1.
var votePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\*\*MY VOTE:\s*([^*\n]+?)\s*\*\*`),
	regexp.MustCompile(`(?i)\bMY VOTE:\s*([^\n.,!]+)`),
	regexp.MustCompile(`(?i)\bI vote for\s+([^\n.,!]+)`),
	regexp.MustCompile(`(?i)\bI choose\s+([^\n.,!]+)`),
	regexp.MustCompile(`(?i)\bmy vote goes to\s+([^\n.,!]+)`),
}

// rationalePatterns is the ordered chain for the vote rationale.
var rationalePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\*\*WHY:\*\*\s*(.+)`),
	regexp.MustCompile(`(?i)\*\*REASON:\*\*\s*(.+)`),
	regexp.MustCompile(`(?i)\bbecause\s+(.+)`),
}

// ExtractVote parses a voter response. candidates maps participant display
// names to model ids; voterID excludes self-votes. The return is nil when no
// pattern matches, the name resolves to nothing, or the vote is a self-vote.
// It never returns an error: an unparseable vote is simply dropped.
func ExtractVote(text, voterID string, candidates map[string]string) *Vote {
	var raw string
	for _, re := range votePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			raw = strings.TrimSpace(m[1])
			break
		}
	}
	if raw == "" {
		return nil
	}

	name, id := ResolveName(raw, candidates)
	if id == "" || id == voterID {
		return nil
	}
	return &Vote{VotedFor: name, Rationale: extractRationale(text)}
}

// ResolveName maps an extracted free-text name onto a known participant.
// Matching layers, tried in order: exact (case-insensitive) -> substring
// containment either direction -> first-word match -> shared significant
// word (ignoring words of 3 runes or fewer). Candidates are scanned in
// sorted name order so ties within a layer resolve the same way every run.
// Returns zero values when nothing matches.
func ResolveName(raw string, candidates map[string]string) (name, id string) {
	lraw := strings.ToLower(strings.TrimSpace(raw))
	if lraw == "" {
		return "", ""
	}

	names := make([]string, 0, len(candidates))
	for n := range candidates {
		names = append(names, n)
	}
	sort.Strings(names)

	// exact
	for _, n := range names {
		if strings.ToLower(n) == lraw {
			return n, candidates[n]
		}
	}
	// substring either direction
	for _, n := range names {
		ln := strings.ToLower(n)
		if strings.Contains(ln, lraw) || strings.Contains(lraw, ln) {
			return n, candidates[n]
		}
	}
	// first word
	rawFirst := firstWord(lraw)
	for _, n := range names {
		if firstWord(strings.ToLower(n)) == rawFirst {
			return n, candidates[n]
		}
	}
	// shared significant word
	rawWords := significantWords(lraw)
	for _, n := range names {
		for w := range significantWords(strings.ToLower(n)) {
			if rawWords[w] {
				return n, candidates[n]
			}
		}
	}
	return "", ""
}

// extractRationale runs the rationale pattern chain, falling back to the
// first sentence of the response when no explicit marker is present.
func extractRationale(text string) string {
	for _, re := range rationalePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(trimMarkers(m[1]))
		}
	}
	return firstSentence(text)
}

func trimMarkers(s string) string {
	return strings.Trim(s, "* \t")
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// significantWords returns the set of words longer than 3 runes.
func significantWords(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r == '.')
	}) {
		if len([]rune(w)) > 3 {
			out[w] = true
		}
	}
	return out
}

var sentenceEndRE = regexp.MustCompile(`[.!?](\s|$)`)

// firstSentence returns the first sentence of text, trimmed, or the whole
// (trimmed) text when no sentence terminator is found.
func firstSentence(text string) string {
	t := strings.TrimSpace(text)
	if loc := sentenceEndRE.FindStringIndex(t); loc != nil {
		return strings.TrimSpace(t[:loc[0]+1])
	}
	return t
}
