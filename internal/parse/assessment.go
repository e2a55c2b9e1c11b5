// Package parse – final-assessment marker extraction.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// Assessment holds the signals extracted from the moderator's free-text
// final assessment. Empty fields mean the corresponding marker was absent;
// extraction never fails.
type Assessment struct {
	Winner               string // raw **Winner: X** value, unresolved
	Synthesis            string // body of the ## SYNTHESIS section
	DevilsAdvocateStrong bool   // "impact: strong" marker present
}

var (
	winnerRE = regexp.MustCompile(`(?i)\*\*Winner:\s*([^*\n]+?)\s*\*\*`)
	// synthesis section: from the "## SYNTHESIS" heading up to the next
	// heading or end of text
	synthesisRE = regexp.MustCompile(`(?is)##\s*SYNTHESIS\s*\n(.*?)(?:\n##|\z)`)
	impactRE    = regexp.MustCompile(`(?i)impact:\s*(strong|moderate|weak)`)
)

// ExtractAssessment pulls the winner marker, synthesis paragraph, and
// devil's-advocate impact flag out of the moderator's final assessment,
// using the same best-effort discipline as vote extraction: any missing
// marker degrades to its zero value.
func ExtractAssessment(text string) Assessment {
	var a Assessment
	if m := winnerRE.FindStringSubmatch(text); m != nil {
		a.Winner = strings.TrimSpace(m[1])
	}
	if m := synthesisRE.FindStringSubmatch(text); m != nil {
		a.Synthesis = strings.TrimSpace(m[1])
	}
	if m := impactRE.FindStringSubmatch(text); m != nil {
		a.DevilsAdvocateStrong = strings.EqualFold(m[1], "strong")
	}
	return a
}

// StripWinnerMarker removes the **Winner: X** marker from an assessment so
// that scans for participant mentions do not count the marker itself.
func StripWinnerMarker(text string) string {
	return winnerRE.ReplaceAllString(text, "")
}

var (
	scoreRE        = regexp.MustCompile(`(?i)\*\*SCORE:\s*([0-9]+(?:\.[0-9]+)?)\s*\*\*`)
	scoreLooseRE   = regexp.MustCompile(`(?i)\bSCORE:\s*([0-9]+(?:\.[0-9]+)?)`)
	scoreRationRE  = regexp.MustCompile(`(?i)\*\*RATIONALE:\*\*\s*(.+)`)
	followUpMarkRE = regexp.MustCompile(`(?i)FOLLOW-UP:\s*(.+)`)
)

// ExtractScore parses the async scoring pass output: a 0-10 score (clamped)
// and a one-line rationale. ok is false when no score marker is found.
func ExtractScore(text string) (score float64, rationale string, ok bool) {
	m := scoreRE.FindStringSubmatch(text)
	if m == nil {
		m = scoreLooseRE.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, "", false
	}
	score = parseFloatClamped(m[1], 0, 10)
	if r := scoreRationRE.FindStringSubmatch(text); r != nil {
		rationale = strings.TrimSpace(trimMarkers(r[1]))
	} else {
		rationale = firstSentence(text)
	}
	return score, rationale, true
}

// ExtractFollowUp pulls the moderator's suggested "FOLLOW-UP:" line out of a
// synthesis, returning the synthesis body without that line plus the
// suggestion (empty when absent).
func ExtractFollowUp(synthesis string) (body, followUp string) {
	m := followUpMarkRE.FindStringSubmatch(synthesis)
	if m == nil {
		return strings.TrimSpace(synthesis), ""
	}
	body = strings.TrimSpace(followUpMarkRE.ReplaceAllString(synthesis, ""))
	return body, strings.TrimSpace(m[1])
}

func parseFloatClamped(s string, lo, hi float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
