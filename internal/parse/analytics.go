// Package parse – discourse analytics extraction.
package parse

import (
	"encoding/json"
	"strings"
)

// TensionPoint is one contested topic surfaced by the analytics model.
type TensionPoint struct {
	Topic     string   `json:"topic"`
	Models    []string `json:"models"`
	Intensity int      `json:"intensity"`
}

// DiscourseAnalytics holds the numeric discussion metrics for a round.
// Every score lies in [0,100]; out-of-range model output is clamped on read.
// Degraded marks records produced by the parse-failure fallback.
type DiscourseAnalytics struct {
	ConsensusScore  int            `json:"consensusScore"`
	TensionScore    int            `json:"tensionScore"`
	AgreementScore  int            `json:"agreementScore"`
	TopicDriftScore int            `json:"topicDriftScore"`
	TensionPoints   []TensionPoint `json:"tensionPoints"`
	Degraded        bool           `json:"degraded,omitempty"`
}

// maxTensionPoints caps the tension-points list.
const maxTensionPoints = 3

// ExtractAnalytics parses the analytics model's output. It strips any
// surrounding code fences, unmarshals the remainder, clamps every numeric
// field to [0,100], and truncates tension points to at most 3 entries with
// safe defaults for missing fields.
//
// A parse failure yields a zeroed record with Degraded set rather than an
// error: analytics are an enhancement, not debate-critical state, so failure
// is silent and non-blocking.
func ExtractAnalytics(text string) DiscourseAnalytics {
	raw := StripCodeFences(text)

	var a DiscourseAnalytics
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return DiscourseAnalytics{Degraded: true}
	}

	a.ConsensusScore = clamp(a.ConsensusScore)
	a.TensionScore = clamp(a.TensionScore)
	a.AgreementScore = clamp(a.AgreementScore)
	a.TopicDriftScore = clamp(a.TopicDriftScore)

	if len(a.TensionPoints) > maxTensionPoints {
		a.TensionPoints = a.TensionPoints[:maxTensionPoints]
	}
	for i := range a.TensionPoints {
		if a.TensionPoints[i].Topic == "" {
			a.TensionPoints[i].Topic = "unspecified"
		}
		if a.TensionPoints[i].Models == nil {
			a.TensionPoints[i].Models = []string{}
		}
		a.TensionPoints[i].Intensity = clamp(a.TensionPoints[i].Intensity)
	}
	return a
}

// StripCodeFences removes a surrounding markdown code fence (``` or
// ```json) and, failing that, slices from the first '{' to the last '}'.
func StripCodeFences(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```json")
		t = strings.TrimPrefix(t, "```")
		if i := strings.LastIndex(t, "```"); i >= 0 {
			t = t[:i]
		}
		return strings.TrimSpace(t)
	}
	// Models often wrap JSON in prose; take the outermost braces.
	if start := strings.Index(t, "{"); start >= 0 {
		if end := strings.LastIndex(t, "}"); end > start {
			return t[start : end+1]
		}
	}
	return t
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
