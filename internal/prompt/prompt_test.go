package prompt

import (
	"strings"
	"testing"
)

func baseContext() Context {
	return Context{
		Question:  "Should cities ban private cars from their centers?",
		ModelName: "GPT-4o",
		Responses: []PriorResponse{
			{DisplayName: "Grok 3", Content: "Bans shift congestion outward."},
		},
	}
}

func TestParticipant_EmbedsQuestionAndPeers(t *testing.T) {
	p := Participant(baseContext())
	if !strings.Contains(p, "You are GPT-4o") {
		t.Fatalf("model name missing:\n%s", p)
	}
	if !strings.Contains(p, "Question: Should cities ban private cars") {
		t.Fatalf("question missing:\n%s", p)
	}
	if !strings.Contains(p, "Grok 3") || !strings.Contains(p, "Bans shift congestion outward.") {
		t.Fatalf("peer response missing:\n%s", p)
	}
}

func TestParticipant_BlindModeHidesPeers(t *testing.T) {
	c := baseContext()
	c.BlindMode = true
	p := Participant(c)
	if strings.Contains(p, "Responses so far this round") || strings.Contains(p, "Grok 3") {
		t.Fatalf("blind mode leaked peer responses:\n%s", p)
	}
	if !strings.Contains(p, "Question: ") {
		t.Fatalf("question must survive blind mode:\n%s", p)
	}
}

func TestParticipant_Deterministic(t *testing.T) {
	c := baseContext()
	if Participant(c) != Participant(c) {
		t.Fatalf("same context must produce identical prompts")
	}
}

func TestDevilsAdvocate_ContrarianFraming(t *testing.T) {
	p := DevilsAdvocate(baseContext())
	if !strings.Contains(p, "devil's advocate") || !strings.Contains(p, "contrarian") {
		t.Fatalf("contrarian framing missing:\n%s", p)
	}
}

func TestVoter_DemandsMarkerAndForbidsSelfVote(t *testing.T) {
	p := Voter(baseContext())
	if !strings.Contains(p, "**MY VOTE: <participant name>**") {
		t.Fatalf("vote marker instruction missing:\n%s", p)
	}
	if !strings.Contains(p, "may not vote for yourself") {
		t.Fatalf("self-vote prohibition missing:\n%s", p)
	}
}

func TestModeratorSynthesis_ShowsVotesAndFollowUp(t *testing.T) {
	c := baseContext()
	c.Votes = []VoteSummary{{Voter: "Grok 3", VotedFor: "GPT-4o"}}
	p := ModeratorSynthesis(c)
	if !strings.Contains(p, "Grok 3 voted for GPT-4o") {
		t.Fatalf("votes missing from moderator prompt:\n%s", p)
	}
	if !strings.Contains(p, `"FOLLOW-UP:"`) {
		t.Fatalf("follow-up instruction missing:\n%s", p)
	}
}

func TestAnalytics_DemandsBareJSON(t *testing.T) {
	p := Analytics(baseContext())
	if !strings.Contains(p, "ONLY a JSON object") || !strings.Contains(p, "consensusScore") {
		t.Fatalf("json shape instruction missing:\n%s", p)
	}
	if !strings.Contains(p, "at most 3 entries") {
		t.Fatalf("tension point cap missing:\n%s", p)
	}
}

func TestScoring_Format(t *testing.T) {
	p := Scoring("Q?", "Grok 3", "My answer.")
	if !strings.Contains(p, "**SCORE: <number>**") || !strings.Contains(p, "**RATIONALE:**") {
		t.Fatalf("scoring markers missing:\n%s", p)
	}
	if !strings.Contains(p, "Response by Grok 3") {
		t.Fatalf("attribution missing:\n%s", p)
	}
}

func TestFinalAssessment_TallyOrderAndMarkers(t *testing.T) {
	c := Context{
		Question: "Q?",
		PriorRounds: []RoundSummary{
			{RoundNumber: 1, Question: "Q?", Synthesis: "Round one synthesis.",
				Responses: []PriorResponse{{DisplayName: "GPT-4o", Content: "A"}}},
		},
	}
	p := FinalAssessment(c, map[string]int{"Grok 3": 2, "GPT-4o": 1}, "Grok 3")

	if !strings.Contains(p, "**Winner: <participant name>**") || !strings.Contains(p, "## SYNTHESIS") {
		t.Fatalf("assessment structure instructions missing:\n%s", p)
	}
	if !strings.Contains(p, "Devil's advocate impact: strong|moderate|weak") {
		t.Fatalf("impact instruction missing when a devil's advocate exists:\n%s", p)
	}
	// tally keys render in sorted order for determinism
	if strings.Index(p, "GPT-4o: 1") > strings.Index(p, "Grok 3: 2") {
		t.Fatalf("tally not sorted:\n%s", p)
	}
	if !strings.Contains(p, "Round one synthesis.") {
		t.Fatalf("prior round synthesis missing:\n%s", p)
	}

	// without a devil's advocate the impact line is not requested
	p = FinalAssessment(c, nil, "")
	if strings.Contains(p, "Devil's advocate impact") {
		t.Fatalf("impact instruction must be absent without a devil's advocate:\n%s", p)
	}
}

func TestDocumentSection_Delimited(t *testing.T) {
	c := baseContext()
	c.DocumentText = "Quarterly figures: revenue up 12%."
	p := Participant(c)
	open := strings.Index(p, "=== ATTACHED DOCUMENT ===")
	close_ := strings.Index(p, "=== END DOCUMENT ===")
	body := strings.Index(p, "Quarterly figures")
	if open < 0 || close_ < 0 || !(open < body && body < close_) {
		t.Fatalf("document not wrapped in delimiters:\n%s", p)
	}

	// empty document: no section at all
	c.DocumentText = ""
	if strings.Contains(Participant(c), "ATTACHED DOCUMENT") {
		t.Fatalf("empty document must not emit a section")
	}
}
