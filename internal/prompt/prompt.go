// Package prompt assembles role-specific prompt text from debate state.
//
// Every builder is a pure function over a Context snapshot: the same inputs
// always produce the same text. The builders deterministically embed the
// question, peer responses (omitted entirely in blind mode), and - when
// present - extracted document text inside a delimited section so downstream
// attribution is unambiguous. The voter, analytics, and final-assessment
// variants instruct the model to emit the structured markers the parse
// package depends on.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Document section delimiters. Extracted document text is wrapped between
// these markers so models can attribute claims to the attachment.
const (
	docSectionOpen  = "=== ATTACHED DOCUMENT ==="
	docSectionClose = "=== END DOCUMENT ==="
)

// PriorResponse is one peer response visible to the current model.
type PriorResponse struct {
	DisplayName string
	Content     string
}

// RoundSummary is a compact record of a finished round used when building
// later-round and debate-end prompts.
type RoundSummary struct {
	RoundNumber int
	Question    string
	Synthesis   string
	Responses   []PriorResponse
}

// Context carries everything a builder may embed. Builders read from it;
// none of them mutate it.
type Context struct {
	Question       string
	ModelName      string          // display name of the model being prompted
	Persona        string          // optional persona/system flavor text
	PriorRounds    []RoundSummary  // earlier rounds, oldest first
	Responses      []PriorResponse // peer responses so far in this round
	Votes          []VoteSummary   // this round's votes, when voting is enabled
	PriorSynthesis string          // moderator synthesis of the previous round
	DocumentText   string          // extracted attachment text, may be empty
	BlindMode      bool            // hide peer responses from the prompt
}

// VoteSummary is one recorded vote shown to the moderator.
type VoteSummary struct {
	Voter    string
	VotedFor string
}

// Participant builds the standard participant prompt.
func Participant(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a participant in a structured multi-model debate.\n", c.ModelName)
	if c.Persona != "" {
		b.WriteString(c.Persona)
		b.WriteString("\n")
	}
	writeShared(&b, c)
	b.WriteString("\nGive your strongest, best-reasoned position on the question. ")
	b.WriteString("Engage with specific points from the other participants where they exist. Be substantive and concise.\n")
	return b.String()
}

// DevilsAdvocate builds the contrarian participant prompt.
func DevilsAdvocate(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the devil's advocate in a structured multi-model debate.\n", c.ModelName)
	b.WriteString("Your role is to argue the strongest credible contrarian position, stress-testing the emerging consensus even where you personally find it plausible.\n")
	if c.Persona != "" {
		b.WriteString(c.Persona)
		b.WriteString("\n")
	}
	writeShared(&b, c)
	b.WriteString("\nChallenge the presented arguments directly. Surface the weaknesses, hidden assumptions, and counterexamples the other participants are missing.\n")
	return b.String()
}

// Voter builds the peer-voting prompt. The model must answer with the
// **MY VOTE: X** marker that parse.Vote extracts.
func Voter(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. The debate round on the question below has finished and you must now vote for the single best OTHER participant.\n", c.ModelName)
	fmt.Fprintf(&b, "\nQuestion: %s\n", c.Question)
	writeResponses(&b, c.Responses)
	b.WriteString("\nYou may not vote for yourself.\n")
	b.WriteString("Reply with exactly this format:\n")
	b.WriteString("**MY VOTE: <participant name>**\n")
	b.WriteString("**WHY:** <one or two sentences of rationale>\n")
	return b.String()
}

// ModeratorSynthesis builds the per-round moderator prompt.
func ModeratorSynthesis(c Context) string {
	var b strings.Builder
	b.WriteString("You are the moderator of a structured multi-model debate.\n")
	writeShared(&b, c)
	if len(c.Votes) > 0 {
		b.WriteString("\nPeer votes this round:\n")
		for _, v := range c.Votes {
			fmt.Fprintf(&b, "- %s voted for %s\n", v.Voter, v.VotedFor)
		}
	}
	b.WriteString("\nWrite a balanced synthesis of this round: the key areas of agreement, the sharpest disagreements, and which arguments were best supported. ")
	b.WriteString("Then, on its own final line, propose one incisive follow-up question prefixed with \"FOLLOW-UP:\".\n")
	return b.String()
}

// Analytics builds the discourse-analytics extraction prompt. The model must
// return a bare JSON object matching parse.DiscourseAnalytics.
func Analytics(c Context) string {
	var b strings.Builder
	b.WriteString("You are a discourse analyst. Read the debate round below and return ONLY a JSON object (no markdown, no code fences, no commentary) with this exact shape:\n")
	b.WriteString(`{"consensusScore": 0-100, "tensionScore": 0-100, "agreementScore": 0-100, "topicDriftScore": 0-100, "tensionPoints": [{"topic": "...", "models": ["..."], "intensity": 0-100}]}` + "\n")
	b.WriteString("tensionPoints holds at most 3 entries, ranked by intensity.\n")
	fmt.Fprintf(&b, "\nQuestion: %s\n", c.Question)
	writeResponses(&b, c.Responses)
	return b.String()
}

// Scoring builds the async per-response scoring prompt: a 0-10 quality score
// plus a one-sentence rationale in the **SCORE:**/**RATIONALE:** format.
func Scoring(question, modelName, content string) string {
	var b strings.Builder
	b.WriteString("You are an impartial judge of debate argument quality.\n")
	fmt.Fprintf(&b, "\nQuestion: %s\n", question)
	fmt.Fprintf(&b, "\nResponse by %s:\n%s\n", modelName, content)
	b.WriteString("\nRate the response from 0 to 10 for rigor, evidence, and relevance. Reply with exactly:\n")
	b.WriteString("**SCORE: <number>**\n")
	b.WriteString("**RATIONALE:** <one sentence>\n")
	return b.String()
}

// FinalAssessment builds the debate-end assessment prompt sent to the
// moderator. The model must emit the **Winner: X** marker, a ## SYNTHESIS
// section, and a devil's-advocate impact line that parse.Assessment extracts.
func FinalAssessment(c Context, voteTally map[string]int, devilsAdvocate string) string {
	var b strings.Builder
	b.WriteString("You are the moderator delivering the final assessment of a completed multi-model debate.\n")
	fmt.Fprintf(&b, "\nOriginal question: %s\n", c.Question)
	writePriorRounds(&b, c.PriorRounds)
	writeDocument(&b, c.DocumentText)

	if len(voteTally) > 0 {
		b.WriteString("\nPeer vote tally across all rounds:\n")
		for _, name := range sortedKeys(voteTally) {
			fmt.Fprintf(&b, "- %s: %d\n", name, voteTally[name])
		}
	}
	if devilsAdvocate != "" {
		fmt.Fprintf(&b, "\n%s argued as the devil's advocate.\n", devilsAdvocate)
	}

	b.WriteString("\nStructure your assessment exactly as follows:\n")
	b.WriteString("1. Open with \"**Winner: <participant name>**\" naming the participant with the strongest overall contribution.\n")
	b.WriteString("2. A \"## SYNTHESIS\" section with one paragraph synthesizing the debate's best answer to the question.\n")
	b.WriteString("3. An analysis of each participant, explicitly naming those who made strong arguments.\n")
	if devilsAdvocate != "" {
		b.WriteString("4. A final line \"Devil's advocate impact: strong|moderate|weak\" judging how much the contrarian position shaped the debate.\n")
	}
	return b.String()
}

// writeShared appends the question, prior-round context, document section,
// and (honoring blind mode) peer responses.
func writeShared(b *strings.Builder, c Context) {
	writePriorRounds(b, c.PriorRounds)
	if c.PriorSynthesis != "" {
		fmt.Fprintf(b, "\nModerator synthesis of the previous round:\n%s\n", c.PriorSynthesis)
	}
	fmt.Fprintf(b, "\nQuestion: %s\n", c.Question)
	writeDocument(b, c.DocumentText)
	if !c.BlindMode {
		writeResponses(b, c.Responses)
	}
}

func writePriorRounds(b *strings.Builder, rounds []RoundSummary) {
	for _, r := range rounds {
		fmt.Fprintf(b, "\n--- Round %d (question: %s) ---\n", r.RoundNumber, r.Question)
		for _, resp := range r.Responses {
			fmt.Fprintf(b, "%s: %s\n", resp.DisplayName, resp.Content)
		}
		if r.Synthesis != "" {
			fmt.Fprintf(b, "Moderator synthesis: %s\n", r.Synthesis)
		}
	}
}

func writeResponses(b *strings.Builder, responses []PriorResponse) {
	if len(responses) == 0 {
		return
	}
	b.WriteString("\nResponses so far this round:\n")
	for _, r := range responses {
		fmt.Fprintf(b, "\n%s:\n%s\n", r.DisplayName, r.Content)
	}
}

func writeDocument(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(b, "\n%s\n%s\n%s\n", docSectionOpen, text, docSectionClose)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
