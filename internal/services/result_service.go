// Package services – ResultService
//
// Finalization: the moderator's cross-round assessment, the canonical points
// computation, and the leaderboard updates derived from it. A debate is
// finalized exactly once; the unique index on debate_results is the
// idempotency guard, since points flow into cumulative ModelStat rows and a
// second finalization would double-count them.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/extract"
	"github.com/tbourn/go-debate-backend/internal/llm"
	"github.com/tbourn/go-debate-backend/internal/parse"
	"github.com/tbourn/go-debate-backend/internal/prompt"
	"github.com/tbourn/go-debate-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Points awarded per scoring component.
const (
	pointsModeratorPick  = 3
	pointsPerPeerVote    = 1
	pointsStrongArgument = 1
	pointsDevilsAdvocate = 1
)

// ResultService produces and serves final debate assessments and the
// leaderboard aggregates built from them.
type ResultService struct {
	DB  *gorm.DB
	LLM LLMClient

	Extractor extract.Extractor
	DocBudget int
	MaxTokens int
}

// LeaderboardEntry is one row of a windowed (replayed) leaderboard.
type LeaderboardEntry struct {
	ModelID            string `json:"model_id"`
	TotalPoints        int    `json:"total_points"`
	DebatesCount       int    `json:"debates_count"`
	ModeratorPicks     int    `json:"moderator_picks"`
	PeerVotes          int    `json:"peer_votes"`
	StrongArguments    int    `json:"strong_arguments"`
	DevilsAdvocateWins int    `json:"devils_advocate_wins"`
}

// Finalize produces the debate's final assessment, computes the points
// breakdown, persists the result, updates per-model stats, and marks the
// debate completed, all in one transaction. Calling it again for the same
// debate returns ErrResultExists; the stored result is never replaced.
func (s *ResultService) Finalize(ctx context.Context, userID, debateID string, useCallerKey bool) (*domain.DebateResult, error) {
	tr := otel.Tracer("services/ResultService")
	ctx, span := tr.Start(ctx, "Finalize",
		trace.WithAttributes(attribute.String("debate.id", debateID)),
	)
	defer span.End()

	debate, err := repo.GetDebate(ctx, s.DB, debateID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}
	if debate.Status != domain.DebateStatusActive {
		return nil, ErrDebateNotActive
	}
	if _, err := repo.GetResultByDebate(ctx, s.DB, debate.ID); err == nil {
		return nil, ErrResultExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rounds, err := repo.ListRounds(ctx, s.DB, debate.ID)
	if err != nil {
		return nil, err
	}
	responses, err := repo.ListResponsesForDebate(ctx, s.DB, debate.ID)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, ErrNoResponses
	}
	votes, err := repo.ListVotesForDebate(ctx, s.DB, debate.ID)
	if err != nil {
		return nil, err
	}

	catalog := s.LLM.Catalog()
	participants := Participants(debate)

	// Peer votes received per model, across every round.
	voteCounts := make(map[string]int)
	for _, v := range votes {
		voteCounts[v.VotedForModel]++
	}
	voteTally := make(map[string]int, len(voteCounts))
	for modelID, n := range voteCounts {
		voteTally[catalog.DisplayName(modelID)] = n
	}

	daModel := ""
	if debate.DevilsAdvocateEnabled && debate.DevilsAdvocateModel != nil {
		daModel = *debate.DevilsAdvocateModel
	}

	pc := s.assessmentContext(ctx, debate, rounds, responses)
	daName := ""
	if daModel != "" {
		daName = catalog.DisplayName(daModel)
	}
	cred := callerCredential(ctx, s.DB, catalog, userID, debate.ModeratorModel, useCallerKey)
	res, err := s.LLM.Invoke(ctx, debate.ModeratorModel,
		[]llm.Message{{Role: "user", Content: prompt.FinalAssessment(pc, voteTally, daName)}},
		s.MaxTokens, cred)
	if err != nil {
		return nil, err
	}

	assessment := parse.ExtractAssessment(res.Text)
	candidates := make(map[string]string, len(participants))
	for _, id := range participants {
		candidates[catalog.DisplayName(id)] = id
	}
	_, winnerID := parse.ResolveName(assessment.Winner, candidates)
	if winnerID == "" && len(voteCounts) > 0 {
		// moderator emitted no usable winner marker: fall back to the
		// top of the peer vote tally
		winnerID = topOfTally(voteCounts)
		log.Warn().Str("debate_id", debateID).Msg("winner marker missing, falling back to vote tally")
	}

	strongArgs := strongArgumentMentions(parse.StripWinnerMarker(res.Text), candidates)
	daStrong := daModel != "" && assessment.DevilsAdvocateStrong

	breakdown := make(map[string]domain.PointsBreakdown, len(participants))
	for _, id := range participants {
		var p domain.PointsBreakdown
		if id == winnerID {
			p.ModeratorPick = pointsModeratorPick
		}
		p.PeerVotes = voteCounts[id] * pointsPerPeerVote
		if containsString(strongArgs, id) {
			p.StrongArguments = pointsStrongArgument
		}
		if daStrong && id == daModel {
			p.DevilsAdvocateBonus = pointsDevilsAdvocate
		}
		p.Total = p.Sum()
		breakdown[id] = p
	}

	strongNames := make([]string, 0, len(strongArgs))
	for _, id := range strongArgs {
		strongNames = append(strongNames, catalog.DisplayName(id))
	}
	sort.Strings(strongNames)

	tallyJSON, err := json.Marshal(voteTally)
	if err != nil {
		return nil, err
	}
	strongJSON, err := json.Marshal(strongNames)
	if err != nil {
		return nil, err
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return nil, err
	}

	result := &domain.DebateResult{
		DebateID:              debate.ID,
		FinalAssessment:       res.Text,
		Synthesis:             assessment.Synthesis,
		ModeratorPick:         winnerID,
		VoteTally:             string(tallyJSON),
		StrongArguments:       string(strongJSON),
		DevilsAdvocateSuccess: daStrong,
		PointsBreakdown:       string(breakdownJSON),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := repo.CreateResult(ctx, tx, result)
		if err != nil {
			return err
		}
		result = created
		for _, id := range participants {
			p := breakdown[id]
			delta := repo.StatDelta{
				Points:          p.Total,
				PeerVotes:       p.PeerVotes,
				StrongArguments: p.StrongArguments,
			}
			if p.ModeratorPick > 0 {
				delta.ModeratorPicks = 1
			}
			if p.DevilsAdvocateBonus > 0 {
				delta.DevilsAdvocateWins = 1
			}
			if err := repo.UpsertModelStat(ctx, tx, userID, id, delta); err != nil {
				return err
			}
		}
		return repo.UpdateDebateStatus(ctx, tx, debate.ID, userID, domain.DebateStatusCompleted)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrResultExists
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the stored final result of a debate the user owns.
func (s *ResultService) Get(ctx context.Context, userID, debateID string) (*domain.DebateResult, error) {
	if _, err := repo.GetDebate(ctx, s.DB, debateID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}
	r, err := repo.GetResultByDebate(ctx, s.DB, debateID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrResultNotFound
	}
	return r, err
}

// Leaderboard returns the user's all-time per-model aggregates, ordered by
// total points descending.
func (s *ResultService) Leaderboard(ctx context.Context, userID string) ([]domain.ModelStat, error) {
	return repo.ListModelStats(ctx, s.DB, userID)
}

// LeaderboardWindow rebuilds a leaderboard restricted to results created
// since the given time by replaying their stored points breakdowns. The
// cumulative ModelStat rows cannot answer windowed queries, so the window
// is derived from the immutable results themselves.
func (s *ResultService) LeaderboardWindow(ctx context.Context, userID string, since time.Time) ([]LeaderboardEntry, error) {
	results, err := repo.ListResultsForUserSince(ctx, s.DB, userID, since)
	if err != nil {
		return nil, err
	}

	agg := make(map[string]*LeaderboardEntry)
	for _, r := range results {
		var breakdown map[string]domain.PointsBreakdown
		if err := json.Unmarshal([]byte(r.PointsBreakdown), &breakdown); err != nil {
			log.Warn().Err(err).Str("result_id", r.ID).Msg("skipping result with malformed points breakdown")
			continue
		}
		for modelID, p := range breakdown {
			e := agg[modelID]
			if e == nil {
				e = &LeaderboardEntry{ModelID: modelID}
				agg[modelID] = e
			}
			e.TotalPoints += p.Total
			e.DebatesCount++
			if p.ModeratorPick > 0 {
				e.ModeratorPicks++
			}
			e.PeerVotes += p.PeerVotes
			e.StrongArguments += p.StrongArguments
			if p.DevilsAdvocateBonus > 0 {
				e.DevilsAdvocateWins++
			}
		}
	}

	out := make([]LeaderboardEntry, 0, len(agg))
	for _, e := range agg {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].ModelID < out[j].ModelID
	})
	return out, nil
}

// assessmentContext builds the cross-round prompt context for the final
// assessment, mirroring RoundService.loadContext but covering every round.
func (s *ResultService) assessmentContext(ctx context.Context, debate *domain.Debate, rounds []domain.Round, responses []domain.Response) prompt.Context {
	byRound := make(map[string][]prompt.PriorResponse)
	for _, r := range responses {
		byRound[r.RoundID] = append(byRound[r.RoundID], prompt.PriorResponse{DisplayName: r.DisplayName, Content: r.Content})
	}

	pc := prompt.Context{Question: debate.Question}
	for _, r := range rounds {
		q := debate.Question
		if r.FollowUpQuestion != nil && *r.FollowUpQuestion != "" {
			q = *r.FollowUpQuestion
		}
		summary := prompt.RoundSummary{
			RoundNumber: r.RoundNumber,
			Question:    q,
			Responses:   byRound[r.ID],
		}
		if r.ModeratorSynthesis != nil {
			summary.Synthesis = *r.ModeratorSynthesis
		}
		pc.PriorRounds = append(pc.PriorRounds, summary)
	}

	if debate.AttachmentRef != nil && s.Extractor != nil {
		text, err := s.Extractor.Extract(ctx, *debate.AttachmentRef, s.DocBudget)
		if err != nil {
			log.Warn().Err(err).Str("debate_id", debate.ID).Msg("document extraction failed, continuing without it")
		} else {
			pc.DocumentText = text
		}
	}
	return pc
}

// strongArgumentMentions returns the model ids whose display names appear in
// the assessment text. Callers strip the winner marker first so that naming
// the winner there does not count as a strong-argument mention on its own.
func strongArgumentMentions(text string, candidates map[string]string) []string {
	lower := strings.ToLower(text)

	var out []string
	for name, id := range candidates {
		if strings.Contains(lower, strings.ToLower(name)) {
			out = append(out, id)
		}
	}
	return out
}

// topOfTally returns the model with the most peer votes, breaking ties by
// lexical order so the fallback is deterministic.
func topOfTally(counts map[string]int) string {
	best, bestN := "", -1
	for id, n := range counts {
		if n > bestN || (n == bestN && id < best) {
			best, bestN = id, n
		}
	}
	return best
}

