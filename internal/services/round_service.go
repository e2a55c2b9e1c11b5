// Package services – RoundService
//
// This file implements the round orchestrator: the state machine that drives
// one discussion cycle from participant response generation through peer
// voting to moderator synthesis and discourse analytics.
//
// Failure semantics: any single-model failure (generation, vote, analytics)
// is isolated to that model and never aborts the round. The orchestrator's
// job is to maximize the number of participants that successfully
// contribute, not to guarantee full participation. Only when every model in
// a required step fails does the operation error out.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// debate/round identifiers. Per-model failures are logged at warn level.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
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

// voteConcurrency bounds the voting fan-out to avoid provider rate-limit
// storms. Fixed by design; it does not scale with participant count.
const voteConcurrency = 5

// StreamEvents is the transport-facing streaming protocol for one response.
// OnToken fires synchronously per delta; exactly one of OnComplete or
// OnError terminates the stream.
type StreamEvents struct {
	OnToken    func(delta string)
	OnComplete func(resp *domain.Response, res *llm.Result)
	OnError    func(err error)
}

// RoundService drives rounds to completion. All methods honor the provided
// context for cancellation; a canceled stream releases the upstream
// provider connection.
type RoundService struct {
	DB  *gorm.DB
	LLM LLMClient

	// Extractor resolves debate attachments to prompt text; failures
	// degrade to "no document context".
	Extractor extract.Extractor
	DocBudget int

	MaxTokens      int    // completion budget per call
	AnalyticsModel string // fast/cheap model for analytics and scoring
}

// roundContext is the read snapshot used to build prompts for one round.
type roundContext struct {
	debate       *domain.Debate
	round        *domain.Round
	participants []string
	priorRounds  []prompt.RoundSummary
	question     string
	documentText string
}

// StartRound creates round N+1 of a debate. The first round reuses the
// original question; later rounds require a follow-up question and a
// settled (completed) predecessor. Round numbers increment by exactly 1.
func (s *RoundService) StartRound(ctx context.Context, userID, debateID, followUp string) (*domain.Round, error) {
	debate, err := s.activeDebate(ctx, userID, debateID)
	if err != nil {
		return nil, err
	}

	next := 1
	var fu *string
	latest, err := repo.LatestRound(ctx, s.DB, debate.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// first round: the debate's original question applies
	case err != nil:
		return nil, err
	default:
		if latest.Status != domain.RoundStatusCompleted {
			return nil, ErrRoundNotSettled
		}
		if followUp == "" {
			return nil, ErrFollowUpRequired
		}
		next = latest.RoundNumber + 1
		fu = &followUp
	}

	r, err := repo.CreateRound(ctx, s.DB, debate.ID, next, fu)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrRoundNotSettled
	}
	return r, err
}

// GenerateResponses produces one response per participant, sequentially and
// in declared order. Each participant's prompt embeds a snapshot of the
// responses generated so far (omitted in blind mode), so the n-th model
// sees the n-1 prior responses. A single model's failure is logged and
// skipped; the method errors only when every participant fails.
func (s *RoundService) GenerateResponses(ctx context.Context, userID, debateID, roundID string, useCallerKey bool) ([]domain.Response, error) {
	tr := otel.Tracer("services/RoundService")
	ctx, span := tr.Start(ctx, "GenerateResponses",
		trace.WithAttributes(
			attribute.String("debate.id", debateID),
			attribute.String("round.id", roundID),
		),
	)
	defer span.End()

	rc, err := s.loadContext(ctx, userID, debateID, roundID)
	if err != nil {
		return nil, err
	}

	catalog := s.LLM.Catalog()
	var out []domain.Response
	failures := 0

	for i, modelID := range rc.participants {
		order := i + 1

		// Snapshot of prior responses taken immediately before this
		// model's prompt is built.
		existing, err := repo.ListResponses(ctx, s.DB, rc.round.ID)
		if err != nil {
			return nil, err
		}
		if hasOrder(existing, order) {
			continue // slot already filled (e.g., client retry)
		}

		isDA := rc.debate.DevilsAdvocateEnabled &&
			rc.debate.DevilsAdvocateModel != nil && *rc.debate.DevilsAdvocateModel == modelID

		pc := rc.promptContext(catalog.DisplayName(modelID), existing, catalog)
		text := prompt.Participant(pc)
		if isDA {
			text = prompt.DevilsAdvocate(pc)
		}

		cred := callerCredential(ctx, s.DB, catalog, userID, modelID, useCallerKey)
		res, err := s.LLM.Invoke(ctx, modelID, []llm.Message{{Role: "user", Content: text}}, s.MaxTokens, cred)
		if err != nil {
			failures++
			log.Warn().Err(err).
				Str("debate_id", debateID).
				Str("round_id", roundID).
				Str("model_id", modelID).
				Msg("participant response failed")
			continue
		}

		resp, err := repo.CreateResponse(ctx, s.DB, &domain.Response{
			RoundID:          rc.round.ID,
			ModelID:          modelID,
			DisplayName:      catalog.DisplayName(modelID),
			Content:          res.Text,
			IsDevilsAdvocate: isDA,
			ResponseOrder:    order,
		})
		if errors.Is(err, repo.ErrDuplicate) {
			continue // lost a race with a concurrent retry; its row wins
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}

	if failures == len(rc.participants) {
		return nil, ErrAllModelsFailed
	}

	// All participants attempted: hand the round to the moderator phase.
	if rc.round.Status == domain.RoundStatusInProgress {
		if err := repo.AdvanceRoundStatus(ctx, s.DB, rc.round.ID,
			domain.RoundStatusInProgress, domain.RoundStatusAwaitingModerator); err != nil &&
			!errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return out, nil
}

// StreamResponse generates a single participant's response as a token
// stream. The complete text is persisted only when the stream finishes;
// a disconnect mid-stream cancels the upstream call and persists nothing.
func (s *RoundService) StreamResponse(ctx context.Context, userID, debateID, roundID, modelID string, order int, useCallerKey bool, ev StreamEvents) error {
	rc, err := s.loadContext(ctx, userID, debateID, roundID)
	if err != nil {
		return err
	}
	if !containsString(rc.participants, modelID) {
		return ErrInvalidParticipants
	}

	existing, err := repo.ListResponses(ctx, s.DB, rc.round.ID)
	if err != nil {
		return err
	}
	if hasOrder(existing, order) {
		return ErrResponseExists
	}

	catalog := s.LLM.Catalog()
	isDA := rc.debate.DevilsAdvocateEnabled &&
		rc.debate.DevilsAdvocateModel != nil && *rc.debate.DevilsAdvocateModel == modelID

	pc := rc.promptContext(catalog.DisplayName(modelID), existing, catalog)
	text := prompt.Participant(pc)
	if isDA {
		text = prompt.DevilsAdvocate(pc)
	}

	cred := callerCredential(ctx, s.DB, catalog, userID, modelID, useCallerKey)
	return s.LLM.Stream(ctx, modelID, []llm.Message{{Role: "user", Content: text}}, s.MaxTokens, cred, llm.Callbacks{
		OnToken: ev.OnToken,
		OnError: ev.OnError,
		OnComplete: func(res *llm.Result) {
			resp, err := repo.CreateResponse(ctx, s.DB, &domain.Response{
				RoundID:          rc.round.ID,
				ModelID:          modelID,
				DisplayName:      catalog.DisplayName(modelID),
				Content:          res.Text,
				IsDevilsAdvocate: isDA,
				ResponseOrder:    order,
			})
			if err != nil {
				if ev.OnError != nil {
					ev.OnError(err)
				}
				return
			}
			if ev.OnComplete != nil {
				ev.OnComplete(resp, res)
			}
		},
	})
}

// CollectVotes invokes every participant as a voter concurrently, bounded
// by voteConcurrency, settles all outcomes, and batch-inserts only the
// successfully parsed votes. A failed or unparseable voter is excluded
// from the batch, never propagated: with N voters and K failures, exactly
// N-K votes are recorded.
func (s *RoundService) CollectVotes(ctx context.Context, userID, debateID, roundID string, useCallerKey bool) ([]domain.Vote, error) {
	tr := otel.Tracer("services/RoundService")
	ctx, span := tr.Start(ctx, "CollectVotes",
		trace.WithAttributes(
			attribute.String("debate.id", debateID),
			attribute.String("round.id", roundID),
		),
	)
	defer span.End()

	rc, err := s.loadContext(ctx, userID, debateID, roundID)
	if err != nil {
		return nil, err
	}
	if !rc.debate.VotingEnabled {
		return nil, ErrVotingDisabled
	}

	responses, err := repo.ListResponses(ctx, s.DB, rc.round.ID)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, ErrNoResponses
	}

	catalog := s.LLM.Catalog()
	candidates := make(map[string]string, len(responses))
	for _, r := range responses {
		candidates[r.DisplayName] = r.ModelID
	}

	var (
		mu    sync.Mutex
		votes []domain.Vote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(voteConcurrency)

	for _, voter := range rc.participants {
		voter := voter
		g.Go(func() error {
			pc := rc.promptContext(catalog.DisplayName(voter), responses, catalog)
			cred := callerCredential(gctx, s.DB, catalog, userID, voter, useCallerKey)
			res, err := s.LLM.Invoke(gctx, voter, []llm.Message{{Role: "user", Content: prompt.Voter(pc)}}, s.MaxTokens, cred)
			if err != nil {
				log.Warn().Err(err).
					Str("round_id", roundID).
					Str("voter", voter).
					Msg("voter call failed")
				return nil // settle-all: one voter's failure never cancels the rest
			}
			v := parse.ExtractVote(res.Text, voter, candidates)
			if v == nil {
				return nil // no pattern matched or self-vote: dropped, not retried
			}
			mu.Lock()
			votes = append(votes, domain.Vote{
				RoundID:       rc.round.ID,
				VoterModel:    voter,
				VotedForModel: candidates[v.VotedFor],
				Rationale:     v.Rationale,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := repo.CreateVotes(ctx, s.DB, votes); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		return nil, err
	}
	return votes, nil
}

// Synthesize runs the moderator synthesis and, in parallel, the discourse
// analytics extraction on a cheap model. The analytics branch's failure is
// isolated: it degrades to a zeroed record and never fails the synthesis.
// On success the round moves awaiting_moderator -> completed.
func (s *RoundService) Synthesize(ctx context.Context, userID, debateID, roundID string, useCallerKey bool) (*domain.Round, error) {
	tr := otel.Tracer("services/RoundService")
	ctx, span := tr.Start(ctx, "Synthesize",
		trace.WithAttributes(
			attribute.String("debate.id", debateID),
			attribute.String("round.id", roundID),
		),
	)
	defer span.End()

	rc, err := s.loadContext(ctx, userID, debateID, roundID)
	if err != nil {
		return nil, err
	}

	responses, err := repo.ListResponses(ctx, s.DB, rc.round.ID)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, ErrNoResponses
	}
	votes, err := repo.ListVotes(ctx, s.DB, rc.round.ID)
	if err != nil {
		return nil, err
	}

	catalog := s.LLM.Catalog()
	pc := rc.moderatorContext(responses, votes, catalog)

	var (
		synthesisText string
		analytics     parse.DiscourseAnalytics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cred := callerCredential(gctx, s.DB, catalog, userID, rc.debate.ModeratorModel, useCallerKey)
		res, err := s.LLM.Invoke(gctx, rc.debate.ModeratorModel, []llm.Message{{Role: "user", Content: prompt.ModeratorSynthesis(pc)}}, s.MaxTokens, cred)
		if err != nil {
			return err // synthesis is the required half of the pair
		}
		synthesisText = res.Text
		return nil
	})
	g.Go(func() error {
		cred := callerCredential(gctx, s.DB, catalog, userID, s.AnalyticsModel, useCallerKey)
		res, err := s.LLM.Invoke(gctx, s.AnalyticsModel, []llm.Message{{Role: "user", Content: prompt.Analytics(pc)}}, s.MaxTokens, cred)
		if err != nil {
			log.Warn().Err(err).Str("round_id", roundID).Msg("analytics call failed")
			analytics = parse.DiscourseAnalytics{Degraded: true}
			return nil
		}
		analytics = parse.ExtractAnalytics(res.Text)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	body, followUp := parse.ExtractFollowUp(synthesisText)
	analyticsJSON, err := json.Marshal(analytics)
	if err != nil {
		return nil, err
	}
	aj := string(analyticsJSON)

	var fu *string
	if followUp != "" {
		fu = &followUp
	}
	if err := repo.SetRoundSynthesis(ctx, s.DB, rc.round.ID, &body, fu, &aj); err != nil {
		return nil, err
	}
	if err := repo.AdvanceRoundStatus(ctx, s.DB, rc.round.ID,
		domain.RoundStatusAwaitingModerator, domain.RoundStatusCompleted); err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return repo.GetRound(ctx, s.DB, rc.round.ID, rc.debate.ID)
}

// CompleteRound finishes a round without moderator synthesis. It exists for
// debates where neither voting nor synthesis is wanted: the round is done
// once all participant responses exist.
func (s *RoundService) CompleteRound(ctx context.Context, userID, debateID, roundID string) (*domain.Round, error) {
	rc, err := s.loadContext(ctx, userID, debateID, roundID)
	if err != nil {
		return nil, err
	}
	err = repo.AdvanceRoundStatus(ctx, s.DB, rc.round.ID,
		domain.RoundStatusAwaitingModerator, domain.RoundStatusCompleted)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return repo.GetRound(ctx, s.DB, rc.round.ID, rc.debate.ID)
}

// ScoreResponses runs the async per-response scoring pass on a round using
// the analytics model. Each response's failure is independent; responses
// whose score cannot be parsed keep null score fields.
func (s *RoundService) ScoreResponses(ctx context.Context, userID, debateID, roundID string, useCallerKey bool) error {
	rc, err := s.loadContext(ctx, userID, debateID, roundID)
	if err != nil {
		return err
	}
	responses, err := repo.ListResponses(ctx, s.DB, rc.round.ID)
	if err != nil {
		return err
	}

	catalog := s.LLM.Catalog()
	cred := callerCredential(ctx, s.DB, catalog, userID, s.AnalyticsModel, useCallerKey)
	for _, r := range responses {
		if r.Score != nil {
			continue
		}
		text := prompt.Scoring(rc.question, r.DisplayName, r.Content)
		res, err := s.LLM.Invoke(ctx, s.AnalyticsModel, []llm.Message{{Role: "user", Content: text}}, s.MaxTokens, cred)
		if err != nil {
			log.Warn().Err(err).Str("response_id", r.ID).Msg("scoring call failed")
			continue
		}
		score, rationale, ok := parse.ExtractScore(res.Text)
		if !ok {
			continue
		}
		if err := repo.UpdateResponseScore(ctx, s.DB, r.ID, score, rationale); err != nil {
			log.Warn().Err(err).Str("response_id", r.ID).Msg("score update failed")
		}
	}
	return nil
}

// GetRound returns one round with its responses and votes.
func (s *RoundService) GetRound(ctx context.Context, userID, debateID, roundID string) (*domain.Round, []domain.Response, []domain.Vote, error) {
	rc, err := s.loadContext(ctx, userID, debateID, roundID)
	if err != nil {
		return nil, nil, nil, err
	}
	responses, err := repo.ListResponses(ctx, s.DB, rc.round.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	votes, err := repo.ListVotes(ctx, s.DB, rc.round.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return rc.round, responses, votes, nil
}

// ListRounds returns all rounds of a debate the user owns.
func (s *RoundService) ListRounds(ctx context.Context, userID, debateID string) ([]domain.Round, error) {
	if _, err := repo.GetDebate(ctx, s.DB, debateID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}
	return repo.ListRounds(ctx, s.DB, debateID)
}

// ---- internal helpers ----

// activeDebate loads a debate and rejects non-active lifecycle states.
func (s *RoundService) activeDebate(ctx context.Context, userID, debateID string) (*domain.Debate, error) {
	d, err := repo.GetDebate(ctx, s.DB, debateID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}
	if d.Status != domain.DebateStatusActive {
		return nil, ErrDebateNotActive
	}
	return d, nil
}

// loadContext assembles the read snapshot for prompt building: the debate,
// the target round, prior-round summaries (one batched responses query for
// the whole debate), and the extracted attachment text.
func (s *RoundService) loadContext(ctx context.Context, userID, debateID, roundID string) (*roundContext, error) {
	debate, err := s.activeDebate(ctx, userID, debateID)
	if err != nil {
		return nil, err
	}
	round, err := repo.GetRound(ctx, s.DB, roundID, debate.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}

	rounds, err := repo.ListRounds(ctx, s.DB, debate.ID)
	if err != nil {
		return nil, err
	}
	all, err := repo.ListResponsesForDebate(ctx, s.DB, debate.ID)
	if err != nil {
		return nil, err
	}
	byRound := make(map[string][]prompt.PriorResponse)
	for _, r := range all {
		byRound[r.RoundID] = append(byRound[r.RoundID], prompt.PriorResponse{DisplayName: r.DisplayName, Content: r.Content})
	}

	rc := &roundContext{
		debate:       debate,
		round:        round,
		participants: Participants(debate),
		question:     debate.Question,
	}
	if round.FollowUpQuestion != nil && *round.FollowUpQuestion != "" {
		rc.question = *round.FollowUpQuestion
	}
	for _, r := range rounds {
		if r.RoundNumber >= round.RoundNumber {
			continue
		}
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
		rc.priorRounds = append(rc.priorRounds, summary)
	}

	rc.documentText = s.documentText(ctx, debate)
	return rc, nil
}

// documentText resolves the debate attachment to prompt text. Extraction
// failure degrades to empty text rather than blocking prompt construction.
func (s *RoundService) documentText(ctx context.Context, d *domain.Debate) string {
	if d.AttachmentRef == nil || s.Extractor == nil {
		return ""
	}
	text, err := s.Extractor.Extract(ctx, *d.AttachmentRef, s.DocBudget)
	if err != nil {
		log.Warn().Err(err).Str("debate_id", d.ID).Msg("document extraction failed, continuing without it")
		return ""
	}
	return text
}

// promptContext builds a participant/voter prompt context for modelName,
// embedding the given peer-response snapshot.
func (rc *roundContext) promptContext(modelName string, responses []domain.Response, catalog llm.Catalog) prompt.Context {
	pc := prompt.Context{
		Question:     rc.question,
		ModelName:    modelName,
		PriorRounds:  rc.priorRounds,
		DocumentText: rc.documentText,
		BlindMode:    rc.debate.BlindMode,
	}
	if len(rc.priorRounds) > 0 {
		pc.PriorSynthesis = rc.priorRounds[len(rc.priorRounds)-1].Synthesis
	}
	for _, r := range responses {
		pc.Responses = append(pc.Responses, prompt.PriorResponse{DisplayName: r.DisplayName, Content: r.Content})
	}
	return pc
}

// moderatorContext is promptContext for the moderator: blind mode never
// hides responses from the moderator, and recorded votes are included.
func (rc *roundContext) moderatorContext(responses []domain.Response, votes []domain.Vote, catalog llm.Catalog) prompt.Context {
	pc := rc.promptContext(catalog.DisplayName(rc.debate.ModeratorModel), responses, catalog)
	pc.BlindMode = false
	for _, v := range votes {
		pc.Votes = append(pc.Votes, prompt.VoteSummary{
			Voter:    catalog.DisplayName(v.VoterModel),
			VotedFor: catalog.DisplayName(v.VotedForModel),
		})
	}
	return pc
}

func hasOrder(responses []domain.Response, order int) bool {
	for _, r := range responses {
		if r.ResponseOrder == order {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
