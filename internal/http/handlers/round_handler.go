// Round HTTP handlers.
//
// This file exposes REST endpoints for round orchestration:
//   - POST /debates/{id}/rounds                       (start next round)
//   - GET  /debates/{id}/rounds                       (list rounds)
//   - GET  /debates/{id}/rounds/{rid}                 (round detail)
//   - POST /debates/{id}/rounds/{rid}/responses       (generate all responses)
//   - GET  /debates/{id}/rounds/{rid}/stream          (stream one response, SSE)
//   - POST /debates/{id}/rounds/{rid}/votes           (collect peer votes)
//   - POST /debates/{id}/rounds/{rid}/synthesis       (moderator synthesis + analytics)
//   - POST /debates/{id}/rounds/{rid}/complete        (finish without synthesis)
//   - POST /debates/{id}/rounds/{rid}/scores          (score responses)
//
// The stream endpoint emits Server-Sent Events with event types "token",
// "complete", and "error"; every stream ends with exactly one of the latter
// two. EventSource cannot set headers, so the endpoint also accepts the user
// identity as a "token" query parameter.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/llm"
	"github.com/tbourn/go-debate-backend/internal/services"
	"github.com/tbourn/go-debate-backend/internal/utils"
)

//
// DTOs
//

// StartRoundRequest is the JSON payload for starting the next round.
type StartRoundRequest struct {
	// FollowUpQuestion steers the new round. Required for every round after
	// the first; ignored for round one.
	FollowUpQuestion string `json:"follow_up_question" example:"How would the ban affect low-income commuters?"`
}

// RoundDetailResponse is one round with its responses and recorded votes.
type RoundDetailResponse struct {
	Round     *domain.Round     `json:"round"`
	Responses []domain.Response `json:"responses"`
	Votes     []domain.Vote     `json:"votes"`
}

// GenerateResponsesResponse wraps the responses produced in one pass.
type GenerateResponsesResponse struct {
	Responses []domain.Response `json:"responses"`
}

// CollectVotesResponse wraps the votes recorded in one pass.
type CollectVotesResponse struct {
	Votes []domain.Vote `json:"votes"`
}

// streamCompletePayload is the SSE "complete" event body.
type streamCompletePayload struct {
	ResponseID       string  `json:"response_id"`
	Content          string  `json:"content"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// roundIDs validates the debate and round path parameters.
func roundIDs(c *gin.Context) (debateID, roundID string, valid bool) {
	debateID = c.Param("id")
	roundID = c.Param("rid")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return "", "", false
	}
	if _, err := uuid.Parse(roundID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "round id must be a UUID")
		return "", "", false
	}
	return debateID, roundID, true
}

//
// Handlers
//

// StartRound godoc
// @ID          startRound
// @Summary     Start the next round
// @Description Creates the next round of a debate. The first round uses the original
// @Description question; later rounds require a follow-up question and a completed predecessor.
// @Tags        Rounds
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"       format(uuid)
// @Param       body       body    handlers.StartRoundRequest  false  "Follow-up question"
//
// @Success     201  {object} domain.Round
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Failure     409  {object} handlers.ErrorResponse "Current round not settled"
// @Router      /debates/{id}/rounds [post]
func (h *Handlers) StartRound(c *gin.Context) {
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}

	var req StartRoundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	r, err := h.roundSvc.StartRound(c.Request.Context(), userID(c), debateID, strings.TrimSpace(req.FollowUpQuestion))
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, r)
}

// ListRounds godoc
// @ID          listRounds
// @Summary     List rounds of a debate
// @Tags        Rounds
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"       format(uuid)
//
// @Success     200  {array}  domain.Round
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Router      /debates/{id}/rounds [get]
func (h *Handlers) ListRounds(c *gin.Context) {
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}
	rounds, err := h.roundSvc.ListRounds(c.Request.Context(), userID(c), debateID)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, rounds)
}

// GetRound godoc
// @ID          getRound
// @Summary     Fetch one round with responses and votes
// @Tags        Rounds
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"       format(uuid)
// @Param       rid        path    string  true  "Round ID (UUID)"        format(uuid)
//
// @Success     200  {object} handlers.RoundDetailResponse
// @Failure     404  {object} handlers.ErrorResponse "Round not found"
// @Router      /debates/{id}/rounds/{rid} [get]
func (h *Handlers) GetRound(c *gin.Context) {
	debateID, roundID, okIDs := roundIDs(c)
	if !okIDs {
		return
	}
	r, responses, votes, err := h.roundSvc.GetRound(c.Request.Context(), userID(c), debateID, roundID)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, RoundDetailResponse{Round: r, Responses: responses, Votes: votes})
}

// GenerateResponses godoc
// @ID          generateResponses
// @Summary     Generate all participant responses
// @Description Runs every participant sequentially in declared order. Individual model
// @Description failures are skipped; the call fails only when all models fail.
// @Tags        Rounds
// @Produce     json
//
// @Param       X-User-ID       header  string  false "User ID (demo header)"  example(user123)
// @Param       id              path    string  true  "Debate ID (UUID)"       format(uuid)
// @Param       rid             path    string  true  "Round ID (UUID)"        format(uuid)
// @Param       use_caller_key  query   bool    false "Use caller-supplied provider keys"
//
// @Success     200  {object} handlers.GenerateResponsesResponse
// @Failure     404  {object} handlers.ErrorResponse "Round not found"
// @Failure     502  {object} handlers.ErrorResponse "All models failed"
// @Router      /debates/{id}/rounds/{rid}/responses [post]
func (h *Handlers) GenerateResponses(c *gin.Context) {
	debateID, roundID, okIDs := roundIDs(c)
	if !okIDs {
		return
	}
	responses, err := h.roundSvc.GenerateResponses(c.Request.Context(), userID(c), debateID, roundID, useCallerKey(c))
	if err != nil {
		failService(c, err, ErrCodeGenerateFailed)
		return
	}
	ok(c, http.StatusOK, GenerateResponsesResponse{Responses: responses})
}

// StreamResponse godoc
// @ID          streamResponse
// @Summary     Stream one participant response (SSE)
// @Description Generates a single model's response as Server-Sent Events. Emits "token"
// @Description events followed by exactly one "complete" or "error" event. Accepts the
// @Description user identity via the "token" query parameter for EventSource clients.
// @Tags        Rounds
// @Produce     text/event-stream
//
// @Param       id              path    string  true  "Debate ID (UUID)"  format(uuid)
// @Param       rid             path    string  true  "Round ID (UUID)"   format(uuid)
// @Param       model           query   string  true  "Participant model id"
// @Param       order           query   int     true  "Response slot (1..N)"
// @Param       token           query   string  false "User identity for EventSource clients"
// @Param       use_caller_key  query   bool    false "Use caller-supplied provider keys"
//
// @Success     200  {string} string "SSE stream"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /debates/{id}/rounds/{rid}/stream [get]
func (h *Handlers) StreamResponse(c *gin.Context) {
	debateID, roundID, okIDs := roundIDs(c)
	if !okIDs {
		return
	}
	modelID := strings.TrimSpace(c.Query("model"))
	if modelID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "model query parameter required")
		return
	}
	order := utils.AtoiDefault(c.Query("order"), 0)
	if order < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order query parameter must be >= 1")
		return
	}

	uid := userID(c)
	if tok := strings.TrimSpace(c.Query("token")); tok != "" {
		uid = tok
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	// Long-lived stream: lift the server write deadline for this response.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	flusher, _ := c.Writer.(http.Flusher)
	emit := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		_, _ = c.Writer.WriteString("event: " + event + "\n")
		_, _ = c.Writer.WriteString("data: " + string(data) + "\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	}

	err := h.roundSvc.StreamResponse(c.Request.Context(), uid, debateID, roundID, modelID, order, useCallerKey(c), services.StreamEvents{
		OnToken: func(delta string) {
			emit("token", gin.H{"delta": delta})
		},
		OnComplete: func(resp *domain.Response, res *llm.Result) {
			emit("complete", streamCompletePayload{
				ResponseID:       resp.ID,
				Content:          resp.Content,
				PromptTokens:     res.PromptTokens,
				CompletionTokens: res.CompletionTokens,
				EstimatedCostUSD: res.EstimatedCostUSD,
			})
		},
		OnError: func(err error) {
			emit("error", gin.H{"message": err.Error()})
		},
	})
	if err != nil {
		// Pre-stream failures (unknown round, taken slot, missing key) are
		// still plain JSON errors; nothing has been streamed yet.
		c.Writer.Header().Del("Content-Type")
		failService(c, err, ErrCodeGenerateFailed)
	}
}

// CollectVotes godoc
// @ID          collectVotes
// @Summary     Collect peer votes for a round
// @Description Invokes every participant as a voter concurrently and records the votes
// @Description that parse successfully. Failed voters are simply absent from the tally.
// @Tags        Rounds
// @Produce     json
//
// @Param       X-User-ID       header  string  false "User ID (demo header)"  example(user123)
// @Param       id              path    string  true  "Debate ID (UUID)"       format(uuid)
// @Param       rid             path    string  true  "Round ID (UUID)"        format(uuid)
// @Param       use_caller_key  query   bool    false "Use caller-supplied provider keys"
//
// @Success     200  {object} handlers.CollectVotesResponse
// @Failure     400  {object} handlers.ErrorResponse "Voting disabled or no responses"
// @Failure     404  {object} handlers.ErrorResponse "Round not found"
// @Router      /debates/{id}/rounds/{rid}/votes [post]
func (h *Handlers) CollectVotes(c *gin.Context) {
	debateID, roundID, okIDs := roundIDs(c)
	if !okIDs {
		return
	}
	votes, err := h.roundSvc.CollectVotes(c.Request.Context(), userID(c), debateID, roundID, useCallerKey(c))
	if err != nil {
		failService(c, err, ErrCodeVoteFailed)
		return
	}
	ok(c, http.StatusOK, CollectVotesResponse{Votes: votes})
}

// Synthesize godoc
// @ID          synthesizeRound
// @Summary     Run moderator synthesis and analytics
// @Description Produces the moderator's synthesis and, in parallel, discourse analytics.
// @Description Analytics failures degrade gracefully and never fail the synthesis.
// @Tags        Rounds
// @Produce     json
//
// @Param       X-User-ID       header  string  false "User ID (demo header)"  example(user123)
// @Param       id              path    string  true  "Debate ID (UUID)"       format(uuid)
// @Param       rid             path    string  true  "Round ID (UUID)"        format(uuid)
// @Param       use_caller_key  query   bool    false "Use caller-supplied provider keys"
//
// @Success     200  {object} domain.Round
// @Failure     400  {object} handlers.ErrorResponse "Round has no responses"
// @Failure     404  {object} handlers.ErrorResponse "Round not found"
// @Router      /debates/{id}/rounds/{rid}/synthesis [post]
func (h *Handlers) Synthesize(c *gin.Context) {
	debateID, roundID, okIDs := roundIDs(c)
	if !okIDs {
		return
	}
	r, err := h.roundSvc.Synthesize(c.Request.Context(), userID(c), debateID, roundID, useCallerKey(c))
	if err != nil {
		failService(c, err, ErrCodeSynthesisFailed)
		return
	}
	ok(c, http.StatusOK, r)
}

// CompleteRound godoc
// @ID          completeRound
// @Summary     Complete a round without synthesis
// @Tags        Rounds
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"       format(uuid)
// @Param       rid        path    string  true  "Round ID (UUID)"        format(uuid)
//
// @Success     200  {object} domain.Round
// @Failure     404  {object} handlers.ErrorResponse "Round not found"
// @Router      /debates/{id}/rounds/{rid}/complete [post]
func (h *Handlers) CompleteRound(c *gin.Context) {
	debateID, roundID, okIDs := roundIDs(c)
	if !okIDs {
		return
	}
	r, err := h.roundSvc.CompleteRound(c.Request.Context(), userID(c), debateID, roundID)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// ScoreResponses godoc
// @ID          scoreResponses
// @Summary     Score a round's responses
// @Description Rates each response 0-10 with a one-line rationale. Individual scoring
// @Description failures leave that response unscored.
// @Tags        Rounds
// @Produce     json
//
// @Param       X-User-ID       header  string  false "User ID (demo header)"  example(user123)
// @Param       id              path    string  true  "Debate ID (UUID)"       format(uuid)
// @Param       rid             path    string  true  "Round ID (UUID)"        format(uuid)
// @Param       use_caller_key  query   bool    false "Use caller-supplied provider keys"
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Round not found"
// @Router      /debates/{id}/rounds/{rid}/scores [post]
func (h *Handlers) ScoreResponses(c *gin.Context) {
	debateID, roundID, okIDs := roundIDs(c)
	if !okIDs {
		return
	}
	if err := h.roundSvc.ScoreResponses(c.Request.Context(), userID(c), debateID, roundID, useCallerKey(c)); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
