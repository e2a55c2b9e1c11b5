// Debate HTTP handlers.
//
// This file exposes REST endpoints for debate resources:
//   - POST   /debates             (create)
//   - GET    /debates             (list, paginated)
//   - GET    /debates/{id}        (fetch one)
//   - PUT    /debates/{id}/title  (rename)
//   - DELETE /debates/{id}        (archive)
//   - GET    /models              (model catalog)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
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
// Service contracts (context-aware)
//

// DebateService defines debate lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DebateService interface {
	// Create starts a new debate for userID with the given configuration.
	Create(ctx context.Context, userID string, p services.CreateDebateParams) (*domain.Debate, error)
	// Get returns one debate owned by userID.
	Get(ctx context.Context, userID, debateID string) (*domain.Debate, error)
	// ListPage returns a page of debates for a user and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Debate, int64, error)
	// UpdateTitle renames a debate that belongs to userID.
	UpdateTitle(ctx context.Context, userID, debateID, title string) error
	// Archive soft-retires a debate (it stays readable, orchestration stops).
	Archive(ctx context.Context, userID, debateID string) error
}

// RoundService defines round orchestration operations: response generation,
// voting, synthesis, and scoring.
type RoundService interface {
	StartRound(ctx context.Context, userID, debateID, followUp string) (*domain.Round, error)
	ListRounds(ctx context.Context, userID, debateID string) ([]domain.Round, error)
	GetRound(ctx context.Context, userID, debateID, roundID string) (*domain.Round, []domain.Response, []domain.Vote, error)
	GenerateResponses(ctx context.Context, userID, debateID, roundID string, useCallerKey bool) ([]domain.Response, error)
	StreamResponse(ctx context.Context, userID, debateID, roundID, modelID string, order int, useCallerKey bool, ev services.StreamEvents) error
	CollectVotes(ctx context.Context, userID, debateID, roundID string, useCallerKey bool) ([]domain.Vote, error)
	Synthesize(ctx context.Context, userID, debateID, roundID string, useCallerKey bool) (*domain.Round, error)
	CompleteRound(ctx context.Context, userID, debateID, roundID string) (*domain.Round, error)
	ScoreResponses(ctx context.Context, userID, debateID, roundID string, useCallerKey bool) error
}

// ResultService defines finalization and leaderboard operations.
type ResultService interface {
	Finalize(ctx context.Context, userID, debateID string, useCallerKey bool) (*domain.DebateResult, error)
	Get(ctx context.Context, userID, debateID string) (*domain.DebateResult, error)
	Leaderboard(ctx context.Context, userID string) ([]domain.ModelStat, error)
	LeaderboardWindow(ctx context.Context, userID string, since time.Time) ([]services.LeaderboardEntry, error)
}

// APIKeyService defines caller-credential management operations.
type APIKeyService interface {
	Set(ctx context.Context, userID, provider, key string) error
	Delete(ctx context.Context, userID, provider string) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for debates, rounds, results, and
// credentials. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	debateSvc DebateService
	roundSvc  RoundService
	resultSvc ResultService
	keySvc    APIKeyService
	catalog   llm.Catalog
}

// New constructs and returns a Handlers instance bound to the given services.
func New(debateSvc DebateService, roundSvc RoundService, resultSvc ResultService, keySvc APIKeyService, catalog llm.Catalog) *Handlers {
	return &Handlers{
		debateSvc: debateSvc,
		roundSvc:  roundSvc,
		resultSvc: resultSvc,
		keySvc:    keySvc,
		catalog:   catalog,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateDebateRequest is the JSON payload for creating a debate.
type CreateDebateRequest struct {
	// Question is the debate topic. Required, immutable after creation.
	Question string `json:"question" binding:"required,min=1" example:"Should cities ban private cars from their centers?"`
	// Title optionally sets the debate title; derived from the question when empty.
	Title string `json:"title" example:"Car-free city centers"`
	// ParticipantModels is the fixed roster of 2-20 model ids.
	ParticipantModels []string `json:"participant_models" binding:"required"`
	// ModeratorModel synthesizes rounds and writes the final assessment.
	ModeratorModel string `json:"moderator_model" binding:"required"`
	// DevilsAdvocateModel optionally names a participant to argue contra.
	DevilsAdvocateModel string `json:"devils_advocate_model"`
	// VotingEnabled turns on the peer-voting phase (default true).
	VotingEnabled *bool `json:"voting_enabled"`
	// BlindMode hides peer responses from participants within a round.
	BlindMode bool `json:"blind_mode"`
	// AttachmentRef optionally references an uploaded document.
	AttachmentRef string `json:"attachment_ref"`
}

// UpdateDebateTitleRequest is the JSON payload for renaming a debate.
type UpdateDebateTitleRequest struct {
	// Title is the new debate name (1–255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Car-free city centers, round two"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDebatesResponse wraps a page of debates and pagination information.
type ListDebatesResponse struct {
	Debates    []domain.Debate `json:"debates"`
	Pagination Pagination      `json:"pagination"`
}

// ModelInfoResponse is one catalog entry exposed to clients. Wire-level
// names and pricing inputs stay internal.
type ModelInfoResponse struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	DisplayName string `json:"display_name"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// useCallerKey reports whether the request opted in to caller-supplied
// provider credentials.
func useCallerKey(c *gin.Context) bool {
	return strings.EqualFold(c.Query("use_caller_key"), "true")
}

// failService maps well-known service errors to HTTP responses; unknown
// errors become 500s with the given fallback code. Matching goes through
// errors.Is because services and the provider layer wrap sentinels with
// call-site detail.
func failService(c *gin.Context, err error, fallbackCode string) {
	notFound := []error{services.ErrDebateNotFound, services.ErrRoundNotFound, services.ErrResultNotFound}
	conflict := []error{services.ErrDebateNotActive, services.ErrRoundNotSettled, services.ErrResultExists, services.ErrResponseExists}
	badRequest := []error{
		services.ErrEmptyQuestion, services.ErrInvalidParticipants, services.ErrInvalidModerator,
		services.ErrInvalidDevilsAdvocate, services.ErrInvalidProvider,
		services.ErrFollowUpRequired, services.ErrVotingDisabled, services.ErrNoResponses,
		llm.ErrUnknownModel, llm.ErrNoCredential, llm.ErrProviderMismatch,
	}

	switch {
	case matchesAny(err, notFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case matchesAny(err, conflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case matchesAny(err, badRequest):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrAllModelsFailed):
		fail(c, http.StatusBadGateway, ErrCodeUpstreamFailed, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

func matchesAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

//
// Handlers
//

// CreateDebate godoc
// @ID          createDebate
// @Summary     Create a new debate
// @Description Creates a debate with a fixed participant roster and moderator for the current user.
// @Tags        Debates
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateDebateRequest  true  "Create debate payload"
//
// @Success     201  {object}  domain.Debate
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /debates [post]
func (h *Handlers) CreateDebate(c *gin.Context) {
	var req CreateDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	voting := true
	if req.VotingEnabled != nil {
		voting = *req.VotingEnabled
	}
	d, err := h.debateSvc.Create(c.Request.Context(), userID(c), services.CreateDebateParams{
		Question:            req.Question,
		Title:               req.Title,
		ParticipantModels:   req.ParticipantModels,
		ModeratorModel:      req.ModeratorModel,
		DevilsAdvocateModel: req.DevilsAdvocateModel,
		VotingEnabled:       voting,
		BlindMode:           req.BlindMode,
		AttachmentRef:       req.AttachmentRef,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, d)
}

// ListDebates godoc
// @ID          listDebates
// @Summary     List debates (paginated)
// @Description Returns a page of the user's debates, newest first.
// @Tags        Debates
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"            minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"         minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListDebatesResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /debates [get]
func (h *Handlers) ListDebates(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.debateSvc.ListPage(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListDebatesResponse{
		Debates: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetDebate godoc
// @ID          getDebate
// @Summary     Fetch one debate
// @Tags        Debates
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"       format(uuid)
//
// @Success     200  {object} domain.Debate
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Router      /debates/{id} [get]
func (h *Handlers) GetDebate(c *gin.Context) {
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}
	d, err := h.debateSvc.Get(c.Request.Context(), userID(c), debateID)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, d)
}

// UpdateDebateTitle godoc
// @ID          updateDebateTitle
// @Summary     Rename a debate
// @Tags        Debates
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"       format(uuid)
// @Param       body       body    handlers.UpdateDebateTitleRequest  true  "New title"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Router      /debates/{id}/title [put]
func (h *Handlers) UpdateDebateTitle(c *gin.Context) {
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}

	var req UpdateDebateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1–255 chars)")
		return
	}

	if err := h.debateSvc.UpdateTitle(c.Request.Context(), userID(c), debateID, req.Title); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// ArchiveDebate godoc
// @ID          archiveDebate
// @Summary     Archive a debate
// @Description Soft-retires a debate: it remains readable but no further orchestration is allowed.
// @Tags        Debates
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"       format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Router      /debates/{id} [delete]
func (h *Handlers) ArchiveDebate(c *gin.Context) {
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}
	if err := h.debateSvc.Archive(c.Request.Context(), userID(c), debateID); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// ListModels godoc
// @ID          listModels
// @Summary     List available models
// @Description Returns the model catalog clients may reference as participants or moderators.
// @Tags        Models
// @Produce     json
//
// @Success     200  {array} handlers.ModelInfoResponse
// @Router      /models [get]
func (h *Handlers) ListModels(c *gin.Context) {
	out := make([]ModelInfoResponse, 0, len(h.catalog))
	for _, info := range h.catalog {
		out = append(out, ModelInfoResponse{
			ID:          info.ID,
			Provider:    string(info.Provider),
			DisplayName: info.DisplayName,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	ok(c, http.StatusOK, out)
}
