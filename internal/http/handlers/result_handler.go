// Result and leaderboard HTTP handlers.
//
// This file exposes REST endpoints for debate finalization and the
// leaderboard built from final results:
//   - POST   /debates/{id}/result   (finalize: assessment + points)
//   - GET    /debates/{id}/result   (fetch stored result)
//   - GET    /leaderboard           (all-time, or windowed via ?since=)
//   - PUT    /keys/{provider}       (store caller credential)
//   - DELETE /keys/{provider}       (remove caller credential)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// finalization exists for (user, debate, key), the handler returns the stored
// result and sets `Idempotency-Replayed: true` instead of recomputing.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/repo"
	"github.com/tbourn/go-debate-backend/internal/services"
)

//
// DTOs
//

// SetAPIKeyRequest is the JSON payload for storing a provider credential.
type SetAPIKeyRequest struct {
	// Key is the provider API key. It is stored write-only and never
	// returned by any endpoint.
	Key string `json:"key" binding:"required,min=1"`
}

// LeaderboardResponse wraps the user's all-time per-model standings.
type LeaderboardResponse struct {
	Stats []domain.ModelStat `json:"stats"`
}

// LeaderboardWindowResponse wraps standings replayed over a time window.
type LeaderboardWindowResponse struct {
	Since   time.Time                   `json:"since"`
	Entries []services.LeaderboardEntry `json:"entries"`
}

//
// Handlers
//

// FinalizeDebate godoc
// @ID          finalizeDebate
// @Summary     Finalize a debate
// @Description Produces the moderator's final assessment, computes the points breakdown,
// @Description updates leaderboard stats, and marks the debate completed. A debate is
// @Description finalized exactly once; repeat calls return 409.
// @Tags        Results
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       id               path    string  true  "Debate ID (UUID)"       format(uuid)
// @Param       use_caller_key   query   bool    false "Use caller-supplied provider keys"
//
// @Success     201  {object} domain.DebateResult
// @Failure     404  {object} handlers.ErrorResponse "Debate not found"
// @Failure     409  {object} handlers.ErrorResponse "Result already exists"
// @Router      /debates/{id}/result [post]
func (h *Handlers) FinalizeDebate(c *gin.Context) {
	ctx := c.Request.Context()
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}
	currentUser := userID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if idemKey != "" {
		if svc, okSvc := h.resultSvc.(*services.ResultService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, currentUser, debateID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetResultByDebate(ctx, svc.DB, debateID); err2 == nil && prev.ID == rec.ResultID {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, prev)
					return
				}
			}
		}
	}

	result, err := h.resultSvc.Finalize(ctx, currentUser, debateID, useCallerKey(c))
	if err != nil {
		failService(c, err, ErrCodeFinalizeFailed)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if svc, okSvc := h.resultSvc.(*services.ResultService); okSvc && svc.DB != nil {
			ttl := 24 * time.Hour
			_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, debateID, idemKey, result.ID, http.StatusCreated, ttl)
		}
	}

	ok(c, http.StatusCreated, result)
}

// GetResult godoc
// @ID          getResult
// @Summary     Fetch a debate's final result
// @Tags        Results
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Debate ID (UUID)"       format(uuid)
//
// @Success     200  {object} domain.DebateResult
// @Failure     404  {object} handlers.ErrorResponse "Result not found"
// @Router      /debates/{id}/result [get]
func (h *Handlers) GetResult(c *gin.Context) {
	debateID := c.Param("id")
	if _, err := uuid.Parse(debateID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "debate id must be a UUID")
		return
	}
	r, err := h.resultSvc.Get(c.Request.Context(), userID(c), debateID)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// Leaderboard godoc
// @ID          leaderboard
// @Summary     Per-model leaderboard
// @Description Returns the user's cumulative per-model standings, ordered by total points.
// @Description With ?since=RFC3339, standings are replayed from results in that window
// @Description instead. The all-time variant supports weak ETags via If-None-Match.
// @Tags        Results
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       since          query   string  false "Window start (RFC3339)"
//
// @Success     200  {object} handlers.LeaderboardResponse
// @Header      200  {string} ETag "Weak ETag for current standings"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad since timestamp"
// @Router      /leaderboard [get]
func (h *Handlers) Leaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "since must be RFC3339")
			return
		}
		entries, err := h.resultSvc.LeaderboardWindow(ctx, uid, since)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
		ok(c, http.StatusOK, LeaderboardWindowResponse{Since: since, Entries: entries})
		return
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.resultSvc.(*services.ResultService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.StatsSummary(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"leaderboard:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	stats, err := h.resultSvc.Leaderboard(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, LeaderboardResponse{Stats: stats})
}

// SetAPIKey godoc
// @ID          setAPIKey
// @Summary     Store a caller provider credential
// @Description Stores (or replaces) the user's API key for one provider. Keys are
// @Description write-only: no endpoint ever returns them.
// @Tags        Keys
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       provider   path    string  true  "Provider name"          example(openai)
// @Param       body       body    handlers.SetAPIKeyRequest  true  "Credential payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Unknown provider"
// @Router      /keys/{provider} [put]
func (h *Handlers) SetAPIKey(c *gin.Context) {
	var req SetAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "key required")
		return
	}
	if err := h.keySvc.Set(c.Request.Context(), userID(c), c.Param("provider"), req.Key); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// DeleteAPIKey godoc
// @ID          deleteAPIKey
// @Summary     Remove a caller provider credential
// @Tags        Keys
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       provider   path    string  true  "Provider name"          example(openai)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Unknown provider"
// @Router      /keys/{provider} [delete]
func (h *Handlers) DeleteAPIKey(c *gin.Context) {
	if err := h.keySvc.Delete(c.Request.Context(), userID(c), c.Param("provider")); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
