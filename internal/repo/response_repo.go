// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Response
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// CreateResponse inserts one model response into a round. ResponseOrder
// uniqueness per round (ux_round_order) is the conflict-detection signal for
// overlapping generation; a violation surfaces as ErrDuplicate.
func CreateResponse(ctx context.Context, db *gorm.DB, r *domain.Response) (*domain.Response, error) {
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// ListResponses returns all responses of a round ordered by response order
// ascending, which is the order they were generated in.
func ListResponses(ctx context.Context, db *gorm.DB, roundID string) ([]domain.Response, error) {
	var out []domain.Response
	err := db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("response_order asc").
		Find(&out).Error
	return out, err
}

// ListResponsesForDebate returns every response across all rounds of a
// debate in (round, order) sequence. This is the batched read used when
// assembling round context and debate-end summaries, avoiding per-round
// N+1 queries.
func ListResponsesForDebate(ctx context.Context, db *gorm.DB, debateID string) ([]domain.Response, error) {
	var out []domain.Response
	err := db.WithContext(ctx).
		Joins("JOIN rounds ON rounds.id = responses.round_id").
		Where("rounds.debate_id = ? AND rounds.deleted_at IS NULL", debateID).
		Order("rounds.round_number asc, responses.response_order asc").
		Find(&out).Error
	return out, err
}

// UpdateResponseScore writes the async score fields of a response. These are
// the only mutable fields after creation.
func UpdateResponseScore(ctx context.Context, db *gorm.DB, id string, score float64, rationale string) error {
	res := db.WithContext(ctx).
		Model(&domain.Response{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"score":           score,
			"score_rationale": rationale,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
