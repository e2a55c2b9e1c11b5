// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// DebateResult model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// CreateResult inserts the final assessment of a debate. The unique index on
// debate_id makes creation a once-only operation: a second attempt returns
// ErrDuplicate, which the service layer reports as a conflict rather than
// overwriting (leaderboard stats are not designed to be decremented).
func CreateResult(ctx context.Context, db *gorm.DB, r *domain.DebateResult) (*domain.DebateResult, error) {
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

// GetResultByDebate fetches the result of a debate, or ErrNotFound.
func GetResultByDebate(ctx context.Context, db *gorm.DB, debateID string) (*domain.DebateResult, error) {
	var r domain.DebateResult
	err := db.WithContext(ctx).
		Where("debate_id = ?", debateID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListResultsForUserSince returns a user's results created at or after the
// given instant, oldest first. This is the replay source for time-windowed
// leaderboard queries, which recompute from result history instead of the
// cumulative ModelStat rows.
func ListResultsForUserSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.DebateResult, error) {
	var out []domain.DebateResult
	err := db.WithContext(ctx).
		Joins("JOIN debates ON debates.id = debate_results.debate_id").
		Where("debates.user_id = ? AND debate_results.created_at >= ?", userID, since).
		Order("debate_results.created_at asc").
		Find(&out).Error
	return out, err
}
