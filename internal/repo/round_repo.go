// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Round
// model: the append-only sequence of discussion cycles within a debate.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// CreateRound inserts a new Round row for a debate. RoundNumber uniqueness
// per debate is enforced by ux_debate_round; a violation surfaces as
// ErrDuplicate so callers can detect concurrent round creation.
func CreateRound(ctx context.Context, db *gorm.DB, debateID string, roundNumber int, followUp *string) (*domain.Round, error) {
	r := &domain.Round{
		ID:               uuid.NewString(),
		DebateID:         debateID,
		RoundNumber:      roundNumber,
		FollowUpQuestion: followUp,
		Status:           domain.RoundStatusInProgress,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// GetRound fetches a round by ID scoped to its debate, or ErrNotFound.
func GetRound(ctx context.Context, db *gorm.DB, id, debateID string) (*domain.Round, error) {
	var r domain.Round
	err := db.WithContext(ctx).
		Where("id = ? AND debate_id = ?", id, debateID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRound returns the highest-numbered round of a debate, or ErrNotFound
// when the debate has no rounds yet.
func LatestRound(ctx context.Context, db *gorm.DB, debateID string) (*domain.Round, error) {
	var r domain.Round
	err := db.WithContext(ctx).
		Where("debate_id = ?", debateID).
		Order("round_number desc").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRounds returns all rounds of a debate ordered by round number
// ascending.
func ListRounds(ctx context.Context, db *gorm.DB, debateID string) ([]domain.Round, error) {
	var out []domain.Round
	err := db.WithContext(ctx).
		Where("debate_id = ?", debateID).
		Order("round_number asc").
		Find(&out).Error
	return out, err
}

// AdvanceRoundStatus moves a round's status forward. The WHERE clause pins
// the expected current status, so a stale or backward transition affects
// zero rows and returns ErrNotFound: statuses only ever move forward.
func AdvanceRoundStatus(ctx context.Context, db *gorm.DB, id, from, to string) error {
	res := db.WithContext(ctx).
		Model(&domain.Round{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetRoundSynthesis stores the moderator synthesis, the suggested follow-up,
// and the analytics JSON (any of which may be nil) on a round.
func SetRoundSynthesis(ctx context.Context, db *gorm.DB, id string, synthesis, followUp, analytics *string) error {
	res := db.WithContext(ctx).
		Model(&domain.Round{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"moderator_synthesis": synthesis,
			"suggested_follow_up": followUp,
			"analytics":           analytics,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") || strings.Contains(low, "constraint failed: unique")
}
