// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Vote
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// CreateVotes inserts the successfully-parsed votes of a fan-out as a single
// batch. An empty slice is a no-op. Per-voter uniqueness (ux_round_voter)
// surfaces as ErrDuplicate, which callers treat as a retry of an already
// recorded fan-out.
func CreateVotes(ctx context.Context, db *gorm.DB, votes []domain.Vote) error {
	if len(votes) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range votes {
		votes[i].ID = uuid.NewString()
		votes[i].CreatedAt = now
	}
	if err := db.WithContext(ctx).Create(&votes).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ListVotes returns all votes of a round, oldest first.
func ListVotes(ctx context.Context, db *gorm.DB, roundID string) ([]domain.Vote, error) {
	var out []domain.Vote
	err := db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListVotesForDebate returns every vote across all rounds of a debate. Used
// by the scoring engine to build the cross-round tally in one query.
func ListVotesForDebate(ctx context.Context, db *gorm.DB, debateID string) ([]domain.Vote, error) {
	var out []domain.Vote
	err := db.WithContext(ctx).
		Joins("JOIN rounds ON rounds.id = votes.round_id").
		Where("rounds.debate_id = ? AND rounds.deleted_at IS NULL", debateID).
		Order("votes.created_at asc").
		Find(&out).Error
	return out, err
}
