// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the ModelStat aggregate: cumulative
// per-(user, model) leaderboard counters maintained incrementally as debate
// results are created.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// StatDelta is the per-debate increment applied to one model's aggregate.
type StatDelta struct {
	Points             int
	ModeratorPicks     int
	PeerVotes          int
	StrongArguments    int
	DevilsAdvocateWins int
}

// UpsertModelStat applies delta to the (userID, modelID) aggregate as a
// single INSERT ... ON CONFLICT DO UPDATE statement. The increments run
// inside the database, so two debates completing concurrently for the same
// user cannot lose updates. RecentForm is overwritten, not incremented: it
// holds the points of the latest contributing result.
func UpsertModelStat(ctx context.Context, db *gorm.DB, userID, modelID string, delta StatDelta) error {
	now := time.Now().UTC()
	row := domain.ModelStat{
		ID:                 uuid.NewString(),
		UserID:             userID,
		ModelID:            modelID,
		TotalPoints:        delta.Points,
		DebatesCount:       1,
		ModeratorPicks:     delta.ModeratorPicks,
		PeerVotes:          delta.PeerVotes,
		StrongArguments:    delta.StrongArguments,
		DevilsAdvocateWins: delta.DevilsAdvocateWins,
		RecentForm:         delta.Points,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "model_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_points":         gorm.Expr("total_points + ?", delta.Points),
			"debates_count":        gorm.Expr("debates_count + 1"),
			"moderator_picks":      gorm.Expr("moderator_picks + ?", delta.ModeratorPicks),
			"peer_votes":           gorm.Expr("peer_votes + ?", delta.PeerVotes),
			"strong_arguments":     gorm.Expr("strong_arguments + ?", delta.StrongArguments),
			"devils_advocate_wins": gorm.Expr("devils_advocate_wins + ?", delta.DevilsAdvocateWins),
			"recent_form":          delta.Points,
			"updated_at":           now,
		}),
	}).Create(&row).Error
}

// ListModelStats returns a user's aggregates ordered by total points
// descending, the cumulative leaderboard.
func ListModelStats(ctx context.Context, db *gorm.DB, userID string) ([]domain.ModelStat, error) {
	var out []domain.ModelStat
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("total_points desc, model_id asc").
		Find(&out).Error
	return out, err
}

// StatsSummary returns aggregate metadata for a user's stats rows: the row
// count and the maximum UpdatedAt among them, used for conditional
// (ETag-style) leaderboard responses. When the user has no rows, count is 0
// and maxUpdatedAt is nil.
func StatsSummary(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ModelStat{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
