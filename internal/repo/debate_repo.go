// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Debate
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a debate is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateDebate inserts a new Debate row owned by userID. The debate ID is a
// randomly generated UUID (string), and CreatedAt is set to UTC. The
// participant list is stored as pre-encoded JSON; validation happens in the
// service layer.
func CreateDebate(ctx context.Context, db *gorm.DB, d *domain.Debate) (*domain.Debate, error) {
	d.ID = uuid.NewString()
	d.Status = domain.DebateStatusActive
	d.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDebate fetches a single debate by its ID and owner (userID). If the
// record does not exist, it returns ErrNotFound.
func GetDebate(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Debate, error) {
	var d domain.Debate
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CountDebates returns the total number of debates owned by userID.
func CountDebates(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Debate{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListDebatesPage returns a paginated slice of debates for userID, ordered
// by creation time descending. Use CountDebates to obtain the total for
// pagination metadata.
func ListDebatesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Debate, error) {
	var out []domain.Debate
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateDebateTitle updates the title of a debate identified by id and owned
// by userID. If no rows are affected (debate missing or not owned by
// userID), it returns ErrNotFound.
func UpdateDebateTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.Debate{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateDebateStatus moves a debate to the given lifecycle status, enforcing
// user ownership. Status validity is the service layer's concern.
func UpdateDebateStatus(ctx context.Context, db *gorm.DB, id, userID, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Debate{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
