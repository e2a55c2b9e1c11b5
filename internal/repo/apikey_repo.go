// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for caller-supplied
// provider credentials (UserAPIKey).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

// UpsertUserKey stores (or replaces) the credential for (userID, provider).
func UpsertUserKey(ctx context.Context, db *gorm.DB, userID, provider, key string) error {
	now := time.Now().UTC()
	row := domain.UserAPIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Provider:  provider,
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.Assignments(map[string]any{"key": key, "updated_at": now}),
	}).Create(&row).Error
}

// GetUserKey returns the credential for (userID, provider), or ErrNotFound.
func GetUserKey(ctx context.Context, db *gorm.DB, userID, provider string) (*domain.UserAPIKey, error) {
	var k domain.UserAPIKey
	err := db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&k).Error
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// DeleteUserKey removes the credential for (userID, provider). Missing rows
// return ErrNotFound.
func DeleteUserKey(ctx context.Context, db *gorm.DB, userID, provider string) error {
	res := db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&domain.UserAPIKey{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
