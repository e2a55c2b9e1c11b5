package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/llm"
	"github.com/tbourn/go-debate-backend/internal/repo"
)

// APIKeyService manages caller-supplied provider credentials. Keys are
// stored one per (user, provider) and are write-only from the API's point
// of view: they can be set, replaced, and removed, never read back.
type APIKeyService struct {
	DB *gorm.DB
}

// Set stores or replaces the user's key for a provider.
func (s *APIKeyService) Set(ctx context.Context, userID, provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !llm.KnownProvider(provider) {
		return ErrInvalidProvider
	}
	if strings.TrimSpace(key) == "" {
		return ErrInvalidProvider
	}
	return repo.UpsertUserKey(ctx, s.DB, userID, provider, key)
}

// Delete removes the user's key for a provider. Deleting an absent key is
// not an error.
func (s *APIKeyService) Delete(ctx context.Context, userID, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !llm.KnownProvider(provider) {
		return ErrInvalidProvider
	}
	err := repo.DeleteUserKey(ctx, s.DB, userID, provider)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
