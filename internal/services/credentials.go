// Package services – caller credential resolution.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/llm"
	"github.com/tbourn/go-debate-backend/internal/repo"
)

// LLMClient is the adapter-layer contract consumed by the orchestration
// services. Implementations must be safe for concurrent use.
type LLMClient interface {
	// Invoke performs one blocking completion against modelID.
	Invoke(ctx context.Context, modelID string, msgs []llm.Message, maxTokens int, cred *llm.Credential) (*llm.Result, error)
	// Stream performs a streaming completion; outcomes flow through cb.
	Stream(ctx context.Context, modelID string, msgs []llm.Message, maxTokens int, cred *llm.Credential, cb llm.Callbacks) error
	// Catalog exposes model metadata (provider family, display names).
	Catalog() llm.Catalog
}

// callerCredential resolves the caller-scoped credential for a model when a
// debate opts in to caller-supplied keys: the user's OpenRouter routing key
// is preferred, then a provider-specific key matching the target model's
// provider. A nil return means "fall over to platform keys" - the adapter
// layer owns that part of the chain.
func callerCredential(ctx context.Context, db *gorm.DB, catalog llm.Catalog, userID, modelID string, useCallerKey bool) *llm.Credential {
	if !useCallerKey {
		return nil
	}
	if k, err := repo.GetUserKey(ctx, db, userID, string(llm.ProviderOpenRouter)); err == nil {
		return &llm.Credential{Provider: llm.ProviderOpenRouter, Key: k.Key}
	}
	info, ok := catalog.Lookup(modelID)
	if !ok {
		return nil
	}
	k, err := repo.GetUserKey(ctx, db, userID, string(info.Provider))
	if err != nil {
		return nil
	}
	return &llm.Credential{Provider: info.Provider, Key: k.Key}
}
