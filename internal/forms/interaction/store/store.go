// Package store persists per-form interaction state. Implementations must
// keep a single form's state under one key so a save replaces the whole map
// atomically.
package store

import (
	"context"

	"tripsecretary/internal/forms/interaction"
	id "tripsecretary/pkg/domain"
)

// Store is the persisted interaction-state backend.
//
// Load returns an empty (non-nil) FormState when nothing was stored; decode
// failures surface as errors wrapped around sentinel.ErrCorrupted so the
// tracker can fail open.
type Store interface {
	Load(ctx context.Context, userID id.UserID, formID string) (interaction.FormState, error)
	Save(ctx context.Context, userID id.UserID, formID string, state interaction.FormState) error
	Delete(ctx context.Context, userID id.UserID, formID string) error
	DeleteAllForUser(ctx context.Context, userID id.UserID) error
}
