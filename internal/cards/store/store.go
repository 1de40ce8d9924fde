// Package store declares persistence ports for digital arrival cards.
package store

import (
	"context"

	"tripsecretary/internal/cards/models"
	id "tripsecretary/pkg/domain"
)

// CardStore persists submission attempt records. Save is an upsert keyed by
// ID so lifecycle mutations of one attempt land on the same row.
type CardStore interface {
	Save(ctx context.Context, card *models.DigitalArrivalCard) error
	FindByID(ctx context.Context, cardID id.CardID) (*models.DigitalArrivalCard, error)

	// GetLatestSuccessful returns the single non-superseded success for the
	// entry and card type. It is the source of truth for "the user's card".
	GetLatestSuccessful(ctx context.Context, entryInfoID id.EntryInfoID, cardType id.CardType) (*models.DigitalArrivalCard, error)

	// ListByEntryInfo returns every attempt for the entry ordered by
	// SubmittedAt ascending, superseded records included.
	ListByEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) ([]*models.DigitalArrivalCard, error)

	ListByUser(ctx context.Context, userID id.UserID) ([]*models.DigitalArrivalCard, error)
	DeleteAllForUser(ctx context.Context, userID id.UserID) error
}
