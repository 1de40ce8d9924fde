// Package store declares persistence ports for traveler records. Memory and
// postgres implementations live in subpackages; callers depend on these
// interfaces only.
package store

import (
	"context"

	"tripsecretary/internal/records/models"
	id "tripsecretary/pkg/domain"
)

// PassportStore persists passport records. Save is an upsert keyed by ID.
//
// SetPrimary must behave as a single logical write: demoting the current
// primary and promoting the target either both happen or neither does.
type PassportStore interface {
	Save(ctx context.Context, p *models.Passport) error
	FindByID(ctx context.Context, passportID id.PassportID) (*models.Passport, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Passport, error)
	FindPrimary(ctx context.Context, userID id.UserID) (*models.Passport, error)
	SetPrimary(ctx context.Context, userID id.UserID, passportID id.PassportID) error
	Delete(ctx context.Context, passportID id.PassportID) error
	DeleteAllForUser(ctx context.Context, userID id.UserID) error
}

// PersonalInfoStore persists the per-user personal info singleton.
type PersonalInfoStore interface {
	Save(ctx context.Context, p *models.PersonalInfo) error
	FindByUser(ctx context.Context, userID id.UserID) (*models.PersonalInfo, error)
	DeleteAllForUser(ctx context.Context, userID id.UserID) error
}

// FundItemStore persists proof-of-funds items.
type FundItemStore interface {
	Save(ctx context.Context, f *models.FundItem) error
	FindByID(ctx context.Context, fundItemID id.FundItemID) (*models.FundItem, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.FundItem, error)
	Delete(ctx context.Context, fundItemID id.FundItemID) error
	DeleteAllForUser(ctx context.Context, userID id.UserID) error
}

// TravelInfoStore persists per-destination travel details.
type TravelInfoStore interface {
	Save(ctx context.Context, t *models.TravelInfo) error
	FindByUserAndDestination(ctx context.Context, userID id.UserID, destinationID string) (*models.TravelInfo, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.TravelInfo, error)
	DeleteAllForUser(ctx context.Context, userID id.UserID) error
}

// EntryInfoStore persists per-destination entry aggregates.
type EntryInfoStore interface {
	Save(ctx context.Context, e *models.EntryInfo) error
	FindByID(ctx context.Context, entryInfoID id.EntryInfoID) (*models.EntryInfo, error)
	FindByUserAndDestination(ctx context.Context, userID id.UserID, destinationID string) (*models.EntryInfo, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.EntryInfo, error)
	DeleteAllForUser(ctx context.Context, userID id.UserID) error
}

// Stores bundles the record ports for service wiring.
type Stores struct {
	Passports    PassportStore
	PersonalInfo PersonalInfoStore
	FundItems    FundItemStore
	TravelInfo   TravelInfoStore
	EntryInfo    EntryInfoStore
}
