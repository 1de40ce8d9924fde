// Package audit captures key domain actions for the traveler data trail.
// Events flow publisher -> store; the postgres store writes an outbox row
// that the worker drains, so the trail survives restarts without coupling
// domain logic to the transport.
package audit

import (
	"context"
	"time"

	id "tripsecretary/pkg/domain"
)

// EventCategory classifies audit events for retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: data
	// subject rights, account erasure, arrival card submissions.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic. Transport-agnostic so stores and sinks
// can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Action    string
	// FormID identifies the progressive form involved, when any.
	FormID string
	// ResourceID identifies the record or card acted on, when any.
	ResourceID string
	Outcome    string
	Reason     string
	// RequestID is the correlation ID from HTTP request context.
	RequestID string
}

type AuditEvent string

const (
	// Form events
	EventFormSaved     AuditEvent = "form_saved"
	EventFormReset     AuditEvent = "form_reset"
	EventFieldsDropped AuditEvent = "fields_dropped"

	// Record events
	EventPassportSaved      AuditEvent = "passport_saved"
	EventPrimaryPassportSet AuditEvent = "primary_passport_set"
	EventPersonalInfoSaved  AuditEvent = "personal_info_saved"
	EventFundItemSaved      AuditEvent = "fund_item_saved"
	EventFundItemDeleted    AuditEvent = "fund_item_deleted"
	EventTravelInfoSaved    AuditEvent = "travel_info_saved"

	// Arrival card events
	EventCardSubmitted  AuditEvent = "card_submitted"
	EventCardFailed     AuditEvent = "card_failed"
	EventCardSuperseded AuditEvent = "card_superseded"

	// Account events
	EventUserDataDeleted AuditEvent = "user_data_deleted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCardSubmitted:      CategoryCompliance,
	EventCardFailed:         CategoryCompliance,
	EventCardSuperseded:     CategoryCompliance,
	EventUserDataDeleted:    CategoryCompliance,
	EventPrimaryPassportSet: CategoryCompliance,
}

// Category resolves the event's category, defaulting to operations.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
