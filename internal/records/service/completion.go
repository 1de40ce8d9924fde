package service

import (
	"context"
	"errors"

	"tripsecretary/internal/forms/fieldstate"
	"tripsecretary/internal/forms/schema"
	"tripsecretary/internal/records/models"
	id "tripsecretary/pkg/domain"
	dErrors "tripsecretary/pkg/domain-errors"
	"tripsecretary/pkg/platform/sentinel"
)

// CompletionSummary reports per-form and overall progress for a destination.
type CompletionSummary struct {
	PerForm  map[string]fieldstate.Metrics   `json:"per_form"`
	Total    int                             `json:"total_percent"`
	Sections map[string]models.SectionStatus `json:"sections"`
}

// Completion recomputes completion metrics from touched-field state, persists
// them on the destination's entry aggregate and returns the summary. The
// aggregate is derived state; recomputing is always safe.
func (s *Service) Completion(ctx context.Context, userID id.UserID, destinationID string) (CompletionSummary, error) {
	if destinationID == "" {
		return CompletionSummary{}, dErrors.New(dErrors.CodeInvalidInput, "destination_id is required")
	}

	perForm := make(map[string]fieldstate.Metrics, len(schema.FormIDs()))
	for _, formID := range schema.FormIDs() {
		m, err := s.fields.CompletionMetrics(ctx, userID, formID)
		if err != nil {
			return CompletionSummary{}, err
		}
		perForm[formID] = m
	}

	entry, err := s.entryFor(ctx, userID, destinationID)
	if err != nil {
		return CompletionSummary{}, err
	}

	now := s.clock()
	entry.UpdateCompletionMetrics(perForm, now)
	entry.UpdatedAt = now
	if err := s.stores.EntryInfo.Save(ctx, entry); err != nil {
		return CompletionSummary{}, err
	}

	return CompletionSummary{
		PerForm:  perForm,
		Total:    models.TotalCompletionPercent(perForm),
		Sections: entry.DisplayStatus,
	}, nil
}

// SetDocumentUploaded records a document upload for an entry section.
func (s *Service) SetDocumentUploaded(ctx context.Context, userID id.UserID, destinationID, section, ref string) error {
	if section == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "section is required")
	}
	entry, err := s.entryFor(ctx, userID, destinationID)
	if err != nil {
		return err
	}
	entry.Documents[section] = models.DocumentState{Uploaded: true, Ref: ref}
	entry.UpdatedAt = s.clock()
	return s.stores.EntryInfo.Save(ctx, entry)
}

// EntrySummary returns the stored aggregate for a destination.
func (s *Service) EntrySummary(ctx context.Context, userID id.UserID, destinationID string) (*models.EntryInfo, error) {
	entry, err := s.stores.EntryInfo.FindByUserAndDestination(ctx, userID, destinationID)
	if err != nil {
		return nil, s.notFoundOr(err, "entry info")
	}
	return entry, nil
}

// ListEntries returns all destination aggregates for the user.
func (s *Service) ListEntries(ctx context.Context, userID id.UserID) ([]*models.EntryInfo, error) {
	return s.stores.EntryInfo.ListByUser(ctx, userID)
}

func (s *Service) entryFor(ctx context.Context, userID id.UserID, destinationID string) (*models.EntryInfo, error) {
	entry, err := s.stores.EntryInfo.FindByUserAndDestination(ctx, userID, destinationID)
	switch {
	case err == nil:
		return entry, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return models.NewEntryInfo(userID, destinationID, s.clock()), nil
	default:
		return nil, err
	}
}
