package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tripsecretary/internal/forms/schema"
	"tripsecretary/internal/records/models"
	id "tripsecretary/pkg/domain"
	dErrors "tripsecretary/pkg/domain-errors"
	"tripsecretary/pkg/platform/audit"
)

// ListPassports returns the user's passports.
func (s *Service) ListPassports(ctx context.Context, userID id.UserID) ([]*models.Passport, error) {
	return s.stores.Passports.ListByUser(ctx, userID)
}

// GetPassport returns one passport, scoped to the user.
func (s *Service) GetPassport(ctx context.Context, userID id.UserID, passportID id.PassportID) (*models.Passport, error) {
	passport, err := s.stores.Passports.FindByID(ctx, passportID)
	if err != nil {
		return nil, s.notFoundOr(err, "passport")
	}
	if passport.UserID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "passport not found")
	}
	return passport, nil
}

// SetPrimaryPassport promotes a passport to primary. Any pending debounced
// passport write is flushed first so the swap applies to settled state.
func (s *Service) SetPrimaryPassport(ctx context.Context, userID id.UserID, passportID id.PassportID) error {
	if _, err := s.GetPassport(ctx, userID, passportID); err != nil {
		return err
	}
	if err := s.saves.Flush(ctx, formKey(userID, schema.FormPassport)); err != nil {
		return err
	}
	if err := s.stores.Passports.SetPrimary(ctx, userID, passportID); err != nil {
		return s.notFoundOr(err, "passport")
	}
	s.audit(ctx, audit.Event{
		UserID:     userID,
		Action:     string(audit.EventPrimaryPassportSet),
		ResourceID: passportID.String(),
	})
	return nil
}

// DeletePassport removes a passport after flushing pending writes for the
// form.
func (s *Service) DeletePassport(ctx context.Context, userID id.UserID, passportID id.PassportID) error {
	if _, err := s.GetPassport(ctx, userID, passportID); err != nil {
		return err
	}
	if err := s.saves.Flush(ctx, formKey(userID, schema.FormPassport)); err != nil {
		return err
	}
	if err := s.stores.Passports.Delete(ctx, passportID); err != nil {
		return s.notFoundOr(err, "passport")
	}
	return nil
}

// GetPersonalInfo returns the user's personal info singleton.
func (s *Service) GetPersonalInfo(ctx context.Context, userID id.UserID) (*models.PersonalInfo, error) {
	info, err := s.stores.PersonalInfo.FindByUser(ctx, userID)
	if err != nil {
		return nil, s.notFoundOr(err, "personal info")
	}
	return info, nil
}

// ListFundItems returns the user's proof-of-funds items.
func (s *Service) ListFundItems(ctx context.Context, userID id.UserID) ([]*models.FundItem, error) {
	return s.stores.FundItems.ListByUser(ctx, userID)
}

// DeleteFundItem removes one fund item, scoped to the user.
func (s *Service) DeleteFundItem(ctx context.Context, userID id.UserID, fundItemID id.FundItemID) error {
	item, err := s.stores.FundItems.FindByID(ctx, fundItemID)
	if err != nil {
		return s.notFoundOr(err, "fund item")
	}
	if item.UserID != userID {
		return dErrors.New(dErrors.CodeNotFound, "fund item not found")
	}
	if err := s.stores.FundItems.Delete(ctx, fundItemID); err != nil {
		return s.notFoundOr(err, "fund item")
	}
	s.audit(ctx, audit.Event{
		UserID:     userID,
		Action:     string(audit.EventFundItemDeleted),
		ResourceID: fundItemID.String(),
	})
	return nil
}

// GetTravelInfo returns the travel details for a destination.
func (s *Service) GetTravelInfo(ctx context.Context, userID id.UserID, destinationID string) (*models.TravelInfo, error) {
	info, err := s.stores.TravelInfo.FindByUserAndDestination(ctx, userID, destinationID)
	if err != nil {
		return nil, s.notFoundOr(err, "travel info")
	}
	return info, nil
}

// FlushAllForms forces every pending debounced write for the user to disk.
// Card submission snapshots the stores afterward, so it calls this first.
func (s *Service) FlushAllForms(ctx context.Context, userID id.UserID) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, formID := range schema.FormIDs() {
		key := formKey(userID, formID)
		g.Go(func() error {
			return s.saves.Flush(ctx, key)
		})
	}
	return g.Wait()
}

// DeleteAllUserData erases every record, form interaction and pending write
// for the user. Card history is erased by the cards service; callers cascade
// both.
func (s *Service) DeleteAllUserData(ctx context.Context, userID id.UserID) error {
	for _, formID := range schema.FormIDs() {
		s.saves.Cancel(formKey(userID, formID))
	}
	if err := s.tracker.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}
	deletes := []func(context.Context, id.UserID) error{
		s.stores.Passports.DeleteAllForUser,
		s.stores.PersonalInfo.DeleteAllForUser,
		s.stores.FundItems.DeleteAllForUser,
		s.stores.TravelInfo.DeleteAllForUser,
		s.stores.EntryInfo.DeleteAllForUser,
	}
	for _, del := range deletes {
		if err := del(ctx, userID); err != nil {
			return err
		}
	}
	s.audit(ctx, audit.Event{
		UserID: userID,
		Action: string(audit.EventUserDataDeleted),
	})
	return nil
}
