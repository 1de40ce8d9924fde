//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tripsecretary/internal/cards/models"
	"tripsecretary/internal/cards/store/postgres"
	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/sentinel"
	"tripsecretary/pkg/testutil/containers"
)

type CardStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.CardStore
}

func TestCardStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CardStoreSuite))
}

func (s *CardStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.NewCardStore(s.postgres.DB)
}

func (s *CardStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "arrival_cards"))
}

func (s *CardStoreSuite) newSuccessfulCard(entryID id.EntryInfoID, userID id.UserID, number string) *models.DigitalArrivalCard {
	card := models.NewSubmissionAttempt(entryID, userID, id.CardTypeTDAC, "TH", id.SubmissionMethodAPI, time.Now())
	s.Require().NoError(card.MarkSucceeded(number, "qr://"+number, "pdf://"+number, "", 120))
	return card
}

func (s *CardStoreSuite) TestSaveAndFindRoundTrip() {
	ctx := context.Background()
	entryID := id.NewEntryInfoID()
	userID := id.NewUserID()

	card := s.newSuccessfulCard(entryID, userID, "TDAC-0001")
	s.Require().NoError(s.store.Save(ctx, card))

	got, err := s.store.FindByID(ctx, card.ID)
	s.Require().NoError(err)
	s.Equal("TDAC-0001", got.ArrivalCardNumber)
	s.Equal(id.CardStatusSuccess, got.Status)
	s.False(got.IsSuperseded)
	s.Equal(card.Version, got.Version)
}

// TestAuthoritativeUniqueIndexRejectsSecondSuccess verifies the partial
// unique index backstop: two live successes for the same (entry, card type)
// cannot coexist, whatever the service layer does.
func (s *CardStoreSuite) TestAuthoritativeUniqueIndexRejectsSecondSuccess() {
	ctx := context.Background()
	entryID := id.NewEntryInfoID()
	userID := id.NewUserID()

	first := s.newSuccessfulCard(entryID, userID, "TDAC-0001")
	s.Require().NoError(s.store.Save(ctx, first))

	second := s.newSuccessfulCard(entryID, userID, "TDAC-0002")
	err := s.store.Save(ctx, second)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *CardStoreSuite) TestSupersedeThenInsertWithinTx() {
	ctx := context.Background()
	entryID := id.NewEntryInfoID()
	userID := id.NewUserID()

	first := s.newSuccessfulCard(entryID, userID, "TDAC-0001")
	s.Require().NoError(s.store.Save(ctx, first))

	second := s.newSuccessfulCard(entryID, userID, "TDAC-0002")
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		first.MarkAsSuperseded(second.ID, "replaced by newer successful submission", time.Now())
		if err := s.store.Save(ctx, first); err != nil {
			return err
		}
		return s.store.Save(ctx, second)
	})
	s.Require().NoError(err)

	latest, err := s.store.GetLatestSuccessful(ctx, entryID, id.CardTypeTDAC)
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)

	old, err := s.store.FindByID(ctx, first.ID)
	s.Require().NoError(err)
	s.True(old.IsSuperseded)
	s.Equal(second.ID, old.SupersededBy)
}

// TestWithinTxRollsBackOnError verifies neither write lands when the
// closure fails partway through.
func (s *CardStoreSuite) TestWithinTxRollsBackOnError() {
	ctx := context.Background()
	entryID := id.NewEntryInfoID()
	userID := id.NewUserID()

	first := s.newSuccessfulCard(entryID, userID, "TDAC-0001")
	s.Require().NoError(s.store.Save(ctx, first))

	second := s.newSuccessfulCard(entryID, userID, "TDAC-0002")
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		first.MarkAsSuperseded(second.ID, "replaced", time.Now())
		if err := s.store.Save(ctx, first); err != nil {
			return err
		}
		if err := s.store.Save(ctx, second); err != nil {
			return err
		}
		// Third live success violates the authoritative index and
		// forces the whole transaction back.
		return s.store.Save(ctx, s.newSuccessfulCard(entryID, userID, "TDAC-0003"))
	})
	s.Require().Error(err)

	latest, err := s.store.GetLatestSuccessful(ctx, entryID, id.CardTypeTDAC)
	s.Require().NoError(err)
	s.Equal(first.ID, latest.ID)
	s.False(latest.IsSuperseded)
}

func (s *CardStoreSuite) TestGetLatestSuccessfulIgnoresFailedAndSuperseded() {
	ctx := context.Background()
	entryID := id.NewEntryInfoID()
	userID := id.NewUserID()

	failed := models.NewSubmissionAttempt(entryID, userID, id.CardTypeTDAC, "TH", id.SubmissionMethodAPI, time.Now())
	s.Require().NoError(failed.MarkFailed("authority returned 503", "", 80))
	s.Require().NoError(s.store.Save(ctx, failed))

	_, err := s.store.GetLatestSuccessful(ctx, entryID, id.CardTypeTDAC)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	list, err := s.store.ListByEntryInfo(ctx, entryID)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *CardStoreSuite) TestDeleteAllForUserIsScoped() {
	ctx := context.Background()
	mine := id.NewUserID()
	theirs := id.NewUserID()

	s.Require().NoError(s.store.Save(ctx, s.newSuccessfulCard(id.NewEntryInfoID(), mine, "TDAC-0001")))
	s.Require().NoError(s.store.Save(ctx, s.newSuccessfulCard(id.NewEntryInfoID(), theirs, "TDAC-0002")))

	s.Require().NoError(s.store.DeleteAllForUser(ctx, mine))

	gone, err := s.store.ListByUser(ctx, mine)
	s.Require().NoError(err)
	s.Empty(gone)

	kept, err := s.store.ListByUser(ctx, theirs)
	s.Require().NoError(err)
	s.Len(kept, 1)
}
