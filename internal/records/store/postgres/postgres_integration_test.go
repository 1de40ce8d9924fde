//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tripsecretary/internal/records/models"
	"tripsecretary/internal/records/store/postgres"
	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/sentinel"
	"tripsecretary/pkg/testutil/containers"
)

type RecordStoresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer

	passports *postgres.PassportStore
	personal  *postgres.PersonalInfoStore
	funds     *postgres.FundItemStore
	travel    *postgres.TravelInfoStore
	entries   *postgres.EntryInfoStore
}

func TestRecordStoresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RecordStoresSuite))
}

func (s *RecordStoresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.passports = postgres.NewPassportStore(s.postgres.DB)
	s.personal = postgres.NewPersonalInfoStore(s.postgres.DB)
	s.funds = postgres.NewFundItemStore(s.postgres.DB)
	s.travel = postgres.NewTravelInfoStore(s.postgres.DB)
	s.entries = postgres.NewEntryInfoStore(s.postgres.DB)
}

func (s *RecordStoresSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"arrival_cards", "entry_info", "travel_info", "fund_items", "personal_info", "passports")
	s.Require().NoError(err)
}

func (s *RecordStoresSuite) newPassport(userID id.UserID, number string) *models.Passport {
	p := models.NewPassport(userID, time.Now())
	p.PassportNumber = number
	p.Surname = "NGUYEN"
	p.GivenNames = "MINH"
	p.Nationality = "VNM"
	return p
}

func (s *RecordStoresSuite) TestPassportRoundTrip() {
	ctx := context.Background()
	userID := id.NewUserID()

	p := s.newPassport(userID, "C1234567")
	s.Require().NoError(s.passports.Save(ctx, p))

	got, err := s.passports.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("C1234567", got.PassportNumber)
	s.Equal("NGUYEN", got.Surname)
	s.Equal(userID, got.UserID)

	// Save is an upsert keyed by ID.
	p.DateOfExpiry = "2030-01-15"
	s.Require().NoError(s.passports.Save(ctx, p))

	got, err = s.passports.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("2030-01-15", got.DateOfExpiry)

	list, err := s.passports.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Len(list, 1)
}

// TestSetPrimarySwapsAtomically verifies that promoting a passport demotes the
// previous primary in the same transaction, so the partial unique index on
// (user_id) WHERE is_primary never sees two primaries.
func (s *RecordStoresSuite) TestSetPrimarySwapsAtomically() {
	ctx := context.Background()
	userID := id.NewUserID()

	first := s.newPassport(userID, "C1111111")
	second := s.newPassport(userID, "C2222222")
	s.Require().NoError(s.passports.Save(ctx, first))
	s.Require().NoError(s.passports.Save(ctx, second))

	s.Require().NoError(s.passports.SetPrimary(ctx, userID, first.ID))
	primary, err := s.passports.FindPrimary(ctx, userID)
	s.Require().NoError(err)
	s.Equal(first.ID, primary.ID)

	s.Require().NoError(s.passports.SetPrimary(ctx, userID, second.ID))
	primary, err = s.passports.FindPrimary(ctx, userID)
	s.Require().NoError(err)
	s.Equal(second.ID, primary.ID)

	demoted, err := s.passports.FindByID(ctx, first.ID)
	s.Require().NoError(err)
	s.False(demoted.IsPrimary)
}

func (s *RecordStoresSuite) TestSetPrimaryUnknownPassport() {
	ctx := context.Background()
	err := s.passports.SetPrimary(ctx, id.NewUserID(), id.NewPassportID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RecordStoresSuite) TestPersonalInfoIsPerUserSingleton() {
	ctx := context.Background()
	userID := id.NewUserID()

	info := models.NewPersonalInfo(userID, time.Now())
	info.Email = "minh@example.com"
	s.Require().NoError(s.personal.Save(ctx, info))

	info.Email = "minh.updated@example.com"
	info.Occupation = "engineer"
	s.Require().NoError(s.personal.Save(ctx, info))

	got, err := s.personal.FindByUser(ctx, userID)
	s.Require().NoError(err)
	s.Equal("minh.updated@example.com", got.Email)
	s.Equal("engineer", got.Occupation)

	_, err = s.personal.FindByUser(ctx, id.NewUserID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RecordStoresSuite) TestTravelInfoKeyedByUserAndDestination() {
	ctx := context.Background()
	userID := id.NewUserID()
	now := time.Now()

	th := models.NewTravelInfo(userID, "TH", now)
	th.FlightNumber = "TG417"
	sg := models.NewTravelInfo(userID, "SG", now)
	sg.FlightNumber = "SQ705"
	s.Require().NoError(s.travel.Save(ctx, th))
	s.Require().NoError(s.travel.Save(ctx, sg))

	got, err := s.travel.FindByUserAndDestination(ctx, userID, "TH")
	s.Require().NoError(err)
	s.Equal("TG417", got.FlightNumber)

	list, err := s.travel.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *RecordStoresSuite) TestEntryInfoDocumentsSurviveRoundTrip() {
	ctx := context.Background()
	userID := id.NewUserID()

	entry := models.NewEntryInfo(userID, "TH", time.Now())
	entry.Documents["arrival_card"] = models.DocumentState{Uploaded: true, Ref: "blob://cards/1"}
	s.Require().NoError(s.entries.Save(ctx, entry))

	got, err := s.entries.FindByUserAndDestination(ctx, userID, "TH")
	s.Require().NoError(err)
	s.Equal(entry.ID, got.ID)
	s.Require().Contains(got.Documents, "arrival_card")
	s.True(got.Documents["arrival_card"].Uploaded)
	s.Equal("blob://cards/1", got.Documents["arrival_card"].Ref)
}

func (s *RecordStoresSuite) TestDeleteAllForUserIsScoped() {
	ctx := context.Background()
	userID := id.NewUserID()
	otherID := id.NewUserID()
	now := time.Now()

	s.Require().NoError(s.passports.Save(ctx, s.newPassport(userID, "C3333333")))
	s.Require().NoError(s.passports.Save(ctx, s.newPassport(otherID, "C4444444")))

	fund := models.NewFundItem(userID, id.FundTypeCash, now)
	fund.Amount = 2500
	fund.Currency = "USD"
	s.Require().NoError(s.funds.Save(ctx, fund))

	s.Require().NoError(s.passports.DeleteAllForUser(ctx, userID))
	s.Require().NoError(s.funds.DeleteAllForUser(ctx, userID))

	mine, err := s.passports.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Empty(mine)

	theirs, err := s.passports.ListByUser(ctx, otherID)
	s.Require().NoError(err)
	s.Len(theirs, 1)

	funds, err := s.funds.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Empty(funds)
}
