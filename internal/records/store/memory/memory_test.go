package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tripsecretary/internal/records/models"
	"tripsecretary/internal/records/store/memory"
	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx  context.Context
	now  time.Time
	user id.UserID
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.user = id.NewUserID()
}

func (s *MemoryStoreSuite) newPassport() *models.Passport {
	p := models.NewPassport(s.user, s.now)
	p.PassportNumber = "E12345678"
	p.Surname = "ZHANG"
	return p
}

// =====================================================
// Passports
// =====================================================

func (s *MemoryStoreSuite) TestPassports() {
	store := memory.NewPassportStore()

	s.Run("save and reload", func() {
		p := s.newPassport()
		s.Require().NoError(store.Save(s.ctx, p))

		got, err := store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal("E12345678", got.PassportNumber)
	})

	s.Run("missing passport yields not found", func() {
		_, err := store.FindByID(s.ctx, id.NewPassportID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned copy does not alias stored state", func() {
		p := s.newPassport()
		s.Require().NoError(store.Save(s.ctx, p))

		got, err := store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		got.Surname = "MUTATED"

		again, err := store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal("ZHANG", again.Surname)
	})
}

// Justification: the primary flag swap is the one multi-row record write; it
// must leave exactly one primary regardless of prior state.
func (s *MemoryStoreSuite) TestSetPrimary() {
	store := memory.NewPassportStore()
	first := s.newPassport()
	second := s.newPassport()
	s.Require().NoError(store.Save(s.ctx, first))
	s.Require().NoError(store.Save(s.ctx, second))

	s.Run("promotes target and demotes the rest", func() {
		s.Require().NoError(store.SetPrimary(s.ctx, s.user, first.ID))
		s.Require().NoError(store.SetPrimary(s.ctx, s.user, second.ID))

		all, err := store.ListByUser(s.ctx, s.user)
		s.Require().NoError(err)
		primaries := 0
		for _, p := range all {
			if p.IsPrimary {
				primaries++
				s.Equal(second.ID, p.ID)
			}
		}
		s.Equal(1, primaries)

		got, err := store.FindPrimary(s.ctx, s.user)
		s.Require().NoError(err)
		s.Equal(second.ID, got.ID)
	})

	s.Run("rejects passports of other users", func() {
		stranger := s.newPassport()
		stranger.UserID = id.NewUserID()
		s.Require().NoError(store.Save(s.ctx, stranger))

		err := store.SetPrimary(s.ctx, s.user, stranger.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// =====================================================
// Personal info singleton
// =====================================================

func (s *MemoryStoreSuite) TestPersonalInfo() {
	store := memory.NewPersonalInfoStore()

	s.Run("save keyed by user overwrites", func() {
		p := models.NewPersonalInfo(s.user, s.now)
		p.Email = "a@example.com"
		s.Require().NoError(store.Save(s.ctx, p))

		p.Email = "b@example.com"
		s.Require().NoError(store.Save(s.ctx, p))

		got, err := store.FindByUser(s.ctx, s.user)
		s.Require().NoError(err)
		s.Equal("b@example.com", got.Email)
	})

	s.Run("absent user yields not found", func() {
		_, err := store.FindByUser(s.ctx, id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// =====================================================
// Entry info aggregates
// =====================================================

func (s *MemoryStoreSuite) TestEntryInfo() {
	store := memory.NewEntryInfoStore()

	s.Run("nested maps are copied", func() {
		e := models.NewEntryInfo(s.user, "TH", s.now)
		e.Documents["passport"] = models.DocumentState{Uploaded: true, Ref: "obj/1"}
		s.Require().NoError(store.Save(s.ctx, e))

		got, err := store.FindByUserAndDestination(s.ctx, s.user, "TH")
		s.Require().NoError(err)
		got.Documents["passport"] = models.DocumentState{}

		again, err := store.FindByID(s.ctx, e.ID)
		s.Require().NoError(err)
		s.True(again.Documents["passport"].Uploaded)
	})
}

// =====================================================
// Account erasure
// =====================================================

func (s *MemoryStoreSuite) TestDeleteAllForUser() {
	passports := memory.NewPassportStore()
	funds := memory.NewFundItemStore()

	other := id.NewUserID()
	mine := s.newPassport()
	theirs := s.newPassport()
	theirs.UserID = other
	s.Require().NoError(passports.Save(s.ctx, mine))
	s.Require().NoError(passports.Save(s.ctx, theirs))

	fund := models.NewFundItem(s.user, id.FundTypeCash, s.now)
	s.Require().NoError(funds.Save(s.ctx, fund))

	s.Require().NoError(passports.DeleteAllForUser(s.ctx, s.user))
	s.Require().NoError(funds.DeleteAllForUser(s.ctx, s.user))

	_, err := passports.FindByID(s.ctx, mine.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// Other users' records survive.
	got, err := passports.FindByID(s.ctx, theirs.ID)
	s.Require().NoError(err)
	s.Equal(other, got.UserID)

	items, err := funds.ListByUser(s.ctx, s.user)
	s.Require().NoError(err)
	s.Empty(items)
}
