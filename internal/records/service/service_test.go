package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tripsecretary/internal/forms/debounce"
	"tripsecretary/internal/forms/fieldstate"
	"tripsecretary/internal/forms/interaction"
	interactionstore "tripsecretary/internal/forms/interaction/store"
	"tripsecretary/internal/forms/schema"
	"tripsecretary/internal/records/models"
	"tripsecretary/internal/records/service"
	"tripsecretary/internal/records/store"
	"tripsecretary/internal/records/store/memory"
	id "tripsecretary/pkg/domain"
	dErrors "tripsecretary/pkg/domain-errors"
	"tripsecretary/pkg/platform/audit"
	"tripsecretary/pkg/platform/audit/publisher"
	auditmemory "tripsecretary/pkg/platform/audit/store/memory"
)

const debounceWindow = 20 * time.Millisecond

type ServiceSuite struct {
	suite.Suite
	ctx    context.Context
	now    time.Time
	user   id.UserID
	stores store.Stores
	audits *auditmemory.InMemoryStore
	svc    *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.user = id.NewUserID()

	s.stores = store.Stores{
		Passports:    memory.NewPassportStore(),
		PersonalInfo: memory.NewPersonalInfoStore(),
		FundItems:    memory.NewFundItemStore(),
		TravelInfo:   memory.NewTravelInfoStore(),
		EntryInfo:    memory.NewEntryInfoStore(),
	}

	tracker, err := interaction.NewTracker(interactionstore.NewMemory(),
		interaction.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)

	fields, err := fieldstate.NewManager(tracker)
	s.Require().NoError(err)

	s.audits = auditmemory.NewInMemoryStore()

	s.svc, err = service.New(s.stores, tracker, fields, debounce.New(debounceWindow),
		service.WithClock(func() time.Time { return s.now }),
		service.WithAuditor(publisher.NewPublisher(s.audits)),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) seedPersonalInfo(email string) *models.PersonalInfo {
	info := models.NewPersonalInfo(s.user, s.now.Add(-24*time.Hour))
	info.Email = email
	s.Require().NoError(s.stores.PersonalInfo.Save(s.ctx, info))
	return info
}

// =====================================================
// Save filtering through the full pipeline
// =====================================================

// Justification: the defining scenario of the save pipeline. A legacy record
// has email but no touched-state; the user edits only occupation. The save
// must keep the migrated email, apply the edit, and drop untouched defaults.
func (s *ServiceSuite) TestSaveNowPreservesLegacyAndAppliesEdit() {
	s.seedPersonalInfo("user@example.com")

	formState := map[string]string{
		"email":              "user@example.com",
		"phone":              "",
		"phone_country_code": "+86",
		"home_address":       "",
		"occupation":         "Engineer",
		"employer":           "",
		"annual_income_band": "PREFER_NOT_TO_SAY",
	}
	err := s.svc.SaveNow(s.ctx, s.user, schema.FormPersonalInfo, formState, []string{"occupation"})
	s.Require().NoError(err)

	got, err := s.svc.GetPersonalInfo(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal("user@example.com", got.Email)
	s.Equal("Engineer", got.Occupation)
	s.Empty(got.Phone)
	// Untouched sentinels never reach storage.
	s.Empty(got.PhoneCountryCode)
	s.Equal(s.now, got.UpdatedAt)
}

func (s *ServiceSuite) TestSaveAllEmptyPayloadOnlyRefreshesTimestamp() {
	seeded := s.seedPersonalInfo("keep@example.com")

	err := s.svc.SaveNow(s.ctx, s.user, schema.FormPersonalInfo, map[string]string{}, nil)
	s.Require().NoError(err)

	got, err := s.svc.GetPersonalInfo(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal("keep@example.com", got.Email)
	s.Equal(seeded.ID, got.ID)
	s.Equal(s.now, got.UpdatedAt)
}

func (s *ServiceSuite) TestSaveRejectsUnknownFormAndField() {
	err := s.svc.SaveNow(s.ctx, s.user, "visa_form", map[string]string{}, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = s.svc.ScheduleSave(s.ctx, s.user, schema.FormPersonalInfo,
		map[string]string{"favourite_color": "blue"}, []string{"favourite_color"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestValidationFailureDoesNotPersist() {
	s.seedPersonalInfo("good@example.com")

	err := s.svc.SaveNow(s.ctx, s.user, schema.FormPersonalInfo,
		map[string]string{"email": "not-an-email"}, []string{"email"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	got, err := s.svc.GetPersonalInfo(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal("good@example.com", got.Email)
}

// =====================================================
// Debounce behavior through the service
// =====================================================

func (s *ServiceSuite) TestScheduleCoalescesToLatestState() {
	for _, occupation := range []string{"Eng", "Engin", "Engineer"} {
		err := s.svc.ScheduleSave(s.ctx, s.user, schema.FormPersonalInfo,
			map[string]string{"occupation": occupation, "email": "a@b.com"},
			[]string{"occupation", "email"})
		s.Require().NoError(err)
	}

	s.Require().Eventually(func() bool {
		got, err := s.svc.GetPersonalInfo(s.ctx, s.user)
		return err == nil && got.Occupation == "Engineer"
	}, time.Second, 5*time.Millisecond)

	got, err := s.svc.GetPersonalInfo(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal("a@b.com", got.Email)
}

// Justification: a stale debounced write firing after an explicit save would
// silently clobber it; SaveNow must settle the pending write first.
func (s *ServiceSuite) TestSaveNowFlushesPendingScheduledWrite() {
	err := s.svc.ScheduleSave(s.ctx, s.user, schema.FormPersonalInfo,
		map[string]string{"occupation": "Old"}, []string{"occupation"})
	s.Require().NoError(err)

	err = s.svc.SaveNow(s.ctx, s.user, schema.FormPersonalInfo,
		map[string]string{"occupation": "New"}, []string{"occupation"})
	s.Require().NoError(err)

	// Wait past the debounce window: nothing may fire afterwards.
	time.Sleep(3 * debounceWindow)

	got, err := s.svc.GetPersonalInfo(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal("New", got.Occupation)
}

func (s *ServiceSuite) TestResetFormDropsPendingWriteAndTouchedState() {
	s.seedPersonalInfo("keep@example.com")
	err := s.svc.ScheduleSave(s.ctx, s.user, schema.FormPersonalInfo,
		map[string]string{"occupation": "Pending"}, []string{"occupation"})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.ResetForm(s.ctx, s.user, schema.FormPersonalInfo))
	time.Sleep(3 * debounceWindow)

	got, err := s.svc.GetPersonalInfo(s.ctx, s.user)
	s.Require().NoError(err)
	s.Empty(got.Occupation)
	s.Equal("keep@example.com", got.Email)
}

func (s *ServiceSuite) TestClearFieldStateRestoresDefaultFiltering() {
	err := s.svc.SaveNow(s.ctx, s.user, schema.FormPersonalInfo,
		map[string]string{"occupation": "Engineer"}, []string{"occupation"})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.ClearFieldState(s.ctx, s.user, schema.FormPersonalInfo, "occupation"))

	// Occupation rides along untouched, so it must be filtered out again.
	err = s.svc.SaveNow(s.ctx, s.user, schema.FormPersonalInfo,
		map[string]string{"occupation": "Prefill", "email": "a@x.com"}, []string{"email"})
	s.Require().NoError(err)

	got, err := s.svc.GetPersonalInfo(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal("Engineer", got.Occupation)
	s.Equal("a@x.com", got.Email)
}

func (s *ServiceSuite) TestClearFieldStateRejectsUnknownFormAndField() {
	err := s.svc.ClearFieldState(s.ctx, s.user, "no_such_form", "email")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = s.svc.ClearFieldState(s.ctx, s.user, schema.FormPersonalInfo, "no_such_field")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// =====================================================
// Passports
// =====================================================

func (s *ServiceSuite) TestPassportSaveCreatesPrimaryThenSetPrimarySwaps() {
	err := s.svc.SaveNow(s.ctx, s.user, schema.FormPassport,
		map[string]string{"passport_number": "E11111111", "surname": "ZHANG"},
		[]string{"passport_number", "surname"})
	s.Require().NoError(err)

	first, err := s.stores.Passports.FindPrimary(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal("E11111111", first.PassportNumber)

	second := models.NewPassport(s.user, s.now)
	second.PassportNumber = "E22222222"
	s.Require().NoError(s.stores.Passports.Save(s.ctx, second))

	// Pending passport edit must settle before the swap.
	err = s.svc.ScheduleSave(s.ctx, s.user, schema.FormPassport,
		map[string]string{"id": first.ID.String(), "surname": "ZHANG-WEI"},
		[]string{"surname"})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.SetPrimaryPassport(s.ctx, s.user, second.ID))

	primary, err := s.stores.Passports.FindPrimary(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal(second.ID, primary.ID)

	flushed, err := s.svc.GetPassport(s.ctx, s.user, first.ID)
	s.Require().NoError(err)
	s.Equal("ZHANG-WEI", flushed.Surname)
	s.False(flushed.IsPrimary)
}

func (s *ServiceSuite) TestGetPassportScopedToOwner() {
	stranger := models.NewPassport(id.NewUserID(), s.now)
	s.Require().NoError(s.stores.Passports.Save(s.ctx, stranger))

	_, err := s.svc.GetPassport(s.ctx, s.user, stranger.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =====================================================
// Completion
// =====================================================

func (s *ServiceSuite) TestCompletionCountsMigratedAndTouchedFields() {
	s.seedPersonalInfo("user@example.com")
	err := s.svc.SaveNow(s.ctx, s.user, schema.FormPersonalInfo,
		map[string]string{"occupation": "Engineer"}, []string{"occupation"})
	s.Require().NoError(err)

	summary, err := s.svc.Completion(s.ctx, s.user, "TH")
	s.Require().NoError(err)

	personal := summary.PerForm[schema.FormPersonalInfo]
	s.Equal(1, personal.PerSection["contact"].Filled)
	s.Equal(1, personal.PerSection["work"].Filled)
	s.GreaterOrEqual(summary.Total, 0)
	s.LessOrEqual(summary.Total, 100)

	// The aggregate is persisted with section statuses.
	entry, err := s.svc.EntrySummary(s.ctx, s.user, "TH")
	s.Require().NoError(err)
	s.Equal(models.SectionPartial, entry.DisplayStatus[schema.FormPersonalInfo].Status)
	s.Equal(models.SectionMissing, entry.DisplayStatus[schema.FormPassport].Status)
}

// =====================================================
// Account erasure
// =====================================================

func (s *ServiceSuite) TestDeleteAllUserDataCascades() {
	s.seedPersonalInfo("bye@example.com")
	err := s.svc.SaveNow(s.ctx, s.user, schema.FormPassport,
		map[string]string{"passport_number": "E1"}, []string{"passport_number"})
	s.Require().NoError(err)
	_, err = s.svc.Completion(s.ctx, s.user, "TH")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.DeleteAllUserData(s.ctx, s.user))

	_, err = s.svc.GetPersonalInfo(s.ctx, s.user)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	passports, err := s.svc.ListPassports(s.ctx, s.user)
	s.Require().NoError(err)
	s.Empty(passports)
	entries, err := s.svc.ListEntries(s.ctx, s.user)
	s.Require().NoError(err)
	s.Empty(entries)

	events, err := s.audits.ListByUser(s.ctx, s.user)
	s.Require().NoError(err)
	var sawDeletion bool
	for _, e := range events {
		if e.Action == string(audit.EventUserDataDeleted) {
			sawDeletion = true
		}
	}
	s.True(sawDeletion)
}
