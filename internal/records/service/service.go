// Package service coordinates progressive form saves: interaction tracking,
// save filtering, merge-updates into records and debounced persistence.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tripsecretary/internal/forms/debounce"
	"tripsecretary/internal/forms/fieldstate"
	"tripsecretary/internal/forms/interaction"
	"tripsecretary/internal/forms/schema"
	"tripsecretary/internal/platform/metrics"
	"tripsecretary/internal/records/models"
	"tripsecretary/internal/records/store"
	id "tripsecretary/pkg/domain"
	dErrors "tripsecretary/pkg/domain-errors"
	"tripsecretary/pkg/platform/audit"
	"tripsecretary/pkg/platform/sentinel"
)

// Auditor records domain actions. Satisfied by the audit publisher.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the save pipeline for traveler records.
type Service struct {
	stores  store.Stores
	tracker *interaction.Tracker
	fields  *fieldstate.Manager
	saves   *debounce.Coordinator

	auditor Auditor
	metrics *metrics.Metrics
	logger  *slog.Logger
	clock   func() time.Time
}

type Option func(*Service)

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(stores store.Stores, tracker *interaction.Tracker, fields *fieldstate.Manager, saves *debounce.Coordinator, opts ...Option) (*Service, error) {
	if stores.Passports == nil || stores.PersonalInfo == nil || stores.FundItems == nil ||
		stores.TravelInfo == nil || stores.EntryInfo == nil {
		return nil, errors.New("service: all record stores are required")
	}
	if tracker == nil {
		return nil, errors.New("service: interaction tracker is required")
	}
	if fields == nil {
		return nil, errors.New("service: field state manager is required")
	}
	if saves == nil {
		return nil, errors.New("service: debounce coordinator is required")
	}
	s := &Service{
		stores:  stores,
		tracker: tracker,
		fields:  fields,
		saves:   saves,
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// formKey scopes debounce state per user per form.
func formKey(userID id.UserID, formID string) string {
	return userID.String() + ":" + formID
}

// ScheduleSave marks the edited fields as touched, then schedules a debounced
// write of the full form state. Later schedules for the same form replace
// earlier ones, so formState must be the complete current state, not a delta.
func (s *Service) ScheduleSave(ctx context.Context, userID id.UserID, formID string, formState map[string]string, edited []string) error {
	if _, ok := schema.ForForm(formID); !ok {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown form %q", formID)
	}
	if err := s.markEdited(ctx, userID, formID, formState, edited); err != nil {
		return err
	}

	state := cloneState(formState)
	s.saves.Schedule(formKey(userID, formID), func(ctx context.Context) error {
		return s.performSave(ctx, userID, formID, state)
	})
	return nil
}

// SaveNow persists immediately. Any pending debounced write for the form is
// flushed first so it cannot fire afterwards and clobber this save.
func (s *Service) SaveNow(ctx context.Context, userID id.UserID, formID string, formState map[string]string, edited []string) error {
	if _, ok := schema.ForForm(formID); !ok {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown form %q", formID)
	}
	if err := s.markEdited(ctx, userID, formID, formState, edited); err != nil {
		return err
	}
	if err := s.saves.Flush(ctx, formKey(userID, formID)); err != nil {
		return err
	}
	return s.performSave(ctx, userID, formID, cloneState(formState))
}

// ClearFieldState resets a field to untouched after the client clears it
// programmatically rather than by user edit. Save filtering treats the value
// as a default again afterwards.
func (s *Service) ClearFieldState(ctx context.Context, userID id.UserID, formID, field string) error {
	sc, ok := schema.ForForm(formID)
	if !ok {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown form %q", formID)
	}
	if !sc.Has(field) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown field %q for form %s", field, formID)
	}
	return s.tracker.ClearField(ctx, userID, formID, field)
}

// FlushForm runs any pending write and persists tracker state. Called when a
// form is torn down.
func (s *Service) FlushForm(ctx context.Context, userID id.UserID, formID string) error {
	if err := s.saves.Flush(ctx, formKey(userID, formID)); err != nil {
		return err
	}
	return s.tracker.Flush(ctx, userID, formID)
}

// ResetForm drops the pending write and all touched-field state for the form.
// Persisted records are untouched.
func (s *Service) ResetForm(ctx context.Context, userID id.UserID, formID string) error {
	if _, ok := schema.ForForm(formID); !ok {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown form %q", formID)
	}
	s.saves.Cancel(formKey(userID, formID))
	if err := s.tracker.ResetForm(ctx, userID, formID); err != nil {
		return err
	}
	s.audit(ctx, audit.Event{
		UserID: userID,
		Action: string(audit.EventFormReset),
		FormID: formID,
	})
	return nil
}

func (s *Service) markEdited(ctx context.Context, userID id.UserID, formID string, formState map[string]string, edited []string) error {
	sc, ok := schema.ForForm(formID)
	if !ok {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown form %q", formID)
	}
	for _, field := range edited {
		if !sc.Has(field) {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown field %q for form %s", field, formID)
		}
		if err := s.tracker.MarkFieldModified(ctx, userID, formID, field, formState[field]); err != nil {
			return err
		}
	}
	return nil
}

// performSave is the single write path for a form: load or create the target
// record, seed tracker state from legacy data, filter untouched defaults out
// of the payload, merge and persist.
func (s *Service) performSave(ctx context.Context, userID id.UserID, formID string, formState map[string]string) error {
	var err error
	switch formID {
	case schema.FormPassport:
		err = s.savePassport(ctx, userID, formState)
	case schema.FormPersonalInfo:
		err = s.savePersonalInfo(ctx, userID, formState)
	case schema.FormFunds:
		err = s.saveFundItem(ctx, userID, formState)
	case schema.FormTravelInfo:
		err = s.saveTravelInfo(ctx, userID, formState)
	default:
		err = dErrors.Newf(dErrors.CodeInvalidInput, "unknown form %q", formID)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if s.metrics != nil {
		s.metrics.FormSaves.WithLabelValues(formID, outcome).Inc()
	}
	if err == nil {
		s.audit(ctx, audit.Event{
			UserID:  userID,
			Action:  string(audit.EventFormSaved),
			FormID:  formID,
			Outcome: outcome,
		})
	}
	return err
}

func (s *Service) savePassport(ctx context.Context, userID id.UserID, formState map[string]string) error {
	passport, err := s.targetPassport(ctx, userID, formState["id"])
	if err != nil {
		return err
	}
	filtered := s.fields.FilterSaveableFields(ctx, userID, schema.FormPassport, formState)
	if err := passport.MergeUpdates(filtered, models.MergeOptions{Now: s.clock()}); err != nil {
		return err
	}
	return s.stores.Passports.Save(ctx, passport)
}

// targetPassport resolves which passport a form save lands on: an explicit
// ID from the payload, else the primary, else a fresh record.
func (s *Service) targetPassport(ctx context.Context, userID id.UserID, rawID string) (*models.Passport, error) {
	if rawID != "" {
		passportID, err := id.ParsePassportID(rawID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid passport id")
		}
		passport, err := s.stores.Passports.FindByID(ctx, passportID)
		if err != nil {
			return nil, s.notFoundOr(err, "passport")
		}
		if passport.UserID != userID {
			return nil, dErrors.New(dErrors.CodeNotFound, "passport not found")
		}
		if err := s.seedTouched(ctx, userID, schema.FormPassport, passport.FieldsMap()); err != nil {
			return nil, err
		}
		return passport, nil
	}

	passport, err := s.stores.Passports.FindPrimary(ctx, userID)
	switch {
	case err == nil:
		if err := s.seedTouched(ctx, userID, schema.FormPassport, passport.FieldsMap()); err != nil {
			return nil, err
		}
		return passport, nil
	case errors.Is(err, sentinel.ErrNotFound):
		fresh := models.NewPassport(userID, s.clock())
		fresh.IsPrimary = true
		return fresh, nil
	default:
		return nil, err
	}
}

func (s *Service) savePersonalInfo(ctx context.Context, userID id.UserID, formState map[string]string) error {
	info, err := s.stores.PersonalInfo.FindByUser(ctx, userID)
	switch {
	case err == nil:
		if err := s.seedTouched(ctx, userID, schema.FormPersonalInfo, info.FieldsMap()); err != nil {
			return err
		}
	case errors.Is(err, sentinel.ErrNotFound):
		info = models.NewPersonalInfo(userID, s.clock())
	default:
		return err
	}

	filtered := s.fields.FilterSaveableFields(ctx, userID, schema.FormPersonalInfo, formState)
	if err := info.MergeUpdates(filtered, models.MergeOptions{Now: s.clock()}); err != nil {
		return err
	}
	return s.stores.PersonalInfo.Save(ctx, info)
}

func (s *Service) saveFundItem(ctx context.Context, userID id.UserID, formState map[string]string) error {
	var item *models.FundItem
	if rawID := formState["id"]; rawID != "" {
		fundItemID, err := id.ParseFundItemID(rawID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid fund item id")
		}
		item, err = s.stores.FundItems.FindByID(ctx, fundItemID)
		if err != nil {
			return s.notFoundOr(err, "fund item")
		}
		if item.UserID != userID {
			return dErrors.New(dErrors.CodeNotFound, "fund item not found")
		}
		if err := s.seedTouched(ctx, userID, schema.FormFunds, item.FieldsMap()); err != nil {
			return err
		}
	} else {
		fundType, err := id.ParseFundType(formState["type"])
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid fund type")
		}
		item = models.NewFundItem(userID, fundType, s.clock())
	}

	filtered := s.fields.FilterSaveableFields(ctx, userID, schema.FormFunds, formState)
	if err := item.MergeUpdates(filtered, models.MergeOptions{Now: s.clock()}); err != nil {
		return err
	}
	return s.stores.FundItems.Save(ctx, item)
}

func (s *Service) saveTravelInfo(ctx context.Context, userID id.UserID, formState map[string]string) error {
	destinationID := formState["destination_id"]
	if destinationID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "destination_id is required")
	}

	info, err := s.stores.TravelInfo.FindByUserAndDestination(ctx, userID, destinationID)
	switch {
	case err == nil:
		if err := s.seedTouched(ctx, userID, schema.FormTravelInfo, info.FieldsMap()); err != nil {
			return err
		}
	case errors.Is(err, sentinel.ErrNotFound):
		info = models.NewTravelInfo(userID, destinationID, s.clock())
	default:
		return err
	}

	filtered := s.fields.FilterSaveableFields(ctx, userID, schema.FormTravelInfo, formState)
	if err := info.MergeUpdates(filtered, models.MergeOptions{Now: s.clock()}); err != nil {
		return err
	}
	return s.stores.TravelInfo.Save(ctx, info)
}

// seedTouched runs the one-time touched-state migration from an existing
// record before any filtering decision depends on it.
func (s *Service) seedTouched(ctx context.Context, userID id.UserID, formID string, fields map[string]string) error {
	return s.tracker.InitializeFromExistingData(ctx, userID, formID, fields)
}

func (s *Service) notFoundOr(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	return err
}

func (s *Service) audit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}

func cloneState(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
