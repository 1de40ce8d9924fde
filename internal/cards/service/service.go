// Package service implements the digital arrival card submission engine.
//
// Every call to the remote authority is recorded as its own attempt; a new
// success supersedes the previous one for the same (entry, card type) so
// exactly one card is ever authoritative. Failed attempts never disturb an
// existing success.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tripsecretary/internal/cards/events"
	"tripsecretary/internal/cards/issuer"
	"tripsecretary/internal/cards/models"
	"tripsecretary/internal/cards/store"
	recordmodels "tripsecretary/internal/records/models"
	recordstore "tripsecretary/internal/records/store"
	id "tripsecretary/pkg/domain"
	dErrors "tripsecretary/pkg/domain-errors"
	"tripsecretary/pkg/platform/audit"
	"tripsecretary/pkg/platform/sentinel"
)

const supersededReason = "replaced by newer successful submission"

// Auditor records compliance events. The audit publisher satisfies it.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// FormFlusher forces pending debounced form writes to disk before the
// submission snapshot is assembled. The records service satisfies it.
type FormFlusher interface {
	FlushAllForms(ctx context.Context, userID id.UserID) error
}

// Counters is the metrics surface the engine reports to.
type Counters interface {
	CardSubmitted(cardType, status string)
	CardSuperseded()
}

// txRunner is implemented by stores that can join the supersede and the new
// success in one transaction. The memory store applies writes under a single
// lock instead.
type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service coordinates submission attempts, supersede chaining and history.
type Service struct {
	cards   store.CardStore
	records recordstore.Stores
	issuer  issuer.Client

	flusher FormFlusher
	auditor Auditor
	events  events.Publisher
	metrics Counters
	logger  *slog.Logger
	clock   func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithFormFlusher flushes pending form saves before each submission.
func WithFormFlusher(f FormFlusher) Option {
	return func(s *Service) { s.flusher = f }
}

// WithAuditor records card lifecycle events on the audit trail.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithEventPublisher emits best-effort card events for downstream consumers.
func WithEventPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithCounters reports submission outcomes and supersede counts.
func WithCounters(c Counters) Option {
	return func(s *Service) { s.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock fixes time for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// New builds the submission engine.
func New(cards store.CardStore, records recordstore.Stores, issuerClient issuer.Client, opts ...Option) (*Service, error) {
	if cards == nil {
		return nil, errors.New("card store is required")
	}
	if records.EntryInfo == nil || records.Passports == nil || records.PersonalInfo == nil || records.TravelInfo == nil {
		return nil, errors.New("record stores are required")
	}
	if issuerClient == nil {
		return nil, errors.New("issuer client is required")
	}
	s := &Service{
		cards:   cards,
		records: records,
		issuer:  issuerClient,
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit sends the traveler's entry data to the authority for the given card
// type and returns the resulting attempt record. A failed authority call
// still returns the persisted attempt (Status=failed) with a nil error;
// errors are reserved for validation and storage problems.
func (s *Service) Submit(ctx context.Context, userID id.UserID, entryInfoID id.EntryInfoID, cardType id.CardType, method id.SubmissionMethod) (*models.DigitalArrivalCard, error) {
	if !cardType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unsupported card type %q", string(cardType))
	}
	if method == "" {
		method = id.SubmissionMethodAPI
	}
	if !method.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unsupported submission method %q", string(method))
	}

	// Pending edits must land before the snapshot is read.
	if s.flusher != nil {
		if err := s.flusher.FlushAllForms(ctx, userID); err != nil {
			return nil, err
		}
	}

	entry, err := s.entryFor(ctx, userID, entryInfoID)
	if err != nil {
		return nil, err
	}

	card := models.NewSubmissionAttempt(entryInfoID, userID, cardType, entry.DestinationID, method, s.clock())
	if err := s.cards.Save(ctx, card); err != nil {
		return nil, err
	}

	req := &issuer.Request{
		CardType:      cardType,
		DestinationID: entry.DestinationID,
		Traveler:      s.travelerSnapshot(ctx, userID, entry.DestinationID),
	}

	start := time.Now()
	res, callErr := s.issuer.Submit(ctx, req)
	elapsedMs := time.Since(start).Milliseconds()

	if callErr != nil {
		return s.finishFailed(ctx, card, callErr, elapsedMs)
	}
	return s.finishSucceeded(ctx, card, res, elapsedMs)
}

func (s *Service) finishSucceeded(ctx context.Context, card *models.DigitalArrivalCard, res *issuer.Result, elapsedMs int64) (*models.DigitalArrivalCard, error) {
	for i := 1; i < res.Attempts; i++ {
		card.RecordRetry()
	}
	blob, err := models.EncodeAPIResponse(models.APIResponse{
		StatusCode: res.StatusCode,
		Body:       res.RawBody,
		ReceivedAt: s.clock(),
	})
	if err != nil {
		return nil, err
	}
	if err := card.MarkSucceeded(res.ArrivalCardNumber, res.QRRef, res.PDFRef, blob, elapsedMs); err != nil {
		return nil, err
	}

	var previous *models.DigitalArrivalCard
	err = s.withinTx(ctx, func(ctx context.Context) error {
		prev, err := s.cards.GetLatestSuccessful(ctx, card.EntryInfoID, card.CardType)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		// Supersede before the new success lands so at most one
		// authoritative card exists at every point in between.
		if prev != nil && prev.ID != card.ID {
			prev.MarkAsSuperseded(card.ID, supersededReason, s.clock())
			if err := s.cards.Save(ctx, prev); err != nil {
				return err
			}
			previous = prev
		}
		return s.cards.Save(ctx, card)
	})
	if err != nil {
		return nil, err
	}

	s.count(card.CardType, "success")
	s.audit(ctx, audit.Event{
		UserID:     card.UserID,
		Action:     string(audit.EventCardSubmitted),
		ResourceID: card.ID.String(),
		Outcome:    string(card.Status),
	})
	s.emit(ctx, events.FromCard(events.TypeCardSubmitted, card, s.clock()))

	if previous != nil {
		if s.metrics != nil {
			s.metrics.CardSuperseded()
		}
		s.audit(ctx, audit.Event{
			UserID:     previous.UserID,
			Action:     string(audit.EventCardSuperseded),
			ResourceID: previous.ID.String(),
			Reason:     supersededReason,
		})
		s.emit(ctx, events.FromCard(events.TypeCardSuperseded, previous, s.clock()))
	}
	return card, nil
}

func (s *Service) finishFailed(ctx context.Context, card *models.DigitalArrivalCard, callErr error, elapsedMs int64) (*models.DigitalArrivalCard, error) {
	var blob string
	details := callErr.Error()

	var ce *issuer.CallError
	if errors.As(callErr, &ce) {
		for i := 1; i < ce.Attempts; i++ {
			card.RecordRetry()
		}
		if ce.StatusCode != 0 {
			encoded, err := models.EncodeAPIResponse(models.APIResponse{
				StatusCode: ce.StatusCode,
				Body:       ce.Body,
				ReceivedAt: s.clock(),
			})
			if err == nil {
				blob = encoded
			}
		}
	}

	if err := card.MarkFailed(details, blob, elapsedMs); err != nil {
		return nil, err
	}
	if err := s.cards.Save(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Warn("card submission failed",
		"card_id", card.ID.String(),
		"card_type", string(card.CardType),
		"retries", card.RetryCount,
		"error", callErr,
	)
	s.count(card.CardType, "failed")
	s.audit(ctx, audit.Event{
		UserID:     card.UserID,
		Action:     string(audit.EventCardFailed),
		ResourceID: card.ID.String(),
		Outcome:    string(card.Status),
		Reason:     details,
	})
	s.emit(ctx, events.FromCard(events.TypeCardFailed, card, s.clock()))
	return card, nil
}

// LatestCard returns the authoritative card for the entry and card type.
func (s *Service) LatestCard(ctx context.Context, userID id.UserID, entryInfoID id.EntryInfoID, cardType id.CardType) (*models.DigitalArrivalCard, error) {
	if _, err := s.entryFor(ctx, userID, entryInfoID); err != nil {
		return nil, err
	}
	card, err := s.cards.GetLatestSuccessful(ctx, entryInfoID, cardType)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no successful card for entry")
		}
		return nil, err
	}
	return card, nil
}

// History returns every attempt for the entry, oldest first, superseded
// records included.
func (s *Service) History(ctx context.Context, userID id.UserID, entryInfoID id.EntryInfoID) ([]*models.DigitalArrivalCard, error) {
	if _, err := s.entryFor(ctx, userID, entryInfoID); err != nil {
		return nil, err
	}
	return s.cards.ListByEntryInfo(ctx, entryInfoID)
}

// ListCards returns every attempt the user has made across entries.
func (s *Service) ListCards(ctx context.Context, userID id.UserID) ([]*models.DigitalArrivalCard, error) {
	return s.cards.ListByUser(ctx, userID)
}

// DeleteAllForUser erases the user's card history.
func (s *Service) DeleteAllForUser(ctx context.Context, userID id.UserID) error {
	if err := s.cards.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}
	s.audit(ctx, audit.Event{
		UserID: userID,
		Action: string(audit.EventUserDataDeleted),
		Reason: "card history",
	})
	return nil
}

// entryFor loads the entry and verifies ownership.
func (s *Service) entryFor(ctx context.Context, userID id.UserID, entryInfoID id.EntryInfoID) (*recordmodels.EntryInfo, error) {
	entry, err := s.records.EntryInfo.FindByID(ctx, entryInfoID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entry not found")
		}
		return nil, err
	}
	if entry.UserID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "entry not found")
	}
	return entry, nil
}

// travelerSnapshot flattens the user's saved records into the payload the
// authority receives. Missing records are simply absent fields; the
// authority decides what is mandatory.
func (s *Service) travelerSnapshot(ctx context.Context, userID id.UserID, destinationID string) map[string]string {
	traveler := make(map[string]string)

	if passport, err := s.records.Passports.FindPrimary(ctx, userID); err == nil {
		merge(traveler, passport.FieldsMap())
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.Warn("load primary passport for submission", "error", err)
	}
	if info, err := s.records.PersonalInfo.FindByUser(ctx, userID); err == nil {
		merge(traveler, info.FieldsMap())
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.Warn("load personal info for submission", "error", err)
	}
	if travel, err := s.records.TravelInfo.FindByUserAndDestination(ctx, userID, destinationID); err == nil {
		merge(traveler, travel.FieldsMap())
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.Warn("load travel info for submission", "error", err)
	}
	return traveler
}

func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if runner, ok := s.cards.(txRunner); ok {
		return runner.WithinTx(ctx, fn)
	}
	return fn(ctx)
}

func (s *Service) count(cardType id.CardType, status string) {
	if s.metrics != nil {
		s.metrics.CardSubmitted(string(cardType), status)
	}
}

func (s *Service) audit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Timestamp = s.clock()
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if s.events != nil {
		s.events.Emit(ctx, ev)
	}
}

func merge(dst, src map[string]string) {
	for k, v := range src {
		if v != "" {
			dst[k] = v
		}
	}
}
