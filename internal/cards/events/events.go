// Package events publishes card lifecycle events for downstream consumers
// (notification fan-out, analytics). Publishing is fail-open: losing an
// event must never fail the business write, so implementations log and
// swallow delivery errors. The compliance audit trail takes the fail-closed
// outbox path instead; this stream is best-effort by contract.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tripsecretary/internal/cards/models"
	"tripsecretary/internal/platform/kafka/producer"
)

// Event names on the wire.
const (
	TypeCardSubmitted  = "card.submitted"
	TypeCardFailed     = "card.failed"
	TypeCardSuperseded = "card.superseded"
)

// Event is the wire payload for one card lifecycle change.
type Event struct {
	Type              string    `json:"type"`
	CardID            string    `json:"card_id"`
	EntryInfoID       string    `json:"entry_info_id"`
	UserID            string    `json:"user_id"`
	CardType          string    `json:"card_type"`
	DestinationID     string    `json:"destination_id"`
	Status            string    `json:"status"`
	ArrivalCardNumber string    `json:"arrival_card_number,omitempty"`
	SupersededBy      string    `json:"superseded_by,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// FromCard builds an event of the given type from a card's current state.
func FromCard(eventType string, card *models.DigitalArrivalCard, occurredAt time.Time) Event {
	ev := Event{
		Type:              eventType,
		CardID:            card.ID.String(),
		EntryInfoID:       card.EntryInfoID.String(),
		UserID:            card.UserID.String(),
		CardType:          string(card.CardType),
		DestinationID:     card.DestinationID,
		Status:            string(card.Status),
		ArrivalCardNumber: card.ArrivalCardNumber,
		OccurredAt:        occurredAt,
	}
	if eventType == TypeCardSuperseded {
		ev.SupersededBy = card.SupersededBy.String()
	}
	return ev
}

// Publisher emits card lifecycle events. Implementations must not fail the
// caller: Emit has no error return.
type Publisher interface {
	Emit(ctx context.Context, ev Event)
}

// KafkaPublisher publishes events to a Kafka topic, keyed by user so one
// traveler's events stay ordered within a partition.
type KafkaPublisher struct {
	producer *producer.Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher wires a publisher onto an existing producer.
func NewKafkaPublisher(p *producer.Producer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{producer: p, topic: topic, logger: logger}
}

// Emit publishes the event. Delivery failures are logged and dropped.
func (k *KafkaPublisher) Emit(ctx context.Context, ev Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		k.logger.Error("encode card event", "type", ev.Type, "card_id", ev.CardID, "error", err)
		return
	}
	msg := &producer.Message{
		Topic: k.topic,
		Key:   []byte(ev.UserID),
		Value: value,
		Headers: map[string]string{
			"event_type": ev.Type,
			"card_type":  ev.CardType,
		},
	}
	if err := k.producer.Produce(ctx, msg); err != nil {
		k.logger.Warn("card event dropped", "type", ev.Type, "card_id", ev.CardID, "error", err)
	}
}

// LogPublisher writes each event as a structured log line. It backs
// deployments without Kafka brokers so the event stream is still visible.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (l *LogPublisher) Emit(ctx context.Context, ev Event) {
	l.logger.InfoContext(ctx, "card event",
		"type", ev.Type,
		"card_id", ev.CardID,
		"entry_info_id", ev.EntryInfoID,
		"user_id", ev.UserID,
		"card_type", ev.CardType,
		"status", ev.Status,
	)
}

// Recorder is an in-memory Publisher for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything emitted so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
