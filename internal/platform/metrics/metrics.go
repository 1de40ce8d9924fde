package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	FormSaves            *prometheus.CounterVec
	FieldsDropped        prometheus.Counter
	DebounceFlushes      *prometheus.CounterVec
	CardSubmissions      *prometheus.CounterVec
	CardsSuperseded      prometheus.Counter
	IssuerCallDurationMs prometheus.Histogram
}

// Flushed satisfies the debounce coordinator's FlushCounter.
func (m *Metrics) Flushed(trigger string) {
	m.DebounceFlushes.WithLabelValues(trigger).Inc()
}

// CardSubmitted counts one submission outcome.
func (m *Metrics) CardSubmitted(cardType, status string) {
	m.CardSubmissions.WithLabelValues(cardType, status).Inc()
}

// CardSuperseded counts one older success being replaced.
func (m *Metrics) CardSuperseded() {
	m.CardsSuperseded.Inc()
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		FormSaves: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tripsecretary_form_saves_total",
			Help: "Form save operations, labeled by form and outcome",
		}, []string{"form", "outcome"}),
		FieldsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsecretary_save_fields_dropped_total",
			Help: "Fields dropped from save payloads as untouched defaults",
		}),
		DebounceFlushes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tripsecretary_debounce_flushes_total",
			Help: "Debounced save flushes, labeled by trigger (timer, explicit, cancel)",
		}, []string{"trigger"}),
		CardSubmissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tripsecretary_card_submissions_total",
			Help: "Digital arrival card submissions, labeled by card type and status",
		}, []string{"card_type", "status"}),
		CardsSuperseded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsecretary_cards_superseded_total",
			Help: "Older card submissions marked superseded by a newer success",
		}),
		IssuerCallDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripsecretary_issuer_call_duration_ms",
			Help:    "Latency of remote card issuer calls in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}),
	}
}
