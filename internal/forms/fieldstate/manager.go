// Package fieldstate turns raw form state into save payloads and completion
// metrics, using interaction tracking to tell user-authored values apart from
// placeholders.
package fieldstate

import (
	"context"
	"fmt"
	"strings"

	"tripsecretary/internal/forms/schema"
	id "tripsecretary/pkg/domain"
)

// InteractionReader is the tracker surface the manager needs.
type InteractionReader interface {
	IsFieldUserModified(ctx context.Context, userID id.UserID, formID, field string) bool
	ModifiedFields(ctx context.Context, userID id.UserID, formID string) map[string]bool
}

// Counts pairs filled fields against the schema total.
type Counts struct {
	Filled int `json:"filled"`
	Total  int `json:"total"`
}

// Metrics is the completion summary for one form.
type Metrics struct {
	Total      Counts            `json:"total"`
	PerSection map[string]Counts `json:"per_section"`
}

// Percent returns the filled ratio bounded to [0, 100].
func (m Metrics) Percent() int {
	if m.Total.Total <= 0 {
		return 0
	}
	p := m.Total.Filled * 100 / m.Total.Total
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Manager filters save payloads and computes completion metrics.
type Manager struct {
	tracker InteractionReader
	metrics DropCounter
}

// DropCounter observes fields dropped from save payloads. Optional.
type DropCounter interface {
	Inc()
}

// Option configures the Manager.
type Option func(*Manager)

// WithDropCounter wires the prometheus counter for dropped fields.
func WithDropCounter(c DropCounter) Option {
	return func(m *Manager) { m.metrics = c }
}

func NewManager(tracker InteractionReader, opts ...Option) (*Manager, error) {
	if tracker == nil {
		return nil, fmt.Errorf("interaction tracker is required")
	}
	m := &Manager{tracker: tracker}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ShouldSaveField reports whether a candidate value carries user intent:
// either the field was user-touched, or the value is non-empty and not the
// field's programmatic default. Persisting an untouched default would
// misrepresent user intent to downstream reviewers and corrupt completion
// metrics.
func (m *Manager) ShouldSaveField(ctx context.Context, userID id.UserID, formID, field, candidate string) bool {
	if m.tracker.IsFieldUserModified(ctx, userID, formID, field) {
		return true
	}
	if strings.TrimSpace(candidate) == "" {
		return false
	}
	if s, ok := schema.ForForm(formID); ok && s.IsSentinel(field, candidate) {
		return false
	}
	return true
}

// FilterSaveableFields applies ShouldSaveField to every entry. Fields that
// fail the check are omitted entirely, not set to empty, so the record
// merge leaves the stored value untouched.
func (m *Manager) FilterSaveableFields(ctx context.Context, userID id.UserID, formID string, formState map[string]string) map[string]string {
	out := make(map[string]string, len(formState))
	for field, value := range formState {
		if m.ShouldSaveField(ctx, userID, formID, field, value) {
			out[field] = value
			continue
		}
		if m.metrics != nil {
			m.metrics.Inc()
		}
	}
	return out
}

// CompletionMetrics counts only user-touched fields (including migrated
// legacy fields) as filled, even where a default would make the field
// technically non-empty. Progress reflects actual user effort, not
// pre-population.
func (m *Manager) CompletionMetrics(ctx context.Context, userID id.UserID, formID string) (Metrics, error) {
	s, ok := schema.ForForm(formID)
	if !ok {
		return Metrics{}, fmt.Errorf("no schema registered for form %q", formID)
	}

	touched := m.tracker.ModifiedFields(ctx, userID, formID)

	out := Metrics{PerSection: make(map[string]Counts, len(s.Sections()))}
	for _, section := range s.Sections() {
		var c Counts
		for _, f := range s.SectionFields(section) {
			c.Total++
			if touched[f.Name] {
				c.Filled++
			}
		}
		out.PerSection[section] = c
		out.Total.Filled += c.Filled
		out.Total.Total += c.Total
	}
	return out, nil
}
