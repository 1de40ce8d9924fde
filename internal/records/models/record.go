// Package models defines the persisted travel-entry records and their
// merge-update semantics. The single rule every record shares: a save payload
// can add or change values, it can never blank one out. Empty and
// whitespace-only incoming values are dropped before they reach the record,
// and identity fields are immutable after creation.
package models

import (
	"strings"
	"time"

	dErrors "tripsecretary/pkg/domain-errors"
)

// Fields is a dynamic save payload keyed by schema field name, as produced by
// fieldstate.Manager.FilterSaveableFields.
type Fields map[string]string

// MergeOptions tunes one MergeUpdates call.
type MergeOptions struct {
	// SkipValidation persists without post-merge validation. Used by import
	// paths that validate in bulk afterwards.
	SkipValidation bool
	// Now overrides the UpdatedAt timestamp; zero means time.Now().
	Now time.Time
}

func (o MergeOptions) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// identityFields are stripped from every update payload unconditionally. No
// update path may alter a record's identity or creation time.
var identityFields = map[string]bool{
	"id":         true,
	"user_id":    true,
	"created_at": true,
}

// mergeable returns the payload reduced to keys that may win a merge:
// identity fields stripped, nil handled by map semantics, empty and
// whitespace-only values dropped so they never erase a saved value.
func mergeable(updates Fields) Fields {
	out := make(Fields, len(updates))
	for key, value := range updates {
		if identityFields[key] {
			continue
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// applySetters assigns each mergeable value through the model's setter table.
// Unknown keys are ignored: screens may post fields this record does not
// persist (UI-only toggles).
func applySetters[T any](rec *T, updates Fields, setters map[string]func(*T, string)) {
	for key, value := range mergeable(updates) {
		if set, ok := setters[key]; ok {
			set(rec, value)
		}
	}
}

// validDate reports whether s parses as an ISO calendar date. Empty is valid:
// completeness is the completion metrics' concern, not validation's.
func validDate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func validationErrorf(format string, args ...any) error {
	return dErrors.Newf(dErrors.CodeValidation, format, args...)
}
