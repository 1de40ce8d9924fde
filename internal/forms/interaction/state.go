// Package interaction tracks which form fields the traveler actually edited,
// as opposed to fields still holding a programmatic default. The distinction
// survives app restarts: the save filter and completion metrics both depend
// on it.
package interaction

import "time"

// FieldState is the persisted per-field interaction record.
type FieldState struct {
	Touched   bool      `json:"touched"`
	LastValue string    `json:"last_value"`
	TouchedAt time.Time `json:"touched_at"`
}

// FormState maps field name to its interaction state for one form.
type FormState map[string]FieldState
