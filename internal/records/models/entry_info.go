package models

import (
	"encoding/json"
	"fmt"
	"time"

	"tripsecretary/internal/forms/fieldstate"
	"tripsecretary/internal/forms/schema"
	id "tripsecretary/pkg/domain"
	"tripsecretary/pkg/platform/sentinel"
)

// Section status values surfaced to progress UI.
const (
	SectionComplete = "complete"
	SectionPartial  = "partial"
	SectionMissing  = "missing"
)

// docSchemaVersion and statusSchemaVersion version the JSON-string blobs on
// EntryInfo. Bump when a field is added and extend migrateDocuments /
// migrateDisplayStatus accordingly.
const (
	docSchemaVersion    = 2
	statusSchemaVersion = 2
)

// DocumentState tracks one uploaded supporting document per section key.
type DocumentState struct {
	Uploaded bool   `json:"uploaded"`
	Ref      string `json:"ref,omitempty"`
}

// SectionStatus is the per-section progress cell the UI renders.
type SectionStatus struct {
	Status string `json:"status"`
	Color  string `json:"color"`
}

type documentsBlob struct {
	Version  int                      `json:"version"`
	Sections map[string]DocumentState `json:"sections"`
}

type displayStatusBlob struct {
	Version  int                      `json:"version"`
	Sections map[string]SectionStatus `json:"sections"`
}

// EntryInfo aggregates per-destination progress. It is derived state: always
// recomputable from the underlying Passport/PersonalInfo/FundItem/TravelInfo
// records plus document upload state, never independently authoritative.
//
// Documents and DisplayStatus are persisted as JSON-encoded strings for
// backend compatibility; Load/Save round-trips must be symmetric.
type EntryInfo struct {
	ID            id.EntryInfoID `json:"id"`
	UserID        id.UserID      `json:"user_id"`
	DestinationID string         `json:"destination_id"`

	Documents     map[string]DocumentState `json:"-"`
	DisplayStatus map[string]SectionStatus `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewEntryInfo(userID id.UserID, destinationID string, now time.Time) *EntryInfo {
	return &EntryInfo{
		ID:            id.NewEntryInfoID(),
		UserID:        userID,
		DestinationID: destinationID,
		Documents:     make(map[string]DocumentState),
		DisplayStatus: make(map[string]SectionStatus),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// EncodeDocuments serializes the documents blob for storage.
func (e *EntryInfo) EncodeDocuments() (string, error) {
	b, err := json.Marshal(documentsBlob{Version: docSchemaVersion, Sections: e.Documents})
	if err != nil {
		return "", fmt.Errorf("encode documents: %w", err)
	}
	return string(b), nil
}

// DecodeDocuments parses a stored documents blob, migrating older schema
// versions forward.
func (e *EntryInfo) DecodeDocuments(raw string) error {
	if raw == "" {
		e.Documents = make(map[string]DocumentState)
		return nil
	}
	var blob documentsBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return fmt.Errorf("decode documents: %w: %w", sentinel.ErrCorrupted, err)
	}
	e.Documents = migrateDocuments(blob)
	return nil
}

// migrateDocuments upgrades older stored shapes. Version 1 stored a bare
// map[section]ref with upload implied by presence.
func migrateDocuments(blob documentsBlob) map[string]DocumentState {
	if blob.Sections == nil {
		return make(map[string]DocumentState)
	}
	if blob.Version >= docSchemaVersion {
		return blob.Sections
	}
	out := make(map[string]DocumentState, len(blob.Sections))
	for section, st := range blob.Sections {
		if blob.Version <= 1 && st.Ref != "" {
			st.Uploaded = true
		}
		out[section] = st
	}
	return out
}

// EncodeDisplayStatus serializes the display-status blob for storage.
func (e *EntryInfo) EncodeDisplayStatus() (string, error) {
	b, err := json.Marshal(displayStatusBlob{Version: statusSchemaVersion, Sections: e.DisplayStatus})
	if err != nil {
		return "", fmt.Errorf("encode display status: %w", err)
	}
	return string(b), nil
}

// DecodeDisplayStatus parses a stored display-status blob, migrating older
// schema versions forward.
func (e *EntryInfo) DecodeDisplayStatus(raw string) error {
	if raw == "" {
		e.DisplayStatus = make(map[string]SectionStatus)
		return nil
	}
	var blob displayStatusBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return fmt.Errorf("decode display status: %w: %w", sentinel.ErrCorrupted, err)
	}
	if blob.Sections == nil {
		blob.Sections = make(map[string]SectionStatus)
	}
	// Version 1 stored no color; recompute it from status.
	if blob.Version <= 1 {
		for k, st := range blob.Sections {
			st.Color = statusColor(st.Status)
			blob.Sections[k] = st
		}
	}
	e.DisplayStatus = blob.Sections
	return nil
}

func statusColor(status string) string {
	switch status {
	case SectionComplete:
		return "#2E7D32"
	case SectionPartial:
		return "#F9A825"
	default:
		return "#C62828"
	}
}

// sectionWeights drive the weighted total; document-heavy sections matter
// more to border officers than optional extras.
var sectionWeights = map[string]int{
	schema.FormPassport:     3,
	schema.FormPersonalInfo: 2,
	schema.FormFunds:        2,
	schema.FormTravelInfo:   3,
}

// UpdateCompletionMetrics recomputes DisplayStatus from the per-form
// completion metrics. Deterministic: same inputs, same output, no hidden
// state.
func (e *EntryInfo) UpdateCompletionMetrics(perForm map[string]fieldstate.Metrics, now time.Time) {
	status := make(map[string]SectionStatus, len(perForm))
	for formID, m := range perForm {
		var s string
		switch {
		case m.Total.Total > 0 && m.Total.Filled >= m.Total.Total:
			s = SectionComplete
		case m.Total.Filled > 0:
			s = SectionPartial
		default:
			s = SectionMissing
		}
		status[formID] = SectionStatus{Status: s, Color: statusColor(s)}
	}
	e.DisplayStatus = status
	e.UpdatedAt = now
}

// TotalCompletionPercent is the weighted average of per-form completion,
// bounded to [0, 100].
func TotalCompletionPercent(perForm map[string]fieldstate.Metrics) int {
	weightSum, acc := 0, 0
	for formID, m := range perForm {
		w, ok := sectionWeights[formID]
		if !ok {
			w = 1
		}
		weightSum += w
		acc += w * m.Percent()
	}
	if weightSum == 0 {
		return 0
	}
	p := acc / weightSum
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
