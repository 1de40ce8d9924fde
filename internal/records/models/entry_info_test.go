package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripsecretary/internal/forms/fieldstate"
	"tripsecretary/internal/forms/schema"
	id "tripsecretary/pkg/domain"
)

// =============================================================================
// EntryInfo blob round-trips and completion math
// =============================================================================
// Justification: the documents/displayStatus blobs cross a serialization
// boundary on every load/save; asymmetry there corrupts progress silently.

func TestDocumentsRoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	e := NewEntryInfo(id.NewUserID(), "TH", now)
	e.Documents["funds"] = DocumentState{Uploaded: true, Ref: "s3://bucket/funds.jpg"}
	e.Documents["passport"] = DocumentState{}

	raw, err := e.EncodeDocuments()
	require.NoError(t, err)

	restored := NewEntryInfo(e.UserID, "TH", now)
	require.NoError(t, restored.DecodeDocuments(raw))
	assert.Equal(t, e.Documents, restored.Documents)
}

func TestDocumentsMigration(t *testing.T) {
	t.Run("empty blob yields empty map", func(t *testing.T) {
		e := NewEntryInfo(id.NewUserID(), "TH", time.Now())
		require.NoError(t, e.DecodeDocuments(""))
		assert.Empty(t, e.Documents)
	})

	t.Run("v1 blob infers uploaded from ref presence", func(t *testing.T) {
		e := NewEntryInfo(id.NewUserID(), "TH", time.Now())
		v1 := `{"version":1,"sections":{"funds":{"ref":"s3://bucket/f.jpg"},"passport":{}}}`
		require.NoError(t, e.DecodeDocuments(v1))
		assert.True(t, e.Documents["funds"].Uploaded)
		assert.False(t, e.Documents["passport"].Uploaded)
	})

	t.Run("corrupted blob surfaces an error", func(t *testing.T) {
		e := NewEntryInfo(id.NewUserID(), "TH", time.Now())
		assert.Error(t, e.DecodeDocuments("{not json"))
	})
}

func TestDisplayStatusMigrationAddsColor(t *testing.T) {
	e := NewEntryInfo(id.NewUserID(), "TH", time.Now())
	v1 := `{"version":1,"sections":{"passport":{"status":"complete"},"funds":{"status":"partial"}}}`
	require.NoError(t, e.DecodeDisplayStatus(v1))
	assert.Equal(t, "#2E7D32", e.DisplayStatus["passport"].Color)
	assert.Equal(t, "#F9A825", e.DisplayStatus["funds"].Color)
}

func TestUpdateCompletionMetrics(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	e := NewEntryInfo(id.NewUserID(), "TH", now.Add(-time.Hour))

	e.UpdateCompletionMetrics(map[string]fieldstate.Metrics{
		schema.FormPassport:     {Total: fieldstate.Counts{Filled: 10, Total: 10}},
		schema.FormPersonalInfo: {Total: fieldstate.Counts{Filled: 3, Total: 7}},
		schema.FormFunds:        {Total: fieldstate.Counts{Filled: 0, Total: 5}},
	}, now)

	assert.Equal(t, SectionComplete, e.DisplayStatus[schema.FormPassport].Status)
	assert.Equal(t, SectionPartial, e.DisplayStatus[schema.FormPersonalInfo].Status)
	assert.Equal(t, SectionMissing, e.DisplayStatus[schema.FormFunds].Status)
	assert.Equal(t, now, e.UpdatedAt)
}

func TestTotalCompletionPercentBounds(t *testing.T) {
	t.Run("empty input is zero", func(t *testing.T) {
		assert.Equal(t, 0, TotalCompletionPercent(nil))
	})

	t.Run("nothing touched is zero", func(t *testing.T) {
		p := TotalCompletionPercent(map[string]fieldstate.Metrics{
			schema.FormPassport: {Total: fieldstate.Counts{Filled: 0, Total: 10}},
		})
		assert.Equal(t, 0, p)
	})

	t.Run("everything touched is one hundred", func(t *testing.T) {
		p := TotalCompletionPercent(map[string]fieldstate.Metrics{
			schema.FormPassport:   {Total: fieldstate.Counts{Filled: 10, Total: 10}},
			schema.FormTravelInfo: {Total: fieldstate.Counts{Filled: 6, Total: 6}},
		})
		assert.Equal(t, 100, p)
	})

	t.Run("weighted mix stays in bounds", func(t *testing.T) {
		p := TotalCompletionPercent(map[string]fieldstate.Metrics{
			schema.FormPassport:     {Total: fieldstate.Counts{Filled: 5, Total: 10}},
			schema.FormPersonalInfo: {Total: fieldstate.Counts{Filled: 7, Total: 7}},
			schema.FormFunds:        {Total: fieldstate.Counts{Filled: 0, Total: 5}},
			schema.FormTravelInfo:   {Total: fieldstate.Counts{Filled: 3, Total: 6}},
		})
		assert.GreaterOrEqual(t, p, 0)
		assert.LessOrEqual(t, p, 100)
	})
}
