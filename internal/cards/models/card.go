// Package models defines the digital arrival card submission record and its
// lifecycle. Each record is one submission attempt; resubmissions are new
// records chained by supersede pointers, never in-place mutations of a
// terminal attempt.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	id "tripsecretary/pkg/domain"
	dErrors "tripsecretary/pkg/domain-errors"
	"tripsecretary/pkg/platform/sentinel"
)

// apiResponseVersion versions the stored issuer-response blob.
const apiResponseVersion = 1

// APIResponse is the versioned snapshot of the issuer's reply, stored as a
// JSON-encoded string for backend compatibility.
type APIResponse struct {
	Version    int       `json:"version"`
	StatusCode int       `json:"status_code"`
	Body       string    `json:"body,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// EncodeAPIResponse serializes an issuer response for storage.
func EncodeAPIResponse(r APIResponse) (string, error) {
	r.Version = apiResponseVersion
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode api response: %w", err)
	}
	return string(b), nil
}

// DecodeAPIResponse parses a stored issuer response. Empty input yields the
// zero value.
func DecodeAPIResponse(raw string) (APIResponse, error) {
	if raw == "" {
		return APIResponse{}, nil
	}
	var r APIResponse
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return APIResponse{}, fmt.Errorf("decode api response: %w: %w", sentinel.ErrCorrupted, err)
	}
	return r, nil
}

// DigitalArrivalCard is one submission attempt toward an authority.
//
// Invariants:
//   - pending -> success | failed; both outcomes terminal for the attempt
//   - for a given (EntryInfoID, CardType) at most one non-superseded record
//     has Status=success; enforced by the submission service superseding the
//     previous success whenever a new one lands
//   - IsSuperseded never transitions back to false
//   - Version increments per lifecycle mutation of this attempt
type DigitalArrivalCard struct {
	ID            id.CardID      `json:"id"`
	EntryInfoID   id.EntryInfoID `json:"entry_info_id"`
	UserID        id.UserID      `json:"user_id"`
	CardType      id.CardType    `json:"card_type"`
	DestinationID string         `json:"destination_id"`

	ArrivalCardNumber string              `json:"arrival_card_number,omitempty"`
	QRRef             string              `json:"qr_ref,omitempty"`
	PDFRef            string              `json:"pdf_ref,omitempty"`
	SubmittedAt       time.Time           `json:"submitted_at"`
	SubmissionMethod  id.SubmissionMethod `json:"submission_method"`
	Status            id.CardStatus       `json:"status"`
	APIResponse       string              `json:"api_response,omitempty"`
	ProcessingTimeMs  int64               `json:"processing_time_ms"`
	RetryCount        int                 `json:"retry_count"`
	ErrorDetails      string              `json:"error_details,omitempty"`

	IsSuperseded     bool       `json:"is_superseded"`
	SupersededAt     *time.Time `json:"superseded_at,omitempty"`
	SupersededBy     id.CardID  `json:"superseded_by,omitempty"`
	SupersededReason string     `json:"superseded_reason,omitempty"`

	Version int `json:"version"`
}

// NewSubmissionAttempt creates a pending attempt record.
func NewSubmissionAttempt(entryInfoID id.EntryInfoID, userID id.UserID, cardType id.CardType, destinationID string, method id.SubmissionMethod, now time.Time) *DigitalArrivalCard {
	return &DigitalArrivalCard{
		ID:               id.NewCardID(),
		EntryInfoID:      entryInfoID,
		UserID:           userID,
		CardType:         cardType,
		DestinationID:    destinationID,
		SubmittedAt:      now,
		SubmissionMethod: method,
		Status:           id.CardStatusPending,
		Version:          1,
	}
}

// RecordRetry counts one retry of this attempt's remote call. Retries of the
// same call update this record; a fresh end-to-end resubmission is a new
// record instead.
func (c *DigitalArrivalCard) RecordRetry() {
	c.RetryCount++
	c.Version++
}

// MarkSucceeded finalizes the attempt with the issuer's artifact references.
func (c *DigitalArrivalCard) MarkSucceeded(arrivalCardNumber, qrRef, pdfRef, apiResponse string, processingMs int64) error {
	if !c.Status.CanTransitionTo(id.CardStatusSuccess) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"cannot mark %s attempt succeeded", string(c.Status))
	}
	c.Status = id.CardStatusSuccess
	c.ArrivalCardNumber = arrivalCardNumber
	c.QRRef = qrRef
	c.PDFRef = pdfRef
	c.APIResponse = apiResponse
	c.ProcessingTimeMs = processingMs
	c.Version++
	return nil
}

// MarkFailed finalizes the attempt with the failure details.
func (c *DigitalArrivalCard) MarkFailed(errorDetails, apiResponse string, processingMs int64) error {
	if !c.Status.CanTransitionTo(id.CardStatusFailed) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"cannot mark %s attempt failed", string(c.Status))
	}
	c.Status = id.CardStatusFailed
	c.ErrorDetails = errorDetails
	c.APIResponse = apiResponse
	c.ProcessingTimeMs = processingMs
	c.Version++
	return nil
}

// MarkAsSuperseded points this card at the submission that replaced it.
// One-way and idempotent: superseding an already-superseded card is a no-op,
// not an error, and nothing ever clears the flag.
func (c *DigitalArrivalCard) MarkAsSuperseded(newCardID id.CardID, reason string, now time.Time) {
	if c.IsSuperseded {
		return
	}
	c.IsSuperseded = true
	c.SupersededBy = newCardID
	c.SupersededReason = reason
	c.SupersededAt = &now
	c.Version++
}

// IsAuthoritative reports whether this record is the live success for its
// (entry, card type).
func (c *DigitalArrivalCard) IsAuthoritative() bool {
	return c.Status == id.CardStatusSuccess && !c.IsSuperseded
}
