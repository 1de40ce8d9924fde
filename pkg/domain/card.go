package domain

import dErrors "tripsecretary/pkg/domain-errors"

// CardType identifies which authority's digital arrival card a submission
// targets. One traveler can hold at most one authoritative card per
// (entry, card type).
type CardType string

const (
	// CardTypeTDAC is the Thailand Digital Arrival Card.
	CardTypeTDAC CardType = "TDAC"
	// CardTypeMDAC is the Malaysia Digital Arrival Card.
	CardTypeMDAC CardType = "MDAC"
	// CardTypeSGAC is the Singapore Arrival Card.
	CardTypeSGAC CardType = "SGAC"
	// CardTypeHKDAC is the Hong Kong pre-arrival declaration.
	CardTypeHKDAC CardType = "HKDAC"
)

var validCardTypes = map[CardType]bool{
	CardTypeTDAC:  true,
	CardTypeMDAC:  true,
	CardTypeSGAC:  true,
	CardTypeHKDAC: true,
}

func (t CardType) IsValid() bool { return validCardTypes[t] }

// ParseCardType constructs a CardType from external input.
func ParseCardType(s string) (CardType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "card type cannot be empty")
	}
	t := CardType(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported card type %q", s)
	}
	return t, nil
}

// CardStatus is the lifecycle state of one submission attempt.
// Transitions: pending -> success | failed. Both outcomes are terminal for
// that attempt; a resubmission is a new record, never a mutation of a
// terminal one.
type CardStatus string

const (
	CardStatusPending CardStatus = "pending"
	CardStatusSuccess CardStatus = "success"
	CardStatusFailed  CardStatus = "failed"
)

func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusPending, CardStatusSuccess, CardStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the attempt can no longer change status.
func (s CardStatus) IsTerminal() bool {
	return s == CardStatusSuccess || s == CardStatusFailed
}

// CanTransitionTo enforces the attempt state machine.
func (s CardStatus) CanTransitionTo(next CardStatus) bool {
	if s != CardStatusPending {
		return false
	}
	return next == CardStatusSuccess || next == CardStatusFailed
}

// SubmissionMethod records how a card reached the authority.
type SubmissionMethod string

const (
	SubmissionMethodAPI    SubmissionMethod = "api"
	SubmissionMethodManual SubmissionMethod = "manual"
)

func (m SubmissionMethod) IsValid() bool {
	return m == SubmissionMethodAPI || m == SubmissionMethodManual
}
