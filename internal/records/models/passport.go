package models

import (
	"strings"
	"time"

	id "tripsecretary/pkg/domain"
)

// Passport is a traveler's stored passport.
//
// Invariants:
//   - ID and CreatedAt are immutable after creation
//   - At most one passport per user has IsPrimary=true; the store enforces
//     the swap as a single logical operation (see store/postgres.SetPrimary)
//   - Date fields are ISO dates ("2006-01-02") or empty while in progress
type Passport struct {
	ID             id.PassportID `json:"id"`
	UserID         id.UserID     `json:"user_id"`
	PassportNumber string        `json:"passport_number"`
	Surname        string        `json:"surname"`
	GivenNames     string        `json:"given_names"`
	Nationality    string        `json:"nationality"`
	DateOfBirth    string        `json:"date_of_birth"`
	Gender         string        `json:"gender"`
	IssuingCountry string        `json:"issuing_country"`
	DateOfIssue    string        `json:"date_of_issue"`
	DateOfExpiry   string        `json:"date_of_expiry"`
	PhotoRef       string        `json:"photo_ref"`
	IsPrimary      bool          `json:"is_primary"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewPassport creates an empty passport shell for progressive filling.
func NewPassport(userID id.UserID, now time.Time) *Passport {
	return &Passport{
		ID:        id.NewPassportID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var passportSetters = map[string]func(*Passport, string){
	"passport_number": func(p *Passport, v string) { p.PassportNumber = v },
	"surname":         func(p *Passport, v string) { p.Surname = v },
	"given_names":     func(p *Passport, v string) { p.GivenNames = v },
	"nationality":     func(p *Passport, v string) { p.Nationality = v },
	"date_of_birth":   func(p *Passport, v string) { p.DateOfBirth = v },
	"gender":          func(p *Passport, v string) { p.Gender = v },
	"issuing_country": func(p *Passport, v string) { p.IssuingCountry = v },
	"date_of_issue":   func(p *Passport, v string) { p.DateOfIssue = v },
	"date_of_expiry":  func(p *Passport, v string) { p.DateOfExpiry = v },
	"photo_ref":       func(p *Passport, v string) { p.PhotoRef = v },
}

// MergeUpdates applies a filtered save payload onto the record: identity
// fields are stripped, empty values never win, UpdatedAt is refreshed, and
// the post-merge record is validated unless opts.SkipValidation. An all-empty
// payload is a no-op aside from the timestamp refresh.
func (p *Passport) MergeUpdates(updates Fields, opts MergeOptions) error {
	applySetters(p, updates, passportSetters)
	p.UpdatedAt = opts.now()
	if opts.SkipValidation {
		return nil
	}
	return p.Validate()
}

// Validate checks format validity of the fields that are present. Partially
// filled passports are valid; progressive saving depends on that.
func (p *Passport) Validate() error {
	if !validDate(p.DateOfBirth) {
		return validationErrorf("date_of_birth %q is not a valid date", p.DateOfBirth)
	}
	if !validDate(p.DateOfIssue) {
		return validationErrorf("date_of_issue %q is not a valid date", p.DateOfIssue)
	}
	if !validDate(p.DateOfExpiry) {
		return validationErrorf("date_of_expiry %q is not a valid date", p.DateOfExpiry)
	}
	if p.Gender != "" {
		switch p.Gender {
		case "M", "F", "X", "UNSPECIFIED":
		default:
			return validationErrorf("gender %q is not a supported value", p.Gender)
		}
	}
	if p.PassportNumber != "" && strings.TrimSpace(p.PassportNumber) == "" {
		return validationErrorf("passport_number cannot be blank")
	}
	return nil
}

// FieldsMap exposes the record as a schema-keyed map, feeding the interaction
// tracker's migration path on load.
func (p *Passport) FieldsMap() map[string]string {
	return map[string]string{
		"passport_number": p.PassportNumber,
		"surname":         p.Surname,
		"given_names":     p.GivenNames,
		"nationality":     p.Nationality,
		"date_of_birth":   p.DateOfBirth,
		"gender":          p.Gender,
		"issuing_country": p.IssuingCountry,
		"date_of_issue":   p.DateOfIssue,
		"date_of_expiry":  p.DateOfExpiry,
		"photo_ref":       p.PhotoRef,
	}
}
