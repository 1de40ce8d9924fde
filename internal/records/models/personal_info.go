package models

import (
	"strings"
	"time"

	id "tripsecretary/pkg/domain"
)

// PersonalInfo is the singleton-per-user contact and occupation record.
type PersonalInfo struct {
	ID               id.PersonalInfoID `json:"id"`
	UserID           id.UserID         `json:"user_id"`
	Email            string            `json:"email"`
	Phone            string            `json:"phone"`
	PhoneCountryCode string            `json:"phone_country_code"`
	HomeAddress      string            `json:"home_address"`
	Occupation       string            `json:"occupation"`
	Employer         string            `json:"employer"`
	AnnualIncomeBand string            `json:"annual_income_band"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func NewPersonalInfo(userID id.UserID, now time.Time) *PersonalInfo {
	return &PersonalInfo{
		ID:        id.NewPersonalInfoID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var personalInfoSetters = map[string]func(*PersonalInfo, string){
	"email":              func(p *PersonalInfo, v string) { p.Email = v },
	"phone":              func(p *PersonalInfo, v string) { p.Phone = v },
	"phone_country_code": func(p *PersonalInfo, v string) { p.PhoneCountryCode = v },
	"home_address":       func(p *PersonalInfo, v string) { p.HomeAddress = v },
	"occupation":         func(p *PersonalInfo, v string) { p.Occupation = v },
	"employer":           func(p *PersonalInfo, v string) { p.Employer = v },
	"annual_income_band": func(p *PersonalInfo, v string) { p.AnnualIncomeBand = v },
}

// MergeUpdates applies a filtered save payload; see Passport.MergeUpdates for
// the shared contract.
func (p *PersonalInfo) MergeUpdates(updates Fields, opts MergeOptions) error {
	applySetters(p, updates, personalInfoSetters)
	p.UpdatedAt = opts.now()
	if opts.SkipValidation {
		return nil
	}
	return p.Validate()
}

func (p *PersonalInfo) Validate() error {
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return validationErrorf("email %q is not a valid address", p.Email)
	}
	if p.PhoneCountryCode != "" && !strings.HasPrefix(p.PhoneCountryCode, "+") {
		return validationErrorf("phone_country_code %q must start with +", p.PhoneCountryCode)
	}
	return nil
}

func (p *PersonalInfo) FieldsMap() map[string]string {
	return map[string]string{
		"email":              p.Email,
		"phone":              p.Phone,
		"phone_country_code": p.PhoneCountryCode,
		"home_address":       p.HomeAddress,
		"occupation":         p.Occupation,
		"employer":           p.Employer,
		"annual_income_band": p.AnnualIncomeBand,
	}
}
