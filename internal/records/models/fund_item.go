package models

import (
	"strconv"
	"time"

	id "tripsecretary/pkg/domain"
)

// FundItem is one proof-of-funds entry. A traveler typically holds several.
type FundItem struct {
	ID       id.FundItemID `json:"id"`
	UserID   id.UserID     `json:"user_id"`
	Type     id.FundType   `json:"type"`
	Amount   float64       `json:"amount"`
	Currency string        `json:"currency"`
	Details  string        `json:"details"`
	PhotoRef string        `json:"photo_ref"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Staged by the setters when a typed value fails to parse, surfaced by
	// Validate. The user's input must fail the save, not vanish silently.
	badType   string
	badAmount string
}

func NewFundItem(userID id.UserID, fundType id.FundType, now time.Time) *FundItem {
	return &FundItem{
		ID:        id.NewFundItemID(),
		UserID:    userID,
		Type:      fundType,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var fundItemSetters = map[string]func(*FundItem, string){
	"type": func(f *FundItem, v string) {
		t, err := id.ParseFundType(v)
		if err != nil {
			f.badType = v
			return
		}
		f.Type = t
		f.badType = ""
	},
	"amount": func(f *FundItem, v string) {
		a, err := strconv.ParseFloat(v, 64)
		if err != nil {
			f.badAmount = v
			return
		}
		f.Amount = a
		f.badAmount = ""
	},
	"currency":  func(f *FundItem, v string) { f.Currency = v },
	"details":   func(f *FundItem, v string) { f.Details = v },
	"photo_ref": func(f *FundItem, v string) { f.PhotoRef = v },
}

// MergeUpdates applies a filtered save payload; see Passport.MergeUpdates for
// the shared contract.
func (f *FundItem) MergeUpdates(updates Fields, opts MergeOptions) error {
	applySetters(f, updates, fundItemSetters)
	f.UpdatedAt = opts.now()
	if opts.SkipValidation {
		return nil
	}
	return f.Validate()
}

func (f *FundItem) Validate() error {
	if f.badType != "" {
		return validationErrorf("fund type %q is not supported", f.badType)
	}
	if f.badAmount != "" {
		return validationErrorf("amount %q is not a number", f.badAmount)
	}
	if !f.Type.IsValid() {
		return validationErrorf("fund type %q is not supported", string(f.Type))
	}
	if f.Amount < 0 {
		return validationErrorf("amount cannot be negative")
	}
	// Supporting documents carry no amount; every other type needs one once
	// the item is complete enough to have a currency.
	if f.Type.RequiresAmount() && f.Currency != "" && f.Amount <= 0 {
		return validationErrorf("amount is required for fund type %s", string(f.Type))
	}
	return nil
}

func (f *FundItem) FieldsMap() map[string]string {
	amount := ""
	if f.Amount > 0 {
		amount = strconv.FormatFloat(f.Amount, 'f', -1, 64)
	}
	return map[string]string{
		"type":      string(f.Type),
		"amount":    amount,
		"currency":  f.Currency,
		"details":   f.Details,
		"photo_ref": f.PhotoRef,
	}
}
