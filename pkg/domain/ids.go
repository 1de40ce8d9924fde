// Package domain defines typed identifiers and enumerated values shared by
// every layer. IDs are uuid-backed distinct types so the compiler rejects
// cross-entity assignment; Parse* constructors enforce validity at trust
// boundaries, direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "tripsecretary/pkg/domain-errors"
)

type (
	// UserID identifies the traveler that owns a record.
	UserID uuid.UUID
	// PassportID identifies a stored passport.
	PassportID uuid.UUID
	// PersonalInfoID identifies the singleton personal-info record.
	PersonalInfoID uuid.UUID
	// FundItemID identifies one proof-of-funds item.
	FundItemID uuid.UUID
	// TravelInfoID identifies a per-destination travel-details record.
	TravelInfoID uuid.UUID
	// EntryInfoID identifies a per-destination entry aggregate.
	EntryInfoID uuid.UUID
	// CardID identifies one digital-arrival-card submission record.
	CardID uuid.UUID
)

// Nil is the zero UUID, useful for comparisons in tests.
var Nil = uuid.Nil

// New returns a fresh random UUID.
func New() uuid.UUID { return uuid.New() }

// NewString returns a fresh random UUID as a string.
func NewString() string { return uuid.NewString() }

func parse(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", kind)
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parse("user_id", s)
	return UserID(u), err
}

func ParsePassportID(s string) (PassportID, error) {
	u, err := parse("passport_id", s)
	return PassportID(u), err
}

func ParsePersonalInfoID(s string) (PersonalInfoID, error) {
	u, err := parse("personal_info_id", s)
	return PersonalInfoID(u), err
}

func ParseFundItemID(s string) (FundItemID, error) {
	u, err := parse("fund_item_id", s)
	return FundItemID(u), err
}

func ParseTravelInfoID(s string) (TravelInfoID, error) {
	u, err := parse("travel_info_id", s)
	return TravelInfoID(u), err
}

func ParseEntryInfoID(s string) (EntryInfoID, error) {
	u, err := parse("entry_info_id", s)
	return EntryInfoID(u), err
}

func ParseCardID(s string) (CardID, error) {
	u, err := parse("card_id", s)
	return CardID(u), err
}

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id PassportID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PersonalInfoID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FundItemID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TravelInfoID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EntryInfoID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CardID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id PassportID) String() string     { return uuid.UUID(id).String() }
func (id PersonalInfoID) String() string { return uuid.UUID(id).String() }
func (id FundItemID) String() string     { return uuid.UUID(id).String() }
func (id TravelInfoID) String() string   { return uuid.UUID(id).String() }
func (id EntryInfoID) String() string    { return uuid.UUID(id).String() }
func (id CardID) String() string         { return uuid.UUID(id).String() }

// IDs marshal as canonical UUID strings in JSON and text. The methods are
// spelled out per type because defined types do not inherit uuid.UUID's.

func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id PassportID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id PersonalInfoID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id FundItemID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id TravelInfoID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id EntryInfoID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id CardID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }

func unmarshalUUID(b []byte) (uuid.UUID, error) {
	if len(b) == 0 {
		return uuid.Nil, nil
	}
	return uuid.Parse(string(b))
}

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	*id = UserID(u)
	return err
}

func (id *PassportID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	*id = PassportID(u)
	return err
}

func (id *PersonalInfoID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	*id = PersonalInfoID(u)
	return err
}

func (id *FundItemID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	*id = FundItemID(u)
	return err
}

func (id *TravelInfoID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	*id = TravelInfoID(u)
	return err
}

func (id *EntryInfoID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	*id = EntryInfoID(u)
	return err
}

func (id *CardID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUID(b)
	*id = CardID(u)
	return err
}

func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewPassportID() PassportID         { return PassportID(uuid.New()) }
func NewPersonalInfoID() PersonalInfoID { return PersonalInfoID(uuid.New()) }
func NewFundItemID() FundItemID         { return FundItemID(uuid.New()) }
func NewTravelInfoID() TravelInfoID     { return TravelInfoID(uuid.New()) }
func NewEntryInfoID() EntryInfoID       { return EntryInfoID(uuid.New()) }
func NewCardID() CardID                 { return CardID(uuid.New()) }
