package domain

import dErrors "tripsecretary/pkg/domain-errors"

// FundType classifies one proof-of-funds item.
type FundType string

const (
	FundTypeCash        FundType = "CASH"
	FundTypeBankCard    FundType = "BANK_CARD"
	FundTypeBankBalance FundType = "BANK_BALANCE"
	FundTypeDocument    FundType = "DOCUMENT"
	FundTypeInvestment  FundType = "INVESTMENT"
	FundTypeOther       FundType = "OTHER"
)

var validFundTypes = map[FundType]bool{
	FundTypeCash:        true,
	FundTypeBankCard:    true,
	FundTypeBankBalance: true,
	FundTypeDocument:    true,
	FundTypeInvestment:  true,
	FundTypeOther:       true,
}

func (t FundType) IsValid() bool { return validFundTypes[t] }

// RequiresAmount reports whether items of this type must carry an amount and
// currency. Supporting documents are evidence on their own.
func (t FundType) RequiresAmount() bool { return t != FundTypeDocument }

// ParseFundType constructs a FundType from external input.
func ParseFundType(s string) (FundType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fund type cannot be empty")
	}
	t := FundType(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported fund type %q", s)
	}
	return t, nil
}
