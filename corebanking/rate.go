package corebanking

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterestRate is an account-type-scoped annual rate with an effective date
// window and optional balance-tier bounds. A nil bound means the tier is open
// on that side.
type InterestRate struct {
	ID            string           `json:"id"`
	AccountType   AccountType      `json:"accountType"`
	AnnualRate    decimal.Decimal  `json:"annualRate"`
	MinBalance    *decimal.Decimal `json:"minBalance,omitempty"`
	MaxBalance    *decimal.Decimal `json:"maxBalance,omitempty"`
	EffectiveFrom time.Time        `json:"effectiveFrom"`
	EffectiveTo   *time.Time       `json:"effectiveTo,omitempty"`
	Active        bool             `json:"active"`
}

// AppliesTo reports whether the rate's effective window contains asOf and its
// tier bounds contain balance for the given account type.
func (r *InterestRate) AppliesTo(accountType AccountType, balance decimal.Decimal, asOf time.Time) bool {
	if !r.Active || r.AccountType != accountType {
		return false
	}

	if asOf.Before(r.EffectiveFrom) {
		return false
	}

	if r.EffectiveTo != nil && asOf.After(*r.EffectiveTo) {
		return false
	}

	if r.MinBalance != nil && balance.LessThan(*r.MinBalance) {
		return false
	}

	if r.MaxBalance != nil && balance.GreaterThan(*r.MaxBalance) {
		return false
	}

	return true
}

// MoreSpecificThan defines the deterministic tie-break between two applicable
// rates: a fully bounded tier beats a tier open on either side, a narrower
// bounded tier beats a wider one, then the earlier effective-from wins, and
// finally the lexicographically smaller ID.
func (r *InterestRate) MoreSpecificThan(other *InterestRate) bool {
	rBounded := r.MinBalance != nil && r.MaxBalance != nil
	oBounded := other.MinBalance != nil && other.MaxBalance != nil

	if rBounded != oBounded {
		return rBounded
	}

	if rBounded && oBounded {
		rWidth := r.MaxBalance.Sub(*r.MinBalance)
		oWidth := other.MaxBalance.Sub(*other.MinBalance)

		if !rWidth.Equal(oWidth) {
			return rWidth.LessThan(oWidth)
		}
	}

	if !r.EffectiveFrom.Equal(other.EffectiveFrom) {
		return r.EffectiveFrom.Before(other.EffectiveFrom)
	}

	return r.ID < other.ID
}

// InterestPosting is the immutable record of one accrual event. The
// transaction reference is back-filled once the accrual credit is journaled.
type InterestPosting struct {
	ID                   string          `json:"id"`
	AccountID            string          `json:"accountId"`
	PostingDate          time.Time       `json:"postingDate"`
	Amount               decimal.Decimal `json:"amount"`
	PeriodFrom           time.Time       `json:"periodFrom"`
	PeriodTo             time.Time       `json:"periodTo"`
	BalanceUsed          decimal.Decimal `json:"balanceUsed"`
	RateApplied          decimal.Decimal `json:"rateApplied"`
	TransactionReference string          `json:"transactionReference,omitempty"`
}
