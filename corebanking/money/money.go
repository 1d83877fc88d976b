package money

import (
	"github.com/shopspring/decimal"
)

const (
	// DisplayScale is the canonical scale of every persisted monetary amount.
	DisplayScale = 2
	// WorkingScale is the intermediate scale used before the final rounding step.
	WorkingScale = 8
)

var (
	hundred       = decimal.NewFromInt(100)
	daysPerYear   = decimal.NewFromInt(365)
	monthsPerYear = decimal.NewFromInt(12)
)

// Round rounds an amount half-up to the display scale. This core only
// produces non-negative amounts, for which shopspring's round-half-away-from-
// zero is identical to round-half-up.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(DisplayScale)
}

// DailyRate converts an annual percentage rate to a daily fraction at the
// working scale: percent/100/365, each division rounded to WorkingScale.
func DailyRate(annualPercent decimal.Decimal) decimal.Decimal {
	return annualPercent.
		DivRound(hundred, WorkingScale).
		DivRound(daysPerYear, WorkingScale)
}

// MonthlyRate converts an annual percentage rate to a monthly fraction at the
// working scale: percent/100/12, each division rounded to WorkingScale.
func MonthlyRate(annualPercent decimal.Decimal) decimal.Decimal {
	return annualPercent.
		DivRound(hundred, WorkingScale).
		DivRound(monthsPerYear, WorkingScale)
}

// IsPayable reports whether amount is a valid positive payable value.
func IsPayable(amount decimal.Decimal) bool {
	return amount.IsPositive()
}
