package interest

import (
	"github.com/LerianStudio/lib-corebanking/corebanking/money"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// SimpleInterest computes principal × dailyRate × days, where dailyRate is
// annualPercent/100/365 at the working scale, rounded to the display scale.
// Non-positive day counts yield zero.
func SimpleInterest(principal, annualPercent decimal.Decimal, days int) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero.Round(money.DisplayScale)
	}

	daily := money.DailyRate(annualPercent)

	return money.Round(principal.Mul(daily).Mul(decimal.NewFromInt(int64(days))))
}

// CompoundInterest grows principal by (1+monthlyRate) once per month and
// returns the gain over principal rounded to the display scale. The iterative
// loop is the defined accrual method; a closed-form power must not replace it
// unless verified equal at every rounding point.
func CompoundInterest(principal, annualPercent decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return decimal.Zero.Round(money.DisplayScale)
	}

	factor := one.Add(money.MonthlyRate(annualPercent))
	result := principal

	for i := 0; i < months; i++ {
		result = result.Mul(factor)
	}

	return money.Round(result.Sub(principal))
}
