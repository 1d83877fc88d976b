package corebanking

import (
	"time"

	"github.com/shopspring/decimal"
)

// FixedDepositStatus represents the lifecycle state of a term deposit.
//
// Semantics:
//   - ACTIVE: the deposit is accruing toward maturity.
//   - MATURED: closed at term; maturity amount paid out. Terminal.
//   - CLOSED_PREMATURELY: closed before term with a rate penalty. Terminal.
//   - RENEWED: the record was rolled into a fresh term with the previous
//     maturity amount as principal. Terminal for this cycle.
//
// Typical transitions:
//
//	ACTIVE → MATURED | CLOSED_PREMATURELY | RENEWED
type FixedDepositStatus string

const (
	// FixedDepositStatusActive marks a deposit accruing toward maturity.
	FixedDepositStatusActive FixedDepositStatus = "ACTIVE"
	// FixedDepositStatusMatured marks a deposit closed at term.
	FixedDepositStatusMatured FixedDepositStatus = "MATURED"
	// FixedDepositStatusClosedPrematurely marks a deposit closed before term.
	FixedDepositStatusClosedPrematurely FixedDepositStatus = "CLOSED_PREMATURELY"
	// FixedDepositStatusRenewed marks a deposit rolled into a fresh term.
	FixedDepositStatusRenewed FixedDepositStatus = "RENEWED"
)

// FixedDeposit is a term deposit funded from, and paid back into, one account.
type FixedDeposit struct {
	ID             string             `json:"id"`
	AccountID      string             `json:"accountId"`
	Number         string             `json:"number"`
	Principal      decimal.Decimal    `json:"principal"`
	AnnualRate     decimal.Decimal    `json:"annualRate"`
	TenureMonths   int                `json:"tenureMonths"`
	StartDate      time.Time          `json:"startDate"`
	MaturityDate   time.Time          `json:"maturityDate"`
	MaturityAmount decimal.Decimal    `json:"maturityAmount"`
	AutoRenewal    bool               `json:"autoRenewal"`
	Status         FixedDepositStatus `json:"status"`
	PrematureAt    *time.Time         `json:"prematureAt,omitempty"`
	PenaltyRate    *decimal.Decimal   `json:"penaltyRate,omitempty"`
}

// IsActive reports whether the deposit is still accruing toward maturity.
func (fd *FixedDeposit) IsActive() bool {
	return fd.Status == FixedDepositStatusActive
}
