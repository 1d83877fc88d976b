package corebanking

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies accounts by product.
type AccountType string

const (
	// AccountTypeSavings identifies interest-bearing savings accounts.
	AccountTypeSavings AccountType = "SAVINGS"
	// AccountTypeCurrent identifies transactional current accounts.
	AccountTypeCurrent AccountType = "CURRENT"
)

// AccountStatus represents the lifecycle state of an account.
//
// Semantics:
//   - ACTIVE: the account accepts balance mutations.
//   - SUSPENDED: mutations are blocked; the account may return to ACTIVE.
//   - CLOSED: terminal state; no resurrection.
//
// Typical transitions:
//
//	ACTIVE ⇄ SUSPENDED
//	ACTIVE | SUSPENDED → CLOSED
type AccountStatus string

const (
	// AccountStatusActive marks an account as open for transactions.
	AccountStatusActive AccountStatus = "ACTIVE"
	// AccountStatusSuspended marks an account as temporarily blocked.
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	// AccountStatusClosed marks an account as permanently closed.
	AccountStatusClosed AccountStatus = "CLOSED"
)

// CanTransitionTo reports whether moving from the current status to next is allowed.
// CLOSED is terminal; every other status may suspend, reactivate, or close.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	if s == AccountStatusClosed {
		return false
	}

	switch next {
	case AccountStatusActive, AccountStatusSuspended, AccountStatusClosed:
		return next != s
	}

	return false
}

// KYCStatus represents the customer verification state reported by the
// customer collaborator. Only APPROVED customers may open accounts.
type KYCStatus string

const (
	// KYCStatusPending marks a customer whose verification is still in progress.
	KYCStatusPending KYCStatus = "PENDING"
	// KYCStatusApproved marks a verified customer.
	KYCStatusApproved KYCStatus = "APPROVED"
	// KYCStatusRejected marks a customer whose verification failed.
	KYCStatusRejected KYCStatus = "REJECTED"
)

// Account is a customer balance-holding product.
//
// Balance is mutated exclusively by the ledger engine and never goes
// negative. Version supports optimistic conditional updates in the store.
type Account struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customerId"`
	Number     string          `json:"number"`
	Type       AccountType     `json:"type"`
	Balance    decimal.Decimal `json:"balance"`
	Status     AccountStatus   `json:"status"`
	Version    int64           `json:"version"`
	OpenedAt   time.Time       `json:"openedAt"`
	ClosedAt   *time.Time      `json:"closedAt,omitempty"`
}

// IsActive reports whether the account accepts balance mutations.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
