package corebanking

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the journal entry kind.
type TransactionType string

const (
	// TransactionTypeDeposit increases the account balance from an external source.
	TransactionTypeDeposit TransactionType = "DEPOSIT"
	// TransactionTypeWithdrawal decreases the account balance toward an external sink.
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	// TransactionTypeTransferIn is the credit leg of an internal transfer.
	TransactionTypeTransferIn TransactionType = "TRANSFER_IN"
	// TransactionTypeTransferOut is the debit leg of an internal transfer.
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
)

// Transaction is an immutable journal entry produced by the ledger engine.
//
// A transfer produces exactly two entries, one per account, sharing one
// reference number; each leg carries the counterpart account number.
// Entries are never updated after creation, so downstream audit and
// reporting consumers can cache them safely.
type Transaction struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"accountId"`
	Type              TransactionType `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	BalanceAfter      decimal.Decimal `json:"balanceAfter"`
	ReferenceNumber   string          `json:"referenceNumber"`
	CounterpartNumber string          `json:"counterpartNumber,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}
