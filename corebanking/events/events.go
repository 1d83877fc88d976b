package events

import (
	"context"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/shopspring/decimal"
)

// Routing keys for published events.
const (
	RoutingKeyTransactionCreated = "transaction.created"
	RoutingKeyInterestPosted     = "interest.posted"
)

// TransactionCreated is the payload published for each committed journal entry.
type TransactionCreated struct {
	TransactionID   string                      `json:"transactionId"`
	AccountID       string                      `json:"accountId"`
	Type            corebanking.TransactionType `json:"type"`
	Amount          decimal.Decimal             `json:"amount"`
	BalanceAfter    decimal.Decimal             `json:"balanceAfter"`
	ReferenceNumber string                      `json:"referenceNumber"`
	OccurredAt      time.Time                   `json:"occurredAt"`
}

// InterestPosted is the payload published for each interest accrual.
type InterestPosted struct {
	PostingID            string          `json:"postingId"`
	AccountID            string          `json:"accountId"`
	Amount               decimal.Decimal `json:"amount"`
	RateApplied          decimal.Decimal `json:"rateApplied"`
	PeriodFrom           time.Time       `json:"periodFrom"`
	PeriodTo             time.Time       `json:"periodTo"`
	TransactionReference string          `json:"transactionReference"`
}

// NewTransactionCreated builds the event payload for a journal entry.
func NewTransactionCreated(transaction *corebanking.Transaction) TransactionCreated {
	return TransactionCreated{
		TransactionID:   transaction.ID,
		AccountID:       transaction.AccountID,
		Type:            transaction.Type,
		Amount:          transaction.Amount,
		BalanceAfter:    transaction.BalanceAfter,
		ReferenceNumber: transaction.ReferenceNumber,
		OccurredAt:      transaction.CreatedAt,
	}
}

// NewInterestPosted builds the event payload for an accrual record.
func NewInterestPosted(posting *corebanking.InterestPosting) InterestPosted {
	return InterestPosted{
		PostingID:            posting.ID,
		AccountID:            posting.AccountID,
		Amount:               posting.Amount,
		RateApplied:          posting.RateApplied,
		PeriodFrom:           posting.PeriodFrom,
		PeriodTo:             posting.PeriodTo,
		TransactionReference: posting.TransactionReference,
	}
}

// Publisher delivers ledger events to audit and reporting consumers.
type Publisher interface {
	PublishTransactionCreated(ctx context.Context, event TransactionCreated) error
	PublishInterestPosted(ctx context.Context, event InterestPosted) error
}

// NopPublisher discards every event. It is the default publisher for engines
// constructed without an explicit one.
type NopPublisher struct{}

// PublishTransactionCreated implements Publisher and discards the event.
func (NopPublisher) PublishTransactionCreated(context.Context, TransactionCreated) error {
	return nil
}

// PublishInterestPosted implements Publisher and discards the event.
func (NopPublisher) PublishInterestPosted(context.Context, InterestPosted) error {
	return nil
}
