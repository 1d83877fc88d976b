package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionCreated(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	transaction := &corebanking.Transaction{
		ID:              "txn-1",
		AccountID:       "acc-1",
		Type:            corebanking.TransactionTypeDeposit,
		Amount:          decimal.RequireFromString("100.00"),
		BalanceAfter:    decimal.RequireFromString("250.00"),
		ReferenceNumber: "TXN1234ABCD",
		CreatedAt:       now,
	}

	event := NewTransactionCreated(transaction)

	assert.Equal(t, "txn-1", event.TransactionID)
	assert.Equal(t, corebanking.TransactionTypeDeposit, event.Type)
	assert.Equal(t, "TXN1234ABCD", event.ReferenceNumber)
	assert.True(t, event.BalanceAfter.Equal(decimal.RequireFromString("250.00")))
	assert.Equal(t, now, event.OccurredAt)
}

func TestTransactionCreated_JSONShape(t *testing.T) {
	event := TransactionCreated{
		TransactionID:   "txn-1",
		AccountID:       "acc-1",
		Type:            corebanking.TransactionTypeTransferOut,
		Amount:          decimal.RequireFromString("25.50"),
		BalanceAfter:    decimal.RequireFromString("74.50"),
		ReferenceNumber: "TXNAA11BB22",
		OccurredAt:      time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	body, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "TRANSFER_OUT", decoded["type"])
	assert.Equal(t, "25.5", decoded["amount"])
	assert.Equal(t, "TXNAA11BB22", decoded["referenceNumber"])
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}

	require.NoError(t, p.PublishTransactionCreated(context.Background(), TransactionCreated{}))
	require.NoError(t, p.PublishInterestPosted(context.Background(), InterestPosted{}))
}
