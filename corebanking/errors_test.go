package corebanking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	t.Parallel()

	err := NewDomainError(ErrorInsufficientBalance, "amount", "balance cannot cover the amount")
	assert.Contains(t, err.Error(), string(ErrorInsufficientBalance))
	assert.Contains(t, err.Error(), "balance cannot cover the amount")
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrorAccountNotFound, CodeOf(NewDomainError(ErrorAccountNotFound, "id", "missing")))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain error")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestErrorKindPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		code      ErrorCode
		predicate func(error) bool
	}{
		{name: "account not found", code: ErrorAccountNotFound, predicate: IsNotFound},
		{name: "customer not found", code: ErrorCustomerNotFound, predicate: IsNotFound},
		{name: "fixed deposit not found", code: ErrorFixedDepositNotFound, predicate: IsNotFound},
		{name: "account inactive", code: ErrorAccountInactive, predicate: IsInvalidState},
		{name: "fixed deposit inactive", code: ErrorFixedDepositInactive, predicate: IsInvalidState},
		{name: "invalid transition", code: ErrorInvalidStatusTransition, predicate: IsInvalidState},
		{name: "customer not approved", code: ErrorCustomerNotApproved, predicate: IsInvalidState},
		{name: "account not empty", code: ErrorAccountNotEmpty, predicate: IsInvalidState},
		{name: "invalid amount", code: ErrorInvalidAmount, predicate: IsInvalidArgument},
		{name: "below minimum deposit", code: ErrorBelowMinimumDeposit, predicate: IsInvalidArgument},
		{name: "invalid rate", code: ErrorInvalidRate, predicate: IsInvalidArgument},
		{name: "invalid tenure", code: ErrorInvalidTenure, predicate: IsInvalidArgument},
		{name: "insufficient balance", code: ErrorInsufficientBalance, predicate: IsInsufficientBalance},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewDomainError(tt.code, "field", "message")
			assert.True(t, tt.predicate(err))
		})
	}
}

func TestErrorKindPredicates_RejectOtherKinds(t *testing.T) {
	t.Parallel()

	notFound := NewDomainError(ErrorAccountNotFound, "id", "missing")

	assert.False(t, IsInvalidState(notFound))
	assert.False(t, IsInvalidArgument(notFound))
	assert.False(t, IsInsufficientBalance(notFound))
	assert.False(t, IsNotFound(errors.New("plain error")))
}
