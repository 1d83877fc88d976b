package identifier

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	accountNumberPattern = regexp.MustCompile(`^[1-9][0-9]{9}$`)
	fdNumberPattern      = regexp.MustCompile(`^FD[1-9][0-9]{8}$`)
	referencePattern     = regexp.MustCompile(`^TXN[0-9A-F]{8}$`)
)

func neverExists(context.Context, string) (bool, error) {
	return false, nil
}

func TestReferenceNumber(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		ref := ReferenceNumber()
		assert.Regexp(t, referencePattern, ref)

		seen[ref] = struct{}{}
	}

	assert.Len(t, seen, 100, "references must not collide in a small sample")
}

func TestAccountNumber(t *testing.T) {
	number, err := AccountNumber(context.Background(), neverExists)
	require.NoError(t, err)
	assert.Regexp(t, accountNumberPattern, number)
}

func TestAccountNumber_SkipsTakenCandidates(t *testing.T) {
	calls := 0
	exists := func(context.Context, string) (bool, error) {
		calls++

		return calls < 3, nil
	}

	number, err := AccountNumber(context.Background(), exists)
	require.NoError(t, err)
	assert.Regexp(t, accountNumberPattern, number)
	assert.Equal(t, 3, calls)
}

func TestAccountNumber_BoundedAttempts(t *testing.T) {
	alwaysTaken := func(context.Context, string) (bool, error) {
		return true, nil
	}

	_, err := AccountNumber(context.Background(), alwaysTaken)
	require.ErrorIs(t, err, ErrExhaustedAttempts)
}

func TestFixedDepositNumber(t *testing.T) {
	number, err := FixedDepositNumber(context.Background(), neverExists)
	require.NoError(t, err)
	assert.Regexp(t, fdNumberPattern, number)
}

func TestAccountNumber_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AccountNumber(ctx, neverExists)
	require.ErrorIs(t, err, context.Canceled)
}
