package identifier

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	accountNumberDigits     = 10
	fixedDepositDigits      = 9
	referenceNumberHexChars = 8
	maxUniqueAttempts       = 5
)

// ErrExhaustedAttempts is returned when a unique number cannot be produced
// within maxUniqueAttempts tries.
var ErrExhaustedAttempts = errors.New("identifier: exhausted unique generation attempts")

// ExistsFunc reports whether a candidate identifier is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// NewID returns a new opaque entity identifier.
func NewID() string {
	return uuid.New().String()
}

// ReferenceNumber returns a transaction reference of the form TXN<8 hex>,
// derived from a random UUID. The reference correlates the two legs of a
// transfer and links an interest posting to its generated transaction.
func ReferenceNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")

	return "TXN" + strings.ToUpper(raw[:referenceNumberHexChars])
}

// AccountNumber generates a unique 10-digit account number, checking each
// candidate against exists. The first digit is never zero.
func AccountNumber(ctx context.Context, exists ExistsFunc) (string, error) {
	return unique(ctx, exists, func() (string, error) {
		return randomDigits(accountNumberDigits)
	})
}

// FixedDepositNumber generates a unique fixed deposit number of the form
// FD<9 digits>, checking each candidate against exists.
func FixedDepositNumber(ctx context.Context, exists ExistsFunc) (string, error) {
	return unique(ctx, exists, func() (string, error) {
		digits, err := randomDigits(fixedDepositDigits)
		if err != nil {
			return "", err
		}

		return "FD" + digits, nil
	})
}

func unique(ctx context.Context, exists ExistsFunc, generate func() (string, error)) (string, error) {
	for attempt := 0; attempt < maxUniqueAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate, err := generate()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check identifier existence: %w", err)
		}

		if !taken {
			return candidate, nil
		}
	}

	return "", ErrExhaustedAttempts
}

// randomDigits returns n decimal digits with a non-zero leading digit.
func randomDigits(n int) (string, error) {
	var sb strings.Builder

	sb.Grow(n)

	for i := 0; i < n; i++ {
		low := int64(0)
		if i == 0 {
			low = 1
		}

		digit, err := rand.Int(rand.Reader, big.NewInt(10-low))
		if err != nil {
			return "", fmt.Errorf("read random digit: %w", err)
		}

		sb.WriteByte(byte('0' + low + digit.Int64()))
	}

	return sb.String(), nil
}
