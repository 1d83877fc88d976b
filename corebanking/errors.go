package corebanking

import (
	"errors"
	"fmt"
)

// ErrorCode is a domain error code used by core banking validations.
type ErrorCode string

const (
	// ErrorAccountNotFound indicates the referenced account does not exist.
	ErrorAccountNotFound ErrorCode = "0001"
	// ErrorCustomerNotFound indicates the referenced customer does not exist.
	ErrorCustomerNotFound ErrorCode = "0002"
	// ErrorFixedDepositNotFound indicates the referenced fixed deposit does not exist.
	ErrorFixedDepositNotFound ErrorCode = "0003"
	// ErrorAccountInactive indicates the account status blocks the operation.
	ErrorAccountInactive ErrorCode = "0010"
	// ErrorFixedDepositInactive indicates the fixed deposit is not in ACTIVE status.
	ErrorFixedDepositInactive ErrorCode = "0011"
	// ErrorInvalidStatusTransition indicates a forbidden account status transition.
	ErrorInvalidStatusTransition ErrorCode = "0012"
	// ErrorCustomerNotApproved indicates the customer KYC status is not APPROVED.
	ErrorCustomerNotApproved ErrorCode = "0013"
	// ErrorAccountNotEmpty indicates the account still holds balance or active deposits.
	ErrorAccountNotEmpty ErrorCode = "0014"
	// ErrorInvalidAmount indicates a non-positive monetary amount.
	ErrorInvalidAmount ErrorCode = "0020"
	// ErrorBelowMinimumDeposit indicates a fixed deposit below the minimum principal.
	ErrorBelowMinimumDeposit ErrorCode = "0021"
	// ErrorInvalidRate indicates an interest rate configuration outside the accepted bounds.
	ErrorInvalidRate ErrorCode = "0022"
	// ErrorInvalidTenure indicates a non-positive fixed deposit tenure.
	ErrorInvalidTenure ErrorCode = "0023"
	// ErrorInsufficientBalance indicates the source balance cannot cover the amount.
	ErrorInsufficientBalance ErrorCode = "0030"
)

// DomainError represents a structured core banking validation error.
type DomainError struct {
	Code    ErrorCode
	Field   string
	Message string
}

// Error returns the formatted domain error string.
func (e DomainError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
}

// NewDomainError creates a domain error with code, field, and message.
func NewDomainError(code ErrorCode, field, message string) error {
	return DomainError{Code: code, Field: field, Message: message}
}

// CodeOf extracts the domain error code from err, or empty if err is not a DomainError.
func CodeOf(err error) ErrorCode {
	var domainErr DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	return ""
}

// IsNotFound reports whether err is an absence error for any entity.
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case ErrorAccountNotFound, ErrorCustomerNotFound, ErrorFixedDepositNotFound:
		return true
	}

	return false
}

// IsInvalidState reports whether err is caused by an entity status blocking the operation.
func IsInvalidState(err error) bool {
	switch CodeOf(err) {
	case ErrorAccountInactive, ErrorFixedDepositInactive, ErrorInvalidStatusTransition,
		ErrorCustomerNotApproved, ErrorAccountNotEmpty:
		return true
	}

	return false
}

// IsInvalidArgument reports whether err is caused by a rejected input value.
func IsInvalidArgument(err error) bool {
	switch CodeOf(err) {
	case ErrorInvalidAmount, ErrorBelowMinimumDeposit, ErrorInvalidRate, ErrorInvalidTenure:
		return true
	}

	return false
}

// IsInsufficientBalance reports whether err indicates the balance cannot cover the amount.
func IsInsufficientBalance(err error) bool {
	return CodeOf(err) == ErrorInsufficientBalance
}
