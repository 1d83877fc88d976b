// Package events fans immutable ledger records out to audit and reporting
// consumers.
//
// The ledger engine publishes a transaction-created event after each
// committed journal write, and the interest engine publishes an
// interest-posted event per accrual. Publishing is best effort: a failed
// publish is logged by the caller and never rolls back the committed unit,
// since downstream consumers can always re-read the immutable records.
package events
