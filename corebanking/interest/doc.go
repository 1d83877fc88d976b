// Package interest implements accrual posting and maturity projection.
//
// Simple interest accrues daily against a point-in-time balance snapshot;
// compound interest applies the monthly factor iteratively, one
// multiplication per month, so rounding behavior per compounding step is
// stable. An accrual credit is itself a ledger deposit: PostInterest persists
// the posting record, journals the credit, and back-fills the transaction
// reference inside one atomic unit.
package interest
