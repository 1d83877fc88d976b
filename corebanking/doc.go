// Package corebanking provides the shared domain model for the transactional
// core of a retail banking ledger.
//
// The package holds the entities mutated by the engine subpackages (Account,
// Transaction, InterestRate, InterestPosting, FixedDeposit) together with the
// typed domain errors surfaced to callers. All monetary fields are
// shopspring decimals; the core never uses floating point for money.
//
// This package is intentionally dependency-light; behavior lives in
// subpackages such as ledger, interest, fixeddeposit, and directory.
package corebanking
