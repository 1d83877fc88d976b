// Package postgres provides the PostgreSQL-backed ledger store.
//
// Connection manages a primary/replica pair behind a round-robin resolver
// and applies schema migrations on connect. Store implements the ledger
// store contract on top of it: atomic units map to database transactions
// carried through the context, row locks serialize per-account mutations,
// and balance writes stay conditional on the account version.
package postgres
