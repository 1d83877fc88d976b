// Package store defines the ledger persistence boundary.
//
// Ledger groups the per-entity repositories behind one atomic unit of work:
// WithinTransaction runs a function so that every repository call made with
// the transactional context either fully commits or fully rolls back. The
// call is reentrant: a nested WithinTransaction joins the outer unit, so
// engines can compose (an interest credit is itself a deposit) without
// breaking atomicity.
//
// Find methods return (nil, nil) when the record is absent; callers translate
// absence into domain errors. Conditional updates return ErrVersionConflict
// when the optimistic version check fails.
//
// The package ships an in-memory implementation used by unit tests; the
// durable implementation lives in the postgres package.
package store
