// Package money provides fixed-point monetary arithmetic helpers.
//
// All values are shopspring decimals. Final results are rounded half-up to
// the canonical display scale of 2; intermediate rate computations use a
// working scale of 8 fractional digits so iterative calculations do not
// compound rounding error. Comparisons are exact.
package money
