// Package identifier generates the caller-visible identifiers used by the
// core: account numbers, fixed deposit numbers, and transaction reference
// numbers.
//
// Numbers are drawn from crypto/rand instead of a seeded PRNG, and uniqueness
// is enforced with a bounded number of existence-checked attempts rather than
// an unbounded retry loop, so generation stays predictable under contention.
package identifier
