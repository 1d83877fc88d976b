// Package fixeddeposit manages the term-deposit lifecycle: opening against a
// funding account, maturity and premature closure with payout, in-place
// renewal, and the maturity sweep.
//
// Every lifecycle mutation moves money through the ledger engine inside one
// atomic unit with the deposit record write, so a failed record persist also
// rolls back the funding or payout leg.
package fixeddeposit
