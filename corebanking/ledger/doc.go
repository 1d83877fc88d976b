// Package ledger implements the atomic balance-mutation and journal-writing
// engine: deposit, withdraw, and transfer.
//
// Every operation runs as one store atomic unit: the read-balance,
// compute-new-balance, write-balance, write-journal sequence for an account
// is serialized against concurrent mutations of the same account. A transfer
// spans two accounts and acquires their serialization in ascending
// account-number order so concurrent opposing transfers cannot deadlock.
// Failed operations leave the store unchanged; the caller decides whether to
// retry, correlating legs through the generated reference number.
package ledger
