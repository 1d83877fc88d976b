// Package directory opens accounts and manages their status lifecycle.
//
// Opening an account consults a customer reviewer for KYC approval and
// allocates a collision-checked account number. Closing an account requires a
// zero balance and no active term deposits, and stamps the closure time.
package directory
