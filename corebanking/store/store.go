package store

import (
	"context"
	"errors"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/shopspring/decimal"
)

var (
	// ErrVersionConflict is returned when an optimistic conditional update
	// observes a version different from the expected one.
	ErrVersionConflict = errors.New("store: account version conflict")
	// ErrNotFound is returned by update operations targeting an absent record.
	ErrNotFound = errors.New("store: record not found")
)

// Ledger is the durable keyed storage consumed by the engines.
type Ledger interface {
	// WithinTransaction runs fn as one atomic unit. The context passed to fn
	// carries the unit; repository calls made with it join the unit. Nested
	// calls join the outer unit instead of opening a new one.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// InTransaction reports whether ctx already carries an open atomic unit.
	// Engines use it to retry optimistic conflicts only when they own the
	// unit; a joined unit is retried by its owner.
	InTransaction(ctx context.Context) bool

	Accounts() AccountRepository
	Transactions() TransactionRepository
	Rates() RateRepository
	Postings() PostingRepository
	FixedDeposits() FixedDepositRepository
}

// AccountRepository persists accounts. Balance writes are conditional on the
// account version so concurrent mutations of the same account serialize.
type AccountRepository interface {
	Create(ctx context.Context, account *corebanking.Account) error
	FindByID(ctx context.Context, id string) (*corebanking.Account, error)
	// FindByIDForUpdate is FindByID holding the account's row serialization
	// until the atomic unit ends, so status preconditions checked on the read
	// stay true through the write.
	FindByIDForUpdate(ctx context.Context, id string) (*corebanking.Account, error)
	FindByNumber(ctx context.Context, number string) (*corebanking.Account, error)
	// FindByNumberForUpdate loads the account and, inside an atomic unit,
	// holds its row serialization until the unit ends. Callers locking more
	// than one account must do so in ascending account-number order.
	FindByNumberForUpdate(ctx context.Context, number string) (*corebanking.Account, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, expectedVersion int64) error
	UpdateStatus(ctx context.Context, id string, status corebanking.AccountStatus, closedAt *time.Time) error
	ListByTypeAndStatus(ctx context.Context, accountType corebanking.AccountType, status corebanking.AccountStatus) ([]*corebanking.Account, error)
}

// TransactionRepository persists journal entries. Entries are append-only;
// there is deliberately no update or delete operation.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *corebanking.Transaction) error
	// ListByAccount returns the account's entries, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]*corebanking.Transaction, error)
	ListByReference(ctx context.Context, reference string) ([]*corebanking.Transaction, error)
}

// RateRepository persists interest rate configurations.
type RateRepository interface {
	Create(ctx context.Context, rate *corebanking.InterestRate) error
	// FindApplicable returns the single rate whose effective window contains
	// asOf and whose tier bounds contain balance. When several rates match,
	// the deterministic tie-break in InterestRate.MoreSpecificThan decides.
	// Returns (nil, nil) when no rate matches.
	FindApplicable(ctx context.Context, accountType corebanking.AccountType, balance decimal.Decimal, asOf time.Time) (*corebanking.InterestRate, error)
	ListActive(ctx context.Context, accountType corebanking.AccountType) ([]*corebanking.InterestRate, error)
}

// PostingRepository persists interest accrual records. SetTransactionReference
// is the single permitted write after creation: the accrual credit's reference
// is back-filled before the enclosing atomic unit commits, after which the
// record is immutable.
type PostingRepository interface {
	Create(ctx context.Context, posting *corebanking.InterestPosting) error
	SetTransactionReference(ctx context.Context, postingID, reference string) error
	ListByAccount(ctx context.Context, accountID string) ([]*corebanking.InterestPosting, error)
}

// FixedDepositRepository persists term deposits.
type FixedDepositRepository interface {
	Create(ctx context.Context, deposit *corebanking.FixedDeposit) error
	FindByNumber(ctx context.Context, number string) (*corebanking.FixedDeposit, error)
	// FindByNumberForUpdate is FindByNumber holding the deposit's row
	// serialization until the atomic unit ends, so concurrent closures and
	// renewals of the same deposit observe each other's terminal status.
	FindByNumberForUpdate(ctx context.Context, number string) (*corebanking.FixedDeposit, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	Update(ctx context.Context, deposit *corebanking.FixedDeposit) error
	ListByAccount(ctx context.Context, accountID string) ([]*corebanking.FixedDeposit, error)
	// ListMatured returns ACTIVE deposits whose maturity date is at or before asOf.
	ListMatured(ctx context.Context, asOf time.Time) ([]*corebanking.FixedDeposit, error)
	ExistsActiveByAccount(ctx context.Context, accountID string) (bool, error)
}
