package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/LerianStudio/lib-corebanking/corebanking/backoff"
	"github.com/LerianStudio/lib-corebanking/corebanking/events"
	"github.com/LerianStudio/lib-corebanking/corebanking/identifier"
	"github.com/LerianStudio/lib-corebanking/corebanking/log"
	"github.com/LerianStudio/lib-corebanking/corebanking/money"
	"github.com/LerianStudio/lib-corebanking/corebanking/store"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/LerianStudio/lib-corebanking/corebanking/ledger"

	defaultMaxAttempts = 3
	defaultRetryBase   = 20 * time.Millisecond
)

// Engine mutates account balances and writes the immutable journal.
type Engine struct {
	store       store.Ledger
	logger      log.Logger
	publisher   events.Publisher
	tracer      trace.Tracer
	now         func() time.Time
	maxAttempts int
	retryBase   time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithPublisher sets the audit event publisher.
func WithPublisher(publisher events.Publisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

// WithClock overrides the wall clock, making journal timestamps deterministic
// in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a ledger engine on top of the given store.
func New(st store.Ledger, opts ...Option) *Engine {
	engine := &Engine{
		store:       st,
		logger:      log.NoneLogger{},
		publisher:   events.NopPublisher{},
		tracer:      otel.Tracer(tracerName),
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: defaultMaxAttempts,
		retryBase:   defaultRetryBase,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Deposit credits amount to the account and journals a DEPOSIT entry carrying
// the post-mutation balance.
func (e *Engine) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal, description string) (*corebanking.Transaction, error) {
	ctx, span := e.tracer.Start(ctx, "ledger.Deposit")
	defer span.End()

	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var entry *corebanking.Transaction

	err := e.atomically(ctx, "deposit", func(ctx context.Context) error {
		account, err := e.activeAccount(ctx, accountNumber, "accountNumber")
		if err != nil {
			return err
		}

		created, err := e.applyEntry(ctx, account, corebanking.TransactionTypeDeposit, amount, description, "")
		if err != nil {
			return err
		}

		entry = created

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emitTransaction(ctx, entry)

	return entry, nil
}

// Withdraw debits amount from the account and journals a WITHDRAWAL entry.
// The balance never goes negative; overdrawing fails with an insufficient
// balance error and leaves the store unchanged.
func (e *Engine) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal, description string) (*corebanking.Transaction, error) {
	ctx, span := e.tracer.Start(ctx, "ledger.Withdraw")
	defer span.End()

	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var entry *corebanking.Transaction

	err := e.atomically(ctx, "withdraw", func(ctx context.Context) error {
		account, err := e.activeAccount(ctx, accountNumber, "accountNumber")
		if err != nil {
			return err
		}

		if account.Balance.LessThan(amount) {
			return corebanking.NewDomainError(corebanking.ErrorInsufficientBalance, "amount", "balance cannot cover the requested amount")
		}

		created, err := e.applyEntry(ctx, account, corebanking.TransactionTypeWithdrawal, amount, description, "")
		if err != nil {
			return err
		}

		entry = created

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emitTransaction(ctx, entry)

	return entry, nil
}

// Transfer atomically debits the source and credits the destination,
// producing two journal entries that share one reference number. Either both
// legs commit or neither does.
func (e *Engine) Transfer(ctx context.Context, fromNumber, toNumber string, amount decimal.Decimal, description string) (*corebanking.Transaction, *corebanking.Transaction, error) {
	ctx, span := e.tracer.Start(ctx, "ledger.Transfer")
	defer span.End()

	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}

	if fromNumber == toNumber {
		return nil, nil, corebanking.NewDomainError(corebanking.ErrorInvalidAmount, "toAccountNumber", "source and destination accounts must differ")
	}

	var debit, credit *corebanking.Transaction

	err := e.atomically(ctx, "transfer", func(ctx context.Context) error {
		source, destination, err := e.lockPair(ctx, fromNumber, toNumber)
		if err != nil {
			return err
		}

		if source.Balance.LessThan(amount) {
			return corebanking.NewDomainError(corebanking.ErrorInsufficientBalance, "amount", "source balance cannot cover the requested amount")
		}

		reference := identifier.ReferenceNumber()

		debit, err = e.applyEntryWithReference(ctx, source, corebanking.TransactionTypeTransferOut, amount, description, destination.Number, reference)
		if err != nil {
			return err
		}

		credit, err = e.applyEntryWithReference(ctx, destination, corebanking.TransactionTypeTransferIn, amount, description, source.Number, reference)

		return err
	})
	if err != nil {
		return nil, nil, err
	}

	e.emitTransaction(ctx, debit)
	e.emitTransaction(ctx, credit)

	return debit, credit, nil
}

// History returns the account's journal entries, newest first.
func (e *Engine) History(ctx context.Context, accountID string) ([]*corebanking.Transaction, error) {
	return e.store.Transactions().ListByAccount(ctx, accountID)
}

// FindByReference returns every journal entry sharing a reference number:
// one entry for deposits and withdrawals, the two legs for transfers.
func (e *Engine) FindByReference(ctx context.Context, reference string) ([]*corebanking.Transaction, error) {
	return e.store.Transactions().ListByReference(ctx, reference)
}

// atomically runs fn as one atomic unit, retrying a bounded number of times
// with jittered backoff when the store reports an optimistic version
// conflict. A conflicted unit rolled back before any write became visible, so
// re-running it never double-applies. When ctx already carries a unit owned
// by a caller, fn joins it and conflicts bubble up instead.
func (e *Engine) atomically(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if e.store.InTransaction(ctx) {
		return fn(ctx)
	}

	var err error

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		err = e.store.WithinTransaction(ctx, fn)
		if !errors.Is(err, store.ErrVersionConflict) {
			return err
		}

		e.logger.Warnf("%s: version conflict, retrying attempt %d", op, attempt+1)

		if sleepErr := backoff.SleepWithContext(ctx, backoff.ExponentialWithJitter(e.retryBase, attempt)); sleepErr != nil {
			return sleepErr
		}
	}

	return err
}

// activeAccount loads an account by number under the unit's serialization and
// checks it accepts balance mutations.
func (e *Engine) activeAccount(ctx context.Context, number, field string) (*corebanking.Account, error) {
	account, err := e.store.Accounts().FindByNumberForUpdate(ctx, number)
	if err != nil {
		return nil, err
	}

	if account == nil {
		return nil, corebanking.NewDomainError(corebanking.ErrorAccountNotFound, field, "account not found")
	}

	if !account.IsActive() {
		return nil, corebanking.NewDomainError(corebanking.ErrorAccountInactive, field, "account is not active")
	}

	return account, nil
}

// lockPair loads both transfer accounts under the unit's serialization,
// acquiring them in ascending account-number order to avoid deadlock with
// concurrent opposing transfers.
func (e *Engine) lockPair(ctx context.Context, fromNumber, toNumber string) (*corebanking.Account, *corebanking.Account, error) {
	first, second := fromNumber, toNumber
	if second < first {
		first, second = second, first
	}

	firstAccount, err := e.activeAccount(ctx, first, fieldFor(first, fromNumber))
	if err != nil {
		return nil, nil, err
	}

	secondAccount, err := e.activeAccount(ctx, second, fieldFor(second, fromNumber))
	if err != nil {
		return nil, nil, err
	}

	if firstAccount.Number == fromNumber {
		return firstAccount, secondAccount, nil
	}

	return secondAccount, firstAccount, nil
}

func fieldFor(number, fromNumber string) string {
	if number == fromNumber {
		return "fromAccountNumber"
	}

	return "toAccountNumber"
}

// applyEntry mutates the balance and journals the entry under the current
// atomic unit, generating a fresh reference number.
func (e *Engine) applyEntry(ctx context.Context, account *corebanking.Account, entryType corebanking.TransactionType, amount decimal.Decimal, description, counterpart string) (*corebanking.Transaction, error) {
	return e.applyEntryWithReference(ctx, account, entryType, amount, description, counterpart, identifier.ReferenceNumber())
}

func (e *Engine) applyEntryWithReference(ctx context.Context, account *corebanking.Account, entryType corebanking.TransactionType, amount decimal.Decimal, description, counterpart, reference string) (*corebanking.Transaction, error) {
	newBalance := account.Balance.Add(amount)
	if entryType == corebanking.TransactionTypeWithdrawal || entryType == corebanking.TransactionTypeTransferOut {
		newBalance = account.Balance.Sub(amount)
	}

	if err := e.store.Accounts().UpdateBalance(ctx, account.ID, newBalance, account.Version); err != nil {
		return nil, err
	}

	entry := &corebanking.Transaction{
		ID:                identifier.NewID(),
		AccountID:         account.ID,
		Type:              entryType,
		Amount:            amount,
		Description:       description,
		BalanceAfter:      newBalance,
		ReferenceNumber:   reference,
		CounterpartNumber: counterpart,
		CreatedAt:         e.now(),
	}

	if err := e.store.Transactions().Create(ctx, entry); err != nil {
		return nil, err
	}

	e.logger.Debugf("journaled %s of %s on account %s, balance %s", entryType, amount, account.Number, newBalance)

	return entry, nil
}

// emitTransaction publishes the audit event for a committed entry. Publishing
// is best effort; a failure is logged and never undoes the commit.
func (e *Engine) emitTransaction(ctx context.Context, entry *corebanking.Transaction) {
	if entry == nil {
		return
	}

	if err := e.publisher.PublishTransactionCreated(ctx, events.NewTransactionCreated(entry)); err != nil {
		e.logger.Errorf("publish transaction event %s: %v", entry.ReferenceNumber, err)
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !money.IsPayable(amount) {
		return corebanking.NewDomainError(corebanking.ErrorInvalidAmount, "amount", "amount must be greater than zero")
	}

	if !amount.Equal(money.Round(amount)) {
		return corebanking.NewDomainError(corebanking.ErrorInvalidAmount, "amount", "amount must have at most 2 decimal places")
	}

	return nil
}
