package interest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/LerianStudio/lib-corebanking/corebanking/backoff"
	"github.com/LerianStudio/lib-corebanking/corebanking/events"
	"github.com/LerianStudio/lib-corebanking/corebanking/identifier"
	"github.com/LerianStudio/lib-corebanking/corebanking/ledger"
	"github.com/LerianStudio/lib-corebanking/corebanking/log"
	"github.com/LerianStudio/lib-corebanking/corebanking/money"
	"github.com/LerianStudio/lib-corebanking/corebanking/store"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/LerianStudio/lib-corebanking/corebanking/interest"

	defaultMaxAttempts = 3
	defaultRetryBase   = 20 * time.Millisecond

	dateLayout = "2006-01-02"
)

var maxAnnualRate = decimal.NewFromInt(50)

// Engine accrues interest on accounts. Accrual credits are journaled through
// the ledger engine so they share the journal's serialization and audit path.
type Engine struct {
	store       store.Ledger
	ledger      *ledger.Engine
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

// WithPublisher sets the accrual event publisher.
func WithPublisher(publisher events.Publisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

// WithClock overrides the wall clock, making posting dates deterministic in
// tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an interest engine on top of the given store and ledger engine.
func New(st store.Ledger, ledgerEngine *ledger.Engine, opts ...Option) *Engine {
	engine := &Engine{
		store:       st,
		ledger:      ledgerEngine,
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

// RateSpec describes a rate configuration to create.
type RateSpec struct {
	AccountType   corebanking.AccountType
	AnnualRate    decimal.Decimal
	MinBalance    *decimal.Decimal
	MaxBalance    *decimal.Decimal
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
}

// CreateRate validates and persists a rate configuration. The annual rate
// must lie in [0, 50] percent and a bounded tier must have MinBalance at or
// below MaxBalance.
func (e *Engine) CreateRate(ctx context.Context, spec RateSpec) (*corebanking.InterestRate, error) {
	ctx, span := e.tracer.Start(ctx, "interest.CreateRate")
	defer span.End()

	if spec.AnnualRate.IsNegative() || spec.AnnualRate.GreaterThan(maxAnnualRate) {
		return nil, corebanking.NewDomainError(corebanking.ErrorInvalidRate, "annualRate", "annual rate must be between 0 and 50 percent")
	}

	if spec.MinBalance != nil && spec.MaxBalance != nil && spec.MinBalance.GreaterThan(*spec.MaxBalance) {
		return nil, corebanking.NewDomainError(corebanking.ErrorInvalidRate, "minBalance", "minimum balance must not exceed maximum balance")
	}

	if spec.EffectiveTo != nil && spec.EffectiveTo.Before(spec.EffectiveFrom) {
		return nil, corebanking.NewDomainError(corebanking.ErrorInvalidRate, "effectiveTo", "effective-to must not precede effective-from")
	}

	rate := &corebanking.InterestRate{
		ID:            identifier.NewID(),
		AccountType:   spec.AccountType,
		AnnualRate:    spec.AnnualRate,
		MinBalance:    spec.MinBalance,
		MaxBalance:    spec.MaxBalance,
		EffectiveFrom: spec.EffectiveFrom,
		EffectiveTo:   spec.EffectiveTo,
		Active:        true,
	}

	if err := e.store.Rates().Create(ctx, rate); err != nil {
		return nil, err
	}

	e.logger.Infof("created %s rate %s%% effective from %s", rate.AccountType, rate.AnnualRate, rate.EffectiveFrom.Format(dateLayout))

	return rate, nil
}

// ActiveRates returns the active rate configurations for an account type.
func (e *Engine) ActiveRates(ctx context.Context, accountType corebanking.AccountType) ([]*corebanking.InterestRate, error) {
	return e.store.Rates().ListActive(ctx, accountType)
}

// ApplicableRate returns the single rate that applies to the given account
// type and balance at asOf, or (nil, nil) when no configured rate matches.
func (e *Engine) ApplicableRate(ctx context.Context, accountType corebanking.AccountType, balance decimal.Decimal, asOf time.Time) (*corebanking.InterestRate, error) {
	return e.store.Rates().FindApplicable(ctx, accountType, balance, asOf)
}

// AccountHistory returns the account's accrual records.
func (e *Engine) AccountHistory(ctx context.Context, accountID string) ([]*corebanking.InterestPosting, error) {
	return e.store.Postings().ListByAccount(ctx, accountID)
}

// PostInterest accrues simple interest on the account's current balance for
// the period [from, to] and credits it as a deposit. The posting record, the
// journal entry, and the reference back-fill commit as one atomic unit.
//
// Returns (nil, nil) without writing anything when the period spans no whole
// day, no rate applies to the balance as of the period end, or the computed
// interest rounds below one payable cent.
func (e *Engine) PostInterest(ctx context.Context, accountID string, from, to time.Time) (*corebanking.InterestPosting, error) {
	ctx, span := e.tracer.Start(ctx, "interest.PostInterest")
	defer span.End()

	days := int(to.Sub(from).Hours() / 24)
	if days <= 0 {
		return nil, nil
	}

	var posting *corebanking.InterestPosting

	err := e.atomically(ctx, "PostInterest", func(ctx context.Context) error {
		account, err := e.store.Accounts().FindByID(ctx, accountID)
		if err != nil {
			return err
		}

		if account == nil {
			return corebanking.NewDomainError(corebanking.ErrorAccountNotFound, "accountId", "account not found")
		}

		if !account.IsActive() {
			return corebanking.NewDomainError(corebanking.ErrorAccountInactive, "accountId", "account is not active")
		}

		rate, err := e.store.Rates().FindApplicable(ctx, account.Type, account.Balance, to)
		if err != nil {
			return err
		}

		if rate == nil {
			e.logger.Debugf("no applicable rate for account %s, skipping accrual", account.Number)
			return nil
		}

		interest := SimpleInterest(account.Balance, rate.AnnualRate, days)
		if !money.IsPayable(interest) {
			return nil
		}

		posting = &corebanking.InterestPosting{
			ID:          identifier.NewID(),
			AccountID:   account.ID,
			PostingDate: e.now(),
			Amount:      interest,
			PeriodFrom:  from,
			PeriodTo:    to,
			BalanceUsed: account.Balance,
			RateApplied: rate.AnnualRate,
		}

		if err := e.store.Postings().Create(ctx, posting); err != nil {
			return err
		}

		description := fmt.Sprintf("Interest credit for period %s to %s", from.Format(dateLayout), to.Format(dateLayout))

		entry, err := e.ledger.Deposit(ctx, account.Number, interest, description)
		if err != nil {
			return err
		}

		if err := e.store.Postings().SetTransactionReference(ctx, posting.ID, entry.ReferenceNumber); err != nil {
			return err
		}

		posting.TransactionReference = entry.ReferenceNumber

		return nil
	})
	if err != nil {
		return nil, err
	}

	if posting != nil {
		e.emitPosting(ctx, posting)
	}

	return posting, nil
}

// ProcessMonthlyInterest accrues one month of interest, ending at asOf, on
// every ACTIVE savings account. Item failures are isolated in the result;
// accounts with no applicable rate or sub-cent interest count as skipped.
func (e *Engine) ProcessMonthlyInterest(ctx context.Context, asOf time.Time) (*corebanking.BatchResult, error) {
	ctx, span := e.tracer.Start(ctx, "interest.ProcessMonthlyInterest")
	defer span.End()

	accounts, err := e.store.Accounts().ListByTypeAndStatus(ctx, corebanking.AccountTypeSavings, corebanking.AccountStatusActive)
	if err != nil {
		return nil, err
	}

	from := asOf.AddDate(0, -1, 0)
	result := &corebanking.BatchResult{}

	for _, account := range accounts {
		posting, err := e.PostInterest(ctx, account.ID, from, asOf)
		if err != nil {
			e.logger.Errorf("monthly accrual on account %s: %v", account.Number, err)
			result.Fail(account.Number, err)

			continue
		}

		if posting == nil {
			result.Skipped++
			continue
		}

		result.Processed++
	}

	e.logger.Infof("monthly accrual as of %s: %d posted, %d skipped, %d failed",
		asOf.Format(dateLayout), result.Processed, result.Skipped, len(result.Failures))

	return result, nil
}

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

// emitPosting publishes the accrual event. Publishing is best effort; a
// failure is logged and never undoes the commit.
func (e *Engine) emitPosting(ctx context.Context, posting *corebanking.InterestPosting) {
	if err := e.publisher.PublishInterestPosted(ctx, events.NewInterestPosted(posting)); err != nil {
		e.logger.Errorf("publish interest event %s: %v", posting.ID, err)
	}
}
