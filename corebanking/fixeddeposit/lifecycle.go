package fixeddeposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/LerianStudio/lib-corebanking/corebanking/backoff"
	"github.com/LerianStudio/lib-corebanking/corebanking/identifier"
	"github.com/LerianStudio/lib-corebanking/corebanking/interest"
	"github.com/LerianStudio/lib-corebanking/corebanking/ledger"
	"github.com/LerianStudio/lib-corebanking/corebanking/log"
	"github.com/LerianStudio/lib-corebanking/corebanking/money"
	"github.com/LerianStudio/lib-corebanking/corebanking/store"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/LerianStudio/lib-corebanking/corebanking/fixeddeposit"

	defaultMaxAttempts = 3
	defaultRetryBase   = 20 * time.Millisecond
)

var (
	minimumPrincipal = decimal.NewFromInt(1000)
	penaltyPoints    = decimal.NewFromInt(1)
)

// Lifecycle manages term deposits end to end. Funding and payout legs move
// through the ledger engine inside the same atomic unit as the deposit record
// write.
type Lifecycle struct {
	store       store.Ledger
	ledger      *ledger.Engine
	logger      log.Logger
	tracer      trace.Tracer
	now         func() time.Time
	maxAttempts int
	retryBase   time.Duration
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithLogger sets the lifecycle logger.
func WithLogger(logger log.Logger) Option {
	return func(l *Lifecycle) { l.logger = logger }
}

// WithClock overrides the wall clock, making start and maturity dates
// deterministic in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// New creates a fixed deposit lifecycle on top of the given store and ledger
// engine.
func New(st store.Ledger, ledgerEngine *ledger.Engine, opts ...Option) *Lifecycle {
	lifecycle := &Lifecycle{
		store:       st,
		ledger:      ledgerEngine,
		logger:      log.NoneLogger{},
		tracer:      otel.Tracer(tracerName),
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: defaultMaxAttempts,
		retryBase:   defaultRetryBase,
	}

	for _, opt := range opts {
		opt(lifecycle)
	}

	return lifecycle
}

// OpenSpec describes a term deposit to open.
type OpenSpec struct {
	AccountNumber string
	Amount        decimal.Decimal
	AnnualRate    decimal.Decimal
	TenureMonths  int
	AutoRenewal   bool
}

// Open funds a new term deposit by withdrawing the principal from the source
// account and persisting the deposit record, both in one atomic unit. The
// maturity amount is fixed at open time: principal plus compound interest at
// the quoted rate over the tenure.
func (l *Lifecycle) Open(ctx context.Context, spec OpenSpec) (*corebanking.FixedDeposit, error) {
	ctx, span := l.tracer.Start(ctx, "fixeddeposit.Open")
	defer span.End()

	if spec.Amount.LessThan(minimumPrincipal) {
		return nil, corebanking.NewDomainError(corebanking.ErrorBelowMinimumDeposit, "amount", "fixed deposit amount must be at least 1000")
	}

	if !spec.Amount.Equal(money.Round(spec.Amount)) {
		return nil, corebanking.NewDomainError(corebanking.ErrorInvalidAmount, "amount", "amount must have at most 2 decimal places")
	}

	if spec.AnnualRate.IsNegative() {
		return nil, corebanking.NewDomainError(corebanking.ErrorInvalidRate, "annualRate", "annual rate must not be negative")
	}

	if spec.TenureMonths < 1 {
		return nil, corebanking.NewDomainError(corebanking.ErrorInvalidTenure, "tenureMonths", "tenure must be at least 1 month")
	}

	var deposit *corebanking.FixedDeposit

	err := l.atomically(ctx, "Open", func(ctx context.Context) error {
		number, err := identifier.FixedDepositNumber(ctx, l.store.FixedDeposits().ExistsByNumber)
		if err != nil {
			return err
		}

		entry, err := l.ledger.Withdraw(ctx, spec.AccountNumber, spec.Amount, fmt.Sprintf("Fixed deposit %s funding", number))
		if err != nil {
			return err
		}

		start := l.now()

		deposit = &corebanking.FixedDeposit{
			ID:             identifier.NewID(),
			AccountID:      entry.AccountID,
			Number:         number,
			Principal:      spec.Amount,
			AnnualRate:     spec.AnnualRate,
			TenureMonths:   spec.TenureMonths,
			StartDate:      start,
			MaturityDate:   start.AddDate(0, spec.TenureMonths, 0),
			MaturityAmount: spec.Amount.Add(interest.CompoundInterest(spec.Amount, spec.AnnualRate, spec.TenureMonths)),
			AutoRenewal:    spec.AutoRenewal,
			Status:         corebanking.FixedDepositStatusActive,
		}

		return l.store.FixedDeposits().Create(ctx, deposit)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Infof("opened fixed deposit %s of %s maturing %s", deposit.Number, deposit.Principal, deposit.MaturityDate.Format("2006-01-02"))

	return deposit, nil
}

// Close pays out an ACTIVE deposit and moves it to its terminal status.
//
// With premature false, the deposit matures: the payout is exactly the
// maturity amount fixed at open time. With premature true, the quoted rate is
// reduced by 1.0 percentage point (floored at zero) and compound interest is
// recomputed on the principal over the whole months elapsed since start,
// counting at least one month.
//
// The payout is credited to the owning account before the terminal record
// persists, inside one atomic unit.
func (l *Lifecycle) Close(ctx context.Context, fdNumber string, premature bool) (*corebanking.FixedDeposit, error) {
	ctx, span := l.tracer.Start(ctx, "fixeddeposit.Close")
	defer span.End()

	var deposit *corebanking.FixedDeposit

	err := l.atomically(ctx, "Close", func(ctx context.Context) error {
		fd, err := l.activeDeposit(ctx, fdNumber)
		if err != nil {
			return err
		}

		account, err := l.store.Accounts().FindByID(ctx, fd.AccountID)
		if err != nil {
			return err
		}

		if account == nil {
			return corebanking.NewDomainError(corebanking.ErrorAccountNotFound, "accountId", "owning account not found")
		}

		payout := fd.MaturityAmount
		description := fmt.Sprintf("Fixed deposit %s maturity payout", fd.Number)

		if premature {
			closedAt := l.now()
			penalized := fd.AnnualRate.Sub(penaltyPoints)

			if penalized.IsNegative() {
				penalized = decimal.Zero
			}

			months := wholeMonths(fd.StartDate, closedAt)
			if months < 1 {
				months = 1
			}

			payout = fd.Principal.Add(interest.CompoundInterest(fd.Principal, penalized, months))
			description = fmt.Sprintf("Fixed deposit %s premature closure payout", fd.Number)

			fd.Status = corebanking.FixedDepositStatusClosedPrematurely
			fd.PrematureAt = &closedAt
			fd.PenaltyRate = &penalized
		} else {
			fd.Status = corebanking.FixedDepositStatusMatured
		}

		if _, err := l.ledger.Deposit(ctx, account.Number, payout, description); err != nil {
			return err
		}

		if err := l.store.FixedDeposits().Update(ctx, fd); err != nil {
			return err
		}

		deposit = fd

		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Infof("closed fixed deposit %s as %s", deposit.Number, deposit.Status)

	return deposit, nil
}

// Renew rolls an ACTIVE deposit into a fresh term on the same record: the
// previous maturity amount becomes the new principal, the term restarts now
// at the unchanged rate and tenure, and the record is marked RENEWED. No
// money moves; the principal stays inside the deposit.
func (l *Lifecycle) Renew(ctx context.Context, fdNumber string) (*corebanking.FixedDeposit, error) {
	ctx, span := l.tracer.Start(ctx, "fixeddeposit.Renew")
	defer span.End()

	var deposit *corebanking.FixedDeposit

	err := l.atomically(ctx, "Renew", func(ctx context.Context) error {
		fd, err := l.activeDeposit(ctx, fdNumber)
		if err != nil {
			return err
		}

		start := l.now()
		principal := fd.MaturityAmount

		fd.Principal = principal
		fd.StartDate = start
		fd.MaturityDate = start.AddDate(0, fd.TenureMonths, 0)
		fd.MaturityAmount = principal.Add(interest.CompoundInterest(principal, fd.AnnualRate, fd.TenureMonths))
		fd.Status = corebanking.FixedDepositStatusRenewed

		if err := l.store.FixedDeposits().Update(ctx, fd); err != nil {
			return err
		}

		deposit = fd

		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Infof("renewed fixed deposit %s, new principal %s maturing %s", deposit.Number, deposit.Principal, deposit.MaturityDate.Format("2006-01-02"))

	return deposit, nil
}

// ProcessMaturedDeposits sweeps ACTIVE deposits whose maturity date is at or
// before asOf: auto-renewing ones are renewed, the rest are closed at term.
// Item failures are isolated in the result.
func (l *Lifecycle) ProcessMaturedDeposits(ctx context.Context, asOf time.Time) (*corebanking.BatchResult, error) {
	ctx, span := l.tracer.Start(ctx, "fixeddeposit.ProcessMaturedDeposits")
	defer span.End()

	matured, err := l.store.FixedDeposits().ListMatured(ctx, asOf)
	if err != nil {
		return nil, err
	}

	result := &corebanking.BatchResult{}

	for _, fd := range matured {
		if fd.AutoRenewal {
			_, err = l.Renew(ctx, fd.Number)
		} else {
			_, err = l.Close(ctx, fd.Number, false)
		}

		if err != nil {
			l.logger.Errorf("maturity sweep on deposit %s: %v", fd.Number, err)
			result.Fail(fd.Number, err)

			continue
		}

		result.Processed++
	}

	l.logger.Infof("maturity sweep as of %s: %d processed, %d failed", asOf.Format("2006-01-02"), result.Processed, len(result.Failures))

	return result, nil
}

// FindByNumber returns the deposit with the given number, or a NotFound error.
func (l *Lifecycle) FindByNumber(ctx context.Context, fdNumber string) (*corebanking.FixedDeposit, error) {
	fd, err := l.store.FixedDeposits().FindByNumber(ctx, fdNumber)
	if err != nil {
		return nil, err
	}

	if fd == nil {
		return nil, corebanking.NewDomainError(corebanking.ErrorFixedDepositNotFound, "fdNumber", "fixed deposit not found")
	}

	return fd, nil
}

// ListByAccount returns the account's deposits across all statuses.
func (l *Lifecycle) ListByAccount(ctx context.Context, accountID string) ([]*corebanking.FixedDeposit, error) {
	return l.store.FixedDeposits().ListByAccount(ctx, accountID)
}

// activeDeposit loads the deposit under its row serialization so a concurrent
// closure or renewal cannot pay out the same deposit twice.
func (l *Lifecycle) activeDeposit(ctx context.Context, fdNumber string) (*corebanking.FixedDeposit, error) {
	fd, err := l.store.FixedDeposits().FindByNumberForUpdate(ctx, fdNumber)
	if err != nil {
		return nil, err
	}

	if fd == nil {
		return nil, corebanking.NewDomainError(corebanking.ErrorFixedDepositNotFound, "fdNumber", "fixed deposit not found")
	}

	if !fd.IsActive() {
		return nil, corebanking.NewDomainError(corebanking.ErrorFixedDepositInactive, "fdNumber", "fixed deposit is not active")
	}

	return fd, nil
}

func (l *Lifecycle) atomically(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if l.store.InTransaction(ctx) {
		return fn(ctx)
	}

	var err error

	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		err = l.store.WithinTransaction(ctx, fn)
		if !errors.Is(err, store.ErrVersionConflict) {
			return err
		}

		l.logger.Warnf("%s: version conflict, retrying attempt %d", op, attempt+1)

		if sleepErr := backoff.SleepWithContext(ctx, backoff.ExponentialWithJitter(l.retryBase, attempt)); sleepErr != nil {
			return sleepErr
		}
	}

	return err
}

// wholeMonths counts calendar months fully elapsed between start and end at
// day granularity.
func wholeMonths(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}

	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}

	if months < 0 {
		return 0
	}

	return months
}
