package directory

import (
	"context"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/LerianStudio/lib-corebanking/corebanking/identifier"
	"github.com/LerianStudio/lib-corebanking/corebanking/log"
	"github.com/LerianStudio/lib-corebanking/corebanking/store"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/LerianStudio/lib-corebanking/corebanking/directory"

// CustomerReviewer looks up a customer's KYC standing. It is implemented by
// the customer system of record; an empty status means the customer is
// unknown.
type CustomerReviewer interface {
	KYCStatus(ctx context.Context, customerID string) (corebanking.KYCStatus, error)
}

// Directory opens accounts and manages their status lifecycle.
type Directory struct {
	store    store.Ledger
	reviewer CustomerReviewer
	logger   log.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the directory logger.
func WithLogger(logger log.Logger) Option {
	return func(d *Directory) { d.logger = logger }
}

// WithClock overrides the wall clock, making open and close timestamps
// deterministic in tests.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// New creates a directory on top of the given store and customer reviewer.
func New(st store.Ledger, reviewer CustomerReviewer, opts ...Option) *Directory {
	directory := &Directory{
		store:    st,
		reviewer: reviewer,
		logger:   log.NoneLogger{},
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(directory)
	}

	return directory
}

// Open creates an ACTIVE account with a fresh collision-checked number and a
// zero balance. The customer must hold an APPROVED KYC status.
func (d *Directory) Open(ctx context.Context, customerID string, accountType corebanking.AccountType) (*corebanking.Account, error) {
	ctx, span := d.tracer.Start(ctx, "directory.Open")
	defer span.End()

	status, err := d.reviewer.KYCStatus(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if status == "" {
		return nil, corebanking.NewDomainError(corebanking.ErrorCustomerNotFound, "customerId", "customer not found")
	}

	if status != corebanking.KYCStatusApproved {
		return nil, corebanking.NewDomainError(corebanking.ErrorCustomerNotApproved, "customerId", "customer KYC status is not approved")
	}

	number, err := identifier.AccountNumber(ctx, d.store.Accounts().ExistsByNumber)
	if err != nil {
		return nil, err
	}

	account := &corebanking.Account{
		ID:         identifier.NewID(),
		CustomerID: customerID,
		Number:     number,
		Type:       accountType,
		Balance:    decimal.Zero,
		Status:     corebanking.AccountStatusActive,
		OpenedAt:   d.now(),
	}

	if err := d.store.Accounts().Create(ctx, account); err != nil {
		return nil, err
	}

	d.logger.Infof("opened %s account %s for customer %s", account.Type, account.Number, customerID)

	return account, nil
}

// SetStatus moves the account to the given status. Transitioning to CLOSED
// additionally requires a zero balance and no ACTIVE term deposits, and
// stamps the closure time on the record.
func (d *Directory) SetStatus(ctx context.Context, accountID string, status corebanking.AccountStatus) (*corebanking.Account, error) {
	ctx, span := d.tracer.Start(ctx, "directory.SetStatus")
	defer span.End()

	var account *corebanking.Account

	err := d.store.WithinTransaction(ctx, func(ctx context.Context) error {
		// Hold the account row so the close preconditions checked below stay
		// true until the status write commits.
		found, err := d.store.Accounts().FindByIDForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		if found == nil {
			return corebanking.NewDomainError(corebanking.ErrorAccountNotFound, "accountId", "account not found")
		}

		if !found.Status.CanTransitionTo(status) {
			return corebanking.NewDomainError(corebanking.ErrorInvalidStatusTransition, "status",
				"cannot transition from "+string(found.Status)+" to "+string(status))
		}

		var closedAt *time.Time

		if status == corebanking.AccountStatusClosed {
			if !found.Balance.IsZero() {
				return corebanking.NewDomainError(corebanking.ErrorAccountNotEmpty, "accountId", "account balance must be zero to close")
			}

			hasActive, err := d.store.FixedDeposits().ExistsActiveByAccount(ctx, found.ID)
			if err != nil {
				return err
			}

			if hasActive {
				return corebanking.NewDomainError(corebanking.ErrorAccountNotEmpty, "accountId", "account has active fixed deposits")
			}

			at := d.now()
			closedAt = &at
		}

		if err := d.store.Accounts().UpdateStatus(ctx, found.ID, status, closedAt); err != nil {
			return err
		}

		found.Status = status
		found.ClosedAt = closedAt
		account = found

		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Infof("account %s status set to %s", account.Number, status)

	return account, nil
}

// FindByNumber returns the account with the given number, or a NotFound
// error.
func (d *Directory) FindByNumber(ctx context.Context, number string) (*corebanking.Account, error) {
	account, err := d.store.Accounts().FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	if account == nil {
		return nil, corebanking.NewDomainError(corebanking.ErrorAccountNotFound, "accountNumber", "account not found")
	}

	return account, nil
}

// FindByID returns the account with the given id, or a NotFound error.
func (d *Directory) FindByID(ctx context.Context, accountID string) (*corebanking.Account, error) {
	account, err := d.store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account == nil {
		return nil, corebanking.NewDomainError(corebanking.ErrorAccountNotFound, "accountId", "account not found")
	}

	return account, nil
}
