package fixeddeposit

import (
	"context"
	"testing"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/LerianStudio/lib-corebanking/corebanking/ledger"
	"github.com/LerianStudio/lib-corebanking/corebanking/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedAccount(t *testing.T, m *store.Memory, number, balance string, status corebanking.AccountStatus) *corebanking.Account {
	t.Helper()

	account := &corebanking.Account{
		ID:       "acc-" + number,
		Number:   number,
		Type:     corebanking.AccountTypeSavings,
		Balance:  decimal.RequireFromString(balance),
		Status:   status,
		OpenedAt: time.Now(),
	}
	require.NoError(t, m.Accounts().Create(context.Background(), account))

	return account
}

// testClock is a settable clock shared by the engines under test.
type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time {
	return c.current
}

func newLifecycle(m *store.Memory, clock *testClock) *Lifecycle {
	return New(m, ledger.New(m, ledger.WithClock(clock.Now)), WithClock(clock.Now))
}

// ---------------------------------------------------------------------------
// Open
// ---------------------------------------------------------------------------

func TestLifecycle_Open(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	clock := &testClock{current: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)}
	lifecycle := newLifecycle(m, clock)

	account := seedAccount(t, m, "1000000001", "5000.00", corebanking.AccountStatusActive)

	fd, err := lifecycle.Open(ctx, OpenSpec{
		AccountNumber: "1000000001",
		Amount:        amount("1000.00"),
		AnnualRate:    amount("6.0"),
		TenureMonths:  12,
	})
	require.NoError(t, err)

	assert.Regexp(t, `^FD\d{9}$`, fd.Number)
	assert.Equal(t, account.ID, fd.AccountID)
	assert.Equal(t, corebanking.FixedDepositStatusActive, fd.Status)
	assert.True(t, fd.Principal.Equal(amount("1000.00")))
	assert.Equal(t, time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), fd.MaturityDate)

	// 1000 compounded monthly at 6% for 12 months.
	assert.True(t, fd.MaturityAmount.Equal(amount("1061.68")), "got %s", fd.MaturityAmount)

	funded, err := m.Accounts().FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, funded.Balance.Equal(amount("4000.00")))

	entries, err := m.Transactions().ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, corebanking.TransactionTypeWithdrawal, entries[0].Type)
	assert.Equal(t, "Fixed deposit "+fd.Number+" funding", entries[0].Description)
}

func TestLifecycle_Open_Validation(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	clock := &testClock{current: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)}
	lifecycle := newLifecycle(m, clock)

	seedAccount(t, m, "1000000001", "5000.00", corebanking.AccountStatusActive)
	seedAccount(t, m, "1000000002", "5000.00", corebanking.AccountStatusSuspended)

	base := OpenSpec{AccountNumber: "1000000001", Amount: amount("1000.00"), AnnualRate: amount("6.0"), TenureMonths: 12}

	tests := []struct {
		name   string
		mutate func(*OpenSpec)
		check  func(error) bool
	}{
		{
			name:   "below minimum principal",
			mutate: func(s *OpenSpec) { s.Amount = amount("999.99") },
			check:  corebanking.IsInvalidArgument,
		},
		{
			name:   "sub-cent amount",
			mutate: func(s *OpenSpec) { s.Amount = amount("1000.005") },
			check:  corebanking.IsInvalidArgument,
		},
		{
			name:   "negative rate",
			mutate: func(s *OpenSpec) { s.AnnualRate = amount("-1.0") },
			check:  corebanking.IsInvalidArgument,
		},
		{
			name:   "zero tenure",
			mutate: func(s *OpenSpec) { s.TenureMonths = 0 },
			check:  corebanking.IsInvalidArgument,
		},
		{
			name:   "insufficient balance",
			mutate: func(s *OpenSpec) { s.Amount = amount("5000.01") },
			check:  corebanking.IsInsufficientBalance,
		},
		{
			name:   "suspended account",
			mutate: func(s *OpenSpec) { s.AccountNumber = "1000000002" },
			check:  corebanking.IsInvalidState,
		},
		{
			name:   "unknown account",
			mutate: func(s *OpenSpec) { s.AccountNumber = "9999999999" },
			check:  corebanking.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base
			tt.mutate(&spec)

			fd, err := lifecycle.Open(ctx, spec)
			require.Error(t, err)
			assert.Nil(t, fd)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
		})
	}

	// No rejected open may leave a funding withdrawal behind.
	account, err := m.Accounts().FindByNumber(ctx, "1000000001")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("5000.00")))

	deposits, err := lifecycle.ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, deposits)
}

// failingDeposits rejects record creation, leaving every other operation
// untouched.
type failingDeposits struct {
	*store.Memory
}

func (s *failingDeposits) FixedDeposits() store.FixedDepositRepository {
	return &rejectCreate{FixedDepositRepository: s.Memory.FixedDeposits()}
}

type rejectCreate struct {
	store.FixedDepositRepository
}

func (r *rejectCreate) Create(context.Context, *corebanking.FixedDeposit) error {
	return assert.AnError
}

func TestLifecycle_Open_RollsBackFundingWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	st := &failingDeposits{Memory: m}
	clock := &testClock{current: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)}
	lifecycle := New(st, ledger.New(st), WithClock(clock.Now))

	seedAccount(t, m, "1000000001", "5000.00", corebanking.AccountStatusActive)

	fd, err := lifecycle.Open(ctx, OpenSpec{
		AccountNumber: "1000000001",
		Amount:        amount("1000.00"),
		AnnualRate:    amount("6.0"),
		TenureMonths:  12,
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, fd)

	account, err := m.Accounts().FindByNumber(ctx, "1000000001")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("5000.00")), "funding withdrawal must roll back with the failed record")

	entries, err := m.Transactions().ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// ---------------------------------------------------------------------------
// Close
// ---------------------------------------------------------------------------

func TestLifecycle_Close_AtMaturity(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	clock := &testClock{current: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)}
	lifecycle := newLifecycle(m, clock)

	seedAccount(t, m, "1000000001", "5000.00", corebanking.AccountStatusActive)

	fd, err := lifecycle.Open(ctx, OpenSpec{
		AccountNumber: "1000000001",
		Amount:        amount("1000.00"),
		AnnualRate:    amount("6.0"),
		TenureMonths:  12,
	})
	require.NoError(t, err)

	clock.current = fd.MaturityDate

	closed, err := lifecycle.Close(ctx, fd.Number, false)
	require.NoError(t, err)

	assert.Equal(t, corebanking.FixedDepositStatusMatured, closed.Status)
	assert.Nil(t, closed.PrematureAt)
	assert.Nil(t, closed.PenaltyRate)

	account, err := m.Accounts().FindByNumber(ctx, "1000000001")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("5061.68")), "payout must be exactly the maturity amount, got balance %s", account.Balance)

	t.Run("terminal record cannot close again", func(t *testing.T) {
		again, err := lifecycle.Close(ctx, fd.Number, false)
		require.Error(t, err)
		assert.Nil(t, again)
		assert.True(t, corebanking.IsInvalidState(err))
	})
}

// staleDepositReads serves unlocked deposit reads from a snapshot taken at
// wrap time, the view a concurrent transaction holds before the closure
// commits.
type staleDepositReads struct {
	*store.Memory
	snapshot *corebanking.FixedDeposit
}

func (s *staleDepositReads) FixedDeposits() store.FixedDepositRepository {
	return &staleFindDeposits{FixedDepositRepository: s.Memory.FixedDeposits(), snapshot: s.snapshot}
}

type staleFindDeposits struct {
	store.FixedDepositRepository
	snapshot *corebanking.FixedDeposit
}

func (r *staleFindDeposits) FindByNumber(ctx context.Context, number string) (*corebanking.FixedDeposit, error) {
	if number == r.snapshot.Number {
		clone := *r.snapshot

		return &clone, nil
	}

	return r.FixedDepositRepository.FindByNumber(ctx, number)
}

func TestLifecycle_Close_PaysOutOnceDespiteStaleReads(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	clock := &testClock{current: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)}

	seedAccount(t, m, "1000000001", "5000.00", corebanking.AccountStatusActive)

	fd, err := newLifecycle(m, clock).Open(ctx, OpenSpec{
		AccountNumber: "1000000001",
		Amount:        amount("1000.00"),
		AnnualRate:    amount("6.0"),
		TenureMonths:  12,
	})
	require.NoError(t, err)

	// Every unlocked read keeps serving the still-ACTIVE record; only the
	// locked read sees closures.
	stale := &staleDepositReads{Memory: m, snapshot: fd}
	lifecycle := New(stale, ledger.New(stale, ledger.WithClock(clock.Now)), WithClock(clock.Now))
	clock.current = fd.MaturityDate

	first, err := lifecycle.Close(ctx, fd.Number, false)
	require.NoError(t, err)
	assert.Equal(t, corebanking.FixedDepositStatusMatured, first.Status)

	second, err := lifecycle.Close(ctx, fd.Number, false)
	require.Error(t, err)
	assert.Nil(t, second)
	assert.True(t, corebanking.IsInvalidState(err))

	account, err := m.Accounts().FindByNumber(ctx, "1000000001")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("5061.68")), "maturity payout must credit exactly once, got balance %s", account.Balance)
}

func TestLifecycle_Close_Premature(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	clock := &testClock{current: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)}
	lifecycle := newLifecycle(m, clock)

	seedAccount(t, m, "1000000001", "5000.00", corebanking.AccountStatusActive)

	open := func(t *testing.T, rate string) *corebanking.FixedDeposit {
		t.Helper()

		clock.current = time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

		fd, err := lifecycle.Open(ctx, OpenSpec{
			AccountNumber: "1000000001",
			Amount:        amount("1000.00"),
			AnnualRate:    amount(rate),
			TenureMonths:  12,
		})
		require.NoError(t, err)

		return fd
	}

	t.Run("before one month counts one month", func(t *testing.T) {
		fd := open(t, "6.0")
		clock.current = time.Date(2025, time.January, 25, 0, 0, 0, 0, time.UTC)

		closed, err := lifecycle.Close(ctx, fd.Number, true)
		require.NoError(t, err)

		assert.Equal(t, corebanking.FixedDepositStatusClosedPrematurely, closed.Status)
		require.NotNil(t, closed.PenaltyRate)
		assert.True(t, closed.PenaltyRate.Equal(amount("5.0")))
		require.NotNil(t, closed.PrematureAt)
		assert.Equal(t, clock.current, *closed.PrematureAt)

		// One month at the penalized 5% rate: 1000 × 0.00416667.
		entries, err := m.Transactions().ListByReference(ctx, lastReference(t, m, fd.AccountID))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Amount.Equal(amount("1004.17")), "got %s", entries[0].Amount)
	})

	t.Run("whole elapsed months", func(t *testing.T) {
		fd := open(t, "6.0")
		clock.current = time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC)

		closed, err := lifecycle.Close(ctx, fd.Number, true)
		require.NoError(t, err)

		// Three whole months at 5%: 1000 × (1.00416667³ − 1).
		entries, err := m.Transactions().ListByReference(ctx, lastReference(t, m, closed.AccountID))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Amount.Equal(amount("1012.55")), "got %s", entries[0].Amount)
	})

	t.Run("penalty floors at zero", func(t *testing.T) {
		fd := open(t, "0.5")
		clock.current = time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)

		closed, err := lifecycle.Close(ctx, fd.Number, true)
		require.NoError(t, err)

		require.NotNil(t, closed.PenaltyRate)
		assert.True(t, closed.PenaltyRate.IsZero())

		entries, err := m.Transactions().ListByReference(ctx, lastReference(t, m, closed.AccountID))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Amount.Equal(amount("1000.00")), "zero rate pays back exactly the principal")
	})
}

// lastReference returns the reference of the account's newest journal entry.
func lastReference(t *testing.T, m *store.Memory, accountID string) string {
	t.Helper()

	entries, err := m.Transactions().ListByAccount(context.Background(), accountID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	return entries[0].ReferenceNumber
}

// ---------------------------------------------------------------------------
// Renew
// ---------------------------------------------------------------------------

func TestLifecycle_Renew(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	clock := &testClock{current: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)}
	lifecycle := newLifecycle(m, clock)

	seedAccount(t, m, "1000000001", "5000.00", corebanking.AccountStatusActive)

	fd, err := lifecycle.Open(ctx, OpenSpec{
		AccountNumber: "1000000001",
		Amount:        amount("1000.00"),
		AnnualRate:    amount("6.0"),
		TenureMonths:  12,
		AutoRenewal:   true,
	})
	require.NoError(t, err)

	clock.current = fd.MaturityDate

	renewed, err := lifecycle.Renew(ctx, fd.Number)
	require.NoError(t, err)

	assert.Equal(t, corebanking.FixedDepositStatusRenewed, renewed.Status)
	assert.True(t, renewed.Principal.Equal(amount("1061.68")), "previous maturity amount becomes the new principal")
	assert.Equal(t, fd.MaturityDate, renewed.StartDate)
	assert.Equal(t, fd.MaturityDate.AddDate(0, 12, 0), renewed.MaturityDate)
	assert.True(t, renewed.MaturityAmount.Equal(amount("1127.16")), "got %s", renewed.MaturityAmount)

	// Renewal moves no money.
	account, err := m.Accounts().FindByNumber(ctx, "1000000001")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("4000.00")))
}

// ---------------------------------------------------------------------------
// ProcessMaturedDeposits
// ---------------------------------------------------------------------------

// failUpdateFor rejects record updates for one deposit number.
type failUpdateFor struct {
	*store.Memory
	number string
}

func (s *failUpdateFor) FixedDeposits() store.FixedDepositRepository {
	return &rejectUpdate{FixedDepositRepository: s.Memory.FixedDeposits(), number: s.number}
}

type rejectUpdate struct {
	store.FixedDepositRepository
	number string
}

func (r *rejectUpdate) Update(ctx context.Context, deposit *corebanking.FixedDeposit) error {
	if deposit.Number == r.number {
		return assert.AnError
	}

	return r.FixedDepositRepository.Update(ctx, deposit)
}

func TestLifecycle_ProcessMaturedDeposits(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	clock := &testClock{current: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)}
	lifecycle := newLifecycle(m, clock)

	seedAccount(t, m, "1000000001", "10000.00", corebanking.AccountStatusActive)

	open := func(t *testing.T, tenure int, autoRenewal bool) *corebanking.FixedDeposit {
		t.Helper()

		fd, err := lifecycle.Open(ctx, OpenSpec{
			AccountNumber: "1000000001",
			Amount:        amount("1000.00"),
			AnnualRate:    amount("6.0"),
			TenureMonths:  tenure,
			AutoRenewal:   autoRenewal,
		})
		require.NoError(t, err)

		return fd
	}

	renewing := open(t, 12, true)
	maturing := open(t, 12, false)
	young := open(t, 24, false)

	asOf := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	clock.current = asOf

	result, err := lifecycle.ProcessMaturedDeposits(ctx, asOf)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Empty(t, result.Failures)

	renewedFD, err := lifecycle.FindByNumber(ctx, renewing.Number)
	require.NoError(t, err)
	assert.Equal(t, corebanking.FixedDepositStatusRenewed, renewedFD.Status)

	maturedFD, err := lifecycle.FindByNumber(ctx, maturing.Number)
	require.NoError(t, err)
	assert.Equal(t, corebanking.FixedDepositStatusMatured, maturedFD.Status)

	youngFD, err := lifecycle.FindByNumber(ctx, young.Number)
	require.NoError(t, err)
	assert.Equal(t, corebanking.FixedDepositStatusActive, youngFD.Status, "deposit maturing after asOf stays untouched")

	// 10000 − 3×1000 funding + 1061.68 maturity payout.
	account, err := m.Accounts().FindByNumber(ctx, "1000000001")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("8061.68")), "got %s", account.Balance)
}

func TestLifecycle_ProcessMaturedDeposits_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	clock := &testClock{current: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)}

	seeded := newLifecycle(m, clock)
	seedAccount(t, m, "1000000001", "10000.00", corebanking.AccountStatusActive)

	healthy, err := seeded.Open(ctx, OpenSpec{AccountNumber: "1000000001", Amount: amount("1000.00"), AnnualRate: amount("6.0"), TenureMonths: 12})
	require.NoError(t, err)

	broken, err := seeded.Open(ctx, OpenSpec{AccountNumber: "1000000001", Amount: amount("2000.00"), AnnualRate: amount("6.0"), TenureMonths: 12})
	require.NoError(t, err)

	st := &failUpdateFor{Memory: m, number: broken.Number}
	lifecycle := New(st, ledger.New(st), WithClock(clock.Now))

	asOf := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	clock.current = asOf

	result, err := lifecycle.ProcessMaturedDeposits(ctx, asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken.Number, result.Failures[0].Key)

	healthyFD, err := lifecycle.FindByNumber(ctx, healthy.Number)
	require.NoError(t, err)
	assert.Equal(t, corebanking.FixedDepositStatusMatured, healthyFD.Status)

	brokenFD, err := lifecycle.FindByNumber(ctx, broken.Number)
	require.NoError(t, err)
	assert.Equal(t, corebanking.FixedDepositStatusActive, brokenFD.Status, "failed item rolls back and stays active")

	// 10000 − 3000 funding + 1061.68 payout; the failed item's payout rolled back.
	account, err := m.Accounts().FindByNumber(ctx, "1000000001")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("8061.68")), "got %s", account.Balance)
}
