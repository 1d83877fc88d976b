package interest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/LerianStudio/lib-corebanking/corebanking/events"
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

func seedRate(t *testing.T, m *store.Memory, annualRate string, from time.Time) *corebanking.InterestRate {
	t.Helper()

	rate := &corebanking.InterestRate{
		ID:            "rate-" + annualRate,
		AccountType:   corebanking.AccountTypeSavings,
		AnnualRate:    amount(annualRate),
		EffectiveFrom: from,
		Active:        true,
	}
	require.NoError(t, m.Rates().Create(context.Background(), rate))

	return rate
}

type capturingPublisher struct {
	mu       sync.Mutex
	postings []events.InterestPosted
}

func (p *capturingPublisher) PublishTransactionCreated(context.Context, events.TransactionCreated) error {
	return nil
}

func (p *capturingPublisher) PublishInterestPosted(_ context.Context, event events.InterestPosted) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.postings = append(p.postings, event)

	return nil
}

// ---------------------------------------------------------------------------
// Calculations
// ---------------------------------------------------------------------------

func TestSimpleInterest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		principal string
		rate      string
		days      int
		want      string
	}{
		{name: "one month at 12 percent", principal: "1000.00", rate: "12.0", days: 30, want: "9.86"},
		{name: "full year at 4.5 percent", principal: "5000.00", rate: "4.5", days: 365, want: "225.00"},
		{name: "single day", principal: "1000.00", rate: "12.0", days: 1, want: "0.33"},
		{name: "zero days", principal: "1000.00", rate: "12.0", days: 0, want: "0.00"},
		{name: "negative days", principal: "1000.00", rate: "12.0", days: -3, want: "0.00"},
		{name: "zero rate", principal: "1000.00", rate: "0", days: 30, want: "0.00"},
		{name: "zero principal", principal: "0.00", rate: "12.0", days: 30, want: "0.00"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SimpleInterest(amount(tt.principal), amount(tt.rate), tt.days)
			assert.True(t, got.Equal(amount(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCompoundInterest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		principal string
		rate      string
		months    int
		want      string
	}{
		// 1000 × 1.01^12 − 1000, rounded half-up at the last step only.
		{name: "twelve months at 12 percent", principal: "1000.00", rate: "12.0", months: 12, want: "126.83"},
		{name: "one month at 12 percent", principal: "1000.00", rate: "12.0", months: 1, want: "10.00"},
		{name: "six months at 6 percent", principal: "2000.00", rate: "6.0", months: 6, want: "60.76"},
		{name: "zero months", principal: "1000.00", rate: "12.0", months: 0, want: "0.00"},
		{name: "zero rate", principal: "1000.00", rate: "0", months: 12, want: "0.00"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := CompoundInterest(amount(tt.principal), amount(tt.rate), tt.months)
			assert.True(t, got.Equal(amount(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

// ---------------------------------------------------------------------------
// Rate configuration
// ---------------------------------------------------------------------------

func TestEngine_CreateRate_Validation(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	engine := New(m, ledger.New(m))

	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	before := from.AddDate(0, 0, -1)
	min := amount("1000.00")
	max := amount("500.00")

	tests := []struct {
		name string
		spec RateSpec
	}{
		{
			name: "rate above ceiling",
			spec: RateSpec{AccountType: corebanking.AccountTypeSavings, AnnualRate: amount("50.01"), EffectiveFrom: from},
		},
		{
			name: "negative rate",
			spec: RateSpec{AccountType: corebanking.AccountTypeSavings, AnnualRate: amount("-0.5"), EffectiveFrom: from},
		},
		{
			name: "inverted tier bounds",
			spec: RateSpec{AccountType: corebanking.AccountTypeSavings, AnnualRate: amount("4.0"), MinBalance: &min, MaxBalance: &max, EffectiveFrom: from},
		},
		{
			name: "inverted effective window",
			spec: RateSpec{AccountType: corebanking.AccountTypeSavings, AnnualRate: amount("4.0"), EffectiveFrom: from, EffectiveTo: &before},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rate, err := engine.CreateRate(ctx, tt.spec)
			require.Error(t, err)
			assert.Nil(t, rate)
			assert.True(t, corebanking.IsInvalidArgument(err))
		})
	}
}

func TestEngine_CreateRate_BoundaryValuesAccepted(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	engine := New(m, ledger.New(m))

	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	for _, rate := range []string{"0", "50.0"} {
		created, err := engine.CreateRate(ctx, RateSpec{
			AccountType:   corebanking.AccountTypeSavings,
			AnnualRate:    amount(rate),
			EffectiveFrom: from,
		})
		require.NoError(t, err)
		assert.True(t, created.Active)
	}

	rates, err := engine.ActiveRates(ctx, corebanking.AccountTypeSavings)
	require.NoError(t, err)
	assert.Len(t, rates, 2)
}

// ---------------------------------------------------------------------------
// PostInterest
// ---------------------------------------------------------------------------

func TestEngine_PostInterest(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	publisher := &capturingPublisher{}
	ledgerEngine := ledger.New(m)
	engine := New(m, ledgerEngine, WithPublisher(publisher))

	account := seedAccount(t, m, "1000000001", "1000.00", corebanking.AccountStatusActive)
	seedRate(t, m, "12.0", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

	posting, err := engine.PostInterest(ctx, account.ID, from, to)
	require.NoError(t, err)
	require.NotNil(t, posting)

	// 1000.00 × (12/100/365) × 30 days.
	assert.True(t, posting.Amount.Equal(amount("9.86")), "got %s", posting.Amount)
	assert.True(t, posting.BalanceUsed.Equal(amount("1000.00")))
	assert.True(t, posting.RateApplied.Equal(amount("12.0")))
	assert.Regexp(t, `^TXN[0-9A-F]{8}$`, posting.TransactionReference)

	persisted, err := m.Accounts().FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, persisted.Balance.Equal(amount("1009.86")))

	entries, err := ledgerEngine.History(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, corebanking.TransactionTypeDeposit, entries[0].Type)
	assert.Equal(t, "Interest credit for period 2025-06-01 to 2025-07-01", entries[0].Description)
	assert.Equal(t, posting.TransactionReference, entries[0].ReferenceNumber)

	stored, err := engine.AccountHistory(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, posting.TransactionReference, stored[0].TransactionReference, "reference must be back-filled on the stored record")

	require.Len(t, publisher.postings, 1)
	assert.Equal(t, posting.ID, publisher.postings[0].PostingID)
}

func TestEngine_PostInterest_NoOps(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	engine := New(m, ledger.New(m))

	funded := seedAccount(t, m, "1000000001", "1000.00", corebanking.AccountStatusActive)
	tiny := seedAccount(t, m, "1000000002", "0.01", corebanking.AccountStatusActive)

	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no applicable rate", func(t *testing.T) {
		posting, err := engine.PostInterest(ctx, funded.ID, from, to)
		require.NoError(t, err)
		assert.Nil(t, posting)
	})

	seedRate(t, m, "0.5", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	t.Run("period shorter than one day", func(t *testing.T) {
		posting, err := engine.PostInterest(ctx, funded.ID, from, from.Add(12*time.Hour))
		require.NoError(t, err)
		assert.Nil(t, posting)
	})

	t.Run("inverted period", func(t *testing.T) {
		posting, err := engine.PostInterest(ctx, funded.ID, to, from)
		require.NoError(t, err)
		assert.Nil(t, posting)
	})

	t.Run("interest below one cent", func(t *testing.T) {
		posting, err := engine.PostInterest(ctx, tiny.ID, from, to)
		require.NoError(t, err)
		assert.Nil(t, posting)

		persisted, err := m.Accounts().FindByID(ctx, tiny.ID)
		require.NoError(t, err)
		assert.True(t, persisted.Balance.Equal(amount("0.01")), "sub-cent accrual must not touch the balance")
	})

	entries, err := m.Transactions().ListByAccount(ctx, funded.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "no-op accruals must not journal anything")
}

func TestEngine_PostInterest_Errors(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	engine := New(m, ledger.New(m))

	suspended := seedAccount(t, m, "1000000001", "1000.00", corebanking.AccountStatusSuspended)
	seedRate(t, m, "12.0", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

	t.Run("unknown account", func(t *testing.T) {
		posting, err := engine.PostInterest(ctx, "acc-missing", from, to)
		require.Error(t, err)
		assert.Nil(t, posting)
		assert.True(t, corebanking.IsNotFound(err))
	})

	t.Run("suspended account", func(t *testing.T) {
		posting, err := engine.PostInterest(ctx, suspended.ID, from, to)
		require.Error(t, err)
		assert.Nil(t, posting)
		assert.True(t, corebanking.IsInvalidState(err))
	})
}

// ---------------------------------------------------------------------------
// ProcessMonthlyInterest
// ---------------------------------------------------------------------------

// flakyStore fails posting creation for one account, leaving every other
// operation untouched.
type flakyStore struct {
	*store.Memory
	failAccountID string
}

func (s *flakyStore) Postings() store.PostingRepository {
	return &flakyPostings{PostingRepository: s.Memory.Postings(), failAccountID: s.failAccountID}
}

type flakyPostings struct {
	store.PostingRepository
	failAccountID string
}

func (p *flakyPostings) Create(ctx context.Context, posting *corebanking.InterestPosting) error {
	if posting.AccountID == p.failAccountID {
		return assert.AnError
	}

	return p.PostingRepository.Create(ctx, posting)
}

func TestEngine_ProcessMonthlyInterest(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	st := &flakyStore{Memory: m, failAccountID: "acc-1000000003"}
	engine := New(st, ledger.New(st))

	credited := seedAccount(t, m, "1000000001", "1000.00", corebanking.AccountStatusActive)
	skipped := seedAccount(t, m, "1000000002", "0.00", corebanking.AccountStatusActive)
	seedAccount(t, m, "1000000003", "500.00", corebanking.AccountStatusActive)
	seedAccount(t, m, "1000000004", "800.00", corebanking.AccountStatusSuspended)
	seedRate(t, m, "12.0", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))

	asOf := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

	result, err := engine.ProcessMonthlyInterest(ctx, asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped, "zero-balance account accrues nothing")
	require.Len(t, result.Failures, 1, "one account fails, the sweep continues")
	assert.Equal(t, "1000000003", result.Failures[0].Key)

	// Suspended accounts are not part of the sweep at all.
	creditedAccount, err := m.Accounts().FindByID(ctx, credited.ID)
	require.NoError(t, err)
	assert.True(t, creditedAccount.Balance.Equal(amount("1009.86")))

	skippedAccount, err := m.Accounts().FindByID(ctx, skipped.ID)
	require.NoError(t, err)
	assert.True(t, skippedAccount.Balance.Equal(amount("0.00")))

	failedAccount, err := m.Accounts().FindByID(ctx, "acc-1000000003")
	require.NoError(t, err)
	assert.True(t, failedAccount.Balance.Equal(amount("500.00")), "failed item must roll back entirely")

	suspendedAccount, err := m.Accounts().FindByID(ctx, "acc-1000000004")
	require.NoError(t, err)
	assert.True(t, suspendedAccount.Balance.Equal(amount("800.00")))
}
