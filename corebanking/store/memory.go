package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/shopspring/decimal"
)

type memoryTxKey struct{}

// Memory is an in-memory Ledger. A single mutex serializes every atomic unit
// and a full snapshot taken at unit start provides all-or-nothing rollback.
// It is the reference store for unit tests and single-process embedding.
type Memory struct {
	mu sync.Mutex

	accounts       map[string]*corebanking.Account
	accountsByNum  map[string]string
	transactions   []*corebanking.Transaction
	rates          map[string]*corebanking.InterestRate
	postings       map[string]*corebanking.InterestPosting
	fixedDeposits  map[string]*corebanking.FixedDeposit
	depositsByNum  map[string]string
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		accounts:      make(map[string]*corebanking.Account),
		accountsByNum: make(map[string]string),
		rates:         make(map[string]*corebanking.InterestRate),
		postings:      make(map[string]*corebanking.InterestPosting),
		fixedDeposits: make(map[string]*corebanking.FixedDeposit),
		depositsByNum: make(map[string]string),
	}
}

// Compile-time assertion: *Memory implements Ledger.
var _ Ledger = (*Memory)(nil)

// WithinTransaction implements Ledger. Nested calls join the outer unit.
func (m *Memory) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.clone()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, struct{}{})); err != nil {
		m.restore(snapshot)

		return err
	}

	return nil
}

// InTransaction implements Ledger.
func (m *Memory) InTransaction(ctx context.Context) bool {
	return ctx.Value(memoryTxKey{}) != nil
}

// Accounts implements Ledger.
//
//nolint:ireturn
func (m *Memory) Accounts() AccountRepository { return memoryAccounts{m} }

// Transactions implements Ledger.
//
//nolint:ireturn
func (m *Memory) Transactions() TransactionRepository { return memoryTransactions{m} }

// Rates implements Ledger.
//
//nolint:ireturn
func (m *Memory) Rates() RateRepository { return memoryRates{m} }

// Postings implements Ledger.
//
//nolint:ireturn
func (m *Memory) Postings() PostingRepository { return memoryPostings{m} }

// FixedDeposits implements Ledger.
//
//nolint:ireturn
func (m *Memory) FixedDeposits() FixedDepositRepository { return memoryFixedDeposits{m} }

// lock acquires the store mutex unless ctx already carries the atomic unit.
func (m *Memory) lock(ctx context.Context) func() {
	if ctx.Value(memoryTxKey{}) != nil {
		return func() {}
	}

	m.mu.Lock()

	return m.mu.Unlock
}

type memorySnapshot struct {
	accounts      map[string]*corebanking.Account
	accountsByNum map[string]string
	transactions  []*corebanking.Transaction
	rates         map[string]*corebanking.InterestRate
	postings      map[string]*corebanking.InterestPosting
	fixedDeposits map[string]*corebanking.FixedDeposit
	depositsByNum map[string]string
}

func (m *Memory) clone() memorySnapshot {
	snap := memorySnapshot{
		accounts:      make(map[string]*corebanking.Account, len(m.accounts)),
		accountsByNum: make(map[string]string, len(m.accountsByNum)),
		transactions:  make([]*corebanking.Transaction, len(m.transactions)),
		rates:         make(map[string]*corebanking.InterestRate, len(m.rates)),
		postings:      make(map[string]*corebanking.InterestPosting, len(m.postings)),
		fixedDeposits: make(map[string]*corebanking.FixedDeposit, len(m.fixedDeposits)),
		depositsByNum: make(map[string]string, len(m.depositsByNum)),
	}

	for id, account := range m.accounts {
		snap.accounts[id] = copyAccount(account)
	}

	for number, id := range m.accountsByNum {
		snap.accountsByNum[number] = id
	}

	copy(snap.transactions, m.transactions)

	for id, rate := range m.rates {
		snap.rates[id] = copyRate(rate)
	}

	for id, posting := range m.postings {
		snap.postings[id] = copyPosting(posting)
	}

	for id, deposit := range m.fixedDeposits {
		snap.fixedDeposits[id] = copyFixedDeposit(deposit)
	}

	for number, id := range m.depositsByNum {
		snap.depositsByNum[number] = id
	}

	return snap
}

func (m *Memory) restore(snap memorySnapshot) {
	m.accounts = snap.accounts
	m.accountsByNum = snap.accountsByNum
	m.transactions = snap.transactions
	m.rates = snap.rates
	m.postings = snap.postings
	m.fixedDeposits = snap.fixedDeposits
	m.depositsByNum = snap.depositsByNum
}

// ---------------------------------------------------------------------------
// accounts
// ---------------------------------------------------------------------------

type memoryAccounts struct{ m *Memory }

func (r memoryAccounts) Create(ctx context.Context, account *corebanking.Account) error {
	defer r.m.lock(ctx)()

	if _, exists := r.m.accountsByNum[account.Number]; exists {
		return fmt.Errorf("account number %s already exists", account.Number)
	}

	r.m.accounts[account.ID] = copyAccount(account)
	r.m.accountsByNum[account.Number] = account.ID

	return nil
}

func (r memoryAccounts) FindByID(ctx context.Context, id string) (*corebanking.Account, error) {
	defer r.m.lock(ctx)()

	account, ok := r.m.accounts[id]
	if !ok {
		return nil, nil
	}

	return copyAccount(account), nil
}

// FindByIDForUpdate behaves like FindByID: the store mutex already serializes
// the whole atomic unit, so no extra row lock is needed.
func (r memoryAccounts) FindByIDForUpdate(ctx context.Context, id string) (*corebanking.Account, error) {
	return r.FindByID(ctx, id)
}

func (r memoryAccounts) FindByNumber(ctx context.Context, number string) (*corebanking.Account, error) {
	defer r.m.lock(ctx)()

	id, ok := r.m.accountsByNum[number]
	if !ok {
		return nil, nil
	}

	return copyAccount(r.m.accounts[id]), nil
}

// FindByNumberForUpdate behaves like FindByNumber: the store mutex already
// serializes the whole atomic unit, so no extra row lock is needed.
func (r memoryAccounts) FindByNumberForUpdate(ctx context.Context, number string) (*corebanking.Account, error) {
	return r.FindByNumber(ctx, number)
}

func (r memoryAccounts) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	defer r.m.lock(ctx)()

	_, ok := r.m.accountsByNum[number]

	return ok, nil
}

func (r memoryAccounts) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, expectedVersion int64) error {
	defer r.m.lock(ctx)()

	account, ok := r.m.accounts[id]
	if !ok {
		return ErrNotFound
	}

	if account.Version != expectedVersion {
		return ErrVersionConflict
	}

	account.Balance = balance
	account.Version++

	return nil
}

func (r memoryAccounts) UpdateStatus(ctx context.Context, id string, status corebanking.AccountStatus, closedAt *time.Time) error {
	defer r.m.lock(ctx)()

	account, ok := r.m.accounts[id]
	if !ok {
		return ErrNotFound
	}

	account.Status = status

	if closedAt != nil {
		at := *closedAt
		account.ClosedAt = &at
	}

	return nil
}

func (r memoryAccounts) ListByTypeAndStatus(ctx context.Context, accountType corebanking.AccountType, status corebanking.AccountStatus) ([]*corebanking.Account, error) {
	defer r.m.lock(ctx)()

	var result []*corebanking.Account

	for _, account := range r.m.accounts {
		if account.Type == accountType && account.Status == status {
			result = append(result, copyAccount(account))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })

	return result, nil
}

// ---------------------------------------------------------------------------
// transactions
// ---------------------------------------------------------------------------

type memoryTransactions struct{ m *Memory }

func (r memoryTransactions) Create(ctx context.Context, transaction *corebanking.Transaction) error {
	defer r.m.lock(ctx)()

	r.m.transactions = append(r.m.transactions, copyTransaction(transaction))

	return nil
}

func (r memoryTransactions) ListByAccount(ctx context.Context, accountID string) ([]*corebanking.Transaction, error) {
	defer r.m.lock(ctx)()

	var result []*corebanking.Transaction

	for i := len(r.m.transactions) - 1; i >= 0; i-- {
		if r.m.transactions[i].AccountID == accountID {
			result = append(result, copyTransaction(r.m.transactions[i]))
		}
	}

	return result, nil
}

func (r memoryTransactions) ListByReference(ctx context.Context, reference string) ([]*corebanking.Transaction, error) {
	defer r.m.lock(ctx)()

	var result []*corebanking.Transaction

	for _, transaction := range r.m.transactions {
		if transaction.ReferenceNumber == reference {
			result = append(result, copyTransaction(transaction))
		}
	}

	return result, nil
}

// ---------------------------------------------------------------------------
// interest rates
// ---------------------------------------------------------------------------

type memoryRates struct{ m *Memory }

func (r memoryRates) Create(ctx context.Context, rate *corebanking.InterestRate) error {
	defer r.m.lock(ctx)()

	r.m.rates[rate.ID] = copyRate(rate)

	return nil
}

func (r memoryRates) FindApplicable(ctx context.Context, accountType corebanking.AccountType, balance decimal.Decimal, asOf time.Time) (*corebanking.InterestRate, error) {
	defer r.m.lock(ctx)()

	var best *corebanking.InterestRate

	for _, rate := range r.m.rates {
		if !rate.AppliesTo(accountType, balance, asOf) {
			continue
		}

		if best == nil || rate.MoreSpecificThan(best) {
			best = rate
		}
	}

	if best == nil {
		return nil, nil
	}

	return copyRate(best), nil
}

func (r memoryRates) ListActive(ctx context.Context, accountType corebanking.AccountType) ([]*corebanking.InterestRate, error) {
	defer r.m.lock(ctx)()

	var result []*corebanking.InterestRate

	for _, rate := range r.m.rates {
		if rate.Active && rate.AccountType == accountType {
			result = append(result, copyRate(rate))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

// ---------------------------------------------------------------------------
// interest postings
// ---------------------------------------------------------------------------

type memoryPostings struct{ m *Memory }

func (r memoryPostings) Create(ctx context.Context, posting *corebanking.InterestPosting) error {
	defer r.m.lock(ctx)()

	r.m.postings[posting.ID] = copyPosting(posting)

	return nil
}

func (r memoryPostings) SetTransactionReference(ctx context.Context, postingID, reference string) error {
	defer r.m.lock(ctx)()

	posting, ok := r.m.postings[postingID]
	if !ok {
		return ErrNotFound
	}

	posting.TransactionReference = reference

	return nil
}

func (r memoryPostings) ListByAccount(ctx context.Context, accountID string) ([]*corebanking.InterestPosting, error) {
	defer r.m.lock(ctx)()

	var result []*corebanking.InterestPosting

	for _, posting := range r.m.postings {
		if posting.AccountID == accountID {
			result = append(result, copyPosting(posting))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].PostingDate.Before(result[j].PostingDate) })

	return result, nil
}

// ---------------------------------------------------------------------------
// fixed deposits
// ---------------------------------------------------------------------------

type memoryFixedDeposits struct{ m *Memory }

func (r memoryFixedDeposits) Create(ctx context.Context, deposit *corebanking.FixedDeposit) error {
	defer r.m.lock(ctx)()

	if _, exists := r.m.depositsByNum[deposit.Number]; exists {
		return fmt.Errorf("fixed deposit number %s already exists", deposit.Number)
	}

	r.m.fixedDeposits[deposit.ID] = copyFixedDeposit(deposit)
	r.m.depositsByNum[deposit.Number] = deposit.ID

	return nil
}

func (r memoryFixedDeposits) FindByNumber(ctx context.Context, number string) (*corebanking.FixedDeposit, error) {
	defer r.m.lock(ctx)()

	id, ok := r.m.depositsByNum[number]
	if !ok {
		return nil, nil
	}

	return copyFixedDeposit(r.m.fixedDeposits[id]), nil
}

// FindByNumberForUpdate behaves like FindByNumber under the store mutex.
func (r memoryFixedDeposits) FindByNumberForUpdate(ctx context.Context, number string) (*corebanking.FixedDeposit, error) {
	return r.FindByNumber(ctx, number)
}

func (r memoryFixedDeposits) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	defer r.m.lock(ctx)()

	_, ok := r.m.depositsByNum[number]

	return ok, nil
}

func (r memoryFixedDeposits) Update(ctx context.Context, deposit *corebanking.FixedDeposit) error {
	defer r.m.lock(ctx)()

	if _, ok := r.m.fixedDeposits[deposit.ID]; !ok {
		return ErrNotFound
	}

	r.m.fixedDeposits[deposit.ID] = copyFixedDeposit(deposit)

	return nil
}

func (r memoryFixedDeposits) ListByAccount(ctx context.Context, accountID string) ([]*corebanking.FixedDeposit, error) {
	defer r.m.lock(ctx)()

	var result []*corebanking.FixedDeposit

	for _, deposit := range r.m.fixedDeposits {
		if deposit.AccountID == accountID {
			result = append(result, copyFixedDeposit(deposit))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })

	return result, nil
}

func (r memoryFixedDeposits) ListMatured(ctx context.Context, asOf time.Time) ([]*corebanking.FixedDeposit, error) {
	defer r.m.lock(ctx)()

	var result []*corebanking.FixedDeposit

	for _, deposit := range r.m.fixedDeposits {
		if deposit.Status == corebanking.FixedDepositStatusActive && !deposit.MaturityDate.After(asOf) {
			result = append(result, copyFixedDeposit(deposit))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].MaturityDate.Before(result[j].MaturityDate) })

	return result, nil
}

func (r memoryFixedDeposits) ExistsActiveByAccount(ctx context.Context, accountID string) (bool, error) {
	defer r.m.lock(ctx)()

	for _, deposit := range r.m.fixedDeposits {
		if deposit.AccountID == accountID && deposit.Status == corebanking.FixedDepositStatusActive {
			return true, nil
		}
	}

	return false, nil
}

// ---------------------------------------------------------------------------
// entity copies -- repositories never alias caller-held structs
// ---------------------------------------------------------------------------

func copyAccount(account *corebanking.Account) *corebanking.Account {
	clone := *account

	if account.ClosedAt != nil {
		at := *account.ClosedAt
		clone.ClosedAt = &at
	}

	return &clone
}

func copyTransaction(transaction *corebanking.Transaction) *corebanking.Transaction {
	clone := *transaction

	return &clone
}

func copyRate(rate *corebanking.InterestRate) *corebanking.InterestRate {
	clone := *rate

	if rate.MinBalance != nil {
		min := *rate.MinBalance
		clone.MinBalance = &min
	}

	if rate.MaxBalance != nil {
		max := *rate.MaxBalance
		clone.MaxBalance = &max
	}

	if rate.EffectiveTo != nil {
		to := *rate.EffectiveTo
		clone.EffectiveTo = &to
	}

	return &clone
}

func copyPosting(posting *corebanking.InterestPosting) *corebanking.InterestPosting {
	clone := *posting

	return &clone
}

func copyFixedDeposit(deposit *corebanking.FixedDeposit) *corebanking.FixedDeposit {
	clone := *deposit

	if deposit.PrematureAt != nil {
		at := *deposit.PrematureAt
		clone.PrematureAt = &at
	}

	if deposit.PenaltyRate != nil {
		rate := *deposit.PenaltyRate
		clone.PenaltyRate = &rate
	}

	return &clone
}
