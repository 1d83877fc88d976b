package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-corebanking/corebanking"
	"github.com/LerianStudio/lib-corebanking/corebanking/store"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/shopspring/decimal"
)

// txKey carries the open *sql.Tx of an atomic unit through the context.
type txKey struct{}

// dbtx is the query surface shared by the resolver and an open transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements the ledger store contract on postgres. Atomic units map to
// database transactions opened on the primary; repository calls join the unit
// through the context.
type Store struct {
	db      dbresolver.DB
	primary *sql.DB
}

// NewStore creates a Store over the given resolver. Transactions always begin
// on the first primary database.
func NewStore(db dbresolver.DB) (*Store, error) {
	primaries := db.PrimaryDBs()
	if len(primaries) == 0 || primaries[0] == nil {
		return nil, errors.New("postgres: resolver has no primary database")
	}

	return &Store{db: db, primary: primaries[0]}, nil
}

// WithinTransaction runs fn as one atomic unit. Nested calls join the outer
// unit; the outermost call commits or rolls back.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := s.primary.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// InTransaction reports whether ctx already carries an open atomic unit.
func (s *Store) InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

func (s *Store) querier(ctx context.Context) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}

	return s.db
}

// Accounts returns the account repository.
//
//nolint:ireturn
func (s *Store) Accounts() store.AccountRepository {
	return pgAccounts{s: s}
}

// Transactions returns the journal repository.
//
//nolint:ireturn
func (s *Store) Transactions() store.TransactionRepository {
	return pgTransactions{s: s}
}

// Rates returns the rate repository.
//
//nolint:ireturn
func (s *Store) Rates() store.RateRepository {
	return pgRates{s: s}
}

// Postings returns the accrual repository.
//
//nolint:ireturn
func (s *Store) Postings() store.PostingRepository {
	return pgPostings{s: s}
}

// FixedDeposits returns the term deposit repository.
//
//nolint:ireturn
func (s *Store) FixedDeposits() store.FixedDepositRepository {
	return pgFixedDeposits{s: s}
}

// ---------------------------------------------------------------------------
// accounts
// ---------------------------------------------------------------------------

const accountColumns = `id, customer_id, number, type, balance, status, version, opened_at, closed_at`

type pgAccounts struct {
	s *Store
}

func (r pgAccounts) Create(ctx context.Context, account *corebanking.Account) error {
	_, err := r.s.querier(ctx).ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.ID, account.CustomerID, account.Number, account.Type,
		account.Balance, account.Status, account.Version, account.OpenedAt,
		nullTime(account.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

func (r pgAccounts) FindByID(ctx context.Context, id string) (*corebanking.Account, error) {
	row := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)

	return scanAccount(row)
}

func (r pgAccounts) FindByIDForUpdate(ctx context.Context, id string) (*corebanking.Account, error) {
	row := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)

	return scanAccount(row)
}

func (r pgAccounts) FindByNumber(ctx context.Context, number string) (*corebanking.Account, error) {
	row := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE number = $1`, number)

	return scanAccount(row)
}

func (r pgAccounts) FindByNumberForUpdate(ctx context.Context, number string) (*corebanking.Account, error) {
	row := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE number = $1 FOR UPDATE`, number)

	return scanAccount(row)
}

func (r pgAccounts) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var exists bool

	err := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account number: %w", err)
	}

	return exists, nil
}

func (r pgAccounts) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, expectedVersion int64) error {
	result, err := r.s.querier(ctx).ExecContext(ctx,
		`UPDATE accounts SET balance = $1, version = version + 1
		 WHERE id = $2 AND version = $3`,
		balance, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected > 0 {
		return nil
	}

	exists, err := r.ExistsByID(ctx, id)
	if err != nil {
		return err
	}

	if !exists {
		return store.ErrNotFound
	}

	return store.ErrVersionConflict
}

func (r pgAccounts) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account id: %w", err)
	}

	return exists, nil
}

func (r pgAccounts) UpdateStatus(ctx context.Context, id string, status corebanking.AccountStatus, closedAt *time.Time) error {
	result, err := r.s.querier(ctx).ExecContext(ctx,
		`UPDATE accounts SET status = $1, closed_at = COALESCE($2, closed_at)
		 WHERE id = $3`,
		status, nullTime(closedAt), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (r pgAccounts) ListByTypeAndStatus(ctx context.Context, accountType corebanking.AccountType, status corebanking.AccountStatus) ([]*corebanking.Account, error) {
	rows, err := r.s.querier(ctx).QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE type = $1 AND status = $2
		 ORDER BY number`, accountType, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var result []*corebanking.Account

	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}

		result = append(result, account)
	}

	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccountFrom(scanner rowScanner) (*corebanking.Account, error) {
	var (
		account  corebanking.Account
		closedAt sql.NullTime
	)

	err := scanner.Scan(&account.ID, &account.CustomerID, &account.Number,
		&account.Type, &account.Balance, &account.Status, &account.Version,
		&account.OpenedAt, &closedAt)
	if err != nil {
		return nil, err
	}

	if closedAt.Valid {
		at := closedAt.Time
		account.ClosedAt = &at
	}

	return &account, nil
}

func scanAccount(row *sql.Row) (*corebanking.Account, error) {
	account, err := scanAccountFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	return account, nil
}

func scanAccountRow(rows *sql.Rows) (*corebanking.Account, error) {
	account, err := scanAccountFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	return account, nil
}

// ---------------------------------------------------------------------------
// transactions
// ---------------------------------------------------------------------------

const transactionColumns = `id, account_id, type, amount, description, balance_after, reference_number, counterpart_number, created_at`

type pgTransactions struct {
	s *Store
}

func (r pgTransactions) Create(ctx context.Context, transaction *corebanking.Transaction) error {
	_, err := r.s.querier(ctx).ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		transaction.ID, transaction.AccountID, transaction.Type,
		transaction.Amount, transaction.Description, transaction.BalanceAfter,
		transaction.ReferenceNumber, transaction.CounterpartNumber,
		transaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

func (r pgTransactions) ListByAccount(ctx context.Context, accountID string) ([]*corebanking.Transaction, error) {
	return r.list(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE account_id = $1 ORDER BY seq DESC`, accountID)
}

func (r pgTransactions) ListByReference(ctx context.Context, reference string) ([]*corebanking.Transaction, error) {
	return r.list(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE reference_number = $1 ORDER BY seq`, reference)
}

func (r pgTransactions) list(ctx context.Context, query string, arg any) ([]*corebanking.Transaction, error) {
	rows, err := r.s.querier(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var result []*corebanking.Transaction

	for rows.Next() {
		var transaction corebanking.Transaction

		err := rows.Scan(&transaction.ID, &transaction.AccountID,
			&transaction.Type, &transaction.Amount, &transaction.Description,
			&transaction.BalanceAfter, &transaction.ReferenceNumber,
			&transaction.CounterpartNumber, &transaction.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		result = append(result, &transaction)
	}

	return result, rows.Err()
}

// ---------------------------------------------------------------------------
// interest rates
// ---------------------------------------------------------------------------

const rateColumns = `id, account_type, annual_rate, min_balance, max_balance, effective_from, effective_to, active`

type pgRates struct {
	s *Store
}

func (r pgRates) Create(ctx context.Context, rate *corebanking.InterestRate) error {
	_, err := r.s.querier(ctx).ExecContext(ctx,
		`INSERT INTO interest_rates (`+rateColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rate.ID, rate.AccountType, rate.AnnualRate,
		nullDecimal(rate.MinBalance), nullDecimal(rate.MaxBalance),
		rate.EffectiveFrom, nullTime(rate.EffectiveTo), rate.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rate: %w", err)
	}

	return nil
}

func (r pgRates) FindApplicable(ctx context.Context, accountType corebanking.AccountType, balance decimal.Decimal, asOf time.Time) (*corebanking.InterestRate, error) {
	// The ORDER BY mirrors InterestRate.MoreSpecificThan: fully bounded tiers
	// first, then narrowest width, earliest effective-from, smallest id.
	row := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+rateColumns+` FROM interest_rates
		 WHERE active
		   AND account_type = $1
		   AND effective_from <= $3
		   AND (effective_to IS NULL OR effective_to >= $3)
		   AND (min_balance IS NULL OR min_balance <= $2)
		   AND (max_balance IS NULL OR max_balance >= $2)
		 ORDER BY (min_balance IS NOT NULL AND max_balance IS NOT NULL) DESC,
		          (max_balance - min_balance) ASC NULLS LAST,
		          effective_from ASC,
		          id ASC
		 LIMIT 1`,
		accountType, balance, asOf)

	rate, err := scanRate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan rate: %w", err)
	}

	return rate, nil
}

func (r pgRates) ListActive(ctx context.Context, accountType corebanking.AccountType) ([]*corebanking.InterestRate, error) {
	rows, err := r.s.querier(ctx).QueryContext(ctx,
		`SELECT `+rateColumns+` FROM interest_rates
		 WHERE active AND account_type = $1
		 ORDER BY effective_from, id`, accountType)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	defer rows.Close()

	var result []*corebanking.InterestRate

	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}

		result = append(result, rate)
	}

	return result, rows.Err()
}

func scanRate(scanner rowScanner) (*corebanking.InterestRate, error) {
	var (
		rate        corebanking.InterestRate
		minBalance  decimal.NullDecimal
		maxBalance  decimal.NullDecimal
		effectiveTo sql.NullTime
	)

	err := scanner.Scan(&rate.ID, &rate.AccountType, &rate.AnnualRate,
		&minBalance, &maxBalance, &rate.EffectiveFrom, &effectiveTo, &rate.Active)
	if err != nil {
		return nil, err
	}

	if minBalance.Valid {
		v := minBalance.Decimal
		rate.MinBalance = &v
	}

	if maxBalance.Valid {
		v := maxBalance.Decimal
		rate.MaxBalance = &v
	}

	if effectiveTo.Valid {
		at := effectiveTo.Time
		rate.EffectiveTo = &at
	}

	return &rate, nil
}

// ---------------------------------------------------------------------------
// interest postings
// ---------------------------------------------------------------------------

const postingColumns = `id, account_id, posting_date, amount, period_from, period_to, balance_used, rate_applied, transaction_reference`

type pgPostings struct {
	s *Store
}

func (r pgPostings) Create(ctx context.Context, posting *corebanking.InterestPosting) error {
	_, err := r.s.querier(ctx).ExecContext(ctx,
		`INSERT INTO interest_postings (`+postingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		posting.ID, posting.AccountID, posting.PostingDate, posting.Amount,
		posting.PeriodFrom, posting.PeriodTo, posting.BalanceUsed,
		posting.RateApplied, posting.TransactionReference,
	)
	if err != nil {
		return fmt.Errorf("failed to insert posting: %w", err)
	}

	return nil
}

func (r pgPostings) SetTransactionReference(ctx context.Context, postingID, reference string) error {
	result, err := r.s.querier(ctx).ExecContext(ctx,
		`UPDATE interest_postings SET transaction_reference = $1 WHERE id = $2`,
		reference, postingID)
	if err != nil {
		return fmt.Errorf("failed to set transaction reference: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (r pgPostings) ListByAccount(ctx context.Context, accountID string) ([]*corebanking.InterestPosting, error) {
	rows, err := r.s.querier(ctx).QueryContext(ctx,
		`SELECT `+postingColumns+` FROM interest_postings
		 WHERE account_id = $1 ORDER BY posting_date, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list postings: %w", err)
	}
	defer rows.Close()

	var result []*corebanking.InterestPosting

	for rows.Next() {
		var posting corebanking.InterestPosting

		err := rows.Scan(&posting.ID, &posting.AccountID, &posting.PostingDate,
			&posting.Amount, &posting.PeriodFrom, &posting.PeriodTo,
			&posting.BalanceUsed, &posting.RateApplied,
			&posting.TransactionReference)
		if err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}

		result = append(result, &posting)
	}

	return result, rows.Err()
}

// ---------------------------------------------------------------------------
// fixed deposits
// ---------------------------------------------------------------------------

const depositColumns = `id, account_id, number, principal, annual_rate, tenure_months, start_date, maturity_date, maturity_amount, auto_renewal, status, premature_at, penalty_rate`

type pgFixedDeposits struct {
	s *Store
}

func (r pgFixedDeposits) Create(ctx context.Context, deposit *corebanking.FixedDeposit) error {
	_, err := r.s.querier(ctx).ExecContext(ctx,
		`INSERT INTO fixed_deposits (`+depositColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		deposit.ID, deposit.AccountID, deposit.Number, deposit.Principal,
		deposit.AnnualRate, deposit.TenureMonths, deposit.StartDate,
		deposit.MaturityDate, deposit.MaturityAmount, deposit.AutoRenewal,
		deposit.Status, nullTime(deposit.PrematureAt),
		nullDecimal(deposit.PenaltyRate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fixed deposit: %w", err)
	}

	return nil
}

func (r pgFixedDeposits) FindByNumber(ctx context.Context, number string) (*corebanking.FixedDeposit, error) {
	row := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM fixed_deposits WHERE number = $1`, number)

	deposit, err := scanDeposit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan fixed deposit: %w", err)
	}

	return deposit, nil
}

func (r pgFixedDeposits) FindByNumberForUpdate(ctx context.Context, number string) (*corebanking.FixedDeposit, error) {
	row := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM fixed_deposits WHERE number = $1 FOR UPDATE`, number)

	deposit, err := scanDeposit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan fixed deposit: %w", err)
	}

	return deposit, nil
}

func (r pgFixedDeposits) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var exists bool

	err := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM fixed_deposits WHERE number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check fixed deposit number: %w", err)
	}

	return exists, nil
}

func (r pgFixedDeposits) Update(ctx context.Context, deposit *corebanking.FixedDeposit) error {
	result, err := r.s.querier(ctx).ExecContext(ctx,
		`UPDATE fixed_deposits
		 SET principal = $1, annual_rate = $2, tenure_months = $3,
		     start_date = $4, maturity_date = $5, maturity_amount = $6,
		     auto_renewal = $7, status = $8, premature_at = $9, penalty_rate = $10
		 WHERE id = $11`,
		deposit.Principal, deposit.AnnualRate, deposit.TenureMonths,
		deposit.StartDate, deposit.MaturityDate, deposit.MaturityAmount,
		deposit.AutoRenewal, deposit.Status, nullTime(deposit.PrematureAt),
		nullDecimal(deposit.PenaltyRate), deposit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fixed deposit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (r pgFixedDeposits) ListByAccount(ctx context.Context, accountID string) ([]*corebanking.FixedDeposit, error) {
	return r.list(ctx,
		`SELECT `+depositColumns+` FROM fixed_deposits
		 WHERE account_id = $1 ORDER BY start_date, number`, accountID)
}

func (r pgFixedDeposits) ListMatured(ctx context.Context, asOf time.Time) ([]*corebanking.FixedDeposit, error) {
	return r.list(ctx,
		`SELECT `+depositColumns+` FROM fixed_deposits
		 WHERE status = 'ACTIVE' AND maturity_date <= $1
		 ORDER BY maturity_date, number`, asOf)
}

func (r pgFixedDeposits) ExistsActiveByAccount(ctx context.Context, accountID string) (bool, error) {
	var exists bool

	err := r.s.querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM fixed_deposits WHERE account_id = $1 AND status = 'ACTIVE')`,
		accountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active fixed deposits: %w", err)
	}

	return exists, nil
}

func (r pgFixedDeposits) list(ctx context.Context, query string, arg any) ([]*corebanking.FixedDeposit, error) {
	rows, err := r.s.querier(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixed deposits: %w", err)
	}
	defer rows.Close()

	var result []*corebanking.FixedDeposit

	for rows.Next() {
		deposit, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fixed deposit: %w", err)
		}

		result = append(result, deposit)
	}

	return result, rows.Err()
}

func scanDeposit(scanner rowScanner) (*corebanking.FixedDeposit, error) {
	var (
		deposit     corebanking.FixedDeposit
		prematureAt sql.NullTime
		penaltyRate decimal.NullDecimal
	)

	err := scanner.Scan(&deposit.ID, &deposit.AccountID, &deposit.Number,
		&deposit.Principal, &deposit.AnnualRate, &deposit.TenureMonths,
		&deposit.StartDate, &deposit.MaturityDate, &deposit.MaturityAmount,
		&deposit.AutoRenewal, &deposit.Status, &prematureAt, &penaltyRate)
	if err != nil {
		return nil, err
	}

	if prematureAt.Valid {
		at := prematureAt.Time
		deposit.PrematureAt = &at
	}

	if penaltyRate.Valid {
		v := penaltyRate.Decimal
		deposit.PenaltyRate = &v
	}

	return &deposit, nil
}

// ---------------------------------------------------------------------------
// null helpers
// ---------------------------------------------------------------------------

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}

	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
