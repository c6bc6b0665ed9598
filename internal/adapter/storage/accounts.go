package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

const accountColumns = `id, user_id, account_number, name, balance::text, currency, is_active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		acc      domain.Account
		balance  string
		currency string
	)
	err := row.Scan(&acc.ID, &acc.UserID, &acc.AccountNumber, &acc.Name,
		&balance, &currency, &acc.IsActive, &acc.CreatedAt)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("corrupt balance %q: %w", balance, err)
	}
	acc.Balance = domain.NewMoney(amount, domain.Currency(currency))
	return &acc, nil
}

// CreateAccount inserts a new account. A collision on the account-number
// unique index comes back as domain.ErrAccountNumberTaken so the ledger can
// draw a fresh number.
func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, user_id, account_number, name, balance, currency, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.UserID, account.AccountNumber, account.Name,
		account.Balance.Amount.StringFixed(2), string(account.Currency()),
		account.IsActive, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrAccountNumberTaken, account.AccountNumber)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// UpdateAccount persists the mutable attributes: display name and the
// active flag. Balance and currency deliberately stay out of reach here.
func (s *Store) UpdateAccount(ctx context.Context, account *domain.Account) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET name = $2, is_active = $3 WHERE id = $1`,
		account.ID, account.Name, account.IsActive)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes the row. Transactions keep plain (non-cascading)
// foreign keys to accounts, so an account that any transaction still
// references cannot be deleted — the violation surfaces as
// domain.ErrAccountReferenced instead of silently orphaning the audit trail.
func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.ErrAccountReferenced
		}
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *Store) HasPendingTransactions(ctx context.Context, accountID uuid.UUID) (bool, error) {
	var pending bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE status = 'pending' AND (from_account_id = $1 OR to_account_id = $1)
		)`, accountID).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("pending check: %w", err)
	}
	return pending, nil
}

// Deposit adds the amount in a single guarded statement; the row lock the
// UPDATE takes serializes concurrent mutations of the same account.
func (s *Store) Deposit(ctx context.Context, accountID uuid.UUID, amount domain.Money) (*domain.Account, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $2
		WHERE id = $1
		RETURNING `+accountColumns,
		accountID, amount.Amount.StringFixed(2))
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	return account, nil
}

// Withdraw is the authoritative funds check: the balance guard sits in the
// UPDATE itself, so under concurrency only one of two competing withdrawals
// can drain the same funds.
func (s *Store) Withdraw(ctx context.Context, accountID uuid.UUID, amount domain.Money) (*domain.Account, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE accounts SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
		RETURNING `+accountColumns,
		accountID, amount.Amount.StringFixed(2))
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the account vanished or the guard rejected the amount.
		if _, getErr := s.GetAccount(ctx, accountID); getErr != nil {
			return nil, getErr
		}
		return nil, domain.ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	return account, nil
}

// ApplyGrant credits the account and writes the completed self-referential
// record in one database transaction.
func (s *Store) ApplyGrant(ctx context.Context, txn *domain.Transaction) (*domain.Account, error) {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}
	defer dbTx.Rollback(ctx)

	row := dbTx.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $2
		WHERE id = $1
		RETURNING `+accountColumns,
		txn.ToAccountID, txn.TargetAmount.Amount.StringFixed(2))
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}

	if err := insertTransaction(ctx, dbTx, txn); err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}
	return account, nil
}
