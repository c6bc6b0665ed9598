package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
	"github.com/Rafal-wq/banking-app/internal/core/transfer"
)

// ExecTx runs fn inside one database transaction. Any error rolls the whole
// thing back — balances, the pending transaction row, everything — which is
// exactly the compensation the transfer engine relies on.
func (s *Store) ExecTx(ctx context.Context, fn func(q transfer.Tx) error) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbTx.Rollback(ctx)

	if err := fn(&txQueries{tx: dbTx}); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// txQueries is the per-transaction query set handed to the engine.
type txQueries struct {
	tx pgx.Tx
}

// LockAccounts takes FOR UPDATE locks on both rows, always in ascending id
// order regardless of transfer direction, so two opposite transfers over
// the same pair queue up instead of deadlocking.
func (q *txQueries) LockAccounts(ctx context.Context, a, b uuid.UUID) (*domain.Account, *domain.Account, error) {
	first, second := a, b
	if bytes.Compare(b[:], a[:]) < 0 {
		first, second = b, a
	}

	locked := make(map[uuid.UUID]*domain.Account, 2)
	for _, id := range []uuid.UUID{first, second} {
		row := q.tx.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
		account, err := scanAccount(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrAccountNotFound
		}
		if err != nil {
			return nil, nil, fmt.Errorf("lock account: %w", err)
		}
		locked[id] = account
	}
	return locked[a], locked[b], nil
}

func (q *txQueries) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance domain.Money) error {
	tag, err := q.tx.Exec(ctx,
		`UPDATE accounts SET balance = $2 WHERE id = $1`,
		accountID, balance.Amount.StringFixed(2))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
			return domain.ErrInsufficientFunds
		}
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (q *txQueries) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	return insertTransaction(ctx, q.tx, txn)
}

// SetTransactionStatus persists a pending -> terminal transition. The
// status guard in the WHERE clause makes terminal rows immutable at the
// store level, not just by policy.
func (q *txQueries) SetTransactionStatus(ctx context.Context, txn *domain.Transaction) error {
	tag, err := q.tx.Exec(ctx, `
		UPDATE transactions SET status = $2, executed_at = $3
		WHERE id = $1 AND status = 'pending'`,
		txn.ID, string(txn.Status), txn.ExecutedAt)
	if err != nil {
		return fmt.Errorf("set transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionFinal
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertTransaction(ctx context.Context, db execer, txn *domain.Transaction) error {
	_, err := db.Exec(ctx, `
		INSERT INTO transactions
			(id, from_account_id, to_account_id,
			 source_amount, source_currency, target_amount, target_currency,
			 title, description, status, created_at, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		txn.ID, txn.FromAccountID, txn.ToAccountID,
		txn.SourceAmount.Amount.StringFixed(2), string(txn.SourceAmount.Currency),
		txn.TargetAmount.Amount.StringFixed(2), string(txn.TargetAmount.Currency),
		txn.Title, txn.Description, string(txn.Status), txn.CreatedAt, txn.ExecutedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// RecordTransaction persists a record outside any transfer transaction.
// The engine uses it to keep failed attempts on the books after a rollback.
func (s *Store) RecordTransaction(ctx context.Context, txn *domain.Transaction) error {
	return insertTransaction(ctx, s.pool, txn)
}

const transactionColumns = `id, from_account_id, to_account_id,
	source_amount::text, source_currency, target_amount::text, target_currency,
	title, description, status, created_at, executed_at`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		txn                          domain.Transaction
		sourceAmount, targetAmount   string
		sourceCcy, targetCcy, status string
		executedAt                   *time.Time
	)
	err := row.Scan(&txn.ID, &txn.FromAccountID, &txn.ToAccountID,
		&sourceAmount, &sourceCcy, &targetAmount, &targetCcy,
		&txn.Title, &txn.Description, &status, &txn.CreatedAt, &executedAt)
	if err != nil {
		return nil, err
	}
	source, err := decimal.NewFromString(sourceAmount)
	if err != nil {
		return nil, fmt.Errorf("corrupt source amount %q: %w", sourceAmount, err)
	}
	target, err := decimal.NewFromString(targetAmount)
	if err != nil {
		return nil, fmt.Errorf("corrupt target amount %q: %w", targetAmount, err)
	}
	txn.SourceAmount = domain.NewMoney(source, domain.Currency(sourceCcy))
	txn.TargetAmount = domain.NewMoney(target, domain.Currency(targetCcy))
	txn.Status = domain.TransactionStatus(status)
	txn.ExecutedAt = executedAt
	return &txn, nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactionsForUser returns every transaction touching any of the
// user's accounts, newest first.
func (s *Store) ListTransactionsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE EXISTS (
			SELECT 1 FROM accounts a
			WHERE a.user_id = $1 AND a.id IN (t.from_account_id, t.to_account_id)
		)
		ORDER BY t.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

// ListTransactionsForAccount returns the account's history, newest first.
func (s *Store) ListTransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list account transactions: %w", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}
