// Package transfer orchestrates moving funds between two accounts: it
// validates both sides, converts currency when they differ, debits the
// source, credits the destination and keeps the transaction record in step
// with both balances — all inside one store transaction.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
	"github.com/Rafal-wq/banking-app/internal/core/exchange"
)

// Tx is the query set available inside one store transaction. LockAccounts
// must take exclusive row locks on both accounts for the remainder of the
// transaction, always acquiring them in ascending id order so that two
// opposite transfers over the same pair cannot deadlock. The returned
// accounts are in argument order.
type Tx interface {
	LockAccounts(ctx context.Context, a, b uuid.UUID) (*domain.Account, *domain.Account, error)
	UpdateBalance(ctx context.Context, accountID uuid.UUID, balance domain.Money) error
	InsertTransaction(ctx context.Context, txn *domain.Transaction) error
	// SetTransactionStatus persists a status transition. The store refuses
	// to touch rows that are already terminal.
	SetTransactionStatus(ctx context.Context, txn *domain.Transaction) error
}

// Store is the persistence port of the engine. ExecTx runs fn inside a
// single transaction: if fn returns an error, every write made through the
// Tx rolls back — including the pending transaction row — so a failure or
// timeout can never leave a partial debit or a pending orphan behind.
type Store interface {
	ExecTx(ctx context.Context, fn func(q Tx) error) error
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// RecordTransaction persists a record outside any transfer transaction;
	// the engine uses it to keep failed attempts on the books.
	RecordTransaction(ctx context.Context, txn *domain.Transaction) error
}

// Notifier delivers best-effort transfer notices. Implementations must not
// block the transfer path on delivery; failures are theirs to log.
type Notifier interface {
	TransferCompleted(ctx context.Context, txn *domain.Transaction, from, to *domain.Account)
}

// NopNotifier drops all notices.
type NopNotifier struct{}

func (NopNotifier) TransferCompleted(context.Context, *domain.Transaction, *domain.Account, *domain.Account) {
}

// Request describes one transfer. The amount is interpreted in the source
// account's currency once that account is loaded.
type Request struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Title         string
	Description   string
}

// Result carries the terminal transaction together with snapshots of both
// accounts as committed.
type Result struct {
	Transaction *domain.Transaction
	From        *domain.Account
	To          *domain.Account
}

type Engine struct {
	store    Store
	rates    exchange.RateProvider
	notifier Notifier
}

func NewEngine(store Store, rates exchange.RateProvider, notifier Notifier) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{store: store, rates: rates, notifier: notifier}
}

// Transfer runs one orchestration pass and always lands the attempt in
// exactly one terminal outcome.
//
// Preconditions are checked up front, each with its own error: same account,
// existence, ownership of the source, both sides active, positive amount,
// sufficient funds. A request rejected here leaves no transaction record.
//
// Once preconditions pass, the debit, credit and status update run inside a
// single store transaction with both account rows locked; the funds and
// active checks are repeated under the lock as the authoritative word. If
// anything fails in there the store rolls everything back — the withdrawal
// is compensated by the rollback itself — and the engine records the attempt
// as a failed transaction before returning the error.
func (e *Engine) Transfer(ctx context.Context, actorID uuid.UUID, req Request) (*Result, error) {
	if req.FromAccountID == req.ToAccountID {
		return nil, domain.ErrSameAccount
	}

	from, err := e.store.GetAccount(ctx, req.FromAccountID)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if !from.OwnedBy(actorID) {
		return nil, domain.ErrUnauthorized
	}
	to, err := e.store.GetAccount(ctx, req.ToAccountID)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	if !from.IsActive {
		return nil, &domain.InactiveAccountError{Side: "source", AccountID: from.ID}
	}
	if !to.IsActive {
		return nil, &domain.InactiveAccountError{Side: "destination", AccountID: to.ID}
	}
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	source := domain.NewMoney(req.Amount, from.Currency())
	if short, err := from.Balance.LessThan(source); err != nil {
		return nil, err
	} else if short {
		return nil, domain.ErrInsufficientFunds
	}

	target := source
	if from.Currency() != to.Currency() {
		target, err = e.rates.Convert(source, to.Currency())
		if err != nil {
			return nil, err
		}
	}

	txn := domain.NewTransaction(from.ID, to.ID, source, target, req.Title, req.Description)
	result := &Result{Transaction: txn}

	err = e.store.ExecTx(ctx, func(q Tx) error {
		lockedFrom, lockedTo, err := q.LockAccounts(ctx, from.ID, to.ID)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrWithdrawalFailed, err)
		}

		// Authoritative recheck under the locks: another transfer may have
		// committed between the read above and this point.
		if !lockedFrom.IsActive {
			return &domain.InactiveAccountError{Side: "source", AccountID: lockedFrom.ID}
		}
		if !lockedTo.IsActive {
			return &domain.InactiveAccountError{Side: "destination", AccountID: lockedTo.ID}
		}
		if short, err := lockedFrom.Balance.LessThan(source); err != nil {
			return err
		} else if short {
			return fmt.Errorf("%w: %w", domain.ErrWithdrawalFailed, domain.ErrInsufficientFunds)
		}

		if err := q.InsertTransaction(ctx, txn); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		debited, err := lockedFrom.Balance.Sub(source)
		if err != nil {
			return err
		}
		if err := q.UpdateBalance(ctx, lockedFrom.ID, debited); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrWithdrawalFailed, err)
		}

		credited, err := lockedTo.Balance.Add(target)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrDepositFailed, err)
		}
		if err := q.UpdateBalance(ctx, lockedTo.ID, credited); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrDepositFailed, err)
		}

		if err := txn.MarkCompleted(time.Now()); err != nil {
			return err
		}
		if err := q.SetTransactionStatus(ctx, txn); err != nil {
			return err
		}

		lockedFrom.Balance = debited
		lockedTo.Balance = credited
		result.From = lockedFrom
		result.To = lockedTo
		return nil
	})
	if err != nil {
		e.recordFailure(ctx, txn, err)
		return nil, err
	}

	slog.Info("transfer completed",
		"transaction_id", txn.ID,
		"from_account_id", from.ID,
		"to_account_id", to.ID,
		"source_amount", source.String(),
		"target_amount", target.String(),
	)

	// Best effort only; a lost notice never fails a committed transfer.
	e.notifier.TransferCompleted(ctx, txn, result.From, result.To)

	return result, nil
}

// recordFailure keeps a rejected atomic section on the books as a failed
// transaction. The rollback already restored both balances; this record is
// audit trail, so its own failure is only logged.
func (e *Engine) recordFailure(ctx context.Context, txn *domain.Transaction, cause error) {
	// A local MarkCompleted that never became durable does not count as a
	// terminal status; the record goes on the books as failed.
	txn.Status = domain.StatusPending
	txn.ExecutedAt = nil
	if err := txn.MarkFailed(); err != nil {
		return
	}
	if err := e.store.RecordTransaction(ctx, txn); err != nil {
		slog.Error("could not record failed transfer",
			"transaction_id", txn.ID,
			"cause", cause,
			"error", err,
		)
		return
	}
	slog.Warn("transfer failed",
		"transaction_id", txn.ID,
		"from_account_id", txn.FromAccountID,
		"to_account_id", txn.ToAccountID,
		"cause", cause,
	)
}

// IsTransient reports whether the caller may retry the transfer as-is
// (store unavailability rather than a business rejection).
func IsTransient(err error) bool {
	return err != nil &&
		!errors.Is(err, domain.ErrSameAccount) &&
		!errors.Is(err, domain.ErrUnauthorized) &&
		!errors.Is(err, domain.ErrAccountNotFound) &&
		!errors.Is(err, domain.ErrAccountInactive) &&
		!errors.Is(err, domain.ErrInvalidAmount) &&
		!errors.Is(err, domain.ErrInsufficientFunds) &&
		!errors.Is(err, domain.ErrUnsupportedCurrency) &&
		!errors.Is(err, domain.ErrCurrencyMismatch)
}
