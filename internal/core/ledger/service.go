// Package ledger owns the per-account primitives: creation with a unique
// account number, deposits, withdrawals, activation and closing. Each
// primitive is a single atomic balance mutation; composing two of them into
// a transfer happens one level up, in the transfer engine.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
)

// Store is the persistence port the ledger runs on. Deposit and Withdraw
// must be atomic with respect to concurrent calls touching the same account
// (row-level locking in the Postgres implementation) and must have the
// balance durably written before they return. Withdraw is the authoritative
// funds check and returns domain.ErrInsufficientFunds when the locked
// balance cannot cover the amount.
type Store interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	UpdateAccount(ctx context.Context, account *domain.Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	HasPendingTransactions(ctx context.Context, accountID uuid.UUID) (bool, error)

	Deposit(ctx context.Context, accountID uuid.UUID, amount domain.Money) (*domain.Account, error)
	Withdraw(ctx context.Context, accountID uuid.UUID, amount domain.Money) (*domain.Account, error)

	// ApplyGrant atomically credits the destination account and records the
	// completed self-referential transaction.
	ApplyGrant(ctx context.Context, txn *domain.Transaction) (*domain.Account, error)
}

// maxNumberAttempts caps the account-number draw. With 10^16 candidates a
// collision retry is already rare; hitting the cap means something is wrong
// with the store, not with the dice.
const maxNumberAttempts = 5

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// CreateAccount opens a zero-balance account in the given currency. The
// account number is drawn at random and the store's unique index is the
// arbiter: on a collision we draw again, up to maxNumberAttempts.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, name string, currency domain.Currency) (*domain.Account, error) {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		account := domain.NewAccount(userID, domain.NewAccountNumber(), name, currency)
		err := s.store.CreateAccount(ctx, account)
		if err == nil {
			slog.Info("account created",
				"account_id", account.ID,
				"account_number", account.AccountNumber,
				"currency", currency,
			)
			return account, nil
		}
		if !errors.Is(err, domain.ErrAccountNumberTaken) {
			return nil, fmt.Errorf("create account: %w", err)
		}
		slog.Warn("account number collision, retrying", "attempt", attempt)
	}
	return nil, domain.ErrAccountNumberExhausted
}

// GetAccount loads an account the acting user owns.
func (s *Service) GetAccount(ctx context.Context, actorID, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(actorID) {
		return nil, domain.ErrUnauthorized
	}
	return account, nil
}

// ListAccounts returns all accounts belonging to the user.
func (s *Service) ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	return s.store.ListAccounts(ctx, userID)
}

// Deposit credits the account. The amount must be positive and in the
// account's own currency; the account must be active and owned by the actor.
func (s *Service) Deposit(ctx context.Context, actorID, accountID uuid.UUID, amount domain.Money) (*domain.Account, error) {
	account, err := s.checkMutable(ctx, actorID, accountID, amount)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.Deposit(ctx, account.ID, amount)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	slog.Info("deposit applied", "account_id", account.ID, "amount", amount.String())
	return updated, nil
}

// Withdraw debits the account. Beyond the Deposit checks it requires the
// balance to cover the amount; the store re-verifies that under its row lock
// so two concurrent withdrawals cannot both drain the same funds.
func (s *Service) Withdraw(ctx context.Context, actorID, accountID uuid.UUID, amount domain.Money) (*domain.Account, error) {
	account, err := s.checkMutable(ctx, actorID, accountID, amount)
	if err != nil {
		return nil, err
	}
	if short, err := account.Balance.LessThan(amount); err != nil {
		return nil, err
	} else if short {
		return nil, domain.ErrInsufficientFunds
	}
	updated, err := s.store.Withdraw(ctx, account.ID, amount)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	slog.Info("withdrawal applied", "account_id", account.ID, "amount", amount.String())
	return updated, nil
}

// Rename changes the display name.
func (s *Service) Rename(ctx context.Context, actorID, accountID uuid.UUID, name string) (*domain.Account, error) {
	account, err := s.GetAccount(ctx, actorID, accountID)
	if err != nil {
		return nil, err
	}
	account.Name = name
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("rename account: %w", err)
	}
	return account, nil
}

// SetActive flips the administrative active flag. Deactivation does not
// touch the balance; it only blocks new operations.
func (s *Service) SetActive(ctx context.Context, actorID, accountID uuid.UUID, active bool) (*domain.Account, error) {
	account, err := s.GetAccount(ctx, actorID, accountID)
	if err != nil {
		return nil, err
	}
	account.IsActive = active
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	slog.Info("account active flag changed", "account_id", account.ID, "is_active", active)
	return account, nil
}

// CloseAccount deletes an account. Only allowed when the balance is exactly
// zero and no pending transaction still references the account — terminal
// transactions keep their (weak) references and are never cascaded away.
func (s *Service) CloseAccount(ctx context.Context, actorID, accountID uuid.UUID) error {
	account, err := s.GetAccount(ctx, actorID, accountID)
	if err != nil {
		return err
	}
	if !account.Balance.IsZero() {
		return domain.ErrAccountNotEmpty
	}
	pending, err := s.store.HasPendingTransactions(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("close account: %w", err)
	}
	if pending {
		return domain.ErrPendingTransactions
	}
	if err := s.store.DeleteAccount(ctx, account.ID); err != nil {
		return fmt.Errorf("close account: %w", err)
	}
	slog.Info("account closed", "account_id", account.ID)
	return nil
}

// Grant credits an account outside the transfer path — the onboarding
// welcome bonus uses it. The credit and its audit record are applied
// atomically; the record is self-referential (from == to) and completed
// immediately.
func (s *Service) Grant(ctx context.Context, accountID uuid.UUID, amount domain.Money, reason string) (*domain.Transaction, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, &domain.InactiveAccountError{Side: "destination", AccountID: account.ID}
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if amount.Currency != account.Currency() {
		return nil, fmt.Errorf("%w: grant in %s to a %s account", domain.ErrCurrencyMismatch, amount.Currency, account.Currency())
	}

	txn := domain.NewTransaction(account.ID, account.ID, amount, amount, reason, "")
	if err := txn.MarkCompleted(time.Now()); err != nil {
		return nil, err
	}
	if _, err := s.store.ApplyGrant(ctx, txn); err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}
	slog.Info("grant applied", "account_id", account.ID, "amount", amount.String(), "reason", reason)
	return txn, nil
}

// checkMutable runs the shared deposit/withdraw preconditions.
func (s *Service) checkMutable(ctx context.Context, actorID, accountID uuid.UUID, amount domain.Money) (*domain.Account, error) {
	account, err := s.GetAccount(ctx, actorID, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, &domain.InactiveAccountError{Side: "source", AccountID: account.ID}
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if amount.Currency != account.Currency() {
		return nil, fmt.Errorf("%w: %s operation on a %s account", domain.ErrCurrencyMismatch, amount.Currency, account.Currency())
	}
	return account, nil
}
