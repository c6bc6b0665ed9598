package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain errors. Handlers translate these into HTTP status codes with
// errors.Is; storage maps driver errors into them so callers never see
// pgx internals.
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	ErrUserNotFound    = errors.New("user not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrUnauthorized    = errors.New("account does not belong to the acting user")

	ErrSameAccount     = errors.New("source and destination accounts are the same")
	ErrAccountInactive = errors.New("account is inactive")

	// ErrAccountNumberTaken is returned by the store when the unique index on
	// account_number rejects a candidate; the ledger retries a fresh one.
	ErrAccountNumberTaken     = errors.New("account number already taken")
	ErrAccountNumberExhausted = errors.New("could not generate a unique account number")

	ErrEmailTaken = errors.New("email address already registered")

	ErrAccountNotEmpty      = errors.New("account still has a balance")
	ErrAccountReferenced    = errors.New("account is referenced by existing transactions")
	ErrPendingTransactions  = errors.New("account has pending transactions")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionFinal     = errors.New("transaction already reached a terminal status")

	ErrWithdrawalFailed = errors.New("withdrawal from source account failed")
	ErrDepositFailed    = errors.New("deposit to destination account failed")
)

// InactiveAccountError reports which side of a transfer was inactive.
// errors.Is(err, ErrAccountInactive) matches it.
type InactiveAccountError struct {
	Side      string // "source" or "destination"
	AccountID uuid.UUID
}

func (e *InactiveAccountError) Error() string {
	return fmt.Sprintf("%s account %s is inactive", e.Side, e.AccountID)
}

func (e *InactiveAccountError) Unwrap() error { return ErrAccountInactive }
