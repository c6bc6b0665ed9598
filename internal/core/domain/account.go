package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// User owns bank accounts. Authentication itself happens at the API edge;
// the core only needs the owner identity and a mail recipient.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is a single-currency bank account. The balance carries the
// currency; it is fixed at creation and never changes afterwards. The
// balance only moves through the ledger's deposit/withdraw primitives and
// never goes below zero.
type Account struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	AccountNumber string    `json:"account_number"`
	Name          string    `json:"name"`
	Balance       Money     `json:"balance"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewAccount starts at a zero balance, active.
func NewAccount(userID uuid.UUID, number, name string, currency Currency) *Account {
	return &Account{
		ID:            uuid.New(),
		UserID:        userID,
		AccountNumber: number,
		Name:          name,
		Balance:       Zero(currency),
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
}

// Currency of the account, fixed at creation.
func (a *Account) Currency() Currency { return a.Balance.Currency }

// OwnedBy reports whether the acting user owns this account.
func (a *Account) OwnedBy(userID uuid.UUID) bool { return a.UserID == userID }

const accountNumberDigits = 16

// NewAccountNumber produces one candidate account number: "PL" followed by
// sixteen random digits. Uniqueness is the store's unique index's call; the
// ledger retries on collision.
func NewAccountNumber() string {
	digits := make([]byte, accountNumberDigits)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand failing means the platform is broken; there is no
			// reasonable recovery for an account-number draw.
			panic(fmt.Sprintf("account number generation: %v", err))
		}
		digits[i] = byte('0' + n.Int64())
	}
	return "PL" + string(digits)
}
