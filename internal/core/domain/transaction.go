package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is the durable audit entry for a money movement. Both amounts
// are always stored: SourceAmount in the source account's currency and
// TargetAmount in the destination's; they are equal when the currencies
// match. Status only ever moves pending -> completed or pending -> failed
// and a terminal record is never touched again.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	FromAccountID uuid.UUID         `json:"from_account_id"`
	ToAccountID   uuid.UUID         `json:"to_account_id"`
	SourceAmount  Money             `json:"source_amount"`
	TargetAmount  Money             `json:"target_amount"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	ExecutedAt    *time.Time        `json:"executed_at,omitempty"`
}

// NewTransaction creates a pending record.
func NewTransaction(from, to uuid.UUID, source, target Money, title, description string) *Transaction {
	return &Transaction{
		ID:            uuid.New(),
		FromAccountID: from,
		ToAccountID:   to,
		SourceAmount:  source,
		TargetAmount:  target,
		Title:         title,
		Description:   description,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

// IsFinal reports whether the transaction reached a terminal status.
func (t *Transaction) IsFinal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// MarkCompleted transitions pending -> completed and stamps the execution
// time. Terminal records refuse any further transition.
func (t *Transaction) MarkCompleted(at time.Time) error {
	if t.Status != StatusPending {
		return ErrTransactionFinal
	}
	t.Status = StatusCompleted
	at = at.UTC()
	t.ExecutedAt = &at
	return nil
}

// MarkFailed transitions pending -> failed.
func (t *Transaction) MarkFailed() error {
	if t.Status != StatusPending {
		return ErrTransactionFinal
	}
	t.Status = StatusFailed
	return nil
}

// IsGrant reports a self-referential credit (welcome bonus and the like);
// those are recorded with from == to.
func (t *Transaction) IsGrant() bool {
	return t.FromAccountID == t.ToAccountID
}

// IsOutgoing is a presentation helper: whether the transaction leaves the
// given account. Grants are always shown as incoming so the owner does not
// see their own bonus as money spent.
func (t *Transaction) IsOutgoing(forAccountID uuid.UUID) bool {
	if t.IsGrant() {
		return false
	}
	return t.FromAccountID == forAccountID
}
