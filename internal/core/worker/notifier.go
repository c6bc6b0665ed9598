package worker

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
	"github.com/Rafal-wq/banking-app/internal/core/notifications"
)

// Queue persists notification jobs for the background worker.
type Queue interface {
	EnqueueNotification(ctx context.Context, recipient string, payload []byte) error
}

// Directory resolves account owners to mail recipients.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// MailNotifier implements the transfer engine's Notifier port by queueing
// one notice per party. Everything here is best effort: a lookup or enqueue
// failure is logged and swallowed, never surfaced to the transfer.
type MailNotifier struct {
	users Directory
	queue Queue
}

func NewMailNotifier(users Directory, queue Queue) *MailNotifier {
	return &MailNotifier{users: users, queue: queue}
}

func (n *MailNotifier) TransferCompleted(ctx context.Context, txn *domain.Transaction, from, to *domain.Account) {
	n.enqueue(ctx, txn, from)
	// One mail per user: a transfer between a user's own accounts gets a
	// single outgoing notice.
	if to.UserID != from.UserID {
		n.enqueue(ctx, txn, to)
	}
}

func (n *MailNotifier) enqueue(ctx context.Context, txn *domain.Transaction, account *domain.Account) {
	owner, err := n.users.GetUser(ctx, account.UserID)
	if err != nil {
		slog.Warn("notification skipped, owner lookup failed",
			"transaction_id", txn.ID, "user_id", account.UserID, "error", err)
		return
	}
	notice := notifications.NewTransferNotice(txn, account, owner)
	payload, err := notice.Encode()
	if err != nil {
		slog.Warn("notification skipped, encode failed", "transaction_id", txn.ID, "error", err)
		return
	}
	if err := n.queue.EnqueueNotification(ctx, notice.Recipient, payload); err != nil {
		slog.Warn("notification enqueue failed",
			"transaction_id", txn.ID, "recipient", notice.Recipient, "error", err)
		return
	}
	slog.Info("transfer notice queued", "transaction_id", txn.ID, "recipient", notice.Recipient)
}
