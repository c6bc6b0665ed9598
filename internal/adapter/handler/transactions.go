package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Rafal-wq/banking-app/internal/adapter/cache"
	"github.com/Rafal-wq/banking-app/internal/adapter/storage"
	"github.com/Rafal-wq/banking-app/internal/core/domain"
	"github.com/Rafal-wq/banking-app/internal/core/ledger"
	"github.com/Rafal-wq/banking-app/internal/core/transfer"
)

type TransactionHandler struct {
	Engine *transfer.Engine
	Ledger *ledger.Service
	Store  *storage.Store
	Cache  *cache.Cache
}

type TransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Title         string `json:"title"`
	Description   string `json:"description"`
}

// historyRow decorates a transaction with its direction relative to the
// account whose history is being viewed. Direction is presentation only —
// grants always read as incoming.
type historyRow struct {
	domain.Transaction
	Direction string `json:"direction"`
}

func (h *TransactionHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	fromID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid from_account_id"})
	}
	toID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid to_account_id"})
	}
	if req.Title == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "title is required"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return respondError(c, domain.ErrInvalidAmount)
	}

	result, err := h.Engine.Transfer(c.Context(), actor(c), transfer.Request{
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        amount,
		Title:         req.Title,
		Description:   req.Description,
	})
	if err != nil {
		return respondError(c, err)
	}

	// Both owners' list views are stale now.
	h.Cache.InvalidateUser(result.From.UserID)
	if result.To.UserID != result.From.UserID {
		h.Cache.InvalidateUser(result.To.UserID)
	}

	message := "transaction completed successfully"
	if result.Transaction.SourceAmount.Currency != result.Transaction.TargetAmount.Currency {
		message += " with currency conversion from " +
			result.Transaction.SourceAmount.String() + " to " + result.Transaction.TargetAmount.String()
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"transaction":  result.Transaction,
			"from_account": result.From,
			"to_account":   result.To,
		},
		"message": message,
	})
}

func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	userID := actor(c)

	key := cache.TransactionsKey(userID)
	if body, ok := h.Cache.Get(key); ok {
		c.Set("Content-Type", "application/json")
		return c.Send(body)
	}

	txns, err := h.Store.ListTransactionsForUser(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	body, err := json.Marshal(fiber.Map{"success": true, "data": txns})
	if err != nil {
		return respondError(c, err)
	}
	h.Cache.Set(key, body)
	c.Set("Content-Type", "application/json")
	return c.Send(body)
}

// GetTransaction shows one record to anyone who owns either side of it.
func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	txnID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid transaction id"})
	}
	txn, err := h.Store.GetTransaction(c.Context(), txnID)
	if err != nil {
		return respondError(c, err)
	}

	userID := actor(c)
	involved := false
	for _, accountID := range []uuid.UUID{txn.FromAccountID, txn.ToAccountID} {
		account, err := h.Store.GetAccount(c.Context(), accountID)
		if err == nil && account.OwnedBy(userID) {
			involved = true
			break
		}
	}
	if !involved {
		return respondError(c, domain.ErrUnauthorized)
	}

	return c.JSON(fiber.Map{"success": true, "data": txn})
}

// AccountHistory lists an account's transactions with direction decoration.
func (h *TransactionHandler) AccountHistory(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid account id"})
	}

	// Ownership check; also 404s unknown accounts.
	if _, err := h.Ledger.GetAccount(c.Context(), actor(c), accountID); err != nil {
		return respondError(c, err)
	}

	txns, err := h.Store.ListTransactionsForAccount(c.Context(), accountID)
	if err != nil {
		return respondError(c, err)
	}

	rows := make([]historyRow, 0, len(txns))
	for _, txn := range txns {
		direction := "incoming"
		if txn.IsOutgoing(accountID) {
			direction = "outgoing"
		}
		rows = append(rows, historyRow{Transaction: txn, Direction: direction})
	}

	return c.JSON(fiber.Map{"success": true, "data": rows})
}
