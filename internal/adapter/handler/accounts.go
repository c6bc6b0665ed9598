package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Rafal-wq/banking-app/internal/adapter/cache"
	"github.com/Rafal-wq/banking-app/internal/adapter/middleware"
	"github.com/Rafal-wq/banking-app/internal/core/domain"
	"github.com/Rafal-wq/banking-app/internal/core/ledger"
)

type AccountHandler struct {
	Ledger *ledger.Service
	Cache  *cache.Cache
	// WelcomeBonus is granted in the account's currency when a user opens
	// their first account. Zero disables it.
	WelcomeBonus decimal.Decimal
}

type CreateAccountRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type UpdateAccountRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

type AmountRequest struct {
	Amount string `json:"amount"`
}

func actor(c *fiber.Ctx) uuid.UUID {
	userID, _ := c.Locals(middleware.UserIDKey).(uuid.UUID)
	return userID
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	if req.Name == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "account name is required"})
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		return respondError(c, err)
	}

	userID := actor(c)
	existing, err := h.Ledger.ListAccounts(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	account, err := h.Ledger.CreateAccount(c.Context(), userID, req.Name, currency)
	if err != nil {
		return respondError(c, err)
	}

	// First account gets the welcome bonus. The grant is onboarding sugar,
	// not part of account creation: if it fails the account stays.
	if len(existing) == 0 && h.WelcomeBonus.IsPositive() {
		bonus := domain.NewMoney(h.WelcomeBonus, currency)
		if _, err := h.Ledger.Grant(c.Context(), account.ID, bonus, "Welcome bonus"); err != nil {
			slog.Error("welcome bonus grant failed", "account_id", account.ID, "error", err)
		} else if fresh, err := h.Ledger.GetAccount(c.Context(), userID, account.ID); err == nil {
			account = fresh
		}
	}

	h.Cache.InvalidateUser(userID)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    account,
		"message": "bank account created successfully",
	})
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	userID := actor(c)

	key := cache.AccountsKey(userID)
	if body, ok := h.Cache.Get(key); ok {
		c.Set("Content-Type", "application/json")
		return c.Send(body)
	}

	accounts, err := h.Ledger.ListAccounts(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	body, err := json.Marshal(fiber.Map{"success": true, "data": accounts})
	if err != nil {
		return respondError(c, err)
	}
	h.Cache.Set(key, body)
	c.Set("Content-Type", "application/json")
	return c.Send(body)
}

func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid account id"})
	}
	account, err := h.Ledger.GetAccount(c.Context(), actor(c), accountID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": account})
}

// UpdateAccount handles renames and the administrative active flag.
func (h *AccountHandler) UpdateAccount(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid account id"})
	}
	var req UpdateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	if req.Name == nil && req.IsActive == nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "nothing to update"})
	}

	userID := actor(c)
	var account *domain.Account
	if req.Name != nil {
		if *req.Name == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "account name cannot be empty"})
		}
		if account, err = h.Ledger.Rename(c.Context(), userID, accountID, *req.Name); err != nil {
			return respondError(c, err)
		}
	}
	if req.IsActive != nil {
		if account, err = h.Ledger.SetActive(c.Context(), userID, accountID, *req.IsActive); err != nil {
			return respondError(c, err)
		}
	}

	h.Cache.InvalidateUser(userID)
	return c.JSON(fiber.Map{"success": true, "data": account, "message": "bank account updated successfully"})
}

func (h *AccountHandler) CloseAccount(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid account id"})
	}
	userID := actor(c)
	if err := h.Ledger.CloseAccount(c.Context(), userID, accountID); err != nil {
		return respondError(c, err)
	}
	h.Cache.InvalidateUser(userID)
	return c.JSON(fiber.Map{"success": true, "message": "bank account deleted successfully"})
}

func (h *AccountHandler) Deposit(c *fiber.Ctx) error {
	return h.applyAmount(c, h.Ledger.Deposit, "deposit successful")
}

func (h *AccountHandler) Withdraw(c *fiber.Ctx) error {
	return h.applyAmount(c, h.Ledger.Withdraw, "withdrawal successful")
}

// applyAmount is the shared deposit/withdraw plumbing: the request carries
// only a decimal amount string, the currency is implied by the account.
func (h *AccountHandler) applyAmount(
	c *fiber.Ctx,
	op func(ctx context.Context, actorID, accountID uuid.UUID, amount domain.Money) (*domain.Account, error),
	message string,
) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid account id"})
	}
	var req AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}

	userID := actor(c)
	account, err := h.Ledger.GetAccount(c.Context(), userID, accountID)
	if err != nil {
		return respondError(c, err)
	}
	amount, err := domain.ParseMoney(req.Amount, account.Currency())
	if err != nil {
		return respondError(c, err)
	}

	updated, err := op(c.Context(), userID, accountID, amount)
	if err != nil {
		return respondError(c, err)
	}

	h.Cache.InvalidateUser(userID)
	return c.JSON(fiber.Map{"success": true, "data": updated, "message": message})
}
