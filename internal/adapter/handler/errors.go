package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
)

// respondError maps domain errors onto HTTP statuses. Anything unmapped is
// treated as transient and hidden behind a 500 so store internals never
// leak to clients.
func respondError(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrUnsupportedCurrency),
		errors.Is(err, domain.ErrCurrencyMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrAccountInactive):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrAccountNotEmpty),
		errors.Is(err, domain.ErrPendingTransactions),
		errors.Is(err, domain.ErrAccountReferenced),
		errors.Is(err, domain.ErrTransactionFinal),
		errors.Is(err, domain.ErrAccountNumberExhausted):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
		message = "internal server error"
	}

	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}
