package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Rafal-wq/banking-app/internal/core/exchange"
)

type RatesHandler struct {
	Rates *exchange.Static
}

// ListRates quotes every supported currency pair.
func (h *RatesHandler) ListRates(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "data": h.Rates.Pairs()})
}
