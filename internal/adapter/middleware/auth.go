package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Rafal-wq/banking-app/internal/adapter/storage"
	"github.com/Rafal-wq/banking-app/internal/core/security"
)

// UserIDKey is the fiber locals key carrying the authenticated user id.
const UserIDKey = "user_id"

// Protected resolves a Bearer API key to its owning user. Session issuance
// lives outside this service; the API only ever sees the key.
func Protected(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "missing API key"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid Authorization header"})
		}

		userID, err := store.UserIDByKeyHash(c.Context(), security.HashKey(parts[1]))
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid API key"})
		}

		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}
