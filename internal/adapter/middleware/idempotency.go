package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Idempotency replays the stored response when a client retries a request
// with the same Idempotency-Key. Keys are scoped to the authenticated user
// and the request path, so a key cannot leak a response across endpoints or
// users. The transfer engine still guarantees one terminal outcome per
// accepted call; this layer just spares a retried submission from becoming
// a second transfer. Must run after Protected.
func Idempotency(db *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("Idempotency-Key")
		if key == "" {
			return c.Next()
		}
		userID, ok := c.Locals(UserIDKey).(uuid.UUID)
		if !ok {
			return c.Next()
		}

		var (
			status int
			body   []byte
		)
		err := db.QueryRow(c.Context(), `
			SELECT response_status, response_body FROM idempotency_keys
			WHERE key_id = $1 AND user_id = $2 AND request_path = $3`,
			key, userID, c.Path()).Scan(&status, &body)
		if err == nil {
			slog.Info("idempotency hit, replaying stored response", "key", key, "path", c.Path())
			c.Set("X-Idempotency-Hit", "true")
			c.Set("Content-Type", "application/json")
			return c.Status(status).Send(body)
		}

		if err := c.Next(); err != nil {
			return err
		}

		resStatus := c.Response().StatusCode()
		resBody := c.Response().Body()

		_, insertErr := db.Exec(c.Context(), `
			INSERT INTO idempotency_keys (key_id, user_id, request_path, response_status, response_body)
			VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
			key, userID, c.Path(), resStatus, resBody)
		if insertErr != nil {
			slog.Error("failed to save idempotency key", "key", key, "error", insertErr)
		}
		return nil
	}
}
