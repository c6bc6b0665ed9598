package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Rafal-wq/banking-app/internal/adapter/storage"
	"github.com/Rafal-wq/banking-app/internal/core/security"
)

type UserHandler struct {
	Store *storage.Store
}

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || !strings.Contains(req.Email, "@") {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "name and a valid email are required"})
	}

	user, err := h.Store.CreateUser(c.Context(), req.Name, req.Email)
	if err != nil {
		return respondError(c, err)
	}

	slog.Info("user registered", "user_id", user.ID)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "data": user})
}

// GenerateKey issues an API key for the user. Only the hash is stored; the
// raw key appears in this response and nowhere else.
func (h *UserHandler) GenerateKey(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid user id"})
	}
	if _, err := h.Store.GetUser(c.Context(), userID); err != nil {
		return respondError(c, err)
	}

	realKey, keyHash, err := security.GenerateAPIKey()
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Store.SaveAPIKey(c.Context(), userID, keyHash, security.Prefix()); err != nil {
		return respondError(c, err)
	}

	slog.Info("api key issued", "user_id", userID)
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"api_key": realKey,
			"warning": "save this now, it will not be shown again",
		},
	})
}
