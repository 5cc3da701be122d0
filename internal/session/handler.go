package session

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes refresh/logout endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a session HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type refreshRequest struct {
	AccessToken string `json:"access_token"`
}

// Refresh verifies the presented credential and returns a replacement with a
// fresh session id.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	cred, err := h.service.Refresh(c.UserContext(), req.AccessToken)
	if err != nil {
		if errors.Is(err, ErrInvalid) {
			return fiber.NewError(http.StatusUnauthorized, "invalid credential")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"access_token": cred.Token,
		"session_id":   cred.SessionID,
		"expires_in":   cred.ExpiresIn,
	})
}

// Logout revokes the caller's current session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals("session_token").(string)
	if token == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	if err := h.service.Revoke(c.UserContext(), token); err != nil {
		if errors.Is(err, ErrInvalid) {
			return fiber.NewError(http.StatusUnauthorized, "invalid credential")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
