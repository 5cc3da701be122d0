package verify

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/session"
)

// Handler exposes challenge request/confirm endpoints.
type Handler struct {
	service  *Service
	sessions *session.Service
}

// NewHandler constructs a verification HTTP handler.
func NewHandler(service *Service, sessions *session.Service) *Handler {
	return &Handler{service: service, sessions: sessions}
}

type requestBody struct {
	Phone string `json:"phone"`
}

type confirmBody struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type confirmResponse struct {
	IdentityID  string `json:"identity_id"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
	AccessToken string `json:"access_token"`
	SessionID   string `json:"session_id"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Request issues a one-time code for the phone number.
func (h *Handler) Request(c *fiber.Ctx) error {
	var req requestBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Request(c.UserContext(), req.Phone); err != nil {
		switch {
		case errors.Is(err, ErrTooManyAttempts):
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, wait for the current code to expire")
		case errors.Is(err, ErrUnavailable):
			return fiber.NewError(http.StatusServiceUnavailable, "code delivery failed, retry shortly")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"status": "sent"})
}

// Confirm verifies a submitted code and issues a session credential.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	var req confirmBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ident, err := h.service.Verify(c.UserContext(), req.Phone, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "no pending challenge for this phone")
		case errors.Is(err, ErrExpired):
			return fiber.NewError(http.StatusUnauthorized, "code expired, request a new one")
		case errors.Is(err, ErrInvalidCode):
			return fiber.NewError(http.StatusUnauthorized, "invalid code")
		case errors.Is(err, ErrTooManyAttempts):
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts")
		case errors.Is(err, ErrInvalidated):
			return fiber.NewError(http.StatusForbidden, "account disabled")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	cred, err := h.sessions.Issue(c.UserContext(), ident)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(confirmResponse{
		IdentityID:  ident.ID,
		Phone:       ident.Phone,
		Role:        string(ident.Role),
		AccessToken: cred.Token,
		SessionID:   cred.SessionID,
		ExpiresIn:   cred.ExpiresIn,
	})
}
