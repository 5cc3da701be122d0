package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/verify"
)

// RegisterVerifyRoutes wires the challenge request/confirm endpoints.
func RegisterVerifyRoutes(r fiber.Router, h *verify.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/verify")
	if rateLimiter != nil {
		group.Post("/request", rateLimiter, h.Request)
	} else {
		group.Post("/request", h.Request)
	}
	group.Post("/confirm", h.Confirm)
}
