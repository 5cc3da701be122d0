package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/session"
)

// RegisterAuthRoutes wires session refresh and logout endpoints. Refresh is
// public (the credential itself is the proof); logout requires a live
// session.
func RegisterAuthRoutes(r fiber.Router, h *session.Handler, authmw fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", authmw, h.Logout)
}
