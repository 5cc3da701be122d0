package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/identity"
	"github.com/afyalink/afyalink/internal/middleware"
)

// RegisterIdentityRoutes wires admin-only identity administration.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	group := r.Group("/identities")
	group.Post("/:id/invalidate", middleware.RequireRole(identity.RoleAdmin), h.Invalidate)
}
