package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/clinician"
	"github.com/afyalink/afyalink/internal/identity"
	"github.com/afyalink/afyalink/internal/middleware"
)

// RegisterClinicianRoutes wires the admin-only clinician registry.
func RegisterClinicianRoutes(r fiber.Router, h *clinician.Handler) {
	group := r.Group("/clinicians")
	group.Post("", middleware.RequireRole(identity.RoleAdmin), h.Register)
}
