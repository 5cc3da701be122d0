package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/encounter"
	"github.com/afyalink/afyalink/internal/identity"
	"github.com/afyalink/afyalink/internal/middleware"
)

// RegisterEncounterRoutes wires the encounter lifecycle endpoints.
func RegisterEncounterRoutes(r fiber.Router, h *encounter.Handler) {
	group := r.Group("/encounters")
	group.Post("", middleware.RequireRole(identity.RolePatient), h.Request)
	group.Post("/:id/start", middleware.RequireRole(identity.RoleClinician), h.Start)
	group.Post("/:id/extend", middleware.RequireRole(identity.RoleClinician), h.Extend)
	group.Post("/:id/end", middleware.RequireRole(identity.RoleClinician), h.End)
	group.Post("/:id/cancel", middleware.RequireRole(identity.RolePatient, identity.RoleClinician, identity.RoleAdmin), h.Cancel)
}
