package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/identity"
	"github.com/afyalink/afyalink/internal/middleware"
	"github.com/afyalink/afyalink/internal/prescription"
)

// RegisterPrescriptionRoutes wires issuance, redemption and fulfillment.
func RegisterPrescriptionRoutes(r fiber.Router, h *prescription.Handler) {
	group := r.Group("/prescriptions")
	group.Post("", middleware.RequireRole(identity.RoleClinician), h.Issue)
	group.Post("/redeem", middleware.RequireRole(identity.RolePharmacy), h.Redeem)
	group.Post("/:id/fulfill", middleware.RequireRole(identity.RolePharmacy), h.Fulfill)
	group.Post("/:id/download", middleware.RequireRole(identity.RolePatient), h.Download)
}
