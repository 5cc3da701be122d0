package clinician

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/identity"
)

// Handler exposes clinician registry endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a clinician HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerBody struct {
	IdentityID string `json:"identity_id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Capacity   int    `json:"capacity"`
}

// Register creates a clinician record. Admin only.
func (h *Handler) Register(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)
	var req registerBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	cl, err := h.service.Register(c.UserContext(), actorID, RegisterInput{
		IdentityID: req.IdentityID,
		Name:       req.Name,
		Kind:       Kind(req.Kind),
		Capacity:   req.Capacity,
	})
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "identity not found")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":       cl.ID,
		"name":     cl.Name,
		"kind":     string(cl.Kind),
		"capacity": cl.Capacity,
		"active":   cl.Active,
	})
}
