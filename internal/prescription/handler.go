package prescription

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/clinician"
)

// Handler exposes prescription endpoints.
type Handler struct {
	service    *Service
	clinicians *clinician.Service
}

// NewHandler constructs a prescription HTTP handler.
func NewHandler(service *Service, clinicians *clinician.Service) *Handler {
	return &Handler{service: service, clinicians: clinicians}
}

type itemBody struct {
	Drug                string `json:"drug"`
	Strength            string `json:"strength"`
	Form                string `json:"form"`
	Quantity            int    `json:"quantity"`
	Instructions        string `json:"instructions"`
	SubstitutionAllowed bool   `json:"substitution_allowed"`
}

func toItems(bodies []itemBody) []Item {
	items := make([]Item, 0, len(bodies))
	for _, b := range bodies {
		items = append(items, Item{
			Drug:                b.Drug,
			Strength:            b.Strength,
			Form:                b.Form,
			Quantity:            b.Quantity,
			Instructions:        b.Instructions,
			SubstitutionAllowed: b.SubstitutionAllowed,
		})
	}
	return items
}

type issueBody struct {
	EncounterID string     `json:"encounter_id"`
	Items       []itemBody `json:"items"`
}

// Issue creates a prescription for a completed or in-progress encounter.
func (h *Handler) Issue(c *fiber.Ctx) error {
	identityID, _ := c.Locals("user_id").(string)
	cl, err := h.clinicians.ByIdentity(c.UserContext(), identityID)
	if err != nil {
		return fiber.NewError(http.StatusForbidden, "caller is not a registered clinician")
	}

	var req issueBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	p, err := h.service.Issue(c.UserContext(), req.EncounterID, cl.ID, toItems(req.Items))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "encounter not found or not prescribable")
		case errors.Is(err, ErrForbidden):
			return fiber.NewError(http.StatusForbidden, "only the assigned clinician may prescribe")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":         p.ID,
		"token":      p.Token,
		"expires_at": p.ExpiresAt.Format(time.RFC3339),
		"status":     string(p.Status),
	})
}

type redeemBody struct {
	Token string `json:"token"`
}

// Redeem opens a claim for the pharmacy and returns the masked view.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	pharmacyID, _ := c.Locals("user_id").(string)
	var req redeemBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	view, err := h.service.Redeem(c.UserContext(), req.Token, pharmacyID)
	if err != nil {
		reason := redeemReason(err)
		if reason == "" {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": reason})
	}

	items := make([]itemBody, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, itemBody{
			Drug:                item.Drug,
			Strength:            item.Strength,
			Form:                item.Form,
			Quantity:            item.Quantity,
			Instructions:        item.Instructions,
			SubstitutionAllowed: item.SubstitutionAllowed,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"prescription_id": view.PrescriptionID,
		"items":           items,
		"clinician_ref":   view.ClinicianRef,
		"expires_at":      view.ExpiresAt.Format(time.RFC3339),
	})
}

func redeemReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrDisabled):
		return "disabled"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	default:
		return ""
	}
}

type fulfillBody struct {
	Items []itemBody `json:"items"`
}

// Fulfill dispenses the open claim. Exactly one call per prescription ever
// succeeds.
func (h *Handler) Fulfill(c *fiber.Ctx) error {
	pharmacyID, _ := c.Locals("user_id").(string)
	var req fulfillBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	claim, err := h.service.Fulfill(c.UserContext(), c.Params("id"), pharmacyID, toItems(req.Items))
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyUsed):
			return fiber.NewError(http.StatusConflict, "already_used")
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "no open claim for this prescription")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"claim_id": claim.ID,
		"status":   string(claim.Status),
	})
}

// Download produces the durable document and permanently closes the token
// redemption path.
func (h *Handler) Download(c *fiber.Ctx) error {
	patientID, _ := c.Locals("user_id").(string)
	doc, err := h.service.Download(c.UserContext(), c.Params("id"), patientID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "prescription not found")
		case errors.Is(err, ErrForbidden):
			return fiber.NewError(http.StatusForbidden, "not your prescription")
		case errors.Is(err, ErrUnavailable):
			return fiber.NewError(http.StatusServiceUnavailable, "document rendering failed, retry shortly")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"url": doc.URL})
}
