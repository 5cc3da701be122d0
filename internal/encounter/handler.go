package encounter

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/clinician"
)

// Handler exposes encounter lifecycle endpoints.
type Handler struct {
	service    *Service
	clinicians *clinician.Service
}

// NewHandler constructs an encounter HTTP handler.
func NewHandler(service *Service, clinicians *clinician.Service) *Handler {
	return &Handler{service: service, clinicians: clinicians}
}

type requestBody struct {
	Kind   string `json:"kind"`
	Intake string `json:"intake"`
}

type encounterResponse struct {
	ID               string     `json:"id"`
	PatientID        string     `json:"patient_id"`
	ClinicianID      string     `json:"clinician_id,omitempty"`
	Status           string     `json:"status"`
	TimeBoxMinutes   int        `json:"time_box_minutes"`
	ExtensionApplied bool       `json:"extension_applied"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	DurationMinutes  int        `json:"duration_minutes,omitempty"`
	Warning          string     `json:"warning,omitempty"`
}

func toResponse(e Encounter, warning string) encounterResponse {
	resp := encounterResponse{
		ID:               e.ID,
		PatientID:        e.PatientID,
		ClinicianID:      e.ClinicianID,
		Status:           string(e.Status),
		TimeBoxMinutes:   e.TimeBoxMinutes,
		ExtensionApplied: e.ExtensionApplied,
		DurationMinutes:  e.DurationMinutes,
		Warning:          warning,
	}
	if !e.StartedAt.IsZero() {
		t := e.StartedAt
		resp.StartedAt = &t
	}
	if !e.EndedAt.IsZero() {
		t := e.EndedAt
		resp.EndedAt = &t
	}
	return resp
}

// Request creates an encounter for the authenticated patient and assigns a
// clinician.
func (h *Handler) Request(c *fiber.Ctx) error {
	patientID, _ := c.Locals("user_id").(string)
	var req requestBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	kind := clinician.Kind(req.Kind)
	if req.Kind == "" {
		kind = clinician.KindGeneralist
	}

	e, err := h.service.Request(c.UserContext(), patientID, kind, req.Intake)
	if err != nil {
		if errors.Is(err, clinician.ErrNoCapacity) {
			// The encounter stays requested; surface its id for retry.
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
				"error":        "no clinician available, retry shortly",
				"encounter_id": e.ID,
			})
		}
		if errors.Is(err, ErrUnavailable) {
			return fiber.NewError(http.StatusServiceUnavailable, "intake processing failed, retry shortly")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(e, ""))
}

// Start begins the consultation. Only the assigned clinician may call it.
func (h *Handler) Start(c *fiber.Ctx) error {
	cl, err := h.callerClinician(c)
	if err != nil {
		return err
	}
	e, warning, err := h.service.Start(c.UserContext(), c.Params("id"), cl.ID)
	if err != nil {
		return mapLifecycleError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(e, warning))
}

type extendBody struct {
	Reason string `json:"reason"`
}

// Extend adds the one-time time-box increment.
func (h *Handler) Extend(c *fiber.Ctx) error {
	cl, err := h.callerClinician(c)
	if err != nil {
		return err
	}
	var req extendBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	e, err := h.service.Extend(c.UserContext(), c.Params("id"), cl.ID, req.Reason)
	if err != nil {
		return mapLifecycleError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(e, ""))
}

type endBody struct {
	Notes string `json:"notes"`
}

// End completes the consultation.
func (h *Handler) End(c *fiber.Ctx) error {
	cl, err := h.callerClinician(c)
	if err != nil {
		return err
	}
	var req endBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	e, err := h.service.End(c.UserContext(), c.Params("id"), cl.ID, req.Notes)
	if err != nil {
		return mapLifecycleError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(e, ""))
}

// Cancel aborts an encounter that has not yet started.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	actorID, _ := c.Locals("user_id").(string)
	e, err := h.service.Cancel(c.UserContext(), c.Params("id"), actorID)
	if err != nil {
		return mapLifecycleError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(e, ""))
}

func (h *Handler) callerClinician(c *fiber.Ctx) (clinician.Clinician, error) {
	identityID, _ := c.Locals("user_id").(string)
	cl, err := h.clinicians.ByIdentity(c.UserContext(), identityID)
	if err != nil {
		return clinician.Clinician{}, fiber.NewError(http.StatusForbidden, "caller is not a registered clinician")
	}
	return cl, nil
}

func mapLifecycleError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "encounter not found")
	case errors.Is(err, ErrConflict):
		return fiber.NewError(http.StatusConflict, "encounter is not in a state this caller can act on")
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(http.StatusConflict, "transition not permitted")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
