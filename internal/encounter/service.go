package encounter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/afyalink/internal/audit"
	"github.com/afyalink/afyalink/internal/clinician"
	"github.com/afyalink/afyalink/internal/intake"
	"github.com/afyalink/afyalink/internal/notification"
)

// ErrUnavailable indicates a downstream collaborator failed before any state
// change; the caller may retry.
var ErrUnavailable = errors.New("collaborator unavailable")

// Service drives the encounter lifecycle and clinician assignment.
type Service struct {
	repo       Repository
	clinicians clinician.Repository
	summarizer intake.Summarizer
	notifier   notification.Notifier
	recorder   audit.Recorder
}

// NewService constructs an encounter service.
func NewService(repo Repository, clinicians clinician.Repository, summarizer intake.Summarizer, notifier notification.Notifier, recorder audit.Recorder) *Service {
	return &Service{repo: repo, clinicians: clinicians, summarizer: summarizer, notifier: notifier, recorder: recorder}
}

// Request creates an encounter from raw intake and assigns a clinician.
// When no clinician has a free slot the encounter stays requested and
// clinician.ErrNoCapacity is returned alongside it so the caller can retry.
func (s *Service) Request(ctx context.Context, patientID string, kind clinician.Kind, rawIntake string) (Encounter, error) {
	if patientID == "" {
		return Encounter{}, fmt.Errorf("patient id is required")
	}
	if !kind.Valid() {
		return Encounter{}, fmt.Errorf("kind must be generalist or specialist")
	}

	summary, err := s.summarizer.Summarize(ctx, rawIntake)
	if err != nil {
		return Encounter{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := time.Now().UTC()
	e := Encounter{
		ID:             uuid.NewString(),
		PatientID:      patientID,
		Status:         StatusRequested,
		Summary:        summary.Text,
		RedFlags:       summary.RedFlags,
		TimeBoxMinutes: BaseTimeBoxMinutes,
		CreatedAt:      now,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return Encounter{}, err
	}
	_ = s.recorder.Record(ctx, audit.New(patientID, "encounter.requested", "encounter", e.ID, map[string]any{
		"kind": string(kind),
	}))

	chosen, err := s.clinicians.AcquireSlot(ctx, kind)
	if err != nil {
		return e, err
	}

	matched, err := s.repo.MarkMatched(ctx, e.ID, chosen.ID)
	if err != nil {
		_ = s.clinicians.ReleaseSlot(ctx, chosen.ID)
		return e, err
	}
	_ = s.recorder.Record(ctx, audit.New(patientID, "encounter.matched", "encounter", matched.ID, map[string]any{
		"clinician_id": chosen.ID,
	}))
	_ = s.notifier.Notify(ctx, chosen.IdentityID, "New consultation",
		"A patient has been assigned to you.", notification.ChannelInApp)

	return matched, nil
}

// Start transitions the encounter to active and dispatches the video-link
// notification. Notification failure is surfaced as a warning, never a
// rollback.
func (s *Service) Start(ctx context.Context, id, clinicianID string) (Encounter, string, error) {
	e, err := s.repo.MarkActive(ctx, id, clinicianID, time.Now().UTC())
	if err != nil {
		return Encounter{}, "", err
	}
	_ = s.recorder.Record(ctx, audit.New(clinicianID, "encounter.started", "encounter", e.ID, nil))

	var warning string
	if err := s.notifier.Notify(ctx, e.PatientID, "Consultation starting",
		"Your clinician is ready. Follow the video link to join.", notification.ChannelBoth); err != nil {
		warning = "video link notification failed; patient may need to be contacted directly"
	}
	return e, warning, nil
}

// Extend adds the fixed time-box increment once per encounter. A repeat
// request is a no-op success.
func (s *Service) Extend(ctx context.Context, id, clinicianID, reason string) (Encounter, error) {
	e, applied, err := s.repo.ApplyExtension(ctx, id, ExtensionMinutes)
	if err != nil {
		return Encounter{}, err
	}
	if applied {
		_ = s.recorder.Record(ctx, audit.New(clinicianID, "encounter.extended", "encounter", e.ID, map[string]any{
			"reason":  reason,
			"minutes": ExtensionMinutes,
		}))
	}
	return e, nil
}

// End completes the encounter, computes its duration and releases the
// clinician slot. Prescription issuance is a separate operation.
func (s *Service) End(ctx context.Context, id, clinicianID, notes string) (Encounter, error) {
	e, err := s.repo.MarkCompleted(ctx, id, clinicianID, time.Now().UTC(), notes)
	if err != nil {
		return Encounter{}, err
	}
	_ = s.clinicians.ReleaseSlot(ctx, e.ClinicianID)
	_ = s.recorder.Record(ctx, audit.New(clinicianID, "encounter.completed", "encounter", e.ID, map[string]any{
		"duration_minutes": e.DurationMinutes,
	}))
	return e, nil
}

// Cancel aborts an encounter that has not yet started, releasing the slot if
// one was held.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (Encounter, error) {
	e, err := s.repo.MarkCancelled(ctx, id)
	if err != nil {
		return Encounter{}, err
	}
	if e.ClinicianID != "" {
		_ = s.clinicians.ReleaseSlot(ctx, e.ClinicianID)
	}
	_ = s.recorder.Record(ctx, audit.New(actorID, "encounter.cancelled", "encounter", e.ID, nil))
	return e, nil
}

// Get fetches an encounter.
func (s *Service) Get(ctx context.Context, id string) (Encounter, error) {
	return s.repo.Get(ctx, id)
}
