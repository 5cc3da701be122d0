package encounter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/afyalink/internal/audit"
	"github.com/afyalink/afyalink/internal/clinician"
	"github.com/afyalink/afyalink/internal/intake"
	"github.com/afyalink/afyalink/internal/logging"
	"github.com/afyalink/afyalink/internal/notification"
)

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, string, string, string, notification.Channel) error {
	return errors.New("push gateway down")
}

func newTestService(notifier notification.Notifier) (*Service, Repository, clinician.Repository) {
	repo := NewMemoryRepository()
	clinicians := clinician.NewMemoryRepository()
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(logging.Discard())
	}
	svc := NewService(repo, clinicians, intake.NewPassthroughSummarizer(logging.Discard()), notifier, audit.NewMemoryRecorder())
	return svc, repo, clinicians
}

func seedClinician(t *testing.T, repo clinician.Repository, kind clinician.Kind, capacity, load int, createdAt time.Time) clinician.Clinician {
	t.Helper()
	c := clinician.Clinician{
		ID:         uuid.NewString(),
		IdentityID: uuid.NewString(),
		Name:       "Dr. Test",
		Kind:       kind,
		Capacity:   capacity,
		ActiveLoad: load,
		Active:     true,
		CreatedAt:  createdAt,
	}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("seed clinician: %v", err)
	}
	return c
}

func TestRequestAssignsLeastLoadedClinician(t *testing.T) {
	svc, _, clinicians := newTestService(nil)
	ctx := context.Background()
	now := time.Now().UTC()

	busy := seedClinician(t, clinicians, clinician.KindGeneralist, 2, 1, now.Add(-2*time.Hour))
	idle := seedClinician(t, clinicians, clinician.KindGeneralist, 2, 0, now.Add(-time.Hour))

	e, err := svc.Request(ctx, uuid.NewString(), clinician.KindGeneralist, "fever and cough for three days")
	if err != nil {
		t.Fatalf("request encounter: %v", err)
	}
	if e.Status != StatusMatched {
		t.Fatalf("expected status matched, got %s", e.Status)
	}
	if e.ClinicianID != idle.ID {
		t.Fatalf("expected least-loaded clinician %s, got %s", idle.ID, e.ClinicianID)
	}
	if e.TimeBoxMinutes != BaseTimeBoxMinutes {
		t.Fatalf("expected time box %d, got %d", BaseTimeBoxMinutes, e.TimeBoxMinutes)
	}

	assigned, err := clinicians.Get(ctx, idle.ID)
	if err != nil {
		t.Fatalf("get clinician: %v", err)
	}
	if assigned.ActiveLoad != 1 {
		t.Fatalf("expected load 1 after assignment, got %d", assigned.ActiveLoad)
	}
	untouched, _ := clinicians.Get(ctx, busy.ID)
	if untouched.ActiveLoad != 1 {
		t.Fatalf("expected busy clinician untouched at load 1, got %d", untouched.ActiveLoad)
	}
}

func TestRequestTieBreaksByArrival(t *testing.T) {
	svc, _, clinicians := newTestService(nil)
	ctx := context.Background()
	now := time.Now().UTC()

	older := seedClinician(t, clinicians, clinician.KindSpecialist, 3, 1, now.Add(-3*time.Hour))
	seedClinician(t, clinicians, clinician.KindSpecialist, 3, 1, now.Add(-time.Hour))

	e, err := svc.Request(ctx, uuid.NewString(), clinician.KindSpecialist, "persistent migraines")
	if err != nil {
		t.Fatalf("request encounter: %v", err)
	}
	if e.ClinicianID != older.ID {
		t.Fatalf("expected earliest-registered clinician %s, got %s", older.ID, e.ClinicianID)
	}
}

func TestRequestNoCapacityLeavesEncounterRequested(t *testing.T) {
	svc, repo, clinicians := newTestService(nil)
	ctx := context.Background()

	seedClinician(t, clinicians, clinician.KindGeneralist, 1, 1, time.Now().UTC())

	e, err := svc.Request(ctx, uuid.NewString(), clinician.KindGeneralist, "sore throat")
	if !errors.Is(err, clinician.ErrNoCapacity) {
		t.Fatalf("expected ErrNoCapacity, got %v", err)
	}
	if e.ID == "" {
		t.Fatal("expected the encounter to be returned alongside the error")
	}

	stored, getErr := repo.Get(ctx, e.ID)
	if getErr != nil {
		t.Fatalf("get encounter: %v", getErr)
	}
	if stored.Status != StatusRequested {
		t.Fatalf("expected encounter to stay requested, got %s", stored.Status)
	}
}

func TestLifecycleStartExtendEnd(t *testing.T) {
	svc, _, clinicians := newTestService(nil)
	ctx := context.Background()

	c := seedClinician(t, clinicians, clinician.KindGeneralist, 2, 0, time.Now().UTC())
	e, err := svc.Request(ctx, uuid.NewString(), clinician.KindGeneralist, "abdominal pain")
	if err != nil {
		t.Fatalf("request encounter: %v", err)
	}

	started, warning, err := svc.Start(ctx, e.ID, c.ID)
	if err != nil {
		t.Fatalf("start encounter: %v", err)
	}
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if started.Status != StatusActive {
		t.Fatalf("expected status active, got %s", started.Status)
	}
	if started.StartedAt.IsZero() {
		t.Fatal("expected started_at to be set")
	}

	extended, err := svc.Extend(ctx, e.ID, c.ID, "needs more history")
	if err != nil {
		t.Fatalf("extend encounter: %v", err)
	}
	if extended.Status != StatusExtended {
		t.Fatalf("expected status extended, got %s", extended.Status)
	}
	if extended.TimeBoxMinutes != BaseTimeBoxMinutes+ExtensionMinutes {
		t.Fatalf("expected time box %d, got %d", BaseTimeBoxMinutes+ExtensionMinutes, extended.TimeBoxMinutes)
	}

	// A second extension is a no-op success, not a further increment.
	again, err := svc.Extend(ctx, e.ID, c.ID, "still going")
	if err != nil {
		t.Fatalf("repeat extend: %v", err)
	}
	if again.TimeBoxMinutes != extended.TimeBoxMinutes {
		t.Fatalf("expected time box unchanged at %d, got %d", extended.TimeBoxMinutes, again.TimeBoxMinutes)
	}

	done, err := svc.End(ctx, e.ID, c.ID, "prescribed rest and fluids")
	if err != nil {
		t.Fatalf("end encounter: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("expected status completed, got %s", done.Status)
	}
	if done.DurationMinutes < 0 {
		t.Fatalf("expected non-negative duration, got %d", done.DurationMinutes)
	}
	if done.Notes != "prescribed rest and fluids" {
		t.Fatalf("expected notes persisted, got %q", done.Notes)
	}

	freed, _ := clinicians.Get(ctx, c.ID)
	if freed.ActiveLoad != 0 {
		t.Fatalf("expected slot released after completion, got load %d", freed.ActiveLoad)
	}
}

func TestStartByWrongClinician(t *testing.T) {
	svc, _, clinicians := newTestService(nil)
	ctx := context.Background()

	seedClinician(t, clinicians, clinician.KindGeneralist, 2, 0, time.Now().UTC())
	e, err := svc.Request(ctx, uuid.NewString(), clinician.KindGeneralist, "rash")
	if err != nil {
		t.Fatalf("request encounter: %v", err)
	}

	if _, _, err := svc.Start(ctx, e.ID, uuid.NewString()); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for foreign clinician, got %v", err)
	}
}

func TestStartWarnsWhenNotificationFails(t *testing.T) {
	svc, _, clinicians := newTestService(failingNotifier{})
	ctx := context.Background()

	c := seedClinician(t, clinicians, clinician.KindGeneralist, 2, 0, time.Now().UTC())
	e, err := svc.Request(ctx, uuid.NewString(), clinician.KindGeneralist, "headache")
	if err != nil {
		t.Fatalf("request encounter: %v", err)
	}

	started, warning, err := svc.Start(ctx, e.ID, c.ID)
	if err != nil {
		t.Fatalf("start encounter: %v", err)
	}
	if started.Status != StatusActive {
		t.Fatalf("expected the encounter to start despite notifier failure, got %s", started.Status)
	}
	if warning == "" {
		t.Fatal("expected a warning when the video link notification fails")
	}
}

func TestCancelBeforeAndAfterStart(t *testing.T) {
	svc, _, clinicians := newTestService(nil)
	ctx := context.Background()

	c := seedClinician(t, clinicians, clinician.KindGeneralist, 2, 0, time.Now().UTC())
	patientID := uuid.NewString()

	e, err := svc.Request(ctx, patientID, clinician.KindGeneralist, "follow-up question")
	if err != nil {
		t.Fatalf("request encounter: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, e.ID, patientID)
	if err != nil {
		t.Fatalf("cancel matched encounter: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected status cancelled, got %s", cancelled.Status)
	}
	freed, _ := clinicians.Get(ctx, c.ID)
	if freed.ActiveLoad != 0 {
		t.Fatalf("expected slot released on cancel, got load %d", freed.ActiveLoad)
	}

	e2, err := svc.Request(ctx, patientID, clinician.KindGeneralist, "second visit")
	if err != nil {
		t.Fatalf("request second encounter: %v", err)
	}
	if _, _, err := svc.Start(ctx, e2.ID, c.ID); err != nil {
		t.Fatalf("start second encounter: %v", err)
	}
	if _, err := svc.Cancel(ctx, e2.ID, patientID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition cancelling an active encounter, got %v", err)
	}
}
