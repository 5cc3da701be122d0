package encounter

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

type memoryRepository struct {
	mu         sync.Mutex
	encounters map[string]Encounter
}

// NewMemoryRepository builds an in-memory encounter store for testing. The
// store mutex gives each transition the same atomicity the Postgres
// conditional updates provide.
func NewMemoryRepository() Repository {
	return &memoryRepository{encounters: make(map[string]Encounter)}
}

func (r *memoryRepository) Create(_ context.Context, e Encounter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.encounters[e.ID]; exists {
		return errors.New("encounter exists")
	}
	r.encounters[e.ID] = e
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.encounters[id]
	if !ok {
		return Encounter{}, ErrNotFound
	}
	return e, nil
}

func (r *memoryRepository) MarkMatched(_ context.Context, id, clinicianID string) (Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.encounters[id]
	if !ok {
		return Encounter{}, ErrNotFound
	}
	if e.Status != StatusRequested {
		return Encounter{}, ErrInvalidTransition
	}
	e.Status = StatusMatched
	e.ClinicianID = clinicianID
	r.encounters[id] = e
	return e, nil
}

func (r *memoryRepository) MarkActive(_ context.Context, id, clinicianID string, at time.Time) (Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.encounters[id]
	if !ok {
		return Encounter{}, ErrNotFound
	}
	if e.Status != StatusMatched || e.ClinicianID != clinicianID {
		return Encounter{}, ErrConflict
	}
	e.Status = StatusActive
	e.StartedAt = at.UTC()
	r.encounters[id] = e
	return e, nil
}

func (r *memoryRepository) ApplyExtension(_ context.Context, id string, minutes int) (Encounter, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.encounters[id]
	if !ok {
		return Encounter{}, false, ErrNotFound
	}
	if e.Status != StatusActive && e.Status != StatusExtended {
		return Encounter{}, false, ErrInvalidTransition
	}
	if e.ExtensionApplied {
		return e, false, nil
	}
	e.Status = StatusExtended
	e.TimeBoxMinutes += minutes
	e.ExtensionApplied = true
	r.encounters[id] = e
	return e, true, nil
}

func (r *memoryRepository) MarkCompleted(_ context.Context, id, clinicianID string, endedAt time.Time, notes string) (Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.encounters[id]
	if !ok {
		return Encounter{}, ErrNotFound
	}
	if (e.Status != StatusActive && e.Status != StatusExtended) || e.ClinicianID != clinicianID {
		return Encounter{}, ErrConflict
	}
	e.Status = StatusCompleted
	e.EndedAt = endedAt.UTC()
	e.Notes = notes
	e.DurationMinutes = int(math.Ceil(endedAt.Sub(e.StartedAt).Minutes()))
	r.encounters[id] = e
	return e, nil
}

func (r *memoryRepository) MarkCancelled(_ context.Context, id string) (Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.encounters[id]
	if !ok {
		return Encounter{}, ErrNotFound
	}
	if e.Status != StatusRequested && e.Status != StatusMatched {
		return Encounter{}, ErrInvalidTransition
	}
	e.Status = StatusCancelled
	r.encounters[id] = e
	return e, nil
}
