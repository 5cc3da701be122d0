package clinician

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu         sync.Mutex
	clinicians map[string]Clinician
}

// NewMemoryRepository builds an in-memory clinician store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{clinicians: make(map[string]Clinician)}
}

func (r *memoryRepository) Create(_ context.Context, c Clinician) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clinicians[c.ID]; exists {
		return errors.New("clinician exists")
	}
	r.clinicians[c.ID] = c
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Clinician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clinicians[id]
	if !ok {
		return Clinician{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryRepository) FindByIdentity(_ context.Context, identityID string) (Clinician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clinicians {
		if c.IdentityID == identityID {
			return c, nil
		}
	}
	return Clinician{}, ErrNotFound
}

func (r *memoryRepository) AcquireSlot(_ context.Context, kind Kind) (Clinician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	eligible := make([]Clinician, 0, len(r.clinicians))
	for _, c := range r.clinicians {
		if c.Kind == kind && c.Active && c.ActiveLoad < c.Capacity {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return Clinician{}, ErrNoCapacity
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].ActiveLoad != eligible[j].ActiveLoad {
			return eligible[i].ActiveLoad < eligible[j].ActiveLoad
		}
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})

	chosen := eligible[0]
	chosen.ActiveLoad++
	r.clinicians[chosen.ID] = chosen
	return chosen, nil
}

func (r *memoryRepository) ReleaseSlot(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clinicians[id]
	if !ok {
		return ErrNotFound
	}
	if c.ActiveLoad > 0 {
		c.ActiveLoad--
	}
	r.clinicians[id] = c
	return nil
}
