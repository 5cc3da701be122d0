package prescription

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu            sync.Mutex
	prescriptions map[string]Prescription
	byToken       map[string]string
	claims        map[string]Claim
}

// NewMemoryRepository builds an in-memory prescription store for testing.
// The store mutex makes each claim/fulfill decision atomic, mirroring the
// Postgres transactions.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		prescriptions: make(map[string]Prescription),
		byToken:       make(map[string]string),
		claims:        make(map[string]Claim),
	}
}

func (r *memoryRepository) Create(_ context.Context, p Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.prescriptions[p.ID]; exists {
		return errors.New("prescription exists")
	}
	r.prescriptions[p.ID] = p
	r.byToken[p.Token] = p.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prescriptions[id]
	if !ok {
		return Prescription{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepository) FindByToken(_ context.Context, token string) (Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byToken[token]
	if !ok {
		return Prescription{}, ErrNotFound
	}
	return r.prescriptions[id], nil
}

func (r *memoryRepository) MarkExpired(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prescriptions[id]
	if !ok {
		return ErrNotFound
	}
	if p.Status == StatusActive || p.Status == StatusClaimed {
		p.Status = StatusExpired
		r.prescriptions[id] = p
	}
	return nil
}

func (r *memoryRepository) CreateClaim(_ context.Context, c Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prescriptions[c.PrescriptionID]
	if !ok {
		return ErrNotFound
	}
	if p.Status != StatusActive {
		return ErrAlreadyUsed
	}
	p.Status = StatusClaimed
	r.prescriptions[p.ID] = p
	r.claims[c.ID] = c
	return nil
}

func (r *memoryRepository) Fulfill(_ context.Context, prescriptionID, pharmacyID string, items []Item) (Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.prescriptions[prescriptionID]
	if !ok {
		return Claim{}, ErrNotFound
	}
	switch p.Status {
	case StatusFulfilled:
		return Claim{}, ErrAlreadyUsed
	case StatusClaimed:
	default:
		return Claim{}, ErrNotFound
	}

	for id, c := range r.claims {
		if c.PrescriptionID == prescriptionID && c.PharmacyID == pharmacyID && c.Status == ClaimReady {
			c.Status = ClaimDispensed
			c.DispensedItems = items
			r.claims[id] = c
			p.Status = StatusFulfilled
			p.RedeemEnabled = false
			r.prescriptions[prescriptionID] = p
			return c, nil
		}
	}
	return Claim{}, ErrNotFound
}

func (r *memoryRepository) DisableRedemption(_ context.Context, id string) (Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prescriptions[id]
	if !ok {
		return Prescription{}, ErrNotFound
	}
	p.RedeemEnabled = false
	r.prescriptions[id] = p
	return p, nil
}
