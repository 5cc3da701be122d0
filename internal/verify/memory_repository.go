package verify

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

// NewMemoryRepository builds an in-memory challenge store for testing. The
// store mutex serializes per-phone verification the way the Postgres row lock
// does.
func NewMemoryRepository() Repository {
	return &memoryRepository{challenges: make(map[string]Challenge)}
}

func (r *memoryRepository) Find(_ context.Context, phone string) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.challenges[phone]
	if !ok {
		return Challenge{}, ErrNotFound
	}
	return ch, nil
}

func (r *memoryRepository) Upsert(_ context.Context, ch Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges[ch.Phone] = ch
	return nil
}

func (r *memoryRepository) Consume(_ context.Context, phone, code string, now time.Time) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.challenges[phone]
	if !ok {
		return Challenge{}, ErrNotFound
	}

	outcome, err := applyVerification(&ch, code, now)
	if err != nil {
		return Challenge{}, err
	}
	r.challenges[phone] = ch
	return ch, outcome
}
