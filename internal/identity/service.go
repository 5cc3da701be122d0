package identity

import (
	"context"

	"github.com/afyalink/afyalink/internal/audit"
)

// Service manages identity administration.
type Service struct {
	repo     Repository
	recorder audit.Recorder
}

// NewService creates an identity service.
func NewService(repo Repository, recorder audit.Recorder) *Service {
	return &Service{repo: repo, recorder: recorder}
}

// Invalidate soft-retires an identity. The record stays for audit; the phone
// can no longer complete verification.
func (s *Service) Invalidate(ctx context.Context, actorID, id string) error {
	if err := s.repo.Invalidate(ctx, id); err != nil {
		return err
	}
	_ = s.recorder.Record(ctx, audit.New(actorID, "identity.invalidated", "identity", id, nil))
	return nil
}

// Get fetches an identity by id.
func (s *Service) Get(ctx context.Context, id string) (Identity, error) {
	return s.repo.FindByID(ctx, id)
}
