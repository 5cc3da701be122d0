package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/afyalink/internal/audit"
	"github.com/afyalink/afyalink/internal/identity"
	"github.com/afyalink/afyalink/internal/messaging"
)

var (
	// ErrUnavailable indicates the messaging collaborator failed; the caller
	// may retry the whole request.
	ErrUnavailable = errors.New("challenge delivery unavailable")
	// ErrInvalidated indicates the phone's identity has been retired and can
	// no longer verify.
	ErrInvalidated = errors.New("identity invalidated")
)

// Service issues and verifies one-time challenges bound to phone identities.
type Service struct {
	repo       Repository
	identities identity.Repository
	dispatcher messaging.Dispatcher
	recorder   audit.Recorder
}

// NewService creates a verification service.
func NewService(repo Repository, identities identity.Repository, dispatcher messaging.Dispatcher, recorder audit.Recorder) *Service {
	return &Service{repo: repo, identities: identities, dispatcher: dispatcher, recorder: recorder}
}

// Request generates a fresh challenge for the phone number and dispatches the
// code. A new request supersedes any prior pending challenge; it is rejected
// only while an unexpired challenge sits at the attempt cap.
func (s *Service) Request(ctx context.Context, phone string) error {
	if phone == "" {
		return fmt.Errorf("phone is required")
	}

	now := time.Now().UTC()
	existing, err := s.repo.Find(ctx, phone)
	if err == nil && !existing.Expired(now) && existing.Attempts >= MaxAttempts &&
		(existing.Status == StatusPending || existing.Status == StatusLocked) {
		return ErrTooManyAttempts
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	code, err := GenerateCode()
	if err != nil {
		return err
	}
	hash, err := HashCode(code)
	if err != nil {
		return err
	}

	ch := Challenge{
		Phone:     phone,
		CodeHash:  hash,
		ExpiresAt: now.Add(TTL),
		Status:    StatusPending,
		CreatedAt: now,
	}
	if err := s.repo.Upsert(ctx, ch); err != nil {
		return err
	}

	if _, err := s.dispatcher.SendChallenge(ctx, phone, code); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	_ = s.recorder.Record(ctx, audit.New("", "challenge.requested", "challenge", phone, map[string]any{
		"expires_at": ch.ExpiresAt,
	}))
	return nil
}

// Verify checks the submitted code and returns the identity bound to the
// phone, creating one with role patient on first verification. Attempt
// increments and lazy expiry are recorded even on failure.
func (s *Service) Verify(ctx context.Context, phone, code string) (identity.Identity, error) {
	if phone == "" || code == "" {
		return identity.Identity{}, fmt.Errorf("phone and code are required")
	}

	now := time.Now().UTC()
	ch, err := s.repo.Consume(ctx, phone, code, now)
	if err != nil {
		return identity.Identity{}, err
	}

	ident, err := s.identities.FindByPhone(ctx, phone)
	if errors.Is(err, identity.ErrNotFound) {
		ident = identity.Identity{
			ID:         uuid.NewString(),
			Phone:      phone,
			Role:       identity.RolePatient,
			VerifiedAt: now,
			CreatedAt:  now,
		}
		if createErr := s.identities.Create(ctx, ident); createErr != nil {
			return identity.Identity{}, createErr
		}
	} else if err != nil {
		return identity.Identity{}, err
	}
	if ident.Invalidated {
		return identity.Identity{}, ErrInvalidated
	}

	_ = s.recorder.Record(ctx, audit.New(ident.ID, "challenge.verified", "challenge", phone, map[string]any{
		"attempts": ch.Attempts,
	}))
	return ident, nil
}
