package clinician

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/afyalink/internal/audit"
	"github.com/afyalink/afyalink/internal/identity"
)

// Service manages the clinician registry.
type Service struct {
	repo       Repository
	identities identity.Repository
	recorder   audit.Recorder
}

// NewService creates a clinician service.
func NewService(repo Repository, identities identity.Repository, recorder audit.Recorder) *Service {
	return &Service{repo: repo, identities: identities, recorder: recorder}
}

// RegisterInput captures data required to register a clinician.
type RegisterInput struct {
	IdentityID string
	Name       string
	Kind       Kind
	Capacity   int
}

// Register creates a clinician bound to an existing identity and promotes
// that identity to the clinician role.
func (s *Service) Register(ctx context.Context, actorID string, input RegisterInput) (Clinician, error) {
	if !input.Kind.Valid() {
		return Clinician{}, fmt.Errorf("kind must be generalist or specialist")
	}
	if input.Capacity <= 0 {
		return Clinician{}, fmt.Errorf("capacity must be positive")
	}
	if input.Name == "" {
		return Clinician{}, fmt.Errorf("name is required")
	}

	ident, err := s.identities.FindByID(ctx, input.IdentityID)
	if err != nil {
		return Clinician{}, err
	}

	c := Clinician{
		ID:         uuid.NewString(),
		IdentityID: ident.ID,
		Name:       input.Name,
		Kind:       input.Kind,
		Capacity:   input.Capacity,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Clinician{}, err
	}
	if ident.Role != identity.RoleClinician {
		if err := s.identities.UpdateRole(ctx, ident.ID, identity.RoleClinician); err != nil {
			return Clinician{}, err
		}
	}

	_ = s.recorder.Record(ctx, audit.New(actorID, "clinician.registered", "clinician", c.ID, map[string]any{
		"kind":     string(c.Kind),
		"capacity": c.Capacity,
	}))
	return c, nil
}

// ByIdentity resolves the clinician record for an authenticated identity.
func (s *Service) ByIdentity(ctx context.Context, identityID string) (Clinician, error) {
	return s.repo.FindByIdentity(ctx, identityID)
}
