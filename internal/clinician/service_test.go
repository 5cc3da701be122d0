package clinician

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/afyalink/internal/audit"
	"github.com/afyalink/afyalink/internal/identity"
)

func seedIdentity(t *testing.T, idents identity.Repository, role identity.Role) identity.Identity {
	t.Helper()
	ident := identity.Identity{
		ID:         uuid.NewString(),
		Phone:      "+2547" + uuid.NewString()[:8],
		Role:       role,
		VerifiedAt: time.Now().UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := idents.Create(context.Background(), ident); err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	return ident
}

func TestRegisterPromotesIdentity(t *testing.T) {
	repo := NewMemoryRepository()
	idents := identity.NewMemoryRepository()
	svc := NewService(repo, idents, audit.NewMemoryRecorder())
	ctx := context.Background()

	ident := seedIdentity(t, idents, identity.RolePatient)

	c, err := svc.Register(ctx, "admin-1", RegisterInput{
		IdentityID: ident.ID,
		Name:       "Dr. Achieng",
		Kind:       KindGeneralist,
		Capacity:   3,
	})
	if err != nil {
		t.Fatalf("register clinician: %v", err)
	}
	if c.ActiveLoad != 0 || !c.Active {
		t.Fatalf("expected fresh active clinician with zero load, got %+v", c)
	}

	promoted, err := idents.FindByID(ctx, ident.ID)
	if err != nil {
		t.Fatalf("find identity: %v", err)
	}
	if promoted.Role != identity.RoleClinician {
		t.Fatalf("expected role promoted to clinician, got %s", promoted.Role)
	}

	resolved, err := svc.ByIdentity(ctx, ident.ID)
	if err != nil {
		t.Fatalf("resolve by identity: %v", err)
	}
	if resolved.ID != c.ID {
		t.Fatalf("expected clinician %s, got %s", c.ID, resolved.ID)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	repo := NewMemoryRepository()
	idents := identity.NewMemoryRepository()
	svc := NewService(repo, idents, audit.NewMemoryRecorder())
	ctx := context.Background()
	ident := seedIdentity(t, idents, identity.RolePatient)

	cases := []RegisterInput{
		{IdentityID: ident.ID, Name: "Dr. X", Kind: "surgeon", Capacity: 1},
		{IdentityID: ident.ID, Name: "Dr. X", Kind: KindGeneralist, Capacity: 0},
		{IdentityID: ident.ID, Name: "", Kind: KindGeneralist, Capacity: 1},
	}
	for i, input := range cases {
		if _, err := svc.Register(ctx, "admin-1", input); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}

	if _, err := svc.Register(ctx, "admin-1", RegisterInput{
		IdentityID: uuid.NewString(),
		Name:       "Dr. Ghost",
		Kind:       KindGeneralist,
		Capacity:   1,
	}); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown identity, got %v", err)
	}
}

func TestAcquireSlotNeverExceedsCapacity(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	total := 0
	for i := 0; i < 2; i++ {
		if err := repo.Create(ctx, Clinician{
			ID:         uuid.NewString(),
			IdentityID: uuid.NewString(),
			Name:       "Dr. Slot",
			Kind:       KindGeneralist,
			Capacity:   2,
			Active:     true,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			t.Fatalf("seed clinician: %v", err)
		}
		total += 2
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AcquireSlot(ctx, KindGeneralist)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var acquired, exhausted int
	for err := range results {
		switch {
		case err == nil:
			acquired++
		case errors.Is(err, ErrNoCapacity):
			exhausted++
		default:
			t.Fatalf("unexpected acquire error: %v", err)
		}
	}
	if acquired != total {
		t.Fatalf("expected exactly %d slots granted, got %d", total, acquired)
	}
	if exhausted != callers-total {
		t.Fatalf("expected %d rejections, got %d", callers-total, exhausted)
	}
}
