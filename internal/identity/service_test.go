package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/afyalink/internal/audit"
)

func TestInvalidateRetiresIdentity(t *testing.T) {
	repo := NewMemoryRepository()
	recorder := audit.NewMemoryRecorder()
	svc := NewService(repo, recorder)
	ctx := context.Background()

	ident := Identity{
		ID:         uuid.NewString(),
		Phone:      "+254700000001",
		Role:       RolePatient,
		VerifiedAt: time.Now().UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.Create(ctx, ident); err != nil {
		t.Fatalf("seed identity: %v", err)
	}

	if err := svc.Invalidate(ctx, "admin-1", ident.ID); err != nil {
		t.Fatalf("invalidate identity: %v", err)
	}

	retired, err := svc.Get(ctx, ident.ID)
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if !retired.Invalidated {
		t.Fatal("expected identity marked invalidated")
	}
	if retired.Phone != ident.Phone {
		t.Fatalf("expected the record retained, got %+v", retired)
	}

	records := recorder.Records()
	if len(records) != 1 || records[0].Event != "identity.invalidated" {
		t.Fatalf("expected one identity.invalidated audit record, got %+v", records)
	}
}

func TestInvalidateUnknownIdentity(t *testing.T) {
	svc := NewService(NewMemoryRepository(), audit.NewMemoryRecorder())
	if err := svc.Invalidate(context.Background(), "admin-1", uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
