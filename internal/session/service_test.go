package session

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/afyalink/afyalink/internal/audit"
	"github.com/afyalink/afyalink/internal/identity"
)

const testSecret = "test-secret-key"

func testIdentity() identity.Identity {
	return identity.Identity{ID: "ident-1", Phone: "+254700000001", Role: identity.RolePatient}
}

func TestIssueAndValidate(t *testing.T) {
	svc := NewService(testSecret, time.Hour, nil, audit.NewMemoryRecorder())
	ctx := context.Background()

	cred, err := svc.Issue(ctx, testIdentity())
	if err != nil {
		t.Fatalf("issue credential: %v", err)
	}
	if cred.Token == "" || cred.SessionID == "" {
		t.Fatalf("expected token and session id, got %+v", cred)
	}
	if cred.ExpiresIn != int64(time.Hour.Seconds()) {
		t.Fatalf("expected expires_in 3600, got %d", cred.ExpiresIn)
	}

	claims, err := svc.Validate(ctx, cred.Token)
	if err != nil {
		t.Fatalf("validate credential: %v", err)
	}
	if claims.Subject != "ident-1" {
		t.Fatalf("expected subject ident-1, got %s", claims.Subject)
	}
	if claims.Role != string(identity.RolePatient) {
		t.Fatalf("expected role patient, got %s", claims.Role)
	}
	if claims.SessionID != cred.SessionID {
		t.Fatalf("expected session id %s, got %s", cred.SessionID, claims.SessionID)
	}
}

func TestRefreshRotatesSessionID(t *testing.T) {
	svc := NewService(testSecret, time.Hour, nil, audit.NewMemoryRecorder())
	ctx := context.Background()

	cred, err := svc.Issue(ctx, testIdentity())
	if err != nil {
		t.Fatalf("issue credential: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, cred.Token)
	if err != nil {
		t.Fatalf("refresh credential: %v", err)
	}
	if refreshed.SessionID == cred.SessionID {
		t.Fatalf("expected a fresh session id, got the old one: %s", cred.SessionID)
	}

	claims, err := svc.Validate(ctx, refreshed.Token)
	if err != nil {
		t.Fatalf("validate refreshed credential: %v", err)
	}
	if claims.Subject != "ident-1" || claims.Role != string(identity.RolePatient) {
		t.Fatalf("refresh changed identity or role: %+v", claims)
	}
}

func TestValidateRejectsGarbageAndWrongKey(t *testing.T) {
	svc := NewService(testSecret, time.Hour, nil, audit.NewMemoryRecorder())
	other := NewService("another-secret", time.Hour, nil, audit.NewMemoryRecorder())
	ctx := context.Background()

	if _, err := svc.Validate(ctx, "not-a-token"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for garbage, got %v", err)
	}

	cred, err := other.Issue(ctx, testIdentity())
	if err != nil {
		t.Fatalf("issue foreign credential: %v", err)
	}
	if _, err := svc.Validate(ctx, cred.Token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for foreign signature, got %v", err)
	}
}

func TestRevokeBlocksOnlyThatSession(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	svc := NewService(testSecret, time.Hour, cache, audit.NewMemoryRecorder())
	ctx := context.Background()

	first, err := svc.Issue(ctx, testIdentity())
	if err != nil {
		t.Fatalf("issue first credential: %v", err)
	}
	second, err := svc.Issue(ctx, testIdentity())
	if err != nil {
		t.Fatalf("issue second credential: %v", err)
	}

	if err := svc.Revoke(ctx, first.Token); err != nil {
		t.Fatalf("revoke first credential: %v", err)
	}

	if _, err := svc.Validate(ctx, first.Token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected revoked credential to be rejected, got %v", err)
	}
	if _, err := svc.Validate(ctx, second.Token); err != nil {
		t.Fatalf("expected second session to survive, got %v", err)
	}

	// A revoked credential cannot be traded in for a fresh one either.
	if _, err := svc.Refresh(ctx, first.Token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected refresh of revoked credential to fail, got %v", err)
	}
	if _, err := svc.Refresh(ctx, second.Token); err != nil {
		t.Fatalf("expected refresh of live credential to succeed, got %v", err)
	}
}

func TestValidateFailsOpenOnCacheOutage(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	svc := NewService(testSecret, time.Hour, cache, audit.NewMemoryRecorder())
	ctx := context.Background()

	cred, err := svc.Issue(ctx, testIdentity())
	if err != nil {
		t.Fatalf("issue credential: %v", err)
	}

	mr.Close()

	if _, err := svc.Validate(ctx, cred.Token); err != nil {
		t.Fatalf("expected validation to fail open with cache down, got %v", err)
	}
}
