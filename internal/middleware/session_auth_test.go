package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/afyalink/afyalink/internal/audit"
	"github.com/afyalink/afyalink/internal/identity"
	"github.com/afyalink/afyalink/internal/session"
)

func setupAuthApp(t *testing.T) (*fiber.App, *session.Service) {
	t.Helper()
	sessions := session.NewService("test-secret", time.Hour, nil, audit.NewMemoryRecorder())

	app := fiber.New()
	app.Use(SessionAuth(sessions))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id": c.Locals("user_id"),
			"role":    c.Locals("role"),
		})
	})
	app.Get("/admin", RequireRole(identity.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, sessions
}

func TestSessionAuthRejectsMissingBearer(t *testing.T) {
	app, _ := setupAuthApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/me", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected %d got %d", fiber.StatusUnauthorized, resp.StatusCode)
	}
}

func TestSessionAuthAcceptsIssuedCredential(t *testing.T) {
	app, sessions := setupAuthApp(t)

	cred, err := sessions.Issue(context.Background(), identity.Identity{ID: "ident-1", Role: identity.RolePatient})
	if err != nil {
		t.Fatalf("issue credential: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+cred.Token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}
}

func TestRequireRoleBlocksWrongRole(t *testing.T) {
	app, sessions := setupAuthApp(t)

	patient, err := sessions.Issue(context.Background(), identity.Identity{ID: "ident-1", Role: identity.RolePatient})
	if err != nil {
		t.Fatalf("issue patient credential: %v", err)
	}
	admin, err := sessions.Issue(context.Background(), identity.Identity{ID: "ident-2", Role: identity.RoleAdmin})
	if err != nil {
		t.Fatalf("issue admin credential: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+patient.Token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected %d got %d", fiber.StatusForbidden, resp.StatusCode)
	}

	req2 := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
	req2.Header.Set(fiber.HeaderAuthorization, "Bearer "+admin.Token)
	resp2, err := app.Test(req2)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp2.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected %d got %d", fiber.StatusNoContent, resp2.StatusCode)
	}
}
