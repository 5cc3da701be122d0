package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func setupRateLimitApp(t *testing.T, maxPerMin int) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	app := fiber.New()
	app.Post("/verify/request", ChallengeRateLimit(cache, maxPerMin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, cleanup
}

func requestCode(t *testing.T, app *fiber.App, phone string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/verify/request", strings.NewReader(`{"phone":"`+phone+`"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestChallengeRateLimitCapsPerPhone(t *testing.T) {
	app, cleanup := setupRateLimitApp(t, 2)
	defer cleanup()

	for i := 0; i < 2; i++ {
		if code := requestCode(t, app, "+254700000001"); code != fiber.StatusAccepted {
			t.Fatalf("request %d: expected %d got %d", i+1, fiber.StatusAccepted, code)
		}
	}
	if code := requestCode(t, app, "+254700000001"); code != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d once over the cap, got %d", fiber.StatusTooManyRequests, code)
	}

	// Another phone is counted independently.
	if code := requestCode(t, app, "+254700000002"); code != fiber.StatusAccepted {
		t.Fatalf("expected separate counter per phone, got %d", code)
	}
}

func TestChallengeRateLimitFailsOpenWithoutCache(t *testing.T) {
	app := fiber.New()
	app.Post("/verify/request", ChallengeRateLimit(nil, 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	for i := 0; i < 3; i++ {
		if code := requestCode(t, app, "+254700000003"); code != fiber.StatusAccepted {
			t.Fatalf("expected pass-through without redis, got %d", code)
		}
	}
}
