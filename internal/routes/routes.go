package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/afyalink/afyalink/internal/audit"
	"github.com/afyalink/afyalink/internal/clinician"
	"github.com/afyalink/afyalink/internal/config"
	"github.com/afyalink/afyalink/internal/document"
	"github.com/afyalink/afyalink/internal/encounter"
	"github.com/afyalink/afyalink/internal/identity"
	"github.com/afyalink/afyalink/internal/intake"
	"github.com/afyalink/afyalink/internal/messaging"
	"github.com/afyalink/afyalink/internal/middleware"
	"github.com/afyalink/afyalink/internal/notification"
	"github.com/afyalink/afyalink/internal/prescription"
	"github.com/afyalink/afyalink/internal/session"
	"github.com/afyalink/afyalink/internal/verify"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Repositories: Postgres in deployment, memory twins in dev.
	var recorder audit.Recorder
	var identityRepo identity.Repository
	var challengeRepo verify.Repository
	var clinicianRepo clinician.Repository
	var encounterRepo encounter.Repository
	var prescriptionRepo prescription.Repository
	if d.DB != nil {
		recorder = audit.NewPostgresRecorder(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		challengeRepo = verify.NewPostgresRepository(d.DB)
		clinicianRepo = clinician.NewPostgresRepository(d.DB)
		encounterRepo = encounter.NewPostgresRepository(d.DB)
		prescriptionRepo = prescription.NewPostgresRepository(d.DB)
	} else {
		recorder = audit.NewMemoryRecorder()
		identityRepo = identity.NewMemoryRepository()
		challengeRepo = verify.NewMemoryRepository()
		clinicianRepo = clinician.NewMemoryRepository()
		encounterRepo = encounter.NewMemoryRepository()
		prescriptionRepo = prescription.NewMemoryRepository()
	}

	// Collaborators. Real implementations live outside this service.
	dispatcher := messaging.NewLoggerDispatcher(d.Logger)
	summarizer := intake.NewPassthroughSummarizer(d.Logger)
	notifier := notification.NewLoggerNotifier(d.Logger)
	renderer := document.NewTextRenderer()
	store := document.NewMemoryStore()

	// Services and handlers
	identitySvc := identity.NewService(identityRepo, recorder)
	verifySvc := verify.NewService(challengeRepo, identityRepo, dispatcher, recorder)
	sessionSvc := session.NewService(d.Cfg.SessionSecret, d.Cfg.SessionTTL, d.Cache, recorder)
	clinicianSvc := clinician.NewService(clinicianRepo, identityRepo, recorder)
	encounterSvc := encounter.NewService(encounterRepo, clinicianRepo, summarizer, notifier, recorder)
	prescriptionSvc := prescription.NewService(prescriptionRepo, encounterRepo, renderer, store, recorder)

	identityHandler := identity.NewHandler(identitySvc)
	verifyHandler := verify.NewHandler(verifySvc, sessionSvc)
	sessionHandler := session.NewHandler(sessionSvc)
	clinicianHandler := clinician.NewHandler(clinicianSvc)
	encounterHandler := encounter.NewHandler(encounterSvc, clinicianSvc)
	prescriptionHandler := prescription.NewHandler(prescriptionSvc, clinicianSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.ChallengeRateLimit(d.Cache, 3)
	RegisterVerifyRoutes(api, verifyHandler, rateLimiter)
	RegisterAuthRoutes(api, sessionHandler, middleware.SessionAuth(sessionSvc))

	// Protected routes
	authmw := middleware.SessionAuth(sessionSvc)
	protected := api.Group("", authmw)
	RegisterIdentityRoutes(protected, identityHandler)
	RegisterClinicianRoutes(protected, clinicianHandler)
	RegisterEncounterRoutes(protected, encounterHandler)
	RegisterPrescriptionRoutes(protected, prescriptionHandler)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
