package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/parisrizo/clinic-booking/internal/auth"
	"github.com/parisrizo/clinic-booking/internal/clinic"
	"github.com/parisrizo/clinic-booking/internal/files"
)

type RouterConfig struct {
	Service   *clinic.Service
	Sessions  *auth.Sessions
	Files     *files.Manager
	FileStore *files.FSStore
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Public site surface: reference data, availability, booking, blobs.
	r.Get("/locations", listLocationsHandler())
	r.Get("/services", listServicesHandler())
	r.Get("/availability", availabilityHandler(cfg.Service))
	r.Post("/bookings", createBookingHandler(cfg.Service))
	r.Get("/files/*", serveFileHandler(cfg.FileStore))

	r.Post("/auth/login", loginHandler(cfg.Sessions))

	// Admin panel surface
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Sessions))

		r.Get("/auth/session", sessionHandler())

		r.Get("/patients", listPatientsHandler(cfg.Service))
		r.Post("/patients", registerPatientHandler(cfg.Service))
		r.Get("/patients/{id}", getPatientHandler(cfg.Service))
		r.Patch("/patients/{id}", updatePatientHandler(cfg.Service))
		r.Delete("/patients/{id}", deletePatientHandler(cfg.Service))
		r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Service))

		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/status", changeStatusHandler(cfg.Service))
		r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Service))
		r.Post("/blocks", blockSlotHandler(cfg.Service))

		r.Post("/patients/{id}/files", uploadFileHandler(cfg.Files))
		r.Get("/patients/{id}/files", listFilesHandler(cfg.Files))
		r.Delete("/uploads/{id}", deleteFileHandler(cfg.Files))
	})

	return r
}
