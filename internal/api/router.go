package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/APC-SoCIT/APC-2025-2026-T1-SS231-G07-DDC-Management-System-sub003/internal/booking"
	"github.com/APC-SoCIT/APC-2025-2026-T1-SS231-G07-DDC-Management-System-sub003/pkg/logging"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *logging.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/availability", availableSlotsHandler(cfg.Service))

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", createBookingHandler(cfg.Service))
		r.Get("/", listAppointmentsHandler(cfg.Service))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/{id}/reschedule", rescheduleHandler(cfg.Service))
		r.Post("/{id}/cancel", cancelHandler(cfg.Service))
		r.Post("/{id}/approve", approveHandler(cfg.Service))
		r.Post("/{id}/reject", rejectHandler(cfg.Service))
		r.Post("/{id}/checkin", checkinHandler(cfg.Service))
		r.Post("/{id}/complete", completeHandler(cfg.Service))
	})

	r.Post("/internal/sweep", sweepHandler(cfg.Service))

	return r
}
