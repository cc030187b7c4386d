package httpd

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	reportService service.ReportService
	store         Pinger
	logger        zerolog.Logger
}

func NewHandler(reportService service.ReportService, store Pinger, logger zerolog.Logger) *Handler {
	return &Handler{
		reportService: reportService,
		store:         store,
		logger:        logger.With().Str("component", "http").Logger(),
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/ready", h.ReadinessCheck)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1/integrity", func(api chi.Router) {
		api.Route("/report", func(r chi.Router) {
			r.Get("/", h.GetLatestReport)
			r.Get("/stats", h.GetReportStats)
			r.Get("/export", h.ExportReport)
		})
	})
}
