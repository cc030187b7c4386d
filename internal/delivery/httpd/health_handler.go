package httpd

import (
	"context"
	"net/http"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/pkg/utils"
)

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "integrity-service",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

// ReadinessCheck pings the result store.
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := h.store.Ping(ctx); err != nil {
			h.logger.Error().Err(err).Msg("Result store is not reachable")
			utils.ErrorResponse(w, http.StatusServiceUnavailable, "Result store is not reachable")
			return
		}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}
