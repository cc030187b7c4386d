package httpd

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/pkg/utils"
)

func (h *Handler) GetLatestReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reportService.GetLatest(r.Context())
	if err != nil {
		h.handleReportError(w, err)
		return
	}

	utils.SuccessResponse(w, report)
}

func (h *Handler) GetReportStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reportService.GetSummary(r.Context())
	if err != nil {
		h.handleReportError(w, err)
		return
	}

	utils.SuccessResponse(w, summary)
}

func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = service.ExportFormatJSON
	}

	data, contentType, fileName, err := h.reportService.Export(r.Context(), format)
	if err != nil {
		h.handleReportError(w, err)
		return
	}

	if sum, err := utils.CalculateHash(data, "sha256"); err == nil {
		etag := `"` + sum + `"`
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write export response")
	}
}

func (h *Handler) handleReportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrReportNotFound):
		utils.ErrorResponse(w, http.StatusNotFound, "No integrity report has been generated yet")
	case errors.Is(err, service.ErrUnsupportedFormat):
		utils.ErrorResponse(w, http.StatusBadRequest, "Unsupported format. Use 'json' or 'csv'")
	default:
		h.logger.Error().Err(err).Msg("Report service error")
		utils.ErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}
