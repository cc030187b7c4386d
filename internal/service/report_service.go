package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/repository"
)

// ReportService is the read side over the result store.
type ReportService interface {
	GetLatest(ctx context.Context) (*models.AnalysisReport, error)
	GetSummary(ctx context.Context) (*models.ReportSummary, error)
	Export(ctx context.Context, format string) ([]byte, string, string, error)
}

type reportService struct {
	reportRepo repository.ReportRepository
	cache      repository.ReportCache
	logger     zerolog.Logger
}

// NewReportService builds the read side. cache may be nil.
func NewReportService(reportRepo repository.ReportRepository, cache repository.ReportCache, logger zerolog.Logger) ReportService {
	return &reportService{
		reportRepo: reportRepo,
		cache:      cache,
		logger:     logger.With().Str("component", "report_service").Logger(),
	}
}

// GetLatest reads the cache first and falls back to the database, refilling
// the cache on a miss. Cache errors are logged only.
func (s *reportService) GetLatest(ctx context.Context) (*models.AnalysisReport, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to read report cache")
		} else if cached != nil {
			s.logger.Debug().Str("run_id", cached.ID).Msg("Report cache hit")
			return cached, nil
		}
	}

	report, err := s.reportRepo.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, report); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to store report cache")
		}
	}

	return report, nil
}

func (s *reportService) GetSummary(ctx context.Context) (*models.ReportSummary, error) {
	report, err := s.GetLatest(ctx)
	if err != nil {
		return nil, err
	}

	summary := report.Summary()
	return &summary, nil
}

// Export returns the rendered report, its content type and a file name.
func (s *reportService) Export(ctx context.Context, format string) ([]byte, string, string, error) {
	report, err := s.GetLatest(ctx)
	if err != nil {
		return nil, "", "", err
	}

	data, contentType, err := ExportReport(report, format)
	if err != nil {
		return nil, "", "", err
	}

	return data, contentType, ExportFileName(report, format), nil
}
