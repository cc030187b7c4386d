package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

func storedReport() *models.AnalysisReport {
	return &models.AnalysisReport{
		ID:        "run-1",
		Timestamp: time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC),
		Config:    models.ReportConfig{SimilarityAcceptThreshold: 0.7},
		SimilarityMatches: []models.SimilarityMatch{{
			Student1:        models.StudentRef{ID: "s1", Name: "Dana", Email: "dana@example.edu"},
			Student2:        models.StudentRef{ID: "s2", Name: "Noa", Email: "noa@example.edu"},
			QuestionIndex:   0,
			QuestionText:    "List pilots",
			SimilarityScore: 0.912,
			SuspicionLevel:  models.SuspicionHigh,
			Student1Answer:  "SELECT *\nFROM Pilots",
			Student2Answer:  "SELECT * FROM Pilots",
		}},
		AIDetectionResults: []models.AIDetectionResult{
			{
				StudentID:             "s1",
				StudentName:           "Dana",
				StudentEmail:          "dana@example.edu",
				ExamID:                "e1",
				TotalQuestions:        2,
				SuspiciousAnswers:     1,
				MaxSuspicionScore:     45,
				AverageSuspicionScore: 23,
				AISuspicionLevel:      models.SuspicionMedium,
				Details: []models.AIDetectionDetail{{
					QuestionIndex:  1,
					QuestionText:   "Explain joins",
					Answer:         "Furthermore, we utilize a join.",
					SuspicionScore: 45,
					TriggeredTraps: []string{"trap one", "trap two"},
				}},
			},
			{
				StudentID:         "s3",
				StudentName:       "Lior",
				ExamID:            "e3",
				TotalQuestions:    1,
				MaxSuspicionScore: 30,
				AISuspicionLevel:  models.SuspicionLow,
			},
		},
		Stats: models.ReportStats{
			TotalExams:             3,
			TotalAnswersProcessed:  6,
			TotalComparisons:       4,
			SuspiciousSimilarities: 1,
			SuspiciousAI:           2,
			AverageSimilarityScore: 0.912,
			HighRiskPairs:          1,
		},
	}
}

func TestGetLatestPrefersCache(t *testing.T) {
	cached := storedReport()
	repo := &fakeReportRepository{getErr: errors.New("must not be called")}
	cache := &fakeReportCache{report: cached}

	report, err := NewReportService(repo, cache, testLogger).GetLatest(context.Background())
	require.NoError(t, err)
	require.Same(t, cached, report)
}

func TestGetLatestFillsCacheOnMiss(t *testing.T) {
	stored := storedReport()
	repo := &fakeReportRepository{stored: stored}
	cache := &fakeReportCache{}

	report, err := NewReportService(repo, cache, testLogger).GetLatest(context.Background())
	require.NoError(t, err)
	require.Same(t, stored, report)
	require.Equal(t, 1, cache.sets)
	require.Same(t, stored, cache.report)
}

func TestGetLatestSurvivesCacheFailures(t *testing.T) {
	stored := storedReport()
	repo := &fakeReportRepository{stored: stored}
	cache := &fakeReportCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}

	report, err := NewReportService(repo, cache, testLogger).GetLatest(context.Background())
	require.NoError(t, err)
	require.Same(t, stored, report)
}

func TestGetLatestWithoutReport(t *testing.T) {
	service := NewReportService(&fakeReportRepository{}, nil, testLogger)

	_, err := service.GetLatest(context.Background())
	require.ErrorIs(t, err, ErrReportNotFound)

	_, err = service.GetSummary(context.Background())
	require.ErrorIs(t, err, ErrReportNotFound)

	_, _, _, err = service.Export(context.Background(), ExportFormatCSV)
	require.ErrorIs(t, err, ErrReportNotFound)
}

func TestGetLatestRepositoryError(t *testing.T) {
	repo := &fakeReportRepository{getErr: errors.New("connection refused")}

	_, err := NewReportService(repo, nil, testLogger).GetLatest(context.Background())
	require.ErrorContains(t, err, "connection refused")
	require.NotErrorIs(t, err, ErrReportNotFound)
}

func TestGetSummaryDropsLists(t *testing.T) {
	stored := storedReport()
	summary, err := NewReportService(&fakeReportRepository{stored: stored}, nil, testLogger).GetSummary(context.Background())
	require.NoError(t, err)
	require.Equal(t, stored.ID, summary.ID)
	require.Equal(t, stored.Stats, summary.Stats)
	require.Equal(t, stored.Config, summary.Config)
}

func TestExportNamesFileByReportDate(t *testing.T) {
	service := NewReportService(&fakeReportRepository{stored: storedReport()}, nil, testLogger)

	data, contentType, name, err := service.Export(context.Background(), "CSV")
	require.NoError(t, err)
	require.Equal(t, "text/csv; charset=utf-8", contentType)
	require.Equal(t, "integrity-report-2025-03-09.csv", name)
	require.NotEmpty(t, data)

	_, contentType, name, err = service.Export(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "application/json", contentType)
	require.Equal(t, "integrity-report-2025-03-09.json", name)

	_, _, _, err = service.Export(context.Background(), "xlsx")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
