package repository

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

func sampleReport(id string, partial bool) *models.AnalysisReport {
	return &models.AnalysisReport{
		ID:        id,
		Timestamp: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
		Config:    models.ReportConfig{SimilarityAcceptThreshold: 0.8, MaxComparisons: 5000},
		SimilarityMatches: []models.SimilarityMatch{
			{
				Student1:        models.StudentRef{ID: "s1", Name: "Avi"},
				Student2:        models.StudentRef{ID: "s2", Name: "Dana"},
				QuestionIndex:   0,
				SimilarityScore: 1,
				SuspicionLevel:  models.SuspicionHigh,
				Student1Answer:  "SELECT * FROM Pilots",
				Student2Answer:  "SELECT * FROM Pilots",
			},
		},
		AIDetectionResults: []models.AIDetectionResult{},
		Stats:              models.ReportStats{TotalExams: 2, SuspiciousSimilarities: 1, IsPartialResults: partial},
	}
}

func TestReportRepositoryEmpty(t *testing.T) {
	db := openTestDB(t)
	applyResultSchema(t, db)
	repo := NewReportRepository(db, zerolog.Nop())

	report, err := repo.GetLatest(context.Background())
	require.NoError(t, err)
	require.Nil(t, report)
}

func TestReportRepositoryReplaceKeepsOneRow(t *testing.T) {
	db := openTestDB(t)
	applyResultSchema(t, db)
	repo := NewReportRepository(db, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, sampleReport("run-1", false)))

	second := sampleReport("run-2", true)
	second.SimilarityMatches = []models.SimilarityMatch{}
	require.NoError(t, repo.Replace(ctx, second))

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM integrity_reports`).Scan(&rows))
	require.Equal(t, 1, rows)

	latest, err := repo.GetLatest(ctx)
	require.NoError(t, err)
	require.Equal(t, "run-2", latest.ID)
	require.True(t, latest.Stats.IsPartialResults)
	require.Empty(t, latest.SimilarityMatches, "the previous document is replaced, not merged")
	require.True(t, latest.Timestamp.Equal(second.Timestamp))
}

func TestReportRepositoryMissingTable(t *testing.T) {
	db := openTestDB(t)
	repo := NewReportRepository(db, zerolog.Nop())

	err := repo.Replace(context.Background(), sampleReport("run-1", false))
	require.Error(t, err)

	_, err = repo.GetLatest(context.Background())
	require.Error(t, err)
}
