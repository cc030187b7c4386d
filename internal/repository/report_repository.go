package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

// LatestReportID is the primary key of the one stored report row.
const LatestReportID = "latest"

// ReportRepository stores the single latest analysis report. Replace swaps
// the whole document; there is no history.
type ReportRepository interface {
	Replace(ctx context.Context, report *models.AnalysisReport) error
	GetLatest(ctx context.Context) (*models.AnalysisReport, error)
	Ping(ctx context.Context) error
}

type reportRepository struct {
	*SQLRepository
}

func NewReportRepository(db *sql.DB, logger zerolog.Logger) ReportRepository {
	return &reportRepository{
		SQLRepository: NewSQLRepository(db, logger),
	}
}

func (r *reportRepository) Replace(ctx context.Context, report *models.AnalysisReport) error {
	document, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := r.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO integrity_reports (id, run_id, document, is_partial, generated_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			document = EXCLUDED.document,
			is_partial = EXCLUDED.is_partial,
			generated_at = EXCLUDED.generated_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		LatestReportID,
		report.ID,
		string(document),
		report.Stats.IsPartialResults,
		report.Timestamp.UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert report: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}

	r.logger.Debug().
		Str("run_id", report.ID).
		Int("document_bytes", len(document)).
		Msg("Report replaced")

	return nil
}

// GetLatest returns nil, nil when no report has been stored yet.
func (r *reportRepository) GetLatest(ctx context.Context) (*models.AnalysisReport, error) {
	query := `SELECT document FROM integrity_reports WHERE id = $1`

	var document string
	err := r.db.QueryRowContext(ctx, query, LatestReportID).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}

	var report models.AnalysisReport
	if err := json.Unmarshal([]byte(document), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}
