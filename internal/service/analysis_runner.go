package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/repository"
)

type EventPublisher interface {
	PublishReportCompleted(ctx context.Context, event models.IntegrityReportCompletedEvent) error
}

type RunRecorder interface {
	RecordSuccess(duration time.Duration, stats models.ReportStats)
	RecordFailure(duration time.Duration)
}

// RetryPolicy bounds the retries of one data store operation. The wait
// before attempt n is n*Delay.
type RetryPolicy struct {
	Count int
	Delay time.Duration
}

type RunnerConfig struct {
	CompletedStatus   string
	MaxExams          int
	MaxAnswersPerExam int
	// LoadRetry covers reads from the exam store, PersistRetry the report
	// replace in the result store.
	LoadRetry    RetryPolicy
	PersistRetry RetryPolicy
	// Report is copied into every report for reproducibility.
	Report models.ReportConfig
}

// RunnerDependencies wires the runner. Cache, Snapshots, Events and Metrics
// are optional; their failures are logged and never fail a run.
type RunnerDependencies struct {
	Exams     repository.ExamRepository
	Reports   repository.ReportRepository
	Scheduler ComparisonScheduler
	AI        AIDetectionService
	Cache     repository.ReportCache
	Snapshots repository.SnapshotStore
	Events    EventPublisher
	Metrics   RunRecorder
}

type AnalysisRunner interface {
	Run(ctx context.Context) (*models.AnalysisReport, error)
}

type analysisRunner struct {
	deps   RunnerDependencies
	config RunnerConfig
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewAnalysisRunner(deps RunnerDependencies, config RunnerConfig, logger zerolog.Logger) AnalysisRunner {
	return &analysisRunner{
		deps:   deps,
		config: config,
		logger: logger.With().Str("component", "analysis_runner").Logger(),
		tracer: otel.Tracer("github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service/runner"),
		now:    time.Now,
	}
}

// Run performs one full analysis and replaces the stored report. When loading
// or persisting fails the error wraps ErrDataAccess and nothing is written.
func (r *analysisRunner) Run(ctx context.Context) (*models.AnalysisReport, error) {
	startTime := r.now()
	ctx, span := r.tracer.Start(ctx, "integrity.run")
	defer span.End()

	report, err := r.run(ctx, startTime)
	duration := r.now().Sub(startTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis run failed")
		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordFailure(duration)
		}
		r.logger.Error().Err(err).Dur("duration", duration).Msg("Analysis run failed")
		return nil, err
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordSuccess(duration, report.Stats)
	}
	r.afterPersist(ctx, report, duration)

	span.SetAttributes(
		attribute.String("integrity.run_id", report.ID),
		attribute.Int("integrity.comparisons", report.Stats.TotalComparisons),
		attribute.Bool("integrity.partial", report.Stats.IsPartialResults),
	)
	span.SetStatus(codes.Ok, "report stored")

	r.logger.Info().
		Str("run_id", report.ID).
		Int("exams", report.Stats.TotalExams).
		Int("answers", report.Stats.TotalAnswersProcessed).
		Int("comparisons", report.Stats.TotalComparisons).
		Int("matches", report.Stats.SuspiciousSimilarities).
		Int("high_risk_pairs", report.Stats.HighRiskPairs).
		Int("ai_flagged", report.Stats.SuspiciousAI).
		Int("skipped_records", report.Stats.SkippedRecords).
		Bool("partial", report.Stats.IsPartialResults).
		Dur("duration", duration).
		Msg("Analysis run completed")

	return report, nil
}

func (r *analysisRunner) run(ctx context.Context, startTime time.Time) (*models.AnalysisReport, error) {
	runID := uuid.New().String()
	r.logger.Info().Str("run_id", runID).Msg("Analysis run started")

	loaded, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	submissions, skipped := r.validate(loaded)

	compareCtx, compareSpan := r.tracer.Start(ctx, "integrity.compare")
	outcome, err := r.deps.Scheduler.Compare(compareCtx, submissions)
	compareSpan.End()
	if err != nil {
		return nil, fmt.Errorf("similarity pass failed: %w", err)
	}

	aiCtx, aiSpan := r.tracer.Start(ctx, "integrity.ai_scan")
	aiOutcome, err := r.deps.AI.DetectAll(aiCtx, submissions)
	aiSpan.End()
	if err != nil {
		return nil, fmt.Errorf("ai pass failed: %w", err)
	}

	report := &models.AnalysisReport{
		ID:                 runID,
		Timestamp:          startTime.UTC(),
		Config:             r.config.Report,
		SimilarityMatches:  outcome.Matches,
		AIDetectionResults: aiOutcome.Results,
		Stats:              buildStats(submissions, outcome, aiOutcome),
	}
	report.Stats.SkippedRecords = skipped + aiOutcome.FailedStudents

	if err := r.persist(ctx, report); err != nil {
		return nil, err
	}

	return report, nil
}

// load reads completed exams, falling back to every exam with answers when no
// exam has the completed status.
func (r *analysisRunner) load(ctx context.Context) ([]models.Submission, error) {
	ctx, span := r.tracer.Start(ctx, "integrity.load")
	defer span.End()

	filter := models.SubmissionFilter{
		Status:            r.config.CompletedStatus,
		MaxExams:          r.config.MaxExams,
		MaxAnswersPerExam: r.config.MaxAnswersPerExam,
	}

	var submissions []models.Submission
	err := r.withRetry(ctx, "load submissions", r.config.LoadRetry, func(ctx context.Context) error {
		var loadErr error
		submissions, loadErr = r.deps.Exams.LoadSubmissions(ctx, filter)
		return loadErr
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: load submissions: %w", ErrDataAccess, err)
	}

	if len(submissions) == 0 && filter.Status != "" {
		r.logger.Warn().
			Str("status", filter.Status).
			Msg("No exams with the completed status, falling back to all exams with answers")

		filter.Status = ""
		err = r.withRetry(ctx, "load submissions", r.config.LoadRetry, func(ctx context.Context) error {
			var loadErr error
			submissions, loadErr = r.deps.Exams.LoadSubmissions(ctx, filter)
			return loadErr
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%w: load submissions: %w", ErrDataAccess, err)
		}
	}

	span.SetAttributes(attribute.Int("integrity.exams", len(submissions)))
	r.logger.Info().Int("exams", len(submissions)).Msg("Submissions loaded")

	return submissions, nil
}

// validate drops malformed records. It returns the usable submissions and the
// number of skipped submissions and answers.
func (r *analysisRunner) validate(submissions []models.Submission) ([]models.Submission, int) {
	valid := make([]models.Submission, 0, len(submissions))
	skipped := 0

	for _, submission := range submissions {
		if err := checkSubmission(submission); err != nil {
			skipped++
			r.logger.Warn().Err(err).Str("exam_id", submission.ExamID).Msg("Skipping malformed submission")
			continue
		}

		answers := make([]models.Answer, 0, len(submission.Answers))
		for _, answer := range submission.Answers {
			if err := checkAnswer(submission, answer); err != nil {
				skipped++
				r.logger.Warn().
					Err(err).
					Str("exam_id", submission.ExamID).
					Int("question_index", answer.QuestionIndex).
					Msg("Skipping malformed answer")
				continue
			}
			if answer.IsBlank() {
				continue
			}
			if strings.TrimSpace(answer.QuestionText) == "" {
				answer.QuestionText = fmt.Sprintf("Question %d", answer.QuestionIndex+1)
			}
			answers = append(answers, answer)
		}

		submission.Answers = answers
		valid = append(valid, submission)
	}

	return valid, skipped
}

func checkSubmission(submission models.Submission) error {
	if strings.TrimSpace(submission.ExamID) == "" {
		return &RecordError{StudentID: submission.StudentKey(), QuestionIndex: -1, Reason: "missing exam id"}
	}
	if submission.StudentKey() == "" {
		return &RecordError{ExamID: submission.ExamID, QuestionIndex: -1, Reason: "missing student id and email"}
	}
	return nil
}

func checkAnswer(submission models.Submission, answer models.Answer) error {
	if answer.QuestionIndex < 0 {
		return &RecordError{
			ExamID:        submission.ExamID,
			StudentID:     submission.StudentKey(),
			QuestionIndex: answer.QuestionIndex,
			Reason:        "missing or negative question index",
		}
	}
	return nil
}

func buildStats(submissions []models.Submission, outcome *ComparisonOutcome, aiOutcome *AIDetectionOutcome) models.ReportStats {
	stats := models.ReportStats{
		TotalExams:             len(submissions),
		TotalAnswersProcessed:  aiOutcome.AnswersScanned,
		TotalComparisons:       outcome.Comparisons,
		SuspiciousSimilarities: len(outcome.Matches),
		SuspiciousAI:           len(aiOutcome.Results),
		IsPartialResults:       outcome.Partial,
	}

	total := 0.0
	for _, match := range outcome.Matches {
		total += match.SimilarityScore
		if match.SuspicionLevel == models.SuspicionHigh {
			stats.HighRiskPairs++
		}
	}
	if len(outcome.Matches) > 0 {
		stats.AverageSimilarityScore = math.Round(total/float64(len(outcome.Matches))*1000) / 1000
	}

	return stats
}

func (r *analysisRunner) persist(ctx context.Context, report *models.AnalysisReport) error {
	ctx, span := r.tracer.Start(ctx, "integrity.persist")
	defer span.End()

	err := r.withRetry(ctx, "replace report", r.config.PersistRetry, func(ctx context.Context) error {
		return r.deps.Reports.Replace(ctx, report)
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: replace report: %w", ErrDataAccess, err)
	}
	return nil
}

// afterPersist runs the best-effort side effects of a stored report.
func (r *analysisRunner) afterPersist(ctx context.Context, report *models.AnalysisReport, duration time.Duration) {
	if r.deps.Cache != nil {
		if err := r.deps.Cache.Set(ctx, report); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to refresh report cache")
		}
	}

	if r.deps.Snapshots != nil {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to encode report snapshot")
		} else if location, err := r.deps.Snapshots.Save(ctx, repository.SnapshotName(report.Timestamp), data); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to write report snapshot")
		} else {
			r.logger.Info().Str("location", location).Msg("Report snapshot written")
		}
	}

	if r.deps.Events != nil {
		event := models.IntegrityReportCompletedEvent{
			ReportID:    report.ID,
			Stats:       report.Stats,
			DurationMs:  duration.Milliseconds(),
			CompletedAt: r.now().UTC(),
		}
		if err := r.deps.Events.PublishReportCompleted(ctx, event); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to publish report completed event")
		}
	}
}

func (r *analysisRunner) withRetry(ctx context.Context, operation string, policy RetryPolicy, fn func(ctx context.Context) error) error {
	var lastErr error

	for i := 0; i <= policy.Count; i++ {
		if i > 0 {
			r.logger.Warn().
				Err(lastErr).
				Int("attempt", i).
				Str("operation", operation).
				Msg("Retrying data store operation")

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w (last error: %v)", operation, ctx.Err(), lastErr)
			case <-time.After(policy.Delay * time.Duration(i)):
			}
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}

	return lastErr
}
