package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service/analyzer"
)

var testLogger = zerolog.Nop()

// submission builds a submission whose answers are numbered from question 0.
func submission(examID, studentID string, answers ...string) models.Submission {
	sub := models.Submission{
		ExamID:       examID,
		StudentID:    studentID,
		StudentName:  "Student " + studentID,
		StudentEmail: studentID + "@example.edu",
	}
	for i, text := range answers {
		sub.Answers = append(sub.Answers, models.Answer{
			QuestionIndex: i,
			QuestionText:  fmt.Sprintf("Q%d", i+1),
			Text:          text,
		})
	}
	return sub
}

// fixedScorer scores every pair with score and tiers with the default
// boundaries.
type fixedScorer struct {
	analyzer.SimilarityScorer
	score func(a, b string) float64
}

func newFixedScorer(score float64) *fixedScorer {
	return newFuncScorer(func(string, string) float64 { return score })
}

func newFuncScorer(score func(a, b string) float64) *fixedScorer {
	return &fixedScorer{
		SimilarityScorer: analyzer.NewCompositeScorer(analyzer.DefaultWeights(), analyzer.DefaultTierBoundaries()),
		score:            score,
	}
}

func (s *fixedScorer) Score(a, b string) float64 {
	return s.score(a, b)
}

type fakeExamRepository struct {
	mu       sync.Mutex
	byStatus map[string][]models.Submission
	err      error
	filters  []models.SubmissionFilter
}

func (r *fakeExamRepository) LoadSubmissions(_ context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, filter)
	if r.err != nil {
		return nil, r.err
	}
	return r.byStatus[filter.Status], nil
}

func (r *fakeExamRepository) Ping(context.Context) error {
	return nil
}

type fakeReportRepository struct {
	mu        sync.Mutex
	stored    *models.AnalysisReport
	failTimes int
	err       error
	replaces  int
	getErr    error
}

func (r *fakeReportRepository) Replace(_ context.Context, report *models.AnalysisReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaces++
	if r.failTimes > 0 {
		r.failTimes--
		return errors.New("connection reset")
	}
	if r.err != nil {
		return r.err
	}
	r.stored = report
	return nil
}

func (r *fakeReportRepository) GetLatest(context.Context) (*models.AnalysisReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.stored, nil
}

func (r *fakeReportRepository) Ping(context.Context) error {
	return nil
}

type fakeReportCache struct {
	report      *models.AnalysisReport
	getErr      error
	setErr      error
	sets        int
	invalidated int
}

func (c *fakeReportCache) Get(context.Context) (*models.AnalysisReport, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.report, nil
}

func (c *fakeReportCache) Set(_ context.Context, report *models.AnalysisReport) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.report = report
	return nil
}

func (c *fakeReportCache) Invalidate(context.Context) error {
	c.invalidated++
	c.report = nil
	return nil
}

type fakeSnapshotStore struct {
	names []string
	data  [][]byte
	err   error
}

func (s *fakeSnapshotStore) Save(_ context.Context, name string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.names = append(s.names, name)
	s.data = append(s.data, data)
	return "mem://" + name, nil
}

type fakeEventPublisher struct {
	events []models.IntegrityReportCompletedEvent
	err    error
}

func (p *fakeEventPublisher) PublishReportCompleted(_ context.Context, event models.IntegrityReportCompletedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type fakeRecorder struct {
	successes int
	failures  int
	stats     models.ReportStats
}

func (r *fakeRecorder) RecordSuccess(_ time.Duration, stats models.ReportStats) {
	r.successes++
	r.stats = stats
}

func (r *fakeRecorder) RecordFailure(time.Duration) {
	r.failures++
}
