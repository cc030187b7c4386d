package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service/analyzer"
)

type AIDetectionConfig struct {
	// Threshold is the per-answer score at which an answer counts as
	// suspicious. Students whose highest score is below it are not reported.
	Threshold  int
	MaxWorkers int
}

type AIDetectionOutcome struct {
	Results         []models.AIDetectionResult
	StudentsScanned int
	AnswersScanned  int
	FailedStudents  int
}

type AIDetectionService interface {
	DetectAll(ctx context.Context, submissions []models.Submission) (*AIDetectionOutcome, error)
}

type aiDetectionService struct {
	detector analyzer.AIDetector
	config   AIDetectionConfig
	logger   zerolog.Logger
}

func NewAIDetectionService(detector analyzer.AIDetector, config AIDetectionConfig, logger zerolog.Logger) AIDetectionService {
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 1
	}
	return &aiDetectionService{
		detector: detector,
		config:   config,
		logger:   logger.With().Str("component", "ai_detection").Logger(),
	}
}

// studentAnswers is every non-blank answer one student submitted, across all
// of their loaded exams.
type studentAnswers struct {
	student models.StudentRef
	examID  string
	answers []models.Answer
}

func groupByStudent(submissions []models.Submission) []studentAnswers {
	var groups []studentAnswers
	byKey := make(map[string]int)

	for _, submission := range submissions {
		key := submission.StudentKey()
		idx, ok := byKey[key]
		if !ok {
			idx = len(groups)
			byKey[key] = idx
			groups = append(groups, studentAnswers{
				student: submission.Student(),
				examID:  submission.ExamID,
			})
		}
		for _, answer := range submission.Answers {
			if answer.IsBlank() {
				continue
			}
			groups[idx].answers = append(groups[idx].answers, answer)
		}
	}

	return groups
}

func (s *aiDetectionService) DetectAll(ctx context.Context, submissions []models.Submission) (*AIDetectionOutcome, error) {
	students := groupByStudent(submissions)
	results := make([]*models.AIDetectionResult, len(students))
	failed := make([]bool, len(students))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxWorkers)

	for i := range students {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, ok, err := s.detectSafely(students[i])
			if err != nil {
				failed[i] = true
				s.logger.Warn().
					Err(err).
					Str("student_id", students[i].student.ID).
					Str("exam_id", students[i].examID).
					Msg("Skipping student after AI scan failure")
				return nil
			}
			if ok {
				results[i] = result
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ai detection interrupted: %w", err)
	}

	outcome := &AIDetectionOutcome{
		Results:         []models.AIDetectionResult{},
		StudentsScanned: len(students),
	}
	for i, student := range students {
		if failed[i] {
			outcome.FailedStudents++
			continue
		}
		outcome.AnswersScanned += len(student.answers)
		if results[i] != nil {
			outcome.Results = append(outcome.Results, *results[i])
		}
	}

	sort.SliceStable(outcome.Results, func(i, j int) bool {
		return outcome.Results[i].MaxSuspicionScore > outcome.Results[j].MaxSuspicionScore
	})

	s.logger.Info().
		Int("students", outcome.StudentsScanned).
		Int("answers", outcome.AnswersScanned).
		Int("flagged_students", len(outcome.Results)).
		Int("failed_students", outcome.FailedStudents).
		Msg("AI heuristic scan finished")

	return outcome, nil
}

func (s *aiDetectionService) detectSafely(student studentAnswers) (result *models.AIDetectionResult, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scanning answers: %v", r)
		}
	}()

	result, ok = s.detectStudent(student)
	return result, ok, nil
}

// detectStudent scans every answer of one student and aggregates the scores.
// It reports false when no answer reaches the threshold.
func (s *aiDetectionService) detectStudent(student studentAnswers) (*models.AIDetectionResult, bool) {
	if len(student.answers) == 0 {
		return nil, false
	}

	details := make([]models.AIDetectionDetail, 0)
	maxScore := 0
	total := 0

	for _, answer := range student.answers {
		text := strings.TrimSpace(answer.Text)
		detection := s.detector.Detect(text)

		total += detection.Score
		if detection.Score > maxScore {
			maxScore = detection.Score
		}
		if detection.Score < s.config.Threshold {
			continue
		}

		details = append(details, models.AIDetectionDetail{
			QuestionIndex:  answer.QuestionIndex,
			QuestionText:   answer.QuestionText,
			Answer:         text,
			SuspicionScore: detection.Score,
			TriggeredTraps: detection.TrapDescriptions(),
		})
	}

	if maxScore < s.config.Threshold {
		return nil, false
	}

	average := int(math.Round(float64(total) / float64(len(student.answers))))

	return &models.AIDetectionResult{
		StudentID:             student.student.ID,
		StudentName:           student.student.Name,
		StudentEmail:          student.student.Email,
		ExamID:                student.examID,
		TotalQuestions:        len(student.answers),
		SuspiciousAnswers:     len(details),
		MaxSuspicionScore:     maxScore,
		AverageSuspicionScore: average,
		AISuspicionLevel:      s.detector.Level(maxScore),
		Details:               details,
	}, true
}
