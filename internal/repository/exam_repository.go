package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

// ExamRepository reads submissions from the exam store. It never writes.
type ExamRepository interface {
	LoadSubmissions(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	Ping(ctx context.Context) error
}

type examRepository struct {
	*SQLRepository
}

func NewExamRepository(db *sql.DB, logger zerolog.Logger) ExamRepository {
	return &examRepository{
		SQLRepository: NewSQLRepository(db, logger),
	}
}

// LoadSubmissions loads up to filter.MaxExams exams that have at least one
// answer, together with their answers, in a single query. An empty
// filter.Status matches every exam. A row without a question index is
// returned with QuestionIndex -1 and does not count toward
// filter.MaxAnswersPerExam, so the caller can report it as malformed.
func (r *examRepository) LoadSubmissions(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	query := `
		SELECT e.id, e.student_id, e.student_name, e.student_email,
			a.question_index, a.question_text, a.student_answer
		FROM (
			SELECT id, student_id, student_name, student_email, created_at
			FROM exams
			WHERE ($1 = '' OR status = $1)
				AND EXISTS (SELECT 1 FROM exam_answers ea WHERE ea.exam_id = exams.id)
			ORDER BY created_at, id
			LIMIT $2
		) e
		JOIN exam_answers a ON a.exam_id = e.id
		ORDER BY e.created_at, e.id, a.question_index
	`

	rows, err := r.db.QueryContext(ctx, query, filter.Status, filter.MaxExams)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var submissions []models.Submission
	byExam := make(map[string]int)
	kept := make(map[string]int)
	malformed := 0

	for rows.Next() {
		var (
			examID                        string
			studentID, studentName, email sql.NullString
			questionIndex                 sql.NullInt64
			questionText, answerText      sql.NullString
		)
		if err := rows.Scan(
			&examID, &studentID, &studentName, &email,
			&questionIndex, &questionText, &answerText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}

		idx, ok := byExam[examID]
		if !ok {
			idx = len(submissions)
			byExam[examID] = idx
			submissions = append(submissions, models.Submission{
				ExamID:       examID,
				StudentID:    studentID.String,
				StudentName:  studentName.String,
				StudentEmail: email.String,
				Answers:      []models.Answer{},
			})
		}

		answer := models.Answer{
			QuestionIndex: int(questionIndex.Int64),
			QuestionText:  questionText.String,
			Text:          answerText.String,
		}
		if answer.IsBlank() {
			continue
		}
		if !questionIndex.Valid {
			malformed++
			answer.QuestionIndex = -1
			submissions[idx].Answers = append(submissions[idx].Answers, answer)
			continue
		}
		if filter.MaxAnswersPerExam > 0 && kept[examID] >= filter.MaxAnswersPerExam {
			continue
		}
		kept[examID]++
		submissions[idx].Answers = append(submissions[idx].Answers, answer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}

	r.logger.Debug().
		Str("status", filter.Status).
		Int("exams", len(submissions)).
		Int("rows_without_index", malformed).
		Msg("Loaded submissions")

	return submissions, nil
}
