package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

const (
	ExportFormatJSON = "json"
	ExportFormatCSV  = "csv"

	exportAnswerLimit = 500
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// utf8BOM makes spreadsheet tools detect UTF-8 in non-Latin answers.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExportReport renders report in the requested format and returns the
// content type to serve it with.
func ExportReport(report *models.AnalysisReport, format string) ([]byte, string, error) {
	var buf bytes.Buffer

	switch strings.ToLower(format) {
	case "", ExportFormatJSON:
		if err := WriteReportJSON(&buf, report); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/json", nil
	case ExportFormatCSV:
		if err := WriteReportCSV(&buf, report); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ExportFileName is the attachment name for an export of report.
func ExportFileName(report *models.AnalysisReport, format string) string {
	if format == "" {
		format = ExportFormatJSON
	}
	return fmt.Sprintf("integrity-report-%s.%s", report.Timestamp.UTC().Format("2006-01-02"), strings.ToLower(format))
}

func WriteReportJSON(w io.Writer, report *models.AnalysisReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteReportCSV writes three sections separated by blank lines: summary
// statistics, one row per similarity match and one row per flagged answer.
// A flagged student without detail rows gets a single summary row.
func WriteReportCSV(w io.Writer, report *models.AnalysisReport) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	writer := csv.NewWriter(w)
	stats := report.Stats

	records := [][]string{
		{"Statistic", "Value"},
		{"Total exams analyzed", strconv.Itoa(stats.TotalExams)},
		{"Answers processed", strconv.Itoa(stats.TotalAnswersProcessed)},
		{"Comparisons performed", strconv.Itoa(stats.TotalComparisons)},
		{"Suspicious similarity pairs", strconv.Itoa(stats.SuspiciousSimilarities)},
		{"Students flagged for AI assistance", strconv.Itoa(stats.SuspiciousAI)},
		{"Average similarity (flagged pairs)", percent(stats.AverageSimilarityScore)},
		{"High-risk pairs", strconv.Itoa(stats.HighRiskPairs)},
		{"Partial results", strconv.FormatBool(stats.IsPartialResults)},
		{"Report date", report.Timestamp.UTC().Format(time.DateOnly)},
		{},
		{},
		{
			"Type", "Student 1 name", "Student 1 id", "Student 1 email",
			"Student 2 name", "Student 2 id", "Student 2 email",
			"Question", "Question text", "Similarity (%)", "Suspicion level",
			"Student 1 answer", "Student 2 answer",
		},
	}

	for _, match := range report.SimilarityMatches {
		records = append(records, []string{
			"similarity",
			match.Student1.Name, match.Student1.ID, match.Student1.Email,
			match.Student2.Name, match.Student2.ID, match.Student2.Email,
			strconv.Itoa(match.QuestionIndex + 1),
			match.QuestionText,
			percent(match.SimilarityScore),
			match.SuspicionLevel.String(),
			flattenAnswer(match.Student1Answer),
			flattenAnswer(match.Student2Answer),
		})
	}

	records = append(records, []string{}, []string{}, []string{
		"Type", "Student name", "Student id", "Student email", "Exam id",
		"Total questions", "Suspicious answers", "Max suspicion score",
		"Average suspicion score", "Suspicion level",
		"Question", "Question text", "Answer", "Triggered traps",
	})

	for _, result := range report.AIDetectionResults {
		prefix := []string{
			"ai_assistance",
			result.StudentName, result.StudentID, result.StudentEmail, result.ExamID,
			strconv.Itoa(result.TotalQuestions),
			strconv.Itoa(result.SuspiciousAnswers),
			strconv.Itoa(result.MaxSuspicionScore),
			strconv.Itoa(result.AverageSuspicionScore),
			result.AISuspicionLevel.String(),
		}

		if len(result.Details) == 0 {
			records = append(records, append(prefix, "", "", "", ""))
			continue
		}

		for _, detail := range result.Details {
			row := append([]string(nil), prefix...)
			records = append(records, append(row,
				strconv.Itoa(detail.QuestionIndex+1),
				detail.QuestionText,
				flattenAnswer(detail.Answer),
				strings.Join(detail.TriggeredTraps, "; "),
			))
		}
	}

	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func percent(score float64) string {
	return strconv.Itoa(int(score*100+0.5)) + "%"
}

// flattenAnswer puts an answer on one line and truncates it to
// exportAnswerLimit runes.
func flattenAnswer(answer string) string {
	flat := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(answer)
	runes := []rune(flat)
	if len(runes) > exportAnswerLimit {
		return string(runes[:exportAnswerLimit])
	}
	return flat
}
