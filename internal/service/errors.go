package service

import (
	"errors"
	"fmt"
)

var (
	// ErrDataAccess marks a failed bulk load or persist. A run that returns it
	// wrote nothing and the previously stored report stays authoritative.
	ErrDataAccess = errors.New("data access failed")

	ErrReportNotFound = errors.New("report not found")
)

// RecordError describes one malformed submission or answer. The runner logs
// it and skips the record.
type RecordError struct {
	ExamID        string
	StudentID     string
	QuestionIndex int
	Reason        string
}

func (e *RecordError) Error() string {
	if e.QuestionIndex >= 0 {
		return fmt.Sprintf("invalid record exam=%s student=%s question=%d: %s", e.ExamID, e.StudentID, e.QuestionIndex, e.Reason)
	}
	return fmt.Sprintf("invalid record exam=%s student=%s: %s", e.ExamID, e.StudentID, e.Reason)
}
