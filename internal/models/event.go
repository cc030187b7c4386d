package models

import (
	"time"
)

// RunRequestedEvent asks the worker to run a fresh analysis, typically after
// an exam has been closed.
type RunRequestedEvent struct {
	ExamID      string `json:"exam_id,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

type IntegrityReportCompletedEvent struct {
	ReportID    string      `json:"report_id"`
	Stats       ReportStats `json:"stats"`
	DurationMs  int64       `json:"duration_ms"`
	CompletedAt time.Time   `json:"completed_at"`
}
