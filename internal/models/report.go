package models

import (
	"time"
)

type SuspicionLevel string

const (
	SuspicionLow    SuspicionLevel = "low"
	SuspicionMedium SuspicionLevel = "medium"
	SuspicionHigh   SuspicionLevel = "high"
)

func (l SuspicionLevel) String() string {
	return string(l)
}

type StudentRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SimilarityMatch struct {
	Student1        StudentRef     `json:"student1"`
	Student2        StudentRef     `json:"student2"`
	QuestionIndex   int            `json:"questionIndex"`
	QuestionText    string         `json:"questionText"`
	SimilarityScore float64        `json:"similarityScore"`
	SuspicionLevel  SuspicionLevel `json:"suspicionLevel"`
	Student1Answer  string         `json:"student1Answer"`
	Student2Answer  string         `json:"student2Answer"`
}

type AIDetectionDetail struct {
	QuestionIndex  int      `json:"questionIndex"`
	QuestionText   string   `json:"questionText"`
	Answer         string   `json:"answer"`
	SuspicionScore int      `json:"suspicionScore"`
	TriggeredTraps []string `json:"triggeredTraps"`
}

type AIDetectionResult struct {
	StudentID             string              `json:"studentId"`
	StudentName           string              `json:"studentName"`
	StudentEmail          string              `json:"studentEmail"`
	ExamID                string              `json:"examId"`
	TotalQuestions        int                 `json:"totalQuestions"`
	SuspiciousAnswers     int                 `json:"suspiciousAnswers"`
	MaxSuspicionScore     int                 `json:"maxSuspicionScore"`
	AverageSuspicionScore int                 `json:"averageSuspicionScore"`
	AISuspicionLevel      SuspicionLevel      `json:"aiSuspicionLevel"`
	Details               []AIDetectionDetail `json:"details"`
}

// ReportConfig records the settings a report was produced with so a run can
// be reproduced later.
type ReportConfig struct {
	SimilarityAcceptThreshold float64 `json:"similarityAcceptThreshold"`
	AIHeuristicThreshold      int     `json:"aiHeuristicThreshold"`
	MaxExamsToProcess         int     `json:"maxExamsToProcess"`
	MaxAnswersPerExam         int     `json:"maxAnswersPerExam"`
	MaxComparisons            int     `json:"maxComparisons"`
	MinAnswerLength           int     `json:"minAnswerLength"`
	BucketOrder               string  `json:"bucketOrder"`
	JaccardWeight             float64 `json:"jaccardWeight"`
	LevenshteinWeight         float64 `json:"levenshteinWeight"`
	KeywordWeight             float64 `json:"keywordWeight"`
	MediumTierBoundary        float64 `json:"mediumTierBoundary"`
	HighTierBoundary          float64 `json:"highTierBoundary"`
	AIMediumBoundary          int     `json:"aiMediumBoundary"`
	AIHighBoundary            int     `json:"aiHighBoundary"`
	TrapCount                 int     `json:"trapCount"`
}

type ReportStats struct {
	TotalExams             int     `json:"totalExams"`
	TotalAnswersProcessed  int     `json:"totalAnswersProcessed"`
	TotalComparisons       int     `json:"totalComparisons"`
	SuspiciousSimilarities int     `json:"suspiciousSimilarities"`
	SuspiciousAI           int     `json:"suspiciousAI"`
	AverageSimilarityScore float64 `json:"averageSimilarityScore"`
	HighRiskPairs          int     `json:"highRiskPairs"`
	IsPartialResults       bool    `json:"isPartialResults"`
	SkippedRecords         int     `json:"skippedRecords"`
}

// AnalysisReport is the single document produced by one analysis run. Each
// run replaces the previously stored report.
type AnalysisReport struct {
	ID                 string              `json:"id"`
	Timestamp          time.Time           `json:"timestamp"`
	Config             ReportConfig        `json:"config"`
	SimilarityMatches  []SimilarityMatch   `json:"similarityMatches"`
	AIDetectionResults []AIDetectionResult `json:"aiDetectionResults"`
	Stats              ReportStats         `json:"stats"`
}

// ReportSummary is the report without its match and detection lists.
type ReportSummary struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Config    ReportConfig `json:"config"`
	Stats     ReportStats  `json:"stats"`
}

func (r *AnalysisReport) Summary() ReportSummary {
	return ReportSummary{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Config:    r.Config,
		Stats:     r.Stats,
	}
}
