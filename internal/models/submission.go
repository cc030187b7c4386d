package models

import "strings"

// Submission is one student's exam attempt as loaded from the exam store.
type Submission struct {
	ExamID       string   `json:"exam_id"`
	StudentID    string   `json:"student_id"`
	StudentName  string   `json:"student_name"`
	StudentEmail string   `json:"student_email"`
	Answers      []Answer `json:"answers"`
}

// StudentKey identifies the author of a submission. The exam store does not
// always carry a student id, so the email is used as a fallback.
func (s Submission) StudentKey() string {
	if id := strings.TrimSpace(s.StudentID); id != "" {
		return id
	}
	return strings.TrimSpace(s.StudentEmail)
}

func (s Submission) Student() StudentRef {
	return StudentRef{
		ID:    s.StudentKey(),
		Name:  s.StudentName,
		Email: s.StudentEmail,
	}
}

type Answer struct {
	QuestionIndex int    `json:"question_index"`
	QuestionText  string `json:"question_text"`
	Text          string `json:"text"`
}

// IsBlank reports whether the answer carries no text at all.
func (a Answer) IsBlank() bool {
	return strings.TrimSpace(a.Text) == ""
}

type SubmissionFilter struct {
	Status            string
	MaxExams          int
	MaxAnswersPerExam int
}
