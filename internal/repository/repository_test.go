package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const examStoreSchema = `
CREATE TABLE exams (
	id TEXT PRIMARY KEY,
	student_id TEXT,
	student_name TEXT,
	student_email TEXT,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE exam_answers (
	exam_id TEXT NOT NULL REFERENCES exams(id),
	question_index INTEGER,
	question_text TEXT,
	student_answer TEXT
);
`

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.Join(t.TempDir(), "test.db"))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func applyResultSchema(t *testing.T, db *sql.DB) {
	t.Helper()

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "000001_create_integrity_reports.up.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
}

func applyExamSchema(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(examStoreSchema)
	require.NoError(t, err)
}

func insertExam(t *testing.T, db *sql.DB, id, studentID, name, email, status, createdAt string) {
	t.Helper()

	var sid any
	if studentID != "" {
		sid = studentID
	}
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO exams (id, student_id, student_name, student_email, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sid, name, email, status, createdAt)
	require.NoError(t, err)
}

func insertAnswer(t *testing.T, db *sql.DB, examID string, index any, question, answer string) {
	t.Helper()

	_, err := db.ExecContext(context.Background(),
		`INSERT INTO exam_answers (exam_id, question_index, question_text, student_answer) VALUES ($1, $2, $3, $4)`,
		examID, index, question, answer)
	require.NoError(t, err)
}
