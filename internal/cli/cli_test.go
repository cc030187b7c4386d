package cli

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const examSchema = `
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

type fixture struct {
	configPath  string
	snapshotDir string
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
}

func seedExamStore(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite", sqliteDSN(path))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(examSchema)
	require.NoError(t, err)

	exams := []struct {
		id, student, created string
		answers              []string
	}{
		{"e1", "s1", "2025-01-01T09:00:00Z", []string{"SELECT * FROM Pilots WHERE rank = 'major'", "Furthermore, we utilize a sophisticated join"}},
		{"e2", "s2", "2025-01-01T09:05:00Z", []string{"SELECT * FROM Pilots WHERE rank = 'major'", "SELECT name FROM Squadrons"}},
		{"e3", "s3", "2025-01-01T09:10:00Z", []string{"UPDATE Aircraft SET status = 'ready' WHERE id = 7"}},
	}
	for _, exam := range exams {
		_, err := db.Exec(
			`INSERT INTO exams (id, student_id, student_name, student_email, status, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			exam.id, exam.student, "Student "+exam.student, exam.student+"@example.edu", "completed", exam.created,
		)
		require.NoError(t, err)
		for i, answer := range exam.answers {
			_, err := db.Exec(
				`INSERT INTO exam_answers (exam_id, question_index, question_text, student_answer) VALUES ($1, $2, $3, $4)`,
				exam.id, i, fmt.Sprintf("Question text %d", i+1), answer,
			)
			require.NoError(t, err)
		}
	}

	_, err = db.Exec(
		`INSERT INTO exam_answers (exam_id, question_index, question_text, student_answer) VALUES ($1, NULL, $2, $3)`,
		"e3", "Orphan", "SELECT name FROM Pilots",
	)
	require.NoError(t, err)
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	examPath := filepath.Join(dir, "exams.db")
	seedExamStore(t, examPath)

	snapshotDir := filepath.Join(dir, "snapshots")
	configPath := filepath.Join(dir, "config.yaml")
	config := fmt.Sprintf(`
database:
  driver: sqlite
  dsn: %q
  retry_count: 0
exam_store:
  driver: sqlite
  dsn: %q
  retry_count: 0
snapshot:
  enabled: true
  directory: %q
analysis:
  max_workers: 2
logging:
  level: disabled
`, sqliteDSN(filepath.Join(dir, "results.db")), sqliteDSN(examPath), snapshotDir)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	return fixture{configPath: configPath, snapshotDir: snapshotDir}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMigrateRunExport(t *testing.T) {
	f := newFixture(t)

	out, err := execute(t, "--config", f.configPath, "migrate", "up", "--source", "file://../../migrations")
	require.NoError(t, err)
	require.Contains(t, out, "schema version 1 (dirty=false)")

	out, err = execute(t, "--config", f.configPath, "run")
	require.NoError(t, err)
	require.Contains(t, out, "3 exams")
	require.Contains(t, out, "1 similarity matches (1 high risk), 1 students flagged, partial=false")

	entries, err := os.ReadDir(f.snapshotDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Regexp(t, `^integrity-report-\d{4}-\d{2}-\d{2}\.json$`, entries[0].Name())

	out, err = execute(t, "--config", f.configPath, "export", "--format", "csv", "--output", "-")
	require.NoError(t, err)
	require.Contains(t, out, "similarity,Student s1,s1,s1@example.edu,Student s2,s2,s2@example.edu,1,Question text 1,100%,high")
	require.Contains(t, out, "ai_assistance,Student s1,s1,s1@example.edu,e1,2,1,45,23,medium,2,Question text 2")

	exportPath := filepath.Join(t.TempDir(), "report.json")
	_, err = execute(t, "--config", f.configPath, "export", "--output", exportPath)
	require.NoError(t, err)
	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"similarityMatches"`)
	require.Contains(t, string(data), `"skippedRecords": 1`)
}

func TestExportWithoutReportFails(t *testing.T) {
	f := newFixture(t)

	_, err := execute(t, "--config", f.configPath, "migrate", "--source", "file://../../migrations")
	require.NoError(t, err)

	_, err = execute(t, "--config", f.configPath, "export", "--output", "-")
	require.ErrorContains(t, err, "report not found")
}

func TestRunWithoutResultTableFails(t *testing.T) {
	f := newFixture(t)

	_, err := execute(t, "--config", f.configPath, "run")
	require.ErrorContains(t, err, "data access failed")
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	f := newFixture(t)

	_, err := execute(t, "--config", f.configPath, "migrate", "sideways")
	require.Error(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  max_comparisons: -1\n"), 0o644))

	_, err := execute(t, "--config", path, "run")
	require.ErrorContains(t, err, "invalid configuration")
}
