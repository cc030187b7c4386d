package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

func TestLoadTrapCatalogShippedFile(t *testing.T) {
	traps, err := LoadTrapCatalog(filepath.Join("..", "..", "..", "config", "traps.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, traps)

	require.Equal(t, "known_artifact_alias", traps[0].Name)
	for _, trap := range traps {
		require.NotNil(t, trap.Pattern, trap.Name)
		require.Positive(t, trap.Points, trap.Name)
	}

	detector := NewAIDetector(traps, DefaultAILevelBoundaries())
	detection := detector.Detect("SELECT * FROM missionanalytics JOIN Weapon w ON w.id = 1")
	require.Equal(t, 55, detection.Score)
}

func TestShippedCatalogExtendsDefaults(t *testing.T) {
	traps, err := LoadTrapCatalog(filepath.Join("..", "..", "..", "config", "traps.yaml"))
	require.NoError(t, err)

	defaults := DefaultTraps()
	require.Greater(t, len(traps), len(defaults))
	for i, want := range defaults {
		require.Equal(t, want.Name, traps[i].Name)
		require.Equal(t, want.Description, traps[i].Description)
		require.Equal(t, want.Points, traps[i].Points, want.Name)
	}

	shipped := NewAIDetector(traps, DefaultAILevelBoundaries())
	builtin := newDefaultDetector()

	detection := shipped.Detect("Furthermore, we utilize a sophisticated join")
	require.Len(t, detection.Triggered, 3)
	require.Equal(t, 45, detection.Score)
	require.Equal(t, models.SuspicionMedium, shipped.Level(detection.Score))

	answer := "This sophisticated and comprehensive implementation will utilize a JOIN"
	require.Equal(t, builtin.Detect(answer).Score, shipped.Detect(answer).Score)
	require.Equal(t, 60, shipped.Detect(answer).Score)
}

func TestParseTrapCatalogDefaults(t *testing.T) {
	traps, err := ParseTrapCatalog([]byte(`
traps:
  - name: alias
    pattern: 'avg_pilot'
    points: 10
`))
	require.NoError(t, err)
	require.Len(t, traps, 1)
	require.Equal(t, "alias", traps[0].Description)
	require.Equal(t, "medium", traps[0].Severity)
	require.True(t, traps[0].Pattern.MatchString("SELECT AVG_PILOT"), "patterns are case-insensitive")
}

func TestParseTrapCatalogRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":         `traps: []`,
		"unknown field": "traps:\n  - name: a\n    pattern: x\n    points: 5\n    weight: 2\n",
		"no name":       "traps:\n  - pattern: x\n    points: 5\n",
		"duplicate":     "traps:\n  - name: a\n    pattern: x\n    points: 5\n  - name: a\n    pattern: y\n    points: 5\n",
		"zero points":   "traps:\n  - name: a\n    pattern: x\n    points: 0\n",
		"too many":      "traps:\n  - name: a\n    pattern: x\n    points: 101\n",
		"no pattern":    "traps:\n  - name: a\n    points: 5\n",
		"bad regexp":    "traps:\n  - name: a\n    pattern: 'Weapon(?!s)'\n    points: 5\n",
		"not yaml":      "traps: [",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTrapCatalog([]byte(doc))
			require.ErrorIs(t, err, ErrInvalidTrapCatalog)
		})
	}
}

func TestLoadTrapCatalogMissingFile(t *testing.T) {
	_, err := LoadTrapCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}
