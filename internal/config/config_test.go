package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	require.Equal(t, ":8085", cfg.Server.Address)
	require.Equal(t, 0.80, cfg.Analysis.SimilarityAcceptThreshold)
	require.Equal(t, 30, cfg.Analysis.AIHeuristicThreshold)
	require.Equal(t, 5000, cfg.Analysis.MaxComparisons)
	require.Equal(t, "sequential", cfg.Analysis.BucketOrder)
	require.Equal(t, runtime.NumCPU(), cfg.Analysis.MaxWorkers)
	require.Equal(t, 30*time.Minute, cfg.Analysis.Timeout)
	require.Equal(t, "./config/traps.yaml", cfg.Analysis.TrapCatalogPath)
	require.Equal(t, []string{"GET", "OPTIONS"}, cfg.CORS.AllowedMethods)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "analysis:\n  max_workers: 3\n"))
	require.NoError(t, err)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "integrity_db", cfg.Database.Name)
	require.Equal(t, "exam_db", cfg.ExamStore.Name)
	require.Equal(t, 3, cfg.ExamStore.RetryCount)
	require.Equal(t, 500*time.Millisecond, cfg.ExamStore.RetryDelay)
	require.Equal(t, 3, cfg.Database.RetryCount)
	require.Equal(t, 500*time.Millisecond, cfg.Database.RetryDelay)
	require.Equal(t, 3, cfg.Analysis.MaxWorkers)
	require.Equal(t, 10, cfg.Analysis.MinAnswerLength)
	require.Equal(t, 0.4, cfg.Analysis.Weights.Jaccard)
	require.Equal(t, 0.85, cfg.Analysis.Tiers.High)
	require.Equal(t, 70, cfg.Analysis.AILevels.High)
	require.True(t, cfg.Snapshot.Enabled)
	require.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	require.Equal(t, "integrity.completed", cfg.RabbitMQ.CompletedRoutingKey)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("INTEGRITY_ANALYSIS_MAX_COMPARISONS", "120")
	t.Setenv("INTEGRITY_ANALYSIS_BUCKET_ORDER", "round_robin")
	t.Setenv("INTEGRITY_DATABASE_DSN", "postgres://u:p@db:5432/results")
	t.Setenv("INTEGRITY_REDIS_PASSWORD", "secret")

	cfg, err := Load(writeConfig(t, "analysis:\n  max_comparisons: 50\n"))
	require.NoError(t, err)
	require.Equal(t, 120, cfg.Analysis.MaxComparisons)
	require.Equal(t, "round_robin", cfg.Analysis.BucketOrder)
	require.Equal(t, "postgres://u:p@db:5432/results", cfg.Database.DSN)
	require.Equal(t, "secret", cfg.Redis.Password)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"negative budget":      "analysis:\n  max_comparisons: -1\n",
		"zero budget":          "analysis:\n  max_comparisons: 0\n",
		"threshold above one":  "analysis:\n  similarity_accept_threshold: 1.5\n",
		"ai threshold range":   "analysis:\n  ai_heuristic_threshold: 101\n",
		"unknown bucket order": "analysis:\n  bucket_order: random\n",
		"weights sum":          "analysis:\n  weights:\n    jaccard: 0.5\n    levenshtein: 0.5\n    keyword: 0.5\n",
		"tier order":           "analysis:\n  tiers:\n    medium: 0.9\n    high: 0.8\n",
		"ai level order":       "analysis:\n  ai_levels:\n    medium: 80\n    high: 70\n",
		"unknown driver":       "database:\n  driver: mysql\n",
		"sqlite without dsn":   "exam_store:\n  driver: sqlite\n",
		"redis without addr":   "redis:\n  enabled: true\n  address: \"\"\n",
		"minio without bucket": "snapshot:\n  minio:\n    enabled: true\n    bucket: \"\"\n",
		"bad pushgateway url":  "metrics:\n  pushgateway_url: not a url\n",
		"unknown log level":    "logging:\n  level: verbose\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidateAcceptsWeightRoundingError(t *testing.T) {
	cfg, err := Load(writeConfig(t, "analysis:\n  weights:\n    jaccard: 0.1\n    levenshtein: 0.2\n    keyword: 0.7\n"))
	require.NoError(t, err)
	require.InDelta(t, 1.0, cfg.Analysis.Weights.Jaccard+cfg.Analysis.Weights.Levenshtein+cfg.Analysis.Weights.Keyword, 1e-9)
}
