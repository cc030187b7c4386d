package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

type deadlineRunner struct {
	hadDeadline bool
	err         error
}

func (r *deadlineRunner) Run(ctx context.Context) (*models.AnalysisReport, error) {
	_, r.hadDeadline = ctx.Deadline()
	if r.err != nil {
		return nil, r.err
	}
	return &models.AnalysisReport{ID: "run-1"}, nil
}

func TestBoundedRunnerAppliesTimeoutAndPushes(t *testing.T) {
	inner := &deadlineRunner{}
	runner := newBoundedRunner(inner, time.Minute, "http://pushgateway:9091", "integrity", zerolog.Nop())

	var pushedURL, pushedJob string
	runner.push = func(_ context.Context, url, job string) error {
		pushedURL, pushedJob = url, job
		return nil
	}

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-1", report.ID)
	require.True(t, inner.hadDeadline)
	require.Equal(t, "http://pushgateway:9091", pushedURL)
	require.Equal(t, "integrity", pushedJob)
}

func TestBoundedRunnerPushesAfterFailedRun(t *testing.T) {
	inner := &deadlineRunner{err: errors.New("data access failed")}
	runner := newBoundedRunner(inner, 0, "http://pushgateway:9091", "integrity", zerolog.Nop())

	pushes := 0
	runner.push = func(context.Context, string, string) error {
		pushes++
		return errors.New("gateway down")
	}

	_, err := runner.Run(context.Background())
	require.ErrorContains(t, err, "data access failed")
	require.False(t, inner.hadDeadline)
	require.Equal(t, 1, pushes)
}

func TestBoundedRunnerWithoutPushgateway(t *testing.T) {
	runner := newBoundedRunner(&deadlineRunner{}, time.Minute, "", "integrity", zerolog.Nop())
	runner.push = func(context.Context, string, string) error {
		t.Fatal("push without a configured gateway")
		return nil
	}

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
}
