package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/observability"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service"
)

const pushTimeout = 10 * time.Second

// boundedRunner applies the analysis timeout to every run and pushes the run
// metrics afterwards when a Pushgateway is configured. Both batch runs and
// queue-triggered runs go through it.
type boundedRunner struct {
	runner  service.AnalysisRunner
	timeout time.Duration
	pushURL string
	jobName string
	logger  zerolog.Logger
	push    func(ctx context.Context, url, job string) error
}

func newBoundedRunner(runner service.AnalysisRunner, timeout time.Duration, pushURL, jobName string, logger zerolog.Logger) *boundedRunner {
	return &boundedRunner{
		runner:  runner,
		timeout: timeout,
		pushURL: pushURL,
		jobName: jobName,
		logger:  logger,
		push:    observability.Push,
	}
}

func (r *boundedRunner) Run(ctx context.Context) (*models.AnalysisReport, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	report, err := r.runner.Run(ctx)

	if r.pushURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if pushErr := r.push(pushCtx, r.pushURL, r.jobName); pushErr != nil {
			r.logger.Warn().Err(pushErr).Msg("Failed to push run metrics")
		}
	}

	return report, err
}
