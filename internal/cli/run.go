package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/app"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one batch analysis and replace the stored report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			application, err := app.New(ctx, cfg, log, app.ModeRun)
			if err != nil {
				return err
			}
			defer application.Shutdown(context.Background())

			report, err := application.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("analysis run failed: %w", err)
			}

			stats := report.Stats
			fmt.Fprintf(cmd.OutOrStdout(),
				"Report %s: %d exams, %d comparisons, %d similarity matches (%d high risk), %d students flagged, partial=%t\n",
				report.ID, stats.TotalExams, stats.TotalComparisons, stats.SuspiciousSimilarities,
				stats.HighRiskPairs, stats.SuspiciousAI, stats.IsPartialResults,
			)
			return nil
		},
	}
}
