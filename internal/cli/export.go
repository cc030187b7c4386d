package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/app"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored report as JSON or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), cfg, log, app.ModeExport)
			if err != nil {
				return err
			}
			defer application.Shutdown(cmd.Context())

			data, _, fileName, err := application.Reports().Export(cmd.Context(), format)
			if err != nil {
				return err
			}

			if output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if output == "" {
				output = fileName
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}

			log.Info().Str("path", output).Int("bytes", len(data)).Msg("Report exported")
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format: json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, '-' for stdout (default integrity-report-DATE.FORMAT)")

	return cmd
}
