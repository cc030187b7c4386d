package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/database"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var (
		source string
		force  int
	)

	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or roll back result store migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) > 0 {
				direction = args[0]
			}

			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}

			db, err := database.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}

			migrator, err := database.NewMigrator(db, cfg.Database.Driver, source)
			if err != nil {
				db.Close()
				return err
			}
			defer migrator.Close()

			if cmd.Flags().Changed("force") {
				if err := migrator.Force(force); err != nil {
					return err
				}
				log.Warn().Int("version", force).Msg("Migration version forced")
			}

			switch direction {
			case "up":
				if err := migrator.Up(); err != nil {
					return err
				}
				log.Info().Msg("Migrations applied successfully")
			case "down":
				if err := migrator.Down(); err != nil {
					return err
				}
				log.Info().Msg("Migrations rolled back successfully")
			}

			version, dirty, err := migrator.Version()
			if err != nil {
				return fmt.Errorf("failed to read migration version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", database.DefaultMigrationsURL, "Migration source URL")
	cmd.Flags().IntVar(&force, "force", 0, "Force the schema version before migrating (clears a dirty state)")

	return cmd
}
