package cli

import (
	"github.com/spf13/cobra"

	"letter-portal/storage/postgres"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrap(rootOpts)
			if err != nil {
				return err
			}
			defer b.close()

			if err := postgres.Migrate(b.db); err != nil {
				return err
			}
			b.logger.Info("Schema migrated")
			return nil
		},
	}
}
