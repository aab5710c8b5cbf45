package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"letter-portal/storage/postgres"
)

// NewSeedCommand creates the seed command, which loads the organizational
// directory from a YAML file.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "seed <directory.yaml>",
		Short: "Upsert departments, divisions and deputies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := postgres.LoadDirectorySeed(args[0])
			if err != nil {
				return err
			}

			b, err := newBootstrap(rootOpts)
			if err != nil {
				return err
			}
			defer b.close()

			if migrate {
				if err := postgres.Migrate(b.db); err != nil {
					return err
				}
			}
			if err := postgres.NewDirectoryRepo(b.db).Upsert(cmd.Context(), seed); err != nil {
				return err
			}

			b.logger.Info("Directory seeded",
				zap.Int("departments", len(seed.Departments)),
				zap.Int("divisions", len(seed.Divisions)),
				zap.Int("deputies", len(seed.Deputies)))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d departments, %d divisions, %d deputies\n",
				len(seed.Departments), len(seed.Divisions), len(seed.Deputies))
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "run schema migration first")
	return cmd
}
