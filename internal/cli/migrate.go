package cli

import (
	"github.com/spf13/cobra"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "up",
		Short:        "Apply all pending migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(opts, func(b Backend) error {
				if err := b.MigrateUp(); err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), opts, map[string]string{"migrated": "up"}, "migrated up")
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "down",
		Short:        "Roll back every migration, dropping all data",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(opts, func(b Backend) error {
				if err := b.MigrateDown(); err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), opts, map[string]string{"migrated": "down"}, "migrated down")
			})
		},
	})

	return cmd
}
