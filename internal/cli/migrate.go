package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Opens the configured database and applies the schema.

Safe to run repeatedly; every other command also applies the schema on
open.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:  rootOpts.Format,
				Writer:  cmd.OutOrStdout(),
				Verbose: rootOpts.Verbose,
			}

			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			st, err := openStore(cfg)
			if err != nil {
				_ = formatter.Error("MIGRATE_FAILED", err.Error(), nil)
				return err
			}
			defer st.Close()

			if err := st.Ping(cmd.Context()); err != nil {
				return WrapExitError(ExitCommandError, "database unavailable", err)
			}
			return formatter.Success(
				map[string]string{"driver": cfg.DBDriver, "dialect": string(st.Dialect())},
				fmt.Sprintf("Schema up to date (%s)", st.Dialect()),
			)
		},
	}
	return cmd
}
