package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/achievements/internal/catalog"
)

// SeedResult is the JSON payload of a seed run.
type SeedResult struct {
	Periods      int `json:"periods"`
	Achievements int `json:"achievements"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <catalog>",
		Short: "Load a catalog into the database",
		Long: `Validates a CUE catalog and upserts its periods and achievements.

Seeding is idempotent: entries that already exist are overwritten.`,
		Example: `  # Seed the default SQLite database
  achievements seed ./catalog/season.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runSeed(cmd *cobra.Command, opts *RootOptions, path string) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	c, err := catalog.Load(path)
	if err != nil {
		return reportCatalogError(formatter, err)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := catalog.Seed(cmd.Context(), st, c); err != nil {
		_ = formatter.Error("SEED_FAILED", err.Error(), nil)
		return WrapExitError(ExitFailure, "seed failed", err)
	}
	opts.logger().Debug("catalog seeded", "path", path, "driver", cfg.DBDriver)

	result := SeedResult{Periods: len(c.Periods), Achievements: len(c.Definitions)}
	return formatter.Success(result, fmt.Sprintf("Seeded %d periods and %d achievements", result.Periods, result.Achievements))
}
