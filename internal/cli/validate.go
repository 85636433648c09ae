package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/catalog"
	"github.com/roach88/achievements/internal/rules"
)

// ValidationResult is the JSON payload of a successful validation.
type ValidationResult struct {
	Valid        bool             `json:"valid"`
	Periods      int              `json:"periods"`
	Achievements int              `json:"achievements"`
	Warnings     []CatalogWarning `json:"warnings,omitempty"`
}

// CatalogWarning is a non-fatal rule compilation message.
type CatalogWarning struct {
	AchievementID int64  `json:"achievement_id"`
	Message       string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog>",
		Short: "Validate an achievement catalog",
		Long: `Validates a CUE catalog file or directory without touching the database.

Checks the catalog schema, duplicate ids, definition consistency and the
single active platinum rule, then compiles every active definition and
reports rule warnings.`,
		Example: `  # Validate a catalog file
  achievements validate ./catalog/season.cue

  # Validate with JSON output
  achievements validate ./catalog --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions, path string) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	c, err := catalog.Load(path)
	if err != nil {
		return reportCatalogError(formatter, err)
	}
	if errs := catalog.Validate(c); len(errs) > 0 {
		return reportCatalogError(formatter, errors.Join(errs...))
	}

	result := ValidationResult{
		Valid:        true,
		Periods:      len(c.Periods),
		Achievements: len(c.Definitions),
		Warnings:     compileWarnings(c),
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Catalog valid: %d periods, %d achievements", result.Periods, result.Achievements)
	for _, w := range result.Warnings {
		fmt.Fprintf(&sb, "\n  warning: achievement %d: %s", w.AchievementID, w.Message)
	}
	return formatter.Success(result, sb.String())
}

// compileWarnings compiles every active, non-platinum definition against
// the first period and collects rule warnings.
func compileWarnings(c *catalog.Catalog) []CatalogWarning {
	if len(c.Periods) == 0 {
		return nil
	}
	period := c.Periods[0]
	in := achievement.Input{PeriodID: period.ID, WorkoutDate: period.StartAt}

	var warnings []CatalogWarning
	for _, d := range c.Definitions {
		if !d.Active || d.IsPlatinum() {
			continue
		}
		compiled, err := rules.Compile(rules.Options{Definition: d, Period: period, Input: in})
		if err != nil {
			warnings = append(warnings, CatalogWarning{AchievementID: d.ID, Message: err.Error()})
			continue
		}
		for _, w := range compiled.Warnings {
			warnings = append(warnings, CatalogWarning{AchievementID: d.ID, Message: w})
		}
	}
	return warnings
}

// reportCatalogError prints a load or validation failure with its code
// and returns the matching exit error.
func reportCatalogError(formatter *OutputFormatter, err error) error {
	code := catalog.ErrCodeGeneric
	var ce *catalog.CompileError
	if errors.As(err, &ce) {
		code = ce.Code
	}
	_ = formatter.Error(code, err.Error(), nil)
	if code == catalog.ErrCodeNotFound {
		return WrapExitError(ExitCommandError, "catalog not found", err)
	}
	return WrapExitError(ExitFailure, "catalog invalid", err)
}
