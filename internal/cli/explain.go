package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/evaluator"
	"github.com/roach88/achievements/internal/processor"
	"github.com/roach88/achievements/internal/querysql"
	"github.com/roach88/achievements/internal/rules"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Achievement int64
	Period      int64
	User        int64
	Workout     int64
	Date        string
	Evaluate    bool
}

// ExplainResult shows how one definition compiles for an event.
type ExplainResult struct {
	AchievementID int64           `json:"achievement_id"`
	Name          string          `json:"name"`
	Operators     []string        `json:"operators"`
	Warnings      []string        `json:"warnings,omitempty"`
	SQL           string          `json:"sql"`
	Args          []any           `json:"args"`
	RequiredKeys  []string        `json:"required_keys,omitempty"`
	Evaluation    *ExplainOutcome `json:"evaluation,omitempty"`
}

// ExplainOutcome is the evaluation of the explained definition.
type ExplainOutcome struct {
	Complete bool        `json:"complete"`
	Progress float64     `json:"progress"`
	Rows     []rules.Row `json:"rows"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show the compiled query for an achievement",
		Long: `Compiles one achievement definition for a user, period and workout date
and prints the applied operators, the SQL with its parameters and, for
frequency rules, the calendar keys that must be covered.

With --evaluate the query is also run against the database and the
completeness and progress are printed. Nothing is written.`,
		Example: `  # Show the query for achievement 2 in period 1
  achievements explain --achievement 2 --period 1 --user 7 --date 2024-01-03T10:00:00Z

  # Evaluate it as well
  achievements explain --achievement 2 --period 1 --user 7 --evaluate --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.Achievement, "achievement", 0, "achievement id (required)")
	cmd.Flags().Int64Var(&opts.Period, "period", 0, "period id (required)")
	cmd.Flags().Int64Var(&opts.User, "user", 0, "user id")
	cmd.Flags().Int64Var(&opts.Workout, "workout", 0, "workout id")
	cmd.Flags().StringVar(&opts.Date, "date", "", "workout date (RFC 3339), defaults to the period start")
	cmd.Flags().BoolVar(&opts.Evaluate, "evaluate", false, "run the query and report the outcome")
	_ = cmd.MarkFlagRequired("achievement")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

func runExplain(cmd *cobra.Command, opts *ExplainOptions) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	ctx := cmd.Context()

	if opts.Evaluate && opts.User <= 0 {
		return NewExitError(ExitCommandError, "--evaluate requires --user")
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	period, err := st.GetPeriod(ctx, opts.Period)
	if err != nil {
		_ = formatter.Error(string(processor.ErrCodePeriodNotFound), err.Error(), nil)
		return WrapExitError(ExitFailure, "period not found", err)
	}
	def, err := st.GetDefinition(ctx, opts.Achievement)
	if err != nil {
		_ = formatter.Error("ACHIEVEMENT_NOT_FOUND", err.Error(), nil)
		return WrapExitError(ExitFailure, "achievement not found", err)
	}
	if def.IsPlatinum() {
		_ = formatter.Error("PLATINUM", "the platinum achievement has no rule query", nil)
		return NewExitError(ExitFailure, "platinum achievement cannot be explained")
	}

	date := period.StartAt
	if opts.Date != "" {
		date, err = time.Parse(time.RFC3339, opts.Date)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --date", err)
		}
	}

	ro := rules.Options{
		Definition: def,
		Period:     period,
		Input: achievement.Input{
			AchievementIDs: []int64{def.ID},
			WorkoutDate:    date.UTC(),
			UserID:         opts.User,
			PeriodID:       period.ID,
			WorkoutID:      opts.Workout,
		},
	}
	compiled, err := rules.Compile(ro)
	if err != nil {
		_ = formatter.Error("COMPILE_FAILED", err.Error(), nil)
		return WrapExitError(ExitFailure, "rule compilation failed", err)
	}

	query, args, err := querysql.NewSQLCompiler(st.Dialect()).Compile(compiled.Aggregate)
	if err != nil {
		_ = formatter.Error("COMPILE_FAILED", err.Error(), nil)
		return WrapExitError(ExitFailure, "query compilation failed", err)
	}

	result := ExplainResult{
		AchievementID: def.ID,
		Name:          def.Name,
		Operators:     compiled.Operators,
		Warnings:      compiled.Warnings,
		SQL:           query,
		Args:          args,
		RequiredKeys:  rules.RequiredKeys(ro),
	}

	if opts.Evaluate {
		eval := evaluator.New(st, st.Dialect(),
			evaluator.WithBatching(false),
			evaluator.WithLogger(opts.logger()),
		)
		outcomes, err := eval.Evaluate(ctx, []evaluator.Candidate{{Definition: def, Compiled: compiled}})
		if err != nil {
			_ = formatter.Error("EVALUATION_FAILED", err.Error(), nil)
			return WrapExitError(ExitFailure, "evaluation failed", err)
		}
		o := outcomes[0]
		rows := o.Rows
		if rows == nil {
			rows = []rules.Row{}
		}
		result.Evaluation = &ExplainOutcome{Complete: o.Complete, Progress: o.Progress, Rows: rows}
	}

	return formatter.Success(result, formatExplainResult(result))
}

func formatExplainResult(r ExplainResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Achievement %d: %s\n", r.AchievementID, r.Name)
	fmt.Fprintf(&sb, "Operators: %s\n", strings.Join(r.Operators, ", "))
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "Warning: %s\n", w)
	}
	fmt.Fprintf(&sb, "SQL:\n  %s\n", r.SQL)
	fmt.Fprintf(&sb, "Args: %v", r.Args)
	if len(r.RequiredKeys) > 0 {
		fmt.Fprintf(&sb, "\nRequired keys (%d): %s", len(r.RequiredKeys), strings.Join(r.RequiredKeys, " "))
	}
	if e := r.Evaluation; e != nil {
		fmt.Fprintf(&sb, "\nComplete: %t\nProgress: %v\nRows: %d", e.Complete, e.Progress, len(e.Rows))
	}
	return sb.String()
}
