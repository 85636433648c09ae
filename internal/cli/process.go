package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/achievements/internal/achievement"
	"github.com/roach88/achievements/internal/processor"
)

// ProcessOptions holds flags for the process command.
type ProcessOptions struct {
	*RootOptions
	Event string
}

// ProcessResult is the JSON payload of a processing run.
type ProcessResult struct {
	Status       string              `json:"status"`
	RunID        string              `json:"run_id,omitempty"`
	Events       []achievement.Event `json:"events"`
	Skipped      []int64             `json:"skipped,omitempty"`
	DecisionHash string              `json:"decision_hash,omitempty"`
	Platinum     bool                `json:"platinum,omitempty"`
}

// NewProcessCommand creates the process command.
func NewProcessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProcessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process one workout event",
		Long: `Runs the processor once for a workout event given as JSON.

The event has the same shape as the HTTP body:
  {"userId":7,"periodId":1,"workoutId":10,"workoutDate":"2024-01-02T09:40:00Z","achievementIds":[1,2]}

Exit status is 1 when processing fails or the user's lock is held.`,
		Example: `  # Process an inline event
  achievements process --event '{"userId":7,"periodId":1,"workoutId":10,"workoutDate":"2024-01-02T09:40:00Z","achievementIds":[1]}'

  # Read the event from stdin
  cat event.json | achievements process --event - --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Event, "event", "", "event JSON, or - to read stdin")
	_ = cmd.MarkFlagRequired("event")

	return cmd
}

func runProcess(cmd *cobra.Command, opts *ProcessOptions) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	raw := []byte(opts.Event)
	if opts.Event == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read event", err)
		}
		raw = data
	}

	in, err := achievement.DecodeInput(raw)
	if err != nil {
		_ = formatter.Error(string(processor.ErrCodeInvalidInput), err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid event", err)
	}

	a, err := newApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.processor(nil).Process(cmd.Context(), in)
	if err != nil {
		var pe *processor.Error
		if errors.As(err, &pe) {
			_ = formatter.Error(string(pe.Code), pe.Error(), map[string]any{
				"user_id":   pe.UserID,
				"period_id": pe.PeriodID,
			})
			return WrapExitError(ExitFailure, "processing failed", err)
		}
		_ = formatter.Error("PROCESS_FAILED", err.Error(), nil)
		return WrapExitError(ExitFailure, "processing failed", err)
	}

	out := ProcessResult{
		Status:       string(res.Status),
		RunID:        res.RunID,
		Events:       res.Events,
		Skipped:      res.Skipped,
		DecisionHash: res.DecisionHash,
		Platinum:     res.Platinum,
	}
	if out.Events == nil {
		out.Events = []achievement.Event{}
	}
	if err := formatter.Success(out, formatProcessResult(out)); err != nil {
		return err
	}

	if res.Status == processor.StatusConflict {
		return NewExitError(ExitFailure, "user lock held; redeliver the event")
	}
	return nil
}

func formatProcessResult(r ProcessResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Status: %s\n", r.Status)
	if r.RunID != "" {
		fmt.Fprintf(&sb, "Run: %s\n", r.RunID)
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&sb, "Skipped: %v\n", r.Skipped)
	}
	if r.Platinum {
		sb.WriteString("Platinum unlocked\n")
	}
	fmt.Fprintf(&sb, "Events (%d):", len(r.Events))
	for _, e := range r.Events {
		fmt.Fprintf(&sb, "\n  %s achievement=%d", e.Type, e.AchievementID)
		if e.Quantity != nil {
			fmt.Fprintf(&sb, " quantity=%d", *e.Quantity)
		}
	}
	return sb.String()
}
