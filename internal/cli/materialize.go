package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
)

type MaterializeOptions struct {
	*RootOptions
	Date string
}

// Runner is satisfied by *workers.MaterializeWorker.
type Runner interface {
	RunOnce(ctx context.Context, day domain.Date) (*services.MaterializationResult, error)
}

func NewMaterializeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MaterializeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Append the occurrences due on one day",
		Long: `Run the daily materialization once, outside the scheduler.

Runs are idempotent: slots already in the ledger are skipped. Use --date to
backfill a day the scheduler missed.

Examples:
  carectl materialize
  carectl materialize --date 2024-03-01 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := bootstrap(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			day, err := resolveDay(opts.Date, a.Clock)
			if err != nil {
				return err
			}
			return runMaterialize(ctx, a.Worker, day, opts.Format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "day to materialize (YYYY-MM-DD), default today in the reference timezone")

	return cmd
}

func resolveDay(raw string, clock domain.Clock) (domain.Date, error) {
	if raw == "" {
		return clock.Today(), nil
	}
	return domain.ParseDate(raw)
}

func runMaterialize(ctx context.Context, runner Runner, day domain.Date, format string, out io.Writer) error {
	result, err := runner.RunOnce(ctx, day)
	if err != nil {
		return fmt.Errorf("materialize %s: %w", day, err)
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "day:     %s\n", result.Day)
	fmt.Fprintf(out, "created: %d\n", len(result.Created))
	fmt.Fprintf(out, "skipped: %d\n", result.Skipped)
	fmt.Fprintf(out, "failed:  %d\n", result.Failed)
	for _, o := range result.Created {
		fmt.Fprintf(out, "  %s %s/%s user=%s\n", o.ID, o.PlantID, o.CareType, o.UserID)
	}
	if result.Failed > 0 {
		return fmt.Errorf("materialize %s: %d rules failed", day, result.Failed)
	}
	return nil
}
