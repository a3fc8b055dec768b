package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifeapp/lifecycle-backend/internal/app"
	"github.com/lifeapp/lifecycle-backend/internal/modules/lifecycle"
)

var backfillFlags struct {
	limit  int
	dryRun bool
	delay  time.Duration
}

var backfillCmd = &cobra.Command{
	Use:   "backfill-summaries",
	Short: "Generate every missing summary batch",
	Long: `Finds scopes with at least one uncovered batch and generates the missing
batches in order. Safe to rerun: only uncovered boundaries are generated.`,
	RunE: runBackfill,
}

func init() {
	f := backfillCmd.Flags()
	f.IntVar(&backfillFlags.limit, "limit", 0, "maximum number of scopes to process")
	f.BoolVar(&backfillFlags.dryRun, "dry-run", false, "print the plan without generating")
	f.DurationVar(&backfillFlags.delay, "delay", -1, "minimum spacing between generated summaries (default from config)")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		delay := backfillFlags.delay
		if delay < 0 {
			delay = a.Cfg.Backfill.Delay
		}
		out, err := a.Services.Lifecycle.BackfillSummaries(ctx, lifecycle.BackfillInput{
			Limit:  backfillFlags.limit,
			DryRun: backfillFlags.dryRun,
			Delay:  delay,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), out)
		}
		w := cmd.OutOrStdout()
		for _, p := range out.Plans {
			label := "plan"
			if backfillFlags.dryRun {
				label = "[dry-run]"
			}
			scope := "*"
			if p.UserID != nil {
				scope = p.UserID.String()
			}
			dimColor.Fprintf(w, "%s ", label)
			fmt.Fprintf(w, "product=%s user=%s visible=%d covered=%d boundaries=%v\n", p.ProductID, scope, p.VisibleSteps, p.CoveredUpTo, p.Boundaries)
		}
		okColor.Fprintf(w, "done; ")
		fmt.Fprintf(w, "scanned=%d pending=%d created=%d", out.ScopesScanned, out.ScopesPending, out.SummariesCreated)
		if out.ScopesFailed > 0 {
			warnColor.Fprintf(w, " failed=%d", out.ScopesFailed)
		}
		fmt.Fprintln(w)
		return nil
	})
}
