package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifeapp/lifecycle-backend/internal/app"
)

var timelineFlags struct {
	user string
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <product-id>",
	Short: "Show the latest summary and the steps after it",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimeline,
}

func init() {
	timelineCmd.Flags().StringVar(&timelineFlags.user, "user", "", "user id for a user-scoped timeline")
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	productID, err := parseID("product id", args[0])
	if err != nil {
		return err
	}
	userID, err := parseOptionalID("user id", timelineFlags.user)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		tl, err := a.Services.Lifecycle.GetComprehensiveTimeline(ctx, productID, userID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), tl)
		}
		w := cmd.OutOrStdout()
		if s := tl.LatestSummary; s != nil {
			infoColor.Fprintf(w, "summary of steps %d-%d", s.StepCountStart, s.StepCountEnd)
			dimColor.Fprintf(w, " (model=%s confidence=%.2f)\n", s.ModelUsed, s.Confidence)
			fmt.Fprintf(w, "  %s\n", s.Summary)
			for _, ev := range s.KeyEventList() {
				fmt.Fprintf(w, "  - %s\n", ev)
			}
		} else {
			dimColor.Fprintln(w, "no summary yet")
		}
		fmt.Fprintf(w, "\n%d processed, %d pending\n", tl.TotalStepsProcessed, tl.PendingStepsCount)
		for _, st := range tl.RecentSteps {
			dimColor.Fprintf(w, "%4d %s ", st.Seq, st.CreatedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(w, "[%s] %s\n", st.StepType, st.Title)
		}
		return nil
	})
}
