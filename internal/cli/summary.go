package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifeapp/lifecycle-backend/internal/app"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Generate or rebuild lifecycle summaries",
}

var summaryFlags struct {
	user string
	upTo int
}

var summaryGenerateCmd = &cobra.Command{
	Use:   "generate <product-id>",
	Short: "Summarize the batch ending at --up-to, or the latest complete batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummaryGenerate,
}

var summaryRegenerateCmd = &cobra.Command{
	Use:   "regenerate <product-id>",
	Short: "Delete and rebuild every summary of a scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummaryRegenerate,
}

func init() {
	for _, c := range []*cobra.Command{summaryGenerateCmd, summaryRegenerateCmd} {
		c.Flags().StringVar(&summaryFlags.user, "user", "", "user id for a user-scoped summary")
	}
	summaryGenerateCmd.Flags().IntVar(&summaryFlags.upTo, "up-to", 0, "batch end position; 0 picks the latest complete batch")
	summaryCmd.AddCommand(summaryGenerateCmd, summaryRegenerateCmd)
	rootCmd.AddCommand(summaryCmd)
}

func runSummaryGenerate(cmd *cobra.Command, args []string) error {
	productID, err := parseID("product id", args[0])
	if err != nil {
		return err
	}
	userID, err := parseOptionalID("user id", summaryFlags.user)
	if err != nil {
		return err
	}
	var upTo *int
	if summaryFlags.upTo > 0 {
		upTo = &summaryFlags.upTo
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		s, err := a.Services.Lifecycle.GenerateSummary(ctx, productID, userID, upTo)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), s)
		}
		w := cmd.OutOrStdout()
		if s == nil {
			dimColor.Fprintln(w, "no complete batch to summarize")
			return nil
		}
		okColor.Fprintf(w, "summary ")
		fmt.Fprintf(w, "%s steps %d-%d fallback=%v\n  %s\n", s.ID, s.StepCountStart, s.StepCountEnd, s.IsFallback, s.Summary)
		return nil
	})
}

func runSummaryRegenerate(cmd *cobra.Command, args []string) error {
	productID, err := parseID("product id", args[0])
	if err != nil {
		return err
	}
	userID, err := parseOptionalID("user id", summaryFlags.user)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		out, err := a.Services.Lifecycle.RegenerateAll(ctx, productID, userID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), out)
		}
		w := cmd.OutOrStdout()
		okColor.Fprintf(w, "regenerated %d summaries\n", len(out))
		for _, s := range out {
			fmt.Fprintf(w, "  steps %d-%d fallback=%v\n", s.StepCountStart, s.StepCountEnd, s.IsFallback)
		}
		return nil
	})
}
