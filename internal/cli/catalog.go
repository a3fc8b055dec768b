package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifeapp/lifecycle-backend/internal/app"
)

var reindexFlags struct {
	model string
	batch int
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Load every embedded product into the Qdrant index",
	Long: `Upserts the name vectors of all products embedded with the given model into
the Qdrant product index. Run it after enabling Qdrant on an existing catalog.`,
	RunE: runReindex,
}

var scansFlags struct {
	limit int
}

var scansCmd = &cobra.Command{
	Use:   "scans <product-id>",
	Short: "List the scans merged into a product",
	Args:  cobra.ExactArgs(1),
	RunE:  runScans,
}

func init() {
	reindexCmd.Flags().StringVar(&reindexFlags.model, "model", "", "embedding model (default: the configured embedder's)")
	reindexCmd.Flags().IntVar(&reindexFlags.batch, "batch", 0, "products per upsert (default: resolver page size)")
	scansCmd.Flags().IntVar(&scansFlags.limit, "limit", 100, "maximum scans to list")
	rootCmd.AddCommand(reindexCmd, scansCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		batch := reindexFlags.batch
		if batch <= 0 {
			batch = a.Cfg.Resolver.PageSize
		}
		out, err := a.Services.Catalog.Reindex(ctx, reindexFlags.model, batch)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), out)
		}
		w := cmd.OutOrStdout()
		okColor.Fprintf(w, "reindexed ")
		fmt.Fprintf(w, "%d products in %d batches (model=%s)\n", out.Indexed, out.Batches, out.Model)
		return nil
	})
}

func runScans(cmd *cobra.Command, args []string) error {
	productID, err := parseID("product id", args[0])
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		scans, err := a.Services.Catalog.ListScans(ctx, productID, scansFlags.limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), scans)
		}
		w := cmd.OutOrStdout()
		if len(scans) == 0 {
			dimColor.Fprintln(w, "no scans")
			return nil
		}
		for _, sc := range scans {
			dimColor.Fprintf(w, "%s ", sc.CreatedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(w, "eco=%d confidence=%.2f", sc.EcoScore, sc.Confidence)
			if sc.Similarity != nil {
				fmt.Fprintf(w, " similarity=%.3f", *sc.Similarity)
			}
			fmt.Fprintf(w, " %s\n", sc.SourceURL)
		}
		return nil
	})
}
