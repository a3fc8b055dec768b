package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lifeapp/lifecycle-backend/internal/app"
	"github.com/lifeapp/lifecycle-backend/internal/modules/catalog"
)

var resolveFile string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve an analyzed page onto the catalog",
	Long: `Reads {"content": {...}, "analysis": {...}} from --file (or stdin) and either
rescans an exact duplicate, merges into a near-duplicate product or creates a new one.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveFile, "file", "f", "-", "JSON input file, - for stdin")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, _ []string) error {
	var r io.Reader = os.Stdin
	if resolveFile != "-" {
		f, err := os.Open(resolveFile)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	var in catalog.ResolveInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		out, err := a.Services.Catalog.Resolve(ctx, in)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), out)
		}
		w := cmd.OutOrStdout()
		switch {
		case !out.IsExisting:
			okColor.Fprintf(w, "created ")
		case out.Similarity != nil && *out.Similarity == 1:
			infoColor.Fprintf(w, "rescanned ")
		default:
			warnColor.Fprintf(w, "merged ")
		}
		fmt.Fprintf(w, "%s %q (scans=%d)", out.Product.ID, out.Product.CanonicalName, out.Product.ScanCount)
		if out.Similarity != nil {
			dimColor.Fprintf(w, " similarity=%.4f", *out.Similarity)
		}
		fmt.Fprintln(w)
		return nil
	})
}
