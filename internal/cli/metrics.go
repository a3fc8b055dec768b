package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lifeapp/lifecycle-backend/internal/app"
)

var metricsServe bool

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print or serve Prometheus metrics",
	Long:  `Prints the metrics registry once, or with --serve exposes /metrics on METRICS_ADDR until interrupted.`,
	RunE:  runMetrics,
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsServe, "serve", false, "serve /metrics until interrupted")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if a.Metrics == nil {
			warnColor.Fprintln(cmd.ErrOrStderr(), "metrics disabled; set METRICS_ENABLED=1")
			return nil
		}
		if !metricsServe {
			return a.Metrics.WritePrometheus(cmd.OutOrStdout())
		}
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		a.ServeMetrics(ctx)
		infoColor.Fprintf(cmd.OutOrStdout(), "serving metrics on %s\n", a.Cfg.Metrics.Addr)
		<-ctx.Done()
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	})
}
