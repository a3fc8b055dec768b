package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifeapp/lifecycle-backend/internal/app"
	"github.com/lifeapp/lifecycle-backend/internal/realtime"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the domain event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print events published on the Redis channel until interrupted",
	RunE:  runEventsTail,
}

func init() {
	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsTail(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if a.Clients.Redis == nil {
			return fmt.Errorf("events tail needs REDIS_ADDR")
		}
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		w := cmd.OutOrStdout()
		err := a.Clients.Bus.Subscribe(ctx, func(ev realtime.Event) {
			if jsonOutput {
				_ = printJSON(w, ev)
				return
			}
			dimColor.Fprintf(w, "%s ", ev.At.UTC().Format(time.RFC3339))
			infoColor.Fprintf(w, "%s ", ev.Type)
			fmt.Fprintf(w, "product=%s %s\n", ev.ProductID, string(ev.Data))
		})
		if err != nil {
			return err
		}
		infoColor.Fprintln(cmd.ErrOrStderr(), "listening; ctrl-c to stop")
		<-ctx.Done()
		return nil
	})
}
