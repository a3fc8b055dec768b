package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lifeapp/lifecycle-backend/internal/app"
	"github.com/lifeapp/lifecycle-backend/internal/modules/lifecycle"
)

func main() {
	var dryRun bool
	var limit int
	var delay time.Duration
	flag.BoolVar(&dryRun, "dry-run", false, "print planned batches without generating")
	flag.IntVar(&limit, "limit", 0, "limit number of scopes processed")
	flag.DurationVar(&delay, "delay", -1, "minimum spacing between summaries (default from config)")
	flag.Parse()

	ctx := context.Background()
	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if delay < 0 {
		delay = application.Cfg.Backfill.Delay
	}
	out, err := application.Services.Lifecycle.BackfillSummaries(ctx, lifecycle.BackfillInput{
		Limit:  limit,
		DryRun: dryRun,
		Delay:  delay,
	})
	if err != nil {
		fmt.Printf("backfill: %v\n", err)
		os.Exit(1)
	}
	if dryRun {
		printPlans(os.Stdout, out.Plans)
	}
	fmt.Printf("done; scanned=%d pending=%d created=%d failed=%d\n", out.ScopesScanned, out.ScopesPending, out.SummariesCreated, out.ScopesFailed)
}

func printPlans(w io.Writer, plans []lifecycle.ScopePlan) {
	for _, p := range plans {
		user := "*"
		if p.UserID != nil {
			user = p.UserID.String()
		}
		fmt.Fprintf(w, "[dry-run] product_id=%s user_id=%s covered=%d boundaries=%v\n", p.ProductID, user, p.CoveredUpTo, p.Boundaries)
	}
}
