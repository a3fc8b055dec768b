package steps

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	"github.com/lifeapp/lifecycle-backend/internal/observability"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

const backfillPlanConcurrency = 8

// BackfillSummaries generates every missing batch boundary of scopes that fell
// behind. Only uncovered boundaries are planned, so an interrupted run can be
// restarted safely.
func BackfillSummaries(ctx context.Context, deps Deps, in BackfillInput) (BackfillOutput, error) {
	const op = "Lifecycle.BackfillSummaries"
	deps, err := deps.prepare(op)
	if err != nil {
		return BackfillOutput{}, err
	}
	log := deps.Log.With("op", "backfill")

	scopes, err := deps.Steps.ListScopes(dbctx.Context{Ctx: ctx}, 0)
	if err != nil {
		return BackfillOutput{}, fmt.Errorf("list scopes: %w", err)
	}
	scopes = withProductScopes(scopes)

	plans, err := planBackfill(ctx, deps, scopes)
	if err != nil {
		return BackfillOutput{}, err
	}
	out := BackfillOutput{ScopesScanned: len(scopes), ScopesPending: len(plans)}
	if in.Limit > 0 && len(plans) > in.Limit {
		plans = plans[:in.Limit]
	}
	out.Plans = plans
	if in.DryRun {
		log.Info("backfill dry run", "scanned", out.ScopesScanned, "pending", out.ScopesPending)
		return out, nil
	}

	var limiter *rate.Limiter
	if in.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(in.Delay), 1)
	}
	for _, plan := range plans {
		failed := false
		for _, end := range plan.Boundaries {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return out, err
				}
			}
			end := end
			s, err := GenerateSummary(ctx, deps, plan.ProductID, plan.UserID, &end)
			if err != nil {
				log.Error("backfill batch failed", "product_id", plan.ProductID, "user_id", plan.UserID, "end", end, "error", err)
				failed = true
				break
			}
			if s != nil {
				out.SummariesCreated++
			}
		}
		if failed {
			out.ScopesFailed++
			observability.Current().IncBackfillScope("failed")
			continue
		}
		observability.Current().IncBackfillScope("completed")
	}
	log.Info("backfill finished",
		"scanned", out.ScopesScanned,
		"pending", out.ScopesPending,
		"created", out.SummariesCreated,
		"failed", out.ScopesFailed,
	)
	return out, nil
}

// withProductScopes adds the product-wide scope of every product that only has
// user-scoped steps.
func withProductScopes(scopes []repos.Scope) []repos.Scope {
	seen := make(map[string]bool, len(scopes))
	out := make([]repos.Scope, 0, len(scopes))
	for _, sc := range scopes {
		for _, s := range scopesFor(sc.ProductID, sc.UserID) {
			if seen[s.Key()] {
				continue
			}
			seen[s.Key()] = true
			out = append(out, s)
		}
	}
	return out
}

func planBackfill(ctx context.Context, deps Deps, scopes []repos.Scope) ([]ScopePlan, error) {
	var (
		mu    sync.Mutex
		plans []ScopePlan
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillPlanConcurrency)
	for _, sc := range scopes {
		sc := sc
		g.Go(func() error {
			plan, err := planScope(gctx, deps, sc)
			if err != nil {
				return err
			}
			if len(plan.Boundaries) == 0 {
				return nil
			}
			mu.Lock()
			plans = append(plans, plan)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(plans, func(i, j int) bool {
		return scopeOf(plans[i].ProductID, plans[i].UserID).Key() < scopeOf(plans[j].ProductID, plans[j].UserID).Key()
	})
	return plans, nil
}

func planScope(ctx context.Context, deps Deps, sc repos.Scope) (ScopePlan, error) {
	dbc := dbctx.Context{Ctx: ctx}
	count, err := deps.Steps.CountVisible(dbc, sc)
	if err != nil {
		return ScopePlan{}, fmt.Errorf("count visible steps for %s: %w", sc.Key(), err)
	}
	latest, err := deps.Summaries.GetLatest(dbc, sc.Key())
	if err != nil {
		return ScopePlan{}, fmt.Errorf("load latest summary for %s: %w", sc.Key(), err)
	}
	plan := ScopePlan{ProductID: sc.ProductID, UserID: sc.UserID, VisibleSteps: count}
	if latest != nil {
		plan.CoveredUpTo = latest.StepCountEnd
	}
	batch := deps.Config.BatchSize
	for end := plan.CoveredUpTo + batch; end <= count; end += batch {
		plan.Boundaries = append(plan.Boundaries, end)
	}
	return plan, nil
}
