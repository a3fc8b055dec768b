package steps

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/observability"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

// RegenerateAll drops the scope's summaries and rebuilds every complete batch in order.
func RegenerateAll(ctx context.Context, deps Deps, productID uuid.UUID, userID *uuid.UUID) ([]*types.LifecycleSummary, error) {
	const op = "Lifecycle.RegenerateAll"
	deps, err := deps.prepare(op)
	if err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing product_id", nil)
	}
	scope := scopeOf(productID, userID)

	deleted, err := deps.Lifecycle.DeleteSummaries(ctx, productID, scope.UserID)
	if err != nil {
		observability.Current().IncRegeneration("error")
		return nil, err
	}
	out, err := rebuild(ctx, deps, productID, scope.UserID)
	if err != nil {
		observability.Current().IncRegeneration("error")
		return out, err
	}
	observability.Current().IncRegeneration("success")
	deps.Log.Info("scope regenerated", "scope", scope.Key(), "deleted", deleted, "created", len(out))
	return out, nil
}

func rebuild(ctx context.Context, deps Deps, productID uuid.UUID, userID *uuid.UUID) ([]*types.LifecycleSummary, error) {
	total, err := deps.Steps.CountVisible(dbctx.Context{Ctx: ctx}, scopeOf(productID, userID))
	if err != nil {
		return nil, fmt.Errorf("count visible steps: %w", err)
	}
	batch := deps.Config.BatchSize
	out := make([]*types.LifecycleSummary, 0, total/batch)
	for k := 1; k <= total/batch; k++ {
		end := k * batch
		s, err := GenerateSummary(ctx, deps, productID, userID, &end)
		if err != nil {
			return out, fmt.Errorf("regenerate batch ending at %d: %w", end, err)
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// SetStepVisibility toggles a step. A forced change inside a summarized range
// regenerates every invalidated scope; afterwards the step's scope is re-checked
// against the summary trigger.
func SetStepVisibility(ctx context.Context, deps Deps, in SetVisibilityInput) (SetVisibilityOutput, error) {
	const op = "Lifecycle.SetStepVisibility"
	deps, err := deps.prepare(op)
	if err != nil {
		return SetVisibilityOutput{}, err
	}
	res, err := deps.Lifecycle.SetStepVisibility(ctx, domainagg.SetStepVisibilityInput{
		StepID:  in.StepID,
		Visible: in.Visible,
		Force:   in.Force,
	})
	if err != nil {
		return SetVisibilityOutput{}, err
	}
	out := SetVisibilityOutput{Step: res.Step, Changed: res.Changed}
	if !res.Changed {
		return out, nil
	}
	invalidated := map[string]bool{}
	for _, sc := range res.Invalidated {
		key := types.ScopeKey(sc.ProductID, sc.UserID)
		invalidated[key] = true
		deps.Log.Warn("summaries invalidated by visibility change", "step_id", in.StepID, "scope", key)
		regenerated, err := rebuild(ctx, deps, sc.ProductID, sc.UserID)
		out.Regenerated = append(out.Regenerated, regenerated...)
		if err != nil {
			observability.Current().IncRegeneration("error")
			return out, err
		}
		observability.Current().IncRegeneration("success")
	}
	if !in.Visible {
		return out, nil
	}
	for _, sc := range scopesFor(res.Step.ProductID, res.Step.UserID) {
		if invalidated[sc.Key()] {
			continue
		}
		if s, ok := maybeSummarize(ctx, deps, sc.ProductID, sc.UserID); ok {
			out.Regenerated = append(out.Regenerated, s)
		}
	}
	return out, nil
}
