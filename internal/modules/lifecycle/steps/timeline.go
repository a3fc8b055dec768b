package steps

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

// GetComprehensiveTimeline pairs the latest summary with every visible step after it.
func GetComprehensiveTimeline(ctx context.Context, deps Deps, productID uuid.UUID, userID *uuid.UUID) (Timeline, error) {
	const op = "Lifecycle.Timeline"
	deps, err := deps.prepare(op)
	if err != nil {
		return Timeline{}, err
	}
	if productID == uuid.Nil {
		return Timeline{}, domainagg.NewError(domainagg.CodeValidation, op, "missing product_id", nil)
	}
	scope := scopeOf(productID, userID)
	dbc := dbctx.Context{Ctx: ctx}

	latest, err := deps.Summaries.GetLatest(dbc, scope.Key())
	if err != nil {
		return Timeline{}, fmt.Errorf("load latest summary: %w", err)
	}
	covered := 0
	if latest != nil {
		covered = latest.StepCountEnd
	}
	recent, err := deps.Steps.ListVisibleAfter(dbc, scope, covered)
	if err != nil {
		return Timeline{}, fmt.Errorf("load recent steps: %w", err)
	}
	return Timeline{
		LatestSummary:       latest,
		RecentSteps:         recent,
		TotalStepsProcessed: covered,
		PendingStepsCount:   len(recent),
	}, nil
}
