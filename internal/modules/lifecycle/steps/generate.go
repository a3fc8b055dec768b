package steps

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/observability"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/realtime"
)

const (
	opGenerate     = "Lifecycle.GenerateSummary"
	fallbackModel  = "fallback"
	summaryTimeout = 90 * time.Second
)

// GenerateSummary summarizes the batch of BatchSize visible steps ending at upTo.
// Summaries only ever cover whole batches, so:
//   - a nil upTo selects the last complete boundary, floor(count/BatchSize)*BatchSize,
//     not the current count;
//   - an upTo that is not a multiple of BatchSize is a validation error;
//   - when fewer visible steps than the boundary exist, nothing is stored and
//     the result is nil (a partial batch is never saved).
//
// If a summary already ends at the boundary it is returned without calling the model.
func GenerateSummary(ctx context.Context, deps Deps, productID uuid.UUID, userID *uuid.UUID, upTo *int) (out *types.LifecycleSummary, err error) {
	deps, err = deps.prepare(opGenerate)
	if err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, opGenerate, "missing product_id", nil)
	}
	scope := scopeOf(productID, userID)
	dbc := dbctx.Context{Ctx: ctx}
	batch := deps.Config.BatchSize

	end := 0
	if upTo != nil {
		end = *upTo
		if end <= 0 || end%batch != 0 {
			return nil, domainagg.NewError(domainagg.CodeValidation, opGenerate, fmt.Sprintf("step count %d is not a batch boundary of %d", end, batch), nil)
		}
	} else {
		count, err := deps.Steps.CountVisible(dbc, scope)
		if err != nil {
			return nil, fmt.Errorf("count visible steps: %w", err)
		}
		end = (count / batch) * batch
	}
	if end < 1 {
		return nil, nil
	}
	start := end - batch + 1
	if start < 1 {
		start = 1
	}

	ctx, span := observability.StartSpan(ctx, "lifecycle.generate_summary",
		attribute.String("lifecycle.scope", scope.Key()),
		attribute.Int("lifecycle.step_count_end", end),
	)
	defer func() { observability.EndSpan(span, err) }()
	dbc = dbctx.Context{Ctx: ctx}

	if existing, err := deps.Summaries.GetByEnd(dbc, scope.Key(), end); err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	} else if existing != nil {
		return existing, nil
	}

	steps, err := deps.Steps.ListVisibleRange(dbc, scope, start, end)
	if err != nil {
		return nil, fmt.Errorf("load steps: %w", err)
	}
	if len(steps) == 0 {
		return nil, nil
	}
	if len(steps) != end-start+1 {
		deps.Log.Warn("batch incomplete, skipping", "scope", scope.Key(), "start", start, "end", end, "loaded", len(steps))
		return nil, nil
	}

	previous, err := deps.Summaries.GetPrevious(dbc, scope.Key(), start)
	if err != nil {
		return nil, fmt.Errorf("load previous summary: %w", err)
	}
	product, err := deps.Products.GetByID(dbc, productID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}

	began := time.Now()
	resp, model, isFallback := summarize(ctx, deps, product, previous, steps, start, end)
	elapsed := time.Since(began)

	s := &types.LifecycleSummary{
		ProductID:          productID,
		UserID:             scope.UserID,
		StepCountStart:     start,
		StepCountEnd:       end,
		TotalStepsIncluded: end - start + 1,
		Summary:            resp.Summary,
		EcoScoreChange:     resp.EcoScoreChange,
		ProcessingTimeMs:   elapsed.Milliseconds(),
		ModelUsed:          model,
		IsFallback:         isFallback,
	}
	s.SetKeyEvents(resp.KeyEvents)
	s.SetMajorMilestones(resp.MajorMilestones)
	s.SetTrends(resp.Trends)
	s.SetTimeframe(timeframeOf(steps))
	switch {
	case isFallback:
		s.Confidence = deps.Config.FallbackConfidence
	case resp.Confidence != nil:
		s.Confidence = *resp.Confidence
	default:
		s.Confidence = 0.8
	}

	res, err := deps.Lifecycle.InsertSummary(ctx, domainagg.InsertSummaryInput{Summary: s})
	if err != nil {
		return nil, err
	}
	kind := "llm"
	if isFallback {
		kind = "fallback"
	}
	observability.Current().ObserveSummary(kind, elapsed)
	if res.Created {
		deps.Log.Info("summary created", "scope", scope.Key(), "start", start, "end", end, "fallback", isFallback, "took_ms", elapsed.Milliseconds())
		ev := realtime.NewEvent(realtime.EventSummaryCreated, productID, scope.UserID, map[string]any{
			"summary_id":       res.Summary.ID,
			"step_count_start": start,
			"step_count_end":   end,
			"is_fallback":      isFallback,
		})
		if perr := deps.Bus.Publish(ctx, ev); perr != nil {
			deps.Log.Warn("publish summary event failed", "error", perr)
		}
	}
	return res.Summary, nil
}

// summarize never fails: model errors and unusable answers degrade to the fallback.
func summarize(ctx context.Context, deps Deps, product *types.Product, previous *types.LifecycleSummary, batch []*types.LifecycleStep, start, end int) (summaryResponse, string, bool) {
	if deps.LLM == nil {
		return fallbackSummary(product, previous, batch), fallbackModel, true
	}
	system, user := promptSummarizeBatch(product, previous, batch, start, end)
	cctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()
	raw, err := deps.LLM.Complete(cctx, system, user)
	if err != nil {
		deps.Log.Warn("summary model failed, using fallback", "error", err, "start", start, "end", end)
		return fallbackSummary(product, previous, batch), fallbackModel, true
	}
	resp, err := parseSummaryResponse(raw, deps.Config.MaxListItems)
	if err != nil {
		deps.Log.Warn("summary model output unusable, using fallback", "error", err, "start", start, "end", end)
		return fallbackSummary(product, previous, batch), fallbackModel, true
	}
	return resp, deps.LLM.Model(), false
}

func timeframeOf(batch []*types.LifecycleStep) types.Timeframe {
	first := batch[0].CreatedAt
	last := batch[len(batch)-1].CreatedAt
	days := int(math.Ceil(last.Sub(first).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return types.Timeframe{StartDate: first, EndDate: last, DurationDays: days}
}
