package steps

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/observability"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/realtime"
)

const opRecord = "Lifecycle.RecordStep"

var trackingNamespace = uuid.MustParse("3d0c8a4e-91b2-4f6e-8d57-6a1f0e2c9b44")

// TrackingIDFor derives the stable tracking relationship id of a scope.
func TrackingIDFor(productID uuid.UUID, userID *uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(trackingNamespace, []byte(types.ScopeKey(productID, userID)))
}

// RecordStep appends a step under the product row lock and then runs the
// summary trigger for the step's scope.
func RecordStep(ctx context.Context, deps Deps, in RecordStepInput) (RecordStepOutput, error) {
	deps, err := deps.prepare(opRecord)
	if err != nil {
		return RecordStepOutput{}, err
	}
	if in.ProductID == uuid.Nil {
		return RecordStepOutput{}, domainagg.NewError(domainagg.CodeValidation, opRecord, "missing product_id", nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return RecordStepOutput{}, domainagg.NewError(domainagg.CodeValidation, opRecord, "title is required", nil)
	}
	stepType := types.ParseStepType(in.StepType)
	priority := in.Priority
	if priority == 0 {
		priority = stepType.DefaultPriority()
	}
	if priority < 1 || priority > 10 {
		return RecordStepOutput{}, domainagg.NewError(domainagg.CodeValidation, opRecord, "priority must be within 1..10", nil)
	}
	userID := scopeOf(in.ProductID, in.UserID).UserID
	tracking := in.TrackingID
	if tracking == uuid.Nil {
		tracking = TrackingIDFor(in.ProductID, userID)
	}

	step := &types.LifecycleStep{
		ProductID:      in.ProductID,
		TrackingID:     tracking,
		UserID:         userID,
		StepType:       stepType,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Source:         types.ParseStepSource(in.Source),
		Priority:       priority,
		EcoScoreBefore: in.EcoBefore,
		EcoScoreAfter:  in.EcoAfter,
		PriceBefore:    in.PriceBefore,
		PriceAfter:     in.PriceAfter,
		Metadata:       in.Metadata.Encode(),
		IsVisible:      !in.Hidden,
		CreatedAt:      in.At,
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = deps.Now()
	}

	res, err := deps.Lifecycle.AppendStep(ctx, domainagg.AppendStepInput{Step: step})
	if err != nil {
		return RecordStepOutput{}, err
	}
	observability.Current().IncStepRecorded(string(stepType))
	deps.Log.Debug("step recorded", "product_id", in.ProductID, "user_id", userID, "seq", res.Step.Seq, "visible_count", res.VisibleCount)
	if perr := deps.Bus.Publish(ctx, realtime.NewEvent(realtime.EventStepRecorded, in.ProductID, userID, map[string]any{
		"step_id": res.Step.ID, "seq": res.Step.Seq, "step_type": stepType,
	})); perr != nil {
		deps.Log.Warn("publish step event failed", "error", perr)
	}

	out := RecordStepOutput{Step: res.Step}
	if !step.IsVisible {
		return out, nil
	}
	for _, sc := range scopesFor(in.ProductID, userID) {
		s, ok := maybeSummarize(ctx, deps, sc.ProductID, sc.UserID)
		if !ok {
			continue
		}
		out.Summarized = true
		if out.Summary == nil || sc.UserID != nil {
			out.Summary = s
		}
	}
	return out, nil
}

// scopesFor lists the scopes a step counts toward: its user scope, if any, and
// the product-wide scope.
func scopesFor(productID uuid.UUID, userID *uuid.UUID) []repos.Scope {
	own := scopeOf(productID, userID)
	if own.UserID == nil {
		return []repos.Scope{own}
	}
	return []repos.Scope{{ProductID: productID}, own}
}

// MaybeSummarize generates a summary iff the scope's visible count is a positive
// multiple of the batch size. Failures are logged and reported as false.
func MaybeSummarize(ctx context.Context, deps Deps, productID uuid.UUID, userID *uuid.UUID) bool {
	deps, err := deps.prepare("Lifecycle.MaybeSummarize")
	if err != nil {
		return false
	}
	_, ok := maybeSummarize(ctx, deps, productID, userID)
	return ok
}

func maybeSummarize(ctx context.Context, deps Deps, productID uuid.UUID, userID *uuid.UUID) (*types.LifecycleSummary, bool) {
	scope := scopeOf(productID, userID)
	count, err := deps.Steps.CountVisible(dbctx.Context{Ctx: ctx}, scope)
	if err != nil {
		deps.Log.Error("summary trigger count failed", "scope", scope.Key(), "error", err)
		return nil, false
	}
	if count <= 0 || count%deps.Config.BatchSize != 0 {
		return nil, false
	}
	s, err := GenerateSummary(ctx, deps, productID, scope.UserID, &count)
	if err != nil {
		deps.Log.Error("summary generation failed", "scope", scope.Key(), "count", count, "error", err)
		return nil, false
	}
	return s, s != nil
}
