package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/modules/lifecycle/steps"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
	"github.com/lifeapp/lifecycle-backend/internal/realtime/bus"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Products  repos.ProductRepo
	Steps     repos.LifecycleStepRepo
	Summaries repos.LifecycleSummaryRepo
	Lifecycle domainagg.LifecycleAggregate

	// LLM may be nil, in which case every summary is the deterministic fallback.
	LLM steps.Completer
	Bus bus.Bus

	Config steps.SummaryConfig
	Now    func() time.Time
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	deps.Config = deps.Config.WithDefaults()
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	Completer           = steps.Completer
	SummaryConfig       = steps.SummaryConfig
	RecordStepInput     = steps.RecordStepInput
	RecordStepOutput    = steps.RecordStepOutput
	Timeline            = steps.Timeline
	SetVisibilityInput  = steps.SetVisibilityInput
	SetVisibilityOutput = steps.SetVisibilityOutput
	BackfillInput       = steps.BackfillInput
	BackfillOutput      = steps.BackfillOutput
	ScopePlan           = steps.ScopePlan
)

func (u Usecases) stepDeps() steps.Deps {
	return steps.Deps{
		Log:       u.deps.Log,
		Products:  u.deps.Products,
		Steps:     u.deps.Steps,
		Summaries: u.deps.Summaries,
		Lifecycle: u.deps.Lifecycle,
		LLM:       u.deps.LLM,
		Bus:       u.deps.Bus,
		Config:    u.deps.Config,
		Now:       u.deps.Now,
	}
}

func (u Usecases) RecordStep(ctx context.Context, in RecordStepInput) (RecordStepOutput, error) {
	return steps.RecordStep(ctx, u.stepDeps(), in)
}

func (u Usecases) MaybeSummarize(ctx context.Context, productID uuid.UUID, userID *uuid.UUID) bool {
	return steps.MaybeSummarize(ctx, u.stepDeps(), productID, userID)
}

// GenerateSummary builds the summary for one whole batch; see steps.GenerateSummary
// for how upTo is rounded and when nil is returned.
func (u Usecases) GenerateSummary(ctx context.Context, productID uuid.UUID, userID *uuid.UUID, upTo *int) (*types.LifecycleSummary, error) {
	return steps.GenerateSummary(ctx, u.stepDeps(), productID, userID, upTo)
}

func (u Usecases) GetComprehensiveTimeline(ctx context.Context, productID uuid.UUID, userID *uuid.UUID) (Timeline, error) {
	return steps.GetComprehensiveTimeline(ctx, u.stepDeps(), productID, userID)
}

func (u Usecases) RegenerateAll(ctx context.Context, productID uuid.UUID, userID *uuid.UUID) ([]*types.LifecycleSummary, error) {
	return steps.RegenerateAll(ctx, u.stepDeps(), productID, userID)
}

func (u Usecases) SetStepVisibility(ctx context.Context, in SetVisibilityInput) (SetVisibilityOutput, error) {
	return steps.SetStepVisibility(ctx, u.stepDeps(), in)
}

func (u Usecases) BackfillSummaries(ctx context.Context, in BackfillInput) (BackfillOutput, error) {
	return steps.BackfillSummaries(ctx, u.stepDeps(), in)
}
