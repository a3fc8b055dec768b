package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

type LifecycleAggregateDeps struct {
	Base BaseDeps

	Products  repos.ProductRepo
	Steps     repos.LifecycleStepRepo
	Summaries repos.LifecycleSummaryRepo
}

type lifecycleAggregate struct {
	deps LifecycleAggregateDeps
}

func NewLifecycleAggregate(deps LifecycleAggregateDeps) domainagg.LifecycleAggregate {
	deps.Base = deps.Base.withDefaults()
	return &lifecycleAggregate{deps: deps}
}

func (a *lifecycleAggregate) Contract() domainagg.Contract {
	return domainagg.LifecycleAggregateContract
}

func (a *lifecycleAggregate) configured(op string) error {
	if a.deps.Products == nil || a.deps.Steps == nil || a.deps.Summaries == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "lifecycle aggregate repos not configured", nil)
	}
	return nil
}

func (a *lifecycleAggregate) AppendStep(ctx context.Context, in domainagg.AppendStepInput) (domainagg.AppendStepResult, error) {
	const op = "Lifecycle.Step.Append"
	var out domainagg.AppendStepResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	step := in.Step
	if step == nil || step.ProductID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing product_id", nil)
	}
	if strings.TrimSpace(string(step.StepType)) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing step_type", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		p, err := a.deps.Products.LockByID(dbc, step.ProductID)
		if err != nil {
			return err
		}
		p.StepSeq++
		step.Seq = p.StepSeq
		if err := a.deps.Products.Save(dbc, p); err != nil {
			return err
		}
		if err := a.deps.Steps.Create(dbc, step); err != nil {
			return err
		}
		n, err := a.deps.Steps.CountVisible(dbc, repos.Scope{ProductID: step.ProductID, UserID: step.UserID})
		if err != nil {
			return err
		}
		out = domainagg.AppendStepResult{Step: step, VisibleCount: n}
		return nil
	})
	return out, err
}

func (a *lifecycleAggregate) InsertSummary(ctx context.Context, in domainagg.InsertSummaryInput) (domainagg.InsertSummaryResult, error) {
	const op = "Lifecycle.Summary.Insert"
	var out domainagg.InsertSummaryResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	s := in.Summary
	if s == nil || s.ProductID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing product_id", nil)
	}
	if s.StepCountStart < 1 || s.StepCountEnd < s.StepCountStart {
		return out, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("invalid range [%d, %d]", s.StepCountStart, s.StepCountEnd), nil)
	}
	if s.TotalStepsIncluded != s.StepCountEnd-s.StepCountStart+1 {
		return out, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("total_steps_included=%d does not match range [%d, %d]", s.TotalStepsIncluded, s.StepCountStart, s.StepCountEnd), nil)
	}
	s.ScopeKey = types.ScopeKey(s.ProductID, s.UserID)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		existing, err := a.deps.Summaries.GetByEnd(dbc, s.ScopeKey, s.StepCountEnd)
		if err != nil {
			return err
		}
		if existing != nil {
			out = domainagg.InsertSummaryResult{Summary: existing, Created: false}
			return nil
		}
		overlap, err := a.deps.Summaries.FindOverlapping(dbc, s.ScopeKey, s.StepCountStart, s.StepCountEnd)
		if err != nil {
			return err
		}
		if overlap != nil {
			return InvariantError(fmt.Sprintf("range [%d, %d] overlaps summary [%d, %d]",
				s.StepCountStart, s.StepCountEnd, overlap.StepCountStart, overlap.StepCountEnd))
		}
		prev, err := a.deps.Summaries.GetPrevious(dbc, s.ScopeKey, s.StepCountStart)
		if err != nil {
			return err
		}
		switch {
		case prev == nil && s.StepCountStart != 1:
			return InvariantError(fmt.Sprintf("first summary must start at 1, got %d", s.StepCountStart))
		case prev != nil && prev.StepCountEnd != s.StepCountStart-1:
			return InvariantError(fmt.Sprintf("gap between summary end %d and start %d", prev.StepCountEnd, s.StepCountStart))
		}
		if prev != nil {
			id := prev.ID
			s.PreviousSummaryID = &id
		}
		created, err := a.deps.Summaries.Create(dbc, s)
		if err != nil {
			return err
		}
		if !created {
			// Lost a race on (scope_key, step_count_end).
			winner, err := a.deps.Summaries.GetByEnd(dbc, s.ScopeKey, s.StepCountEnd)
			if err != nil {
				return err
			}
			if winner == nil {
				return RetryableError("summary insert skipped but no row found")
			}
			out = domainagg.InsertSummaryResult{Summary: winner, Created: false}
			return nil
		}
		out = domainagg.InsertSummaryResult{Summary: s, Created: true}
		return nil
	})
	return out, err
}

func (a *lifecycleAggregate) DeleteSummaries(ctx context.Context, productID uuid.UUID, userID *uuid.UUID) (int64, error) {
	const op = "Lifecycle.Summary.DeleteScope"
	if err := a.configured(op); err != nil {
		return 0, err
	}
	if productID == uuid.Nil {
		return 0, domainagg.NewError(domainagg.CodeValidation, op, "missing product_id", nil)
	}
	var n int64
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		deleted, err := a.deps.Summaries.DeleteByScope(dbc, types.ScopeKey(productID, userID))
		if err != nil {
			return err
		}
		n = deleted
		return nil
	})
	return n, err
}

// SetStepVisibility shifts the position of every later step in each scope the step
// belongs to. A scope is affected when its summaries already cover that position.
// Forced changes clear the affected scopes' summaries in the same transaction.
func (a *lifecycleAggregate) SetStepVisibility(ctx context.Context, in domainagg.SetStepVisibilityInput) (domainagg.SetStepVisibilityResult, error) {
	const op = "Lifecycle.Step.SetVisibility"
	var out domainagg.SetStepVisibilityResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.StepID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing step_id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		step, err := a.deps.Steps.LockByID(dbc, in.StepID)
		if err != nil {
			return err
		}
		if step.IsVisible == in.Visible {
			out = domainagg.SetStepVisibilityResult{Step: step, Changed: false}
			return nil
		}

		scopes := []repos.Scope{{ProductID: step.ProductID}}
		if step.UserID != nil && *step.UserID != uuid.Nil {
			scopes = append(scopes, repos.Scope{ProductID: step.ProductID, UserID: step.UserID})
		}
		var affected []domainagg.AffectedScope
		for _, sc := range scopes {
			before, err := a.deps.Steps.CountVisibleBefore(dbc, sc, step.Seq)
			if err != nil {
				return err
			}
			latest, err := a.deps.Summaries.GetLatest(dbc, sc.Key())
			if err != nil {
				return err
			}
			if latest != nil && latest.StepCountEnd >= before+1 {
				affected = append(affected, domainagg.AffectedScope{ProductID: sc.ProductID, UserID: sc.UserID})
			}
		}
		if len(affected) > 0 && !in.Force {
			return PreconditionError(fmt.Sprintf("step %s lies inside %d summarized scope(s); retry with force to regenerate", step.ID, len(affected)))
		}

		if err := a.deps.Steps.SetVisibility(dbc, step.ID, in.Visible); err != nil {
			return err
		}
		for _, sc := range affected {
			if _, err := a.deps.Summaries.DeleteByScope(dbc, types.ScopeKey(sc.ProductID, sc.UserID)); err != nil {
				return err
			}
		}
		step.IsVisible = in.Visible
		out = domainagg.SetStepVisibilityResult{Step: step, Changed: true, Invalidated: affected}
		return nil
	})
	return out, err
}
