package aggregates

import (
	"context"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/domain/lifecycle"
)

var LifecycleAggregateContract = Contract{
	Name:             "Lifecycle.TimelineAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns step sequencing, visibility changes and the gapless summary partition per scope.",
}

// LifecycleAggregate owns the step log and summary partition invariants.
//
// Write failures return *Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation,
// CodePreconditionFailed, CodeRetryable, CodeInternal.
type LifecycleAggregate interface {
	Aggregate

	// AppendStep assigns the next product sequence number and inserts the step.
	AppendStep(ctx context.Context, in AppendStepInput) (AppendStepResult, error)

	// InsertSummary persists a summary if it extends the scope's partition contiguously.
	// A summary already covering the same end is returned with Created=false.
	InsertSummary(ctx context.Context, in InsertSummaryInput) (InsertSummaryResult, error)

	// DeleteSummaries removes every summary of a scope.
	DeleteSummaries(ctx context.Context, productID uuid.UUID, userID *uuid.UUID) (int64, error)

	// SetStepVisibility toggles a step. Changes that would shift positions already
	// covered by a summary fail with CodePreconditionFailed unless Force is set.
	SetStepVisibility(ctx context.Context, in SetStepVisibilityInput) (SetStepVisibilityResult, error)
}

type AppendStepInput struct {
	Step *lifecycle.LifecycleStep
}

type AppendStepResult struct {
	Step *lifecycle.LifecycleStep
	// VisibleCount is the scope's visible step count after the insert.
	VisibleCount int
}

type InsertSummaryInput struct {
	Summary *lifecycle.LifecycleSummary
}

type InsertSummaryResult struct {
	Summary *lifecycle.LifecycleSummary
	Created bool
}

type SetStepVisibilityInput struct {
	StepID  uuid.UUID
	Visible bool
	Force   bool
}

// AffectedScope is a summary scope whose partition a forced visibility change invalidated.
type AffectedScope struct {
	ProductID uuid.UUID
	UserID    *uuid.UUID
}

type SetStepVisibilityResult struct {
	Step    *lifecycle.LifecycleStep
	Changed bool
	// Invalidated lists scopes that must be fully regenerated.
	Invalidated []AffectedScope
}
