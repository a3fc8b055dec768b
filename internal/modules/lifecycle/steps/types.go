package steps

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/lifeapp/lifecycle-backend/internal/domain"
)

// Completer is the summarization language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

type SummaryConfig struct {
	BatchSize int
	// MaxListItems caps keyEvents and majorMilestones taken from the model.
	MaxListItems int
	// FallbackConfidence is stored on summaries built without the model.
	FallbackConfidence float64
}

func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{BatchSize: 50, MaxListItems: 10, FallbackConfidence: 0.6}
}

func (c SummaryConfig) WithDefaults() SummaryConfig {
	d := DefaultSummaryConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxListItems <= 0 {
		c.MaxListItems = d.MaxListItems
	}
	if c.FallbackConfidence <= 0 || c.FallbackConfidence > 1 {
		c.FallbackConfidence = d.FallbackConfidence
	}
	return c
}

type RecordStepInput struct {
	ProductID   uuid.UUID          `json:"productId"`
	TrackingID  uuid.UUID          `json:"trackingId"`
	UserID      *uuid.UUID         `json:"userId,omitempty"`
	StepType    string             `json:"stepType"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Source      string             `json:"source"`
	Priority    int                `json:"priority,omitempty"`
	EcoBefore   *int               `json:"ecoScoreBefore,omitempty"`
	EcoAfter    *int               `json:"ecoScoreAfter,omitempty"`
	PriceBefore *float64           `json:"priceBefore,omitempty"`
	PriceAfter  *float64           `json:"priceAfter,omitempty"`
	Metadata    types.StepMetadata `json:"metadata"`
	// Hidden records the step without counting it toward any position.
	Hidden bool `json:"hidden,omitempty"`
	// At overrides the creation time, for imports.
	At time.Time `json:"at,omitempty"`
}

type RecordStepOutput struct {
	Step       *types.LifecycleStep    `json:"step"`
	Summarized bool                    `json:"summarized"`
	Summary    *types.LifecycleSummary `json:"summary,omitempty"`
}

type Timeline struct {
	LatestSummary       *types.LifecycleSummary `json:"latestSummary"`
	RecentSteps         []*types.LifecycleStep  `json:"recentSteps"`
	TotalStepsProcessed int                     `json:"totalStepsProcessed"`
	PendingStepsCount   int                     `json:"pendingStepsCount"`
}

type SetVisibilityInput struct {
	StepID  uuid.UUID
	Visible bool
	Force   bool
}

type SetVisibilityOutput struct {
	Step        *types.LifecycleStep      `json:"step"`
	Changed     bool                      `json:"changed"`
	Regenerated []*types.LifecycleSummary `json:"regenerated,omitempty"`
}

type BackfillInput struct {
	// Limit caps the number of pending scopes processed; 0 means all.
	Limit  int
	DryRun bool
	// Delay is the minimum spacing between two generated summaries.
	Delay time.Duration
}

// ScopePlan lists the batch boundaries a scope is missing.
type ScopePlan struct {
	ProductID    uuid.UUID  `json:"productId"`
	UserID       *uuid.UUID `json:"userId,omitempty"`
	VisibleSteps int        `json:"visibleSteps"`
	CoveredUpTo  int        `json:"coveredUpTo"`
	Boundaries   []int      `json:"boundaries"`
}

type BackfillOutput struct {
	ScopesScanned    int         `json:"scopesScanned"`
	ScopesPending    int         `json:"scopesPending"`
	SummariesCreated int         `json:"summariesCreated"`
	ScopesFailed     int         `json:"scopesFailed"`
	Plans            []ScopePlan `json:"plans"`
}
