package domain

import (
	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/domain/catalog"
	"github.com/lifeapp/lifecycle-backend/internal/domain/lifecycle"
)

type Product = catalog.Product
type ProductScan = catalog.ProductScan
type AnalysisEntry = catalog.AnalysisEntry
type LifecycleInsights = catalog.LifecycleInsights

type LifecycleStep = lifecycle.LifecycleStep
type LifecycleSummary = lifecycle.LifecycleSummary
type StepType = lifecycle.StepType
type StepSource = lifecycle.StepSource
type StepMetadata = lifecycle.StepMetadata
type SummaryTrends = lifecycle.SummaryTrends
type Timeframe = lifecycle.Timeframe

const (
	StepPurchased   = lifecycle.StepPurchased
	StepMalfunction = lifecycle.StepMalfunction
	StepRepaired    = lifecycle.StepRepaired
	StepMaintained  = lifecycle.StepMaintained
	StepUpgraded    = lifecycle.StepUpgraded
	StepWorking     = lifecycle.StepWorking
	StepSold        = lifecycle.StepSold
	StepGifted      = lifecycle.StepGifted
	StepRecycled    = lifecycle.StepRecycled
	StepDisposed    = lifecycle.StepDisposed
	StepEcoAnalysis = lifecycle.StepEcoAnalysis
	StepNote        = lifecycle.StepNote
	StepOther       = lifecycle.StepOther

	SourceUser      = lifecycle.SourceUser
	SourceBot       = lifecycle.SourceBot
	SourceSystem    = lifecycle.SourceSystem
	SourceExtension = lifecycle.SourceExtension
)

func ParseStepType(raw string) StepType     { return lifecycle.ParseStepType(raw) }
func ParseStepSource(raw string) StepSource { return lifecycle.ParseStepSource(raw) }

func DecodeStepMetadata(raw []byte) StepMetadata { return lifecycle.DecodeStepMetadata(raw) }

func ScopeKey(productID uuid.UUID, userID *uuid.UUID) string {
	return lifecycle.ScopeKey(productID, userID)
}

func NewInsights(entry AnalysisEntry) LifecycleInsights { return catalog.NewInsights(entry) }

func UnionStrings(a, b []string) []string { return catalog.UnionStrings(a, b) }

// AllModels lists every table owned by this service, in migration order.
func AllModels() []any {
	return []any{
		&Product{},
		&ProductScan{},
		&LifecycleStep{},
		&LifecycleSummary{},
	}
}
