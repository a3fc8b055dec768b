package steps

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
	"github.com/lifeapp/lifecycle-backend/internal/realtime/bus"
)

// Deps is shared by every lifecycle step since recording a step can trigger
// summarization and visibility changes can trigger regeneration.
type Deps struct {
	Log       *logger.Logger
	Products  repos.ProductRepo
	Steps     repos.LifecycleStepRepo
	Summaries repos.LifecycleSummaryRepo
	Lifecycle domainagg.LifecycleAggregate
	// LLM may be nil; every summary then uses the fallback.
	LLM    Completer
	Bus    bus.Bus
	Config SummaryConfig
	Now    func() time.Time
}

func (d Deps) prepare(op string) (Deps, error) {
	if d.Log == nil {
		return d, fmt.Errorf("%s: missing logger", op)
	}
	if d.Products == nil || d.Steps == nil || d.Summaries == nil || d.Lifecycle == nil {
		return d, fmt.Errorf("%s: missing repositories", op)
	}
	if d.Bus == nil {
		d.Bus = bus.NewNoop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	d.Config = d.Config.WithDefaults()
	d.Log = d.Log.With("service", "LifecycleSummarizer")
	return d, nil
}

func scopeOf(productID uuid.UUID, userID *uuid.UUID) repos.Scope {
	if userID != nil && *userID == uuid.Nil {
		userID = nil
	}
	return repos.Scope{ProductID: productID, UserID: userID}
}
