package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lifeapp/lifecycle-backend/internal/data/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/data/aggregates/testutil"
	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	"github.com/lifeapp/lifecycle-backend/internal/data/repos/memrepo"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
	"github.com/lifeapp/lifecycle-backend/internal/realtime"
	"github.com/lifeapp/lifecycle-backend/internal/realtime/bus"
)

// fakeLLM answers every prompt with reply, or fails with err.
type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Model() string { return "summary-test" }

func (f *fakeLLM) Complete(_ context.Context, _ string, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, user)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fixture struct {
	t       *testing.T
	store   *memrepo.Store
	bus     *bus.MemoryBus
	uc      Usecases
	product *types.Product
	clock   time.Time
}

func newFixture(t *testing.T, llm Completer) *fixture {
	t.Helper()
	store := memrepo.New()
	mb := bus.NewMemory()
	agg := aggregates.NewLifecycleAggregate(aggregates.LifecycleAggregateDeps{
		Base:      aggregates.BaseDeps{Runner: &testutil.InjectedTxRunner{}},
		Products:  store.Products(),
		Steps:     store.Steps(),
		Summaries: store.Summaries(),
	})
	p := &types.Product{CanonicalName: "Steel Bottle"}
	if err := store.Products().Create(dbctx.Context{Ctx: context.Background()}, p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	f := &fixture{t: t, store: store, bus: mb, product: p, clock: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	f.uc = New(UsecasesDeps{
		Log:       logger.NewNop(),
		Products:  store.Products(),
		Steps:     store.Steps(),
		Summaries: store.Summaries(),
		Lifecycle: agg,
		LLM:       llm,
		Bus:       mb,
		Now:       func() time.Time { return f.clock },
	})
	return f
}

// record appends n visible steps and returns the outputs in order.
func (f *fixture) record(n int, userID *uuid.UUID) []RecordStepOutput {
	f.t.Helper()
	out := make([]RecordStepOutput, 0, n)
	for i := 0; i < n; i++ {
		f.clock = f.clock.Add(time.Hour)
		res, err := f.uc.RecordStep(context.Background(), RecordStepInput{
			ProductID: f.product.ID,
			UserID:    userID,
			StepType:  "working great",
			Title:     fmt.Sprintf("used %d", i+1),
		})
		if err != nil {
			f.t.Fatalf("record step %d: %v", i+1, err)
		}
		out = append(out, res)
	}
	return out
}

func (f *fixture) summaries(userID *uuid.UUID) []*types.LifecycleSummary {
	f.t.Helper()
	list, err := f.store.Summaries().ListByScope(dbctx.Context{Ctx: context.Background()}, types.ScopeKey(f.product.ID, userID))
	if err != nil {
		f.t.Fatalf("list summaries: %v", err)
	}
	return list
}

const llmReply = "```json\n{\"summary\":\"Used daily without issues.\",\"keyEvents\":[\"used 1\"],\"trends\":{\"usage\":\"daily\"},\"ecoScoreChange\":2,\"majorMilestones\":[],\"confidence\":0.9}\n```"

func TestRecordStepTriggersOnlyAtBatchBoundaries(t *testing.T) {
	f := newFixture(t, nil)
	outs := f.record(120, nil)
	for i, res := range outs {
		n := i + 1
		want := n%50 == 0
		if res.Summarized != want {
			t.Fatalf("step %d summarized: want=%v got=%v", n, want, res.Summarized)
		}
		if res.Step.Seq != int64(n) {
			t.Fatalf("step %d seq: got=%d", n, res.Step.Seq)
		}
	}
	if got := f.store.SummaryCount(); got != 2 {
		t.Fatalf("summaries: want=2 got=%d", got)
	}
	if got := len(f.bus.Events(realtime.EventStepRecorded)); got != 120 {
		t.Fatalf("step events: want=120 got=%d", got)
	}
	if got := len(f.bus.Events(realtime.EventSummaryCreated)); got != 2 {
		t.Fatalf("summary events: want=2 got=%d", got)
	}
}

func TestRecordStepDefaultsAndValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.uc.RecordStep(ctx, RecordStepInput{ProductID: f.product.ID, StepType: "broken", Title: " cracked lid ", Source: "bot"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	st := res.Step
	if st.StepType != types.StepMalfunction || st.Priority != 8 || st.Source != types.SourceBot {
		t.Fatalf("defaults: got type=%s priority=%d source=%s", st.StepType, st.Priority, st.Source)
	}
	if st.Title != "cracked lid" || !st.IsVisible || st.TrackingID == uuid.Nil {
		t.Fatalf("fields: got=%+v", st)
	}
	if !st.CreatedAt.Equal(f.clock) {
		t.Fatalf("created_at: want=%v got=%v", f.clock, st.CreatedAt)
	}

	for name, in := range map[string]RecordStepInput{
		"no product": {Title: "x"},
		"no title":   {ProductID: f.product.ID, Title: "  "},
		"priority":   {ProductID: f.product.ID, Title: "x", Priority: 11},
	} {
		_, err := f.uc.RecordStep(ctx, in)
		if !domainagg.IsCode(err, domainagg.CodeValidation) {
			t.Fatalf("%s: want validation error got=%v", name, err)
		}
	}
}

func TestSummaryBatchesChainAcrossBoundaries(t *testing.T) {
	llm := &fakeLLM{reply: llmReply}
	f := newFixture(t, llm)

	f.record(49, nil)
	if f.store.SummaryCount() != 0 || llm.calls() != 0 {
		t.Fatalf("49 steps: want no summary got=%d calls=%d", f.store.SummaryCount(), llm.calls())
	}
	f.record(1, nil)
	f.record(49, nil)
	if f.store.SummaryCount() != 1 {
		t.Fatalf("99 steps: want=1 got=%d", f.store.SummaryCount())
	}
	f.record(1, nil)

	list := f.summaries(nil)
	if len(list) != 2 {
		t.Fatalf("summaries: want=2 got=%d", len(list))
	}
	first, second := list[0], list[1]
	if first.StepCountStart != 1 || first.StepCountEnd != 50 || second.StepCountStart != 51 || second.StepCountEnd != 100 {
		t.Fatalf("ranges: got=[%d,%d] [%d,%d]", first.StepCountStart, first.StepCountEnd, second.StepCountStart, second.StepCountEnd)
	}
	if first.TotalStepsIncluded != 50 || second.TotalStepsIncluded != 50 {
		t.Fatalf("totals: got=%d,%d", first.TotalStepsIncluded, second.TotalStepsIncluded)
	}
	if first.PreviousSummaryID != nil || second.PreviousSummaryID == nil || *second.PreviousSummaryID != first.ID {
		t.Fatalf("previous link: first=%v second=%v", first.PreviousSummaryID, second.PreviousSummaryID)
	}
	if second.ModelUsed != "summary-test" || second.IsFallback || second.Confidence != 0.9 {
		t.Fatalf("llm summary: model=%s fallback=%v confidence=%v", second.ModelUsed, second.IsFallback, second.Confidence)
	}
	if second.Summary != "Used daily without issues." {
		t.Fatalf("summary text: got=%q", second.Summary)
	}
	if !strings.Contains(llm.prompts[1], "covers events 1-50:\nUsed daily without issues.") {
		t.Fatalf("second prompt lacks previous summary:\n%s", llm.prompts[1])
	}
	if !strings.Contains(llm.prompts[1], "51. [") || strings.Contains(llm.prompts[1], "\n50. [") {
		t.Fatalf("second prompt has wrong window:\n%s", llm.prompts[1])
	}
}

func TestSummaryFallsBackWhenModelFails(t *testing.T) {
	for name, llm := range map[string]*fakeLLM{
		"error":    {err: errors.New("upstream 503")},
		"garbage":  {reply: "I cannot help with that."},
		"no-story": {reply: `{"summary":""}`},
	} {
		f := newFixture(t, llm)
		outs := f.record(50, nil)
		last := outs[len(outs)-1]
		if !last.Summarized || last.Summary == nil {
			t.Fatalf("%s: want fallback summary", name)
		}
		s := last.Summary
		if !s.IsFallback || s.ModelUsed != "fallback" || s.Confidence != 0.6 {
			t.Fatalf("%s: fallback=%v model=%s confidence=%v", name, s.IsFallback, s.ModelUsed, s.Confidence)
		}
		if s.Summary != "Recorded 50 lifecycle events for Steel Bottle." {
			t.Fatalf("%s: summary=%q", name, s.Summary)
		}
		if got := strings.Join(s.KeyEventList(), ","); got != "used 1,used 2,used 3" {
			t.Fatalf("%s: keyEvents=%s", name, got)
		}
	}
}

func TestGenerateSummaryBoundaries(t *testing.T) {
	llm := &fakeLLM{reply: llmReply}
	f := newFixture(t, nil)
	ctx := context.Background()
	f.record(30, nil)

	s, err := f.uc.GenerateSummary(ctx, f.product.ID, nil, nil)
	if err != nil || s != nil {
		t.Fatalf("partial batch: want nil,nil got=%v,%v", s, err)
	}
	bad := 30
	if _, err := f.uc.GenerateSummary(ctx, f.product.ID, nil, &bad); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("non-boundary upTo: want validation got=%v", err)
	}
	ahead := 50
	if s, err := f.uc.GenerateSummary(ctx, f.product.ID, nil, &ahead); err != nil || s != nil {
		t.Fatalf("upTo beyond visible steps: want nil,nil got=%v,%v", s, err)
	}

	f.uc.deps.LLM = llm
	f.record(20, nil)
	first := f.summaries(nil)
	if len(first) != 1 || llm.calls() != 1 {
		t.Fatalf("boundary: summaries=%d calls=%d", len(first), llm.calls())
	}
	again, err := f.uc.GenerateSummary(ctx, f.product.ID, nil, &ahead)
	if err != nil {
		t.Fatalf("regenerate same end: %v", err)
	}
	if again.ID != first[0].ID || llm.calls() != 1 {
		t.Fatalf("idempotent: want id=%s calls=1 got id=%s calls=%d", first[0].ID, again.ID, llm.calls())
	}
	latest, err := f.uc.GenerateSummary(ctx, f.product.ID, nil, nil)
	if err != nil || latest == nil || latest.ID != first[0].ID {
		t.Fatalf("nil upTo: want latest boundary summary got=%v,%v", latest, err)
	}
}

func TestTimeline(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.record(10, nil)

	tl, err := f.uc.GetComprehensiveTimeline(ctx, f.product.ID, nil)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if tl.LatestSummary != nil || len(tl.RecentSteps) != 10 || tl.TotalStepsProcessed != 0 || tl.PendingStepsCount != 10 {
		t.Fatalf("no summary: got latest=%v recent=%d total=%d pending=%d", tl.LatestSummary, len(tl.RecentSteps), tl.TotalStepsProcessed, tl.PendingStepsCount)
	}

	f.record(110, nil)
	tl, err = f.uc.GetComprehensiveTimeline(ctx, f.product.ID, nil)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if tl.LatestSummary == nil || tl.LatestSummary.StepCountEnd != 100 {
		t.Fatalf("latest: got=%v", tl.LatestSummary)
	}
	if tl.TotalStepsProcessed != 100 || tl.PendingStepsCount != 20 || len(tl.RecentSteps) != 20 {
		t.Fatalf("counts: total=%d pending=%d recent=%d", tl.TotalStepsProcessed, tl.PendingStepsCount, len(tl.RecentSteps))
	}
	if tl.RecentSteps[0].Seq != 101 {
		t.Fatalf("first pending seq: want=101 got=%d", tl.RecentSteps[0].Seq)
	}
}

func TestRegenerateAllIsDeterministic(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.record(120, nil)
	before := f.summaries(nil)

	out, err := f.uc.RegenerateAll(ctx, f.product.ID, nil)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(out) != 2 || f.store.SummaryCount() != 2 {
		t.Fatalf("regenerated: want=2 got=%d stored=%d", len(out), f.store.SummaryCount())
	}
	for i := range out {
		if out[i].ID == before[i].ID {
			t.Fatalf("batch %d: want a fresh row", i)
		}
		if out[i].Summary != before[i].Summary || out[i].StepCountEnd != before[i].StepCountEnd {
			t.Fatalf("batch %d: want=%q/%d got=%q/%d", i, before[i].Summary, before[i].StepCountEnd, out[i].Summary, out[i].StepCountEnd)
		}
	}
	if out[1].PreviousSummaryID == nil || *out[1].PreviousSummaryID != out[0].ID {
		t.Fatalf("regenerated chain broken")
	}

	small := newFixture(t, nil)
	small.record(30, nil)
	got, err := small.uc.RegenerateAll(ctx, small.product.ID, nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("below one batch: want 0 got=%d err=%v", len(got), err)
	}
}

func TestSetStepVisibility(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	outs := f.record(60, nil)
	inside := outs[9].Step.ID
	outside := outs[54].Step.ID

	res, err := f.uc.SetStepVisibility(ctx, SetVisibilityInput{StepID: outside, Visible: false})
	if err != nil || !res.Changed || len(res.Regenerated) != 0 {
		t.Fatalf("hide uncovered step: changed=%v regenerated=%d err=%v", res.Changed, len(res.Regenerated), err)
	}

	_, err = f.uc.SetStepVisibility(ctx, SetVisibilityInput{StepID: inside, Visible: false})
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("hide covered step: want precondition got=%v", err)
	}

	res, err = f.uc.SetStepVisibility(ctx, SetVisibilityInput{StepID: inside, Visible: false, Force: true})
	if err != nil {
		t.Fatalf("forced hide: %v", err)
	}
	if !res.Changed || len(res.Regenerated) != 1 || res.Regenerated[0].StepCountEnd != 50 {
		t.Fatalf("forced hide: changed=%v regenerated=%v", res.Changed, res.Regenerated)
	}
	batch, err := f.store.Steps().ListVisibleRange(dbctx.Context{Ctx: ctx}, repos.Scope{ProductID: f.product.ID}, 1, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, st := range batch {
		if st.ID == inside {
			t.Fatalf("hidden step still inside the first batch")
		}
	}
	if batch[49].Seq != 51 {
		t.Fatalf("position 50: want seq 51 got=%d", batch[49].Seq)
	}

	res, err = f.uc.SetStepVisibility(ctx, SetVisibilityInput{StepID: inside, Visible: false})
	if err != nil || res.Changed {
		t.Fatalf("no-op toggle: changed=%v err=%v", res.Changed, err)
	}
}

func TestUserStepsSummarizeBothScopes(t *testing.T) {
	f := newFixture(t, nil)
	uid := uuid.New()
	outs := f.record(50, &uid)
	last := outs[len(outs)-1]
	if !last.Summarized || last.Summary == nil || last.Summary.UserID == nil || *last.Summary.UserID != uid {
		t.Fatalf("want user-scope summary returned got=%+v", last.Summary)
	}
	if len(f.summaries(nil)) != 1 || len(f.summaries(&uid)) != 1 {
		t.Fatalf("scopes: product=%d user=%d", len(f.summaries(nil)), len(f.summaries(&uid)))
	}
	if outs[0].Step.TrackingID != outs[49].Step.TrackingID {
		t.Fatalf("tracking id should be stable within a scope")
	}
}

func TestBackfillSummaries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.record(49, nil)
	f.store.FailNext("LifecycleSummaryRepo.GetByEnd", errors.New("db unavailable"))
	f.record(61, nil)
	if f.store.SummaryCount() != 0 {
		t.Fatalf("setup: want the trigger to have failed, got %d summaries", f.store.SummaryCount())
	}

	dry, err := f.uc.BackfillSummaries(ctx, BackfillInput{DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if dry.ScopesScanned != 1 || dry.ScopesPending != 1 || len(dry.Plans) != 1 {
		t.Fatalf("dry run: got=%+v", dry)
	}
	if b := dry.Plans[0].Boundaries; len(b) != 2 || b[0] != 50 || b[1] != 100 {
		t.Fatalf("boundaries: got=%v", b)
	}
	if f.store.SummaryCount() != 0 {
		t.Fatalf("dry run wrote summaries")
	}

	run, err := f.uc.BackfillSummaries(ctx, BackfillInput{Delay: time.Millisecond})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if run.SummariesCreated != 2 || run.ScopesFailed != 0 {
		t.Fatalf("backfill: got=%+v", run)
	}
	list := f.summaries(nil)
	if len(list) != 2 || list[1].PreviousSummaryID == nil || *list[1].PreviousSummaryID != list[0].ID {
		t.Fatalf("backfilled chain: got=%d", len(list))
	}

	again, err := f.uc.BackfillSummaries(ctx, BackfillInput{})
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if again.ScopesPending != 0 || again.SummariesCreated != 0 {
		t.Fatalf("rerun should be a no-op: got=%+v", again)
	}
}

// seedImported writes visible steps straight to the store, as a bulk import would,
// so no summary trigger runs.
func (f *fixture) seedImported(productID uuid.UUID, n int) {
	f.t.Helper()
	for i := 1; i <= n; i++ {
		err := f.store.Steps().Create(dbctx.Context{Ctx: context.Background()}, &types.LifecycleStep{
			ProductID:  productID,
			TrackingID: productID,
			Seq:        int64(i),
			StepType:   types.StepNote,
			Title:      fmt.Sprintf("imported %d", i),
			Source:     types.SourceSystem,
			Priority:   3,
			IsVisible:  true,
			CreatedAt:  f.clock.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			f.t.Fatalf("seed step: %v", err)
		}
	}
}

func TestBackfillRespectsLimit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	other := &types.Product{CanonicalName: "Desk Lamp"}
	if err := f.store.Products().Create(dbctx.Context{Ctx: ctx}, other); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	f.seedImported(f.product.ID, 50)
	f.seedImported(other.ID, 75)

	out, err := f.uc.BackfillSummaries(ctx, BackfillInput{Limit: 1})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if out.ScopesScanned != 2 || out.ScopesPending != 2 || len(out.Plans) != 1 || out.SummariesCreated != 1 {
		t.Fatalf("limit: got=%+v", out)
	}

	rest, err := f.uc.BackfillSummaries(ctx, BackfillInput{})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if rest.ScopesPending != 1 || rest.SummariesCreated != 1 || f.store.SummaryCount() != 2 {
		t.Fatalf("second pass: got=%+v stored=%d", rest, f.store.SummaryCount())
	}
}
