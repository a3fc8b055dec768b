package aggregates

import (
	"context"
	"testing"
	"time"

	domainagg "github.com/lifeapp/lifecycle-backend/internal/domain/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

type passTxRunner struct{}

func (passTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(dbctx.Context{Ctx: ctx})
}

type spyHooks struct {
	ops       map[string]string
	conflicts int
	retries   int
}

func (h *spyHooks) ObserveOperation(name, status string, _ time.Duration) {
	if h.ops == nil {
		h.ops = map[string]string{}
	}
	h.ops[name] = status
}
func (h *spyHooks) IncConflict(string) { h.conflicts++ }
func (h *spyHooks) IncRetry(string)    { h.retries++ }

func TestExecuteWriteStatuses(t *testing.T) {
	cases := []struct {
		name      string
		body      error
		status    string
		conflicts int
		retries   int
	}{
		{name: "success", body: nil, status: "success"},
		{name: "invariant", body: InvariantError("gap in partition"), status: string(domainagg.CodeInvariantViolation)},
		{name: "precondition", body: PreconditionError("summarized range"), status: string(domainagg.CodePreconditionFailed)},
		{name: "conflict", body: ConflictError("duplicate hash"), status: string(domainagg.CodeConflict), conflicts: 1},
		{name: "retryable", body: context.DeadlineExceeded, status: string(domainagg.CodeRetryable), retries: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hooks := &spyHooks{}
			op := "test." + tc.name
			err := executeWrite(context.Background(), BaseDeps{Runner: passTxRunner{}, Hooks: hooks}, op,
				func(_ dbctx.Context) error { return tc.body })
			if (err == nil) != (tc.body == nil) {
				t.Fatalf("err: want failure=%v got=%v", tc.body != nil, err)
			}
			if hooks.ops[op] != tc.status {
				t.Fatalf("status: want=%s got=%s", tc.status, hooks.ops[op])
			}
			if hooks.conflicts != tc.conflicts || hooks.retries != tc.retries {
				t.Fatalf("counters: want=%d/%d got=%d/%d", tc.conflicts, tc.retries, hooks.conflicts, hooks.retries)
			}
		})
	}
}

func TestExecuteWriteDefaultsOpName(t *testing.T) {
	hooks := &spyHooks{}
	_ = executeWrite(context.Background(), BaseDeps{Runner: passTxRunner{}, Hooks: hooks}, "  ",
		func(_ dbctx.Context) error { return nil })
	if _, ok := hooks.ops["aggregate.write"]; !ok {
		t.Fatalf("default op: got=%v", hooks.ops)
	}
}

func TestAggregateErrorStatusUnwrapped(t *testing.T) {
	if got := aggregateErrorStatus(nil); got != "success" {
		t.Fatalf("nil: want=success got=%s", got)
	}
	if got := aggregateErrorStatus(context.Canceled); got != string(domainagg.CodeRetryable) {
		t.Fatalf("canceled: want=%s got=%s", domainagg.CodeRetryable, got)
	}
}
