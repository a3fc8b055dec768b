package ctxutil

import (
	"context"
	"testing"
)

func TestRunDataRoundTrip(t *testing.T) {
	ctx := WithRunData(context.Background(), &RunData{RunID: "r-1", Caller: "cli"})
	if got := RunID(ctx); got != "r-1" {
		t.Fatalf("RunID: want=r-1 got=%q", got)
	}
	if RunID(context.Background()) != "" {
		t.Fatalf("RunID on empty ctx: want empty")
	}
	var nilCtx context.Context
	if Default(nilCtx) == nil {
		t.Fatalf("Default(nil): want background ctx")
	}
}
