package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

func TestInjectedTxRunnerCommitQueue(t *testing.T) {
	serialization := errors.New("could not serialize access")
	r := &InjectedTxRunner{Commits: []error{serialization}}
	body := func(_ dbctx.Context) error { return nil }

	if err := r.InTx(context.Background(), body); !errors.Is(err, serialization) {
		t.Fatalf("first commit: want=%v got=%v", serialization, err)
	}
	if err := r.InTx(context.Background(), body); err != nil {
		t.Fatalf("second commit: want=nil got=%v", err)
	}
	if r.Begins != 2 || r.Committed != 1 || r.RolledBk != 1 {
		t.Fatalf("counters: begins=%d committed=%d rolled_back=%d", r.Begins, r.Committed, r.RolledBk)
	}
}

func TestInjectedTxRunnerBodyErrorRollsBack(t *testing.T) {
	r := &InjectedTxRunner{}
	boom := errors.New("boom")
	if err := r.InTx(context.Background(), func(_ dbctx.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("body err: want=%v got=%v", boom, err)
	}
	if r.Committed != 0 || r.RolledBk != 1 {
		t.Fatalf("counters: committed=%d rolled_back=%d", r.Committed, r.RolledBk)
	}
}

func TestInjectedTxRunnerFailBeginSkipsBody(t *testing.T) {
	begin := errors.New("pool exhausted")
	r := &InjectedTxRunner{FailBegin: begin}
	ran := false
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, begin) || ran {
		t.Fatalf("fail begin: err=%v ran=%v", err, ran)
	}
}

func TestHooksRecorderStatuses(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("Catalog.Product.Create", "success", time.Millisecond)
	h.ObserveOperation("Lifecycle.Step.Append", "success", time.Millisecond)
	h.ObserveOperation("Catalog.Product.Create", "conflict", time.Millisecond)
	h.IncConflict("Catalog.Product.Create")

	got := h.Statuses("Catalog.Product.Create")
	if len(got) != 2 || got[0] != "success" || got[1] != "conflict" {
		t.Fatalf("statuses: got=%v", got)
	}
	if len(h.Conflicts) != 1 || len(h.Retries) != 0 {
		t.Fatalf("counters: conflicts=%v retries=%v", h.Conflicts, h.Retries)
	}
}
