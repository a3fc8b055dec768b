// Package testutil provides transaction and hook doubles for aggregate tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/lifeapp/lifecycle-backend/internal/data/aggregates"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

// InjectedTxRunner runs bodies without a database. Errors queued in Commits are
// returned after successful bodies, one per InTx call, to simulate commit failures
// such as serialization conflicts.
type InjectedTxRunner struct {
	mu sync.Mutex

	FailBegin error
	Commits   []error

	Begins    int
	Committed int
	RolledBk  int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.Begins++
	if r.FailBegin != nil {
		err := r.FailBegin
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	var bodyErr error
	if fn != nil {
		bodyErr = fn(dbctx.Context{Ctx: ctx})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if bodyErr != nil {
		r.RolledBk++
		return bodyErr
	}
	if len(r.Commits) > 0 {
		err := r.Commits[0]
		r.Commits = r.Commits[1:]
		if err != nil {
			r.RolledBk++
			return err
		}
	}
	r.Committed++
	return nil
}

// HooksRecorder captures aggregate hook signals.
type HooksRecorder struct {
	mu sync.Mutex

	Operations []OperationEvent
	Conflicts  []string
	Retries    []string
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{Name: name, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, name)
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, name)
}

// Statuses lists the recorded statuses of one operation in call order.
func (h *HooksRecorder) Statuses(name string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, ev := range h.Operations {
		if ev.Name == name {
			out = append(out, ev.Status)
		}
	}
	return out
}
