package bus

import (
	"context"
	"sync"

	"github.com/lifeapp/lifecycle-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, ev realtime.Event) error
	// Subscribe delivers events to onEvent until ctx is done.
	Subscribe(ctx context.Context, onEvent func(ev realtime.Event)) error
	Close() error
}

type noopBus struct{}

// NewNoop returns a bus that drops everything.
func NewNoop() Bus { return noopBus{} }

func (noopBus) Publish(context.Context, realtime.Event) error { return nil }
func (noopBus) Subscribe(context.Context, func(realtime.Event)) error { return nil }
func (noopBus) Close() error { return nil }

// MemoryBus delivers synchronously to in-process subscribers and keeps a copy of
// every published event.
type MemoryBus struct {
	mu        sync.Mutex
	published []realtime.Event
	subs      []func(realtime.Event)
}

func NewMemory() *MemoryBus { return &MemoryBus{} }

func (b *MemoryBus) Publish(_ context.Context, ev realtime.Event) error {
	b.mu.Lock()
	b.published = append(b.published, ev)
	subs := append([]func(realtime.Event){}, b.subs...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, onEvent func(realtime.Event)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, onEvent)
	return nil
}

func (b *MemoryBus) Close() error { return nil }

// Events returns the published events of type t, or all when t is empty.
func (b *MemoryBus) Events(t realtime.EventType) []realtime.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []realtime.Event
	for _, ev := range b.published {
		if t == "" || ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
