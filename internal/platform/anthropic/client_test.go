package anthropic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type fakeMessages struct {
	calls int
	last  anthropic.MessageNewParams
	resp  *anthropic.Message
	err   error
}

func (f *fakeMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.calls++
	f.last = body
	return f.resp, f.err
}

func TestCompleteJoinsTextBlocks(t *testing.T) {
	fake := &fakeMessages{resp: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "text", Text: `{"summary":`},
		{Type: "text", Text: `"ok"}`},
	}}}
	c := newWithAPI(nil, fake, Config{Model: "claude-test", MaxTokens: 512})

	got, err := c.Complete(context.Background(), "be terse", "summarize")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"summary":"ok"}` {
		t.Fatalf("text: got=%s", got)
	}
	if fake.last.MaxTokens != 512 || string(fake.last.Model) != "claude-test" {
		t.Fatalf("params: max_tokens=%d model=%s", fake.last.MaxTokens, fake.last.Model)
	}
	if c.Model() != "claude-test" {
		t.Fatalf("model: got=%s", c.Model())
	}
}

func TestCompleteErrors(t *testing.T) {
	boom := errors.New("overloaded")
	c := newWithAPI(nil, &fakeMessages{err: boom}, Config{Model: "m"})
	if _, err := c.Complete(context.Background(), "", "x"); !errors.Is(err, boom) {
		t.Fatalf("api error: want wrapped got=%v", err)
	}

	empty := newWithAPI(nil, &fakeMessages{resp: &anthropic.Message{}}, Config{Model: "m"})
	if _, err := empty.Complete(context.Background(), "", "x"); err == nil || !strings.Contains(err.Error(), "no text") {
		t.Fatalf("empty: got=%v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(nil, Config{}); err == nil {
		t.Fatalf("want missing key error")
	}
}
