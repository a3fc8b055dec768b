package lifecycle

import (
	"context"

	"github.com/lifeapp/lifecycle-backend/internal/platform/openai"
)

type openAICompleter struct {
	client openai.Client
}

// NewOpenAICompleter summarizes through the OpenAI Responses API.
func NewOpenAICompleter(client openai.Client) Completer {
	if client == nil {
		return nil
	}
	return openAICompleter{client: client}
}

func (c openAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return c.client.GenerateText(ctx, system, user)
}

func (c openAICompleter) Model() string { return c.client.Model() }
