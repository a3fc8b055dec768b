// Package anthropic adapts the Anthropic Messages API to the text completion
// contract used by the summarizer.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lifeapp/lifecycle-backend/internal/observability"
	"github.com/lifeapp/lifecycle-backend/internal/platform/envutil"
	"github.com/lifeapp/lifecycle-backend/internal/platform/logger"
)

// messagesAPI is the subset of anthropic.MessageService in use.
type messagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:    envutil.String("ANTHROPIC_API_KEY", ""),
		Model:     envutil.String("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		MaxTokens: int64(envutil.Int("ANTHROPIC_MAX_TOKENS", 2048)),
	}
}

type Client struct {
	log       *logger.Logger
	messages  messagesAPI
	model     string
	maxTokens int64
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	sdk := anthropic.NewClient(option.WithAPIKey(strings.TrimSpace(cfg.APIKey)))
	return newWithAPI(log, &sdk.Messages, cfg), nil
}

func newWithAPI(log *logger.Logger, api messagesAPI, cfg Config) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Client{
		log:       log.With("service", "AnthropicClient"),
		messages:  api,
		model:     strings.TrimSpace(cfg.Model),
		maxTokens: cfg.MaxTokens,
	}
}

func (c *Client) Model() string { return c.model }

// Complete sends one user turn. The system prompt leads the turn, separated by a rule.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	prompt := user
	if s := strings.TrimSpace(system); s != "" {
		prompt = s + "\n\n---\n\n" + user
	}
	start := time.Now()
	resp, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	metrics := observability.Current()
	if err != nil {
		metrics.ObserveLLMRequest("anthropic", c.model, "messages", "error", time.Since(start), 0, 0)
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	metrics.ObserveLLMRequest("anthropic", c.model, "messages", "200", time.Since(start),
		int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("anthropic response had no text content")
	}
	return out.String(), nil
}
