package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/talkdataco/financial-assistant/internal/config"
)

// Anthropic client implementation. The Messages API has no embeddings
// endpoint, so Embed reports ErrEmbeddingsUnsupported and callers fall back
// to local embeddings.
type Anthropic struct {
	client anthropic.Client
	cfg    *config.LLMConfig
}

func NewAnthropic(cfg *config.LLMConfig) (*Anthropic, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	return &Anthropic{
		client: client,
		cfg:    cfg,
	}, nil
}

func (a *Anthropic) Analyze(ctx context.Context, systemMessages []string, userMessages []string, opts ...Option) (*Response, error) {
	options := &Options{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	for _, opt := range opts {
		opt(options)
	}

	system := make([]anthropic.TextBlockParam, 0, len(systemMessages))
	for _, m := range systemMessages {
		system = append(system, anthropic.TextBlockParam{Text: m})
	}

	messages := make([]anthropic.MessageParam, 0, len(userMessages))
	for _, m := range userMessages {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m)))
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(options.Model),
		MaxTokens:   options.MaxTokens,
		System:      system,
		Messages:    messages,
		Temperature: anthropic.Float(options.Temperature),
	})
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Response{
		Content: content.String(),
		Usage: Usage{
			PromptTokens:     msg.Usage.InputTokens,
			CompletionTokens: msg.Usage.OutputTokens,
			TotalTokens:      msg.Usage.InputTokens + msg.Usage.OutputTokens,
		},
	}, nil
}

func (a *Anthropic) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return nil, ErrEmbeddingsUnsupported
}
