package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/talkdataco/financial-assistant/internal/config"
)

// OpenAI client implementation. An Ollama instance exposes the same chat and
// embeddings surface on its /v1 endpoint, so the "ollama" provider reuses this
// client with a different base URL.
type OpenAI struct {
	client *openai.Client
	cfg    *config.LLMConfig
}

func NewOpenAI(cfg *config.LLMConfig) (*OpenAI, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// Ollama ignores the key but the client requires one.
		apiKey = "ollama"
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.Endpoint),
	)

	return &OpenAI{
		client: client,
		cfg:    cfg,
	}, nil
}

func (o *OpenAI) Analyze(ctx context.Context, systemMessages []string, userMessages []string, opts ...Option) (*Response, error) {
	options := &Options{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}
	for _, opt := range opts {
		opt(options)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(systemMessages)+len(userMessages))
	for _, m := range systemMessages {
		messages = append(messages, openai.SystemMessage(m))
	}
	for _, m := range userMessages {
		messages = append(messages, openai.UserMessage(m))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.F(options.Model),
		Messages:    openai.F(messages),
		Temperature: openai.F(options.Temperature),
		MaxTokens:   openai.F(options.MaxTokens),
	}
	if len(options.Tools) > 0 {
		params.Tools = openai.F(options.Tools)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	response := &Response{
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	// Check for function calls in the response
	if len(resp.Choices) > 0 && len(resp.Choices[0].Message.ToolCalls) > 0 {
		toolCall := resp.Choices[0].Message.ToolCalls[0]
		response.FunctionCall = &FunctionResponse{
			Name:      toolCall.Function.Name,
			Arguments: toolCall.Function.Arguments,
		}
	} else if len(resp.Choices) > 0 {
		response.Content = resp.Choices[0].Message.Content
	}

	return response, nil
}

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.F(o.cfg.EmbeddingModel),
		Input: openai.F[openai.EmbeddingNewParamsInputUnion](openai.EmbeddingNewParamsInputArrayOfStrings(texts)),
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
