package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
)

// ErrEmbeddingsUnsupported is returned by providers that cannot produce embeddings.
var ErrEmbeddingsUnsupported = errors.New("provider does not support embeddings")

type Provider interface {
	// Analyze sends the system and user messages and returns a structured response
	Analyze(ctx context.Context, systemMessages []string, userMessages []string, opts ...Option) (*Response, error)

	// Embed returns one embedding vector per input text
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Add accumulates usage across multiple LLM calls.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

type Option func(*Options)

type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	Tools       []openai.ChatCompletionToolParam
}

func WithModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithMaxTokens(n int64) Option {
	return func(o *Options) {
		if n != 0 {
			o.MaxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(o *Options) {
		if t != 0 {
			o.Temperature = t
		}
	}
}

func WithTools(tools []openai.ChatCompletionToolParam) Option {
	return func(o *Options) {
		o.Tools = tools
	}
}

// FunctionResponse represents the structured response from a function call
type FunctionResponse struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Response holds the model output, including function calling results
type Response struct {
	Content      string
	FunctionCall *FunctionResponse
	Usage        Usage
}
