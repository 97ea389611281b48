package llm

import (
	"fmt"

	"github.com/talkdataco/financial-assistant/internal/config"
)

// NewProvider creates an LLM client based on the configured provider.
func NewProvider(cfg *config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "ollama", "openai":
		return NewOpenAI(cfg)
	case "anthropic":
		return NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
