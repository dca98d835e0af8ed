package llm

import (
	"fmt"

	"github.com/ireland-samantha/shopkeeper-bot/internal/config"
)

// New creates the provider selected by cfg.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.LLMProvider {
	case config.LLMAnthropic:
		return NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.LLMModel), nil
	case config.LLMOpenAI:
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.LLMProvider)
	}
}
