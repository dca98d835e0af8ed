package config

import (
	"context"
	"fmt"
	"strings"
)

// ParamGetter reads one secret parameter by name.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ResolveSecrets fills empty secret fields from the parameter store under
// SSMPrefix. Values already set from the environment win. It is a no-op when
// no prefix is configured.
func (c *Config) ResolveSecrets(ctx context.Context, params ParamGetter) error {
	prefix := strings.TrimRight(strings.TrimSpace(c.SSMPrefix), "/")
	if prefix == "" {
		return nil
	}

	secrets := []struct {
		name   string
		target *string
		needed bool
	}{
		{"anthropic_api_key", &c.AnthropicAPIKey, c.LLMProvider == LLMAnthropic},
		{"openai_api_key", &c.OpenAIAPIKey, c.LLMProvider == LLMOpenAI},
		{"slack_bot_token", &c.SlackBotToken, c.Transport == TransportSlack},
		{"slack_app_token", &c.SlackAppToken, c.Transport == TransportSlack},
		{"payment_access_token", &c.PaymentAccessToken, true},
	}

	for _, s := range secrets {
		if !s.needed || *s.target != "" {
			continue
		}
		value, err := params.GetParameter(ctx, prefix+"/"+s.name)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", s.name, err)
		}
		*s.target = strings.TrimSpace(value)
	}
	return nil
}
