// Package config provides configuration loading for the shopkeeper bot.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend selects the persistence backend.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendDynamoDB Backend = "dynamodb"
)

// ConversationStore selects where dialogue state lives.
type ConversationStore string

const (
	ConversationMemory   ConversationStore = "memory"
	ConversationDynamoDB ConversationStore = "dynamodb"
)

// Transport selects the messaging channel.
type Transport string

const (
	TransportSlack   Transport = "slack"
	TransportWebhook Transport = "webhook"
)

// LLMProvider selects the language-understanding provider.
type LLMProvider string

const (
	LLMAnthropic LLMProvider = "anthropic"
	LLMOpenAI    LLMProvider = "openai"
)

// Config holds all configuration for the bot.
type Config struct {
	// Backend is chosen once at startup
	Backend       Backend
	SQLitePath    string
	SeedGlob      string
	DynamoDBTable string

	// Conversation state
	ConversationStore ConversationStore
	ConversationTable string
	ConversationTTL   time.Duration

	// Messaging
	Transport          Transport
	SlackBotToken      string
	SlackAppToken      string
	WebhookOutboundURL string
	ReplyDelay         time.Duration
	SendAttempts       int
	AdminPrefix        string

	// Language understanding
	LLMProvider     LLMProvider
	LLMModel        string
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// Payments
	PaymentAPIURL      string
	PaymentAccessToken string
	PaymentTolerance   float64
	PaymentLookback    time.Duration

	// Business
	CacheTTL     time.Duration
	DefaultStore string
	Timezone     string

	// Optional settings
	HTTPAddr  string
	SSMPrefix string
	LogLevel  string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Set prefix for environment variables
	v.SetEnvPrefix("SHOPKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("BACKEND", string(BackendSQLite))
	v.SetDefault("SQLITE_PATH", "./data/shop.db")
	v.SetDefault("SEED_GLOB", "")
	v.SetDefault("CONVERSATION_STORE", string(ConversationMemory))
	v.SetDefault("CONVERSATION_TTL", "30m")
	v.SetDefault("TRANSPORT", string(TransportSlack))
	v.SetDefault("REPLY_DELAY", "1500ms")
	v.SetDefault("SEND_ATTEMPTS", 3)
	v.SetDefault("ADMIN_PREFIX", "#")
	v.SetDefault("LLM_PROVIDER", string(LLMAnthropic))
	v.SetDefault("PAYMENT_API_URL", "https://api.mercadopago.com")
	v.SetDefault("PAYMENT_TOLERANCE", 10)
	v.SetDefault("PAYMENT_LOOKBACK", "60m")
	v.SetDefault("CACHE_TTL", "10s")
	v.SetDefault("DEFAULT_STORE", "central")
	v.SetDefault("TIMEZONE", "America/Argentina/Buenos_Aires")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Backend:            Backend(v.GetString("BACKEND")),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		SeedGlob:           v.GetString("SEED_GLOB"),
		DynamoDBTable:      v.GetString("DYNAMODB_TABLE"),
		ConversationStore:  ConversationStore(v.GetString("CONVERSATION_STORE")),
		ConversationTable:  v.GetString("CONVERSATION_TABLE"),
		ConversationTTL:    v.GetDuration("CONVERSATION_TTL"),
		Transport:          Transport(v.GetString("TRANSPORT")),
		SlackBotToken:      v.GetString("SLACK_BOT_TOKEN"),
		SlackAppToken:      v.GetString("SLACK_APP_TOKEN"),
		WebhookOutboundURL: v.GetString("WEBHOOK_OUTBOUND_URL"),
		ReplyDelay:         v.GetDuration("REPLY_DELAY"),
		SendAttempts:       v.GetInt("SEND_ATTEMPTS"),
		AdminPrefix:        v.GetString("ADMIN_PREFIX"),
		LLMProvider:        LLMProvider(v.GetString("LLM_PROVIDER")),
		LLMModel:           v.GetString("LLM_MODEL"),
		AnthropicAPIKey:    v.GetString("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:       v.GetString("OPENAI_API_KEY"),
		PaymentAPIURL:      v.GetString("PAYMENT_API_URL"),
		PaymentAccessToken: v.GetString("PAYMENT_ACCESS_TOKEN"),
		PaymentTolerance:   v.GetFloat64("PAYMENT_TOLERANCE"),
		PaymentLookback:    v.GetDuration("PAYMENT_LOOKBACK"),
		CacheTTL:           v.GetDuration("CACHE_TTL"),
		DefaultStore:       v.GetString("DEFAULT_STORE"),
		Timezone:           v.GetString("TIMEZONE"),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		SSMPrefix:          v.GetString("SSM_PREFIX"),
		LogLevel:           v.GetString("LOG_LEVEL"),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	switch c.Backend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, "SHOPKEEPER_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			errs = append(errs, "SHOPKEEPER_DYNAMODB_TABLE is required for the dynamodb backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid backend %q, must be 'sqlite' or 'dynamodb'", c.Backend))
	}

	switch c.ConversationStore {
	case ConversationMemory:
	case ConversationDynamoDB:
		if c.ConversationTable == "" {
			errs = append(errs, "SHOPKEEPER_CONVERSATION_TABLE is required for the dynamodb conversation store")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid conversation store %q, must be 'memory' or 'dynamodb'", c.ConversationStore))
	}

	switch c.Transport {
	case TransportSlack:
		if c.SlackBotToken == "" {
			errs = append(errs, "SHOPKEEPER_SLACK_BOT_TOKEN is required")
		}
		if c.SlackAppToken == "" {
			errs = append(errs, "SHOPKEEPER_SLACK_APP_TOKEN is required")
		}
	case TransportWebhook:
		if c.WebhookOutboundURL == "" {
			errs = append(errs, "SHOPKEEPER_WEBHOOK_OUTBOUND_URL is required for the webhook transport")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid transport %q, must be 'slack' or 'webhook'", c.Transport))
	}

	switch c.LLMProvider {
	case LLMAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, "SHOPKEEPER_ANTHROPIC_API_KEY is required")
		}
	case LLMOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, "SHOPKEEPER_OPENAI_API_KEY is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid llm provider %q, must be 'anthropic' or 'openai'", c.LLMProvider))
	}

	if c.PaymentAccessToken == "" {
		errs = append(errs, "SHOPKEEPER_PAYMENT_ACCESS_TOKEN is required")
	}
	if c.PaymentTolerance < 0 {
		errs = append(errs, "SHOPKEEPER_PAYMENT_TOLERANCE must not be negative")
	}
	if c.PaymentLookback <= 0 {
		errs = append(errs, "SHOPKEEPER_PAYMENT_LOOKBACK must be positive")
	}
	if c.SendAttempts < 1 {
		errs = append(errs, "SHOPKEEPER_SEND_ATTEMPTS must be at least 1")
	}
	if strings.TrimSpace(c.AdminPrefix) == "" {
		errs = append(errs, "SHOPKEEPER_ADMIN_PREFIX must not be blank")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone %q", c.Timezone))
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// Location returns the business time zone, UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
