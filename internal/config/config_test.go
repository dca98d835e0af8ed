package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Backend:            BackendSQLite,
		SQLitePath:         "/tmp/shop.db",
		ConversationStore:  ConversationMemory,
		Transport:          TransportSlack,
		SlackBotToken:      "xoxb",
		SlackAppToken:      "xapp",
		LLMProvider:        LLMAnthropic,
		AnthropicAPIKey:    "sk-ant",
		PaymentAccessToken: "mp-token",
		PaymentTolerance:   10,
		PaymentLookback:    time.Hour,
		SendAttempts:       3,
		AdminPrefix:        "#",
		Timezone:           "America/Argentina/Buenos_Aires",
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SHOPKEEPER_BACKEND", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendSQLite, cfg.Backend)
	require.Equal(t, ConversationMemory, cfg.ConversationStore)
	require.Equal(t, 30*time.Minute, cfg.ConversationTTL)
	require.Equal(t, time.Hour, cfg.PaymentLookback)
	require.Equal(t, 10*time.Second, cfg.CacheTTL)
	require.InDelta(t, 10.0, cfg.PaymentTolerance, 0.001)
	require.Equal(t, "#", cfg.AdminPrefix)
	require.Equal(t, 3, cfg.SendAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHOPKEEPER_BACKEND", "dynamodb")
	t.Setenv("SHOPKEEPER_DYNAMODB_TABLE", "shop")
	t.Setenv("SHOPKEEPER_CACHE_TTL", "5s")
	t.Setenv("SHOPKEEPER_PAYMENT_TOLERANCE", "25")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendDynamoDB, cfg.Backend)
	require.Equal(t, "shop", cfg.DynamoDBTable)
	require.Equal(t, 5*time.Second, cfg.CacheTTL)
	require.InDelta(t, 25.0, cfg.PaymentTolerance, 0.001)
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Backend = "spreadsheet"
	cfg.SlackBotToken = ""
	cfg.PaymentAccessToken = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `invalid backend "spreadsheet"`)
	require.Contains(t, err.Error(), "SHOPKEEPER_SLACK_BOT_TOKEN is required")
	require.Contains(t, err.Error(), "SHOPKEEPER_PAYMENT_ACCESS_TOKEN is required")
}

func TestValidate_BackendSpecificKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Backend = BackendDynamoDB
	require.ErrorContains(t, cfg.Validate(), "SHOPKEEPER_DYNAMODB_TABLE")

	cfg = validConfig()
	cfg.ConversationStore = ConversationDynamoDB
	require.ErrorContains(t, cfg.Validate(), "SHOPKEEPER_CONVERSATION_TABLE")

	cfg = validConfig()
	cfg.Transport = TransportWebhook
	require.ErrorContains(t, cfg.Validate(), "SHOPKEEPER_WEBHOOK_OUTBOUND_URL")
}

type fakeParams struct {
	values map[string]string
	err    error
	asked  []string
}

func (f *fakeParams) GetParameter(_ context.Context, name string) (string, error) {
	f.asked = append(f.asked, name)
	if f.err != nil {
		return "", f.err
	}
	return f.values[name], nil
}

func TestResolveSecrets_FillsOnlyEmptyNeededFields(t *testing.T) {
	cfg := validConfig()
	cfg.SSMPrefix = "/shopkeeper/prod/"
	cfg.AnthropicAPIKey = ""
	params := &fakeParams{values: map[string]string{
		"/shopkeeper/prod/anthropic_api_key": " from-ssm \n",
	}}

	require.NoError(t, cfg.ResolveSecrets(context.Background(), params))
	require.Equal(t, "from-ssm", cfg.AnthropicAPIKey)
	require.Equal(t, []string{"/shopkeeper/prod/anthropic_api_key"}, params.asked)
}

func TestResolveSecrets_NoPrefixIsNoop(t *testing.T) {
	cfg := validConfig()
	cfg.AnthropicAPIKey = ""
	params := &fakeParams{}

	require.NoError(t, cfg.ResolveSecrets(context.Background(), params))
	require.Empty(t, params.asked)
}

func TestResolveSecrets_Error(t *testing.T) {
	cfg := validConfig()
	cfg.SSMPrefix = "/p"
	cfg.PaymentAccessToken = ""
	err := cfg.ResolveSecrets(context.Background(), &fakeParams{err: errors.New("denied")})
	require.ErrorContains(t, err, "payment_access_token")
}
