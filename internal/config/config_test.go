package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_JWT_SECRET", "jwt-secret")
	t.Setenv("GOOGLE_AI_API_KEY", "ai-key")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 8000, cfg.MaxContentLength)
	assert.Equal(t, 3, cfg.MinSuggestions)
	assert.Equal(t, 10, cfg.MaxSuggestions)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, "gemini-1.5-flash", cfg.GoogleAIModel)
	assert.Equal(t, "paystack", cfg.PaymentProvider)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
}

func TestValidate_MissingSecretsFailFast(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"jwt secret", "AUTH_JWT_SECRET"},
		{"ai key", "GOOGLE_AI_API_KEY"},
		{"paystack key", "PAYSTACK_SECRET_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			cfg, err := Load()
			require.NoError(t, err)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.unset)
		})
	}
}

func TestValidate_LemonSqueezyProvider(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYMENT_PROVIDER", "lemonsqueezy")
	t.Setenv("PAYSTACK_SECRET_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	t.Setenv("LEMONSQUEEZY_API_KEY", "ls_key")
	cfg, err = Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestValidate_UnknownProvider(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYMENT_PROVIDER", "stripe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestValidate_Bounds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RETRY_MAX_ATTEMPTS", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	setRequiredEnv(t)
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("MIN_SUGGESTIONS", "5")
	t.Setenv("MAX_SUGGESTIONS", "4")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestRedditEnabled(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.RedditEnabled())

	t.Setenv("REDDIT_CLIENT_ID", "cid")
	t.Setenv("REDDIT_CLIENT_SECRET", "csecret")
	t.Setenv("REDDIT_REDIRECT_URL", "https://app.example.com/reddit/callback")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.RedditEnabled())
}
