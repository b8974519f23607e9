package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, "8080", cfg.Server.Addr)
	require.Equal(t, 60, cfg.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, "int(total)", cfg.Loyalty.EarnExpression)
	require.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("DATABASE_URL", "postgres://localhost/marketplace")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, "whsec_test", cfg.Stripe.WebhookSecret)
	require.Equal(t, "postgres://localhost/marketplace", cfg.Database.URL)
	require.Equal(t, 5, cfg.RateLimit.Requests)
}
