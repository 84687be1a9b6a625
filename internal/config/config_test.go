package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := fromEnv()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DatabaseURL)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, int64(10), cfg.Escrow.FeePercent)
	assert.Equal(t, "ETB", cfg.Escrow.Currency)
	assert.Equal(t, 24*time.Hour, cfg.Escrow.PendingTTL)
	assert.Equal(t, 3, cfg.Gateway.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Queue.SweepInterval)
	assert.Len(t, cfg.AllowedOrigins, 2)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("PLATFORM_FEE_PERCENT", "7")
	t.Setenv("ESCROW_CURRENCY", "usd")
	t.Setenv("GATEWAY_RPS", "2.5")
	t.Setenv("QUEUE_WORKERS", "12")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := fromEnv()

	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Escrow.FeePercent)
	assert.Equal(t, "USD", cfg.Escrow.Currency)
	assert.Equal(t, 2.5, cfg.Gateway.RPS)
	assert.Equal(t, 12, cfg.Queue.Workers)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"fee out of range": {"PLATFORM_FEE_PERCENT", "150"},
		"bad duration":     {"PENDING_TTL", "soon"},
		"bad currency":     {"ESCROW_CURRENCY", "EURO"},
		"bad retries":      {"GATEWAY_MAX_RETRIES", "many"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_ENV", "development")
			t.Setenv(kv[0], kv[1])

			_, err := fromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")
	t.Setenv("GATEWAY_SECRET_KEY", "")

	_, err := fromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_SECRET_KEY")

	t.Setenv("GATEWAY_SECRET_KEY", "sk")
	t.Setenv("GATEWAY_WEBHOOK_SECRET", "whsec")
	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
}

func TestGetDatabaseURL_FromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRESQL_HOST", "db")
	t.Setenv("POSTGRESQL_USER", "app")
	t.Setenv("POSTGRESQL_PASSWORD", "p@ss")
	t.Setenv("POSTGRESQL_DBNAME", "engagement")

	assert.Equal(t, "postgres://app:p%40ss@db:5432/engagement?sslmode=disable", getDatabaseURL())
}
