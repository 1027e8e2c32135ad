package config

import (
	"os"
	"testing"
	"time"

	"github.com/Dan9191/credit-service/internal/amortization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "STORAGE_DRIVER", "DB_CONN", "JWT_SECRET", "PENALTY_RATE", "MIN_CREDIT_AMOUNT",
	"PERIOD_UNIT", "PERIOD_COUNT", "CORE_SERVICE_URL", "CORE_SERVICE_TIMEOUT", "SWEEP_CRON",
	"SMTP_HOST", "CREDIT_HMAC_SECRET", "LOG_LEVEL",
}

// clearEnv unsets the variables for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		if prev, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { os.Setenv(key, prev) })
		}
	}
}

// withSecrets clears the environment and sets the required secrets
func withSecrets(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("CREDIT_HMAC_SECRET", "hmac-secret")
}

func TestNewConfigDefaults(t *testing.T) {
	withSecrets(t)
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, "0.1", cfg.PenaltyRate.String())
	assert.Equal(t, "1000", cfg.MinCreditAmount.String())
	assert.Equal(t, amortization.Monthly(), cfg.PeriodStep)
	assert.Equal(t, 10*time.Second, cfg.CoreServiceTimeout)
	assert.Equal(t, "@every 1h", cfg.SweepCron)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "jwt-secret", cfg.JWTSecret)
	assert.Equal(t, "hmac-secret", cfg.CreditHMACKey)
	assert.False(t, cfg.EmailEnabled())
}

func TestNewConfigRequiresSecrets(t *testing.T) {
	clearEnv(t)
	_, err := NewConfig()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "jwt-secret")
	_, err = NewConfig()
	assert.ErrorContains(t, err, "CREDIT_HMAC_SECRET")
}

func TestNewConfigOverrides(t *testing.T) {
	withSecrets(t)
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("PENALTY_RATE", "0.05")
	t.Setenv("PERIOD_UNIT", "minute")
	t.Setenv("PERIOD_COUNT", "5")
	t.Setenv("CORE_SERVICE_URL", "http://core:8080/")
	t.Setenv("CORE_SERVICE_TIMEOUT", "3s")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, "0.05", cfg.PenaltyRate.String())
	assert.Equal(t, amortization.PeriodStep{Unit: amortization.UnitMinute, Count: 5}, cfg.PeriodStep)
	assert.Equal(t, "http://core:8080", cfg.CoreServiceURL)
	assert.Equal(t, 3*time.Second, cfg.CoreServiceTimeout)
	assert.True(t, cfg.EmailEnabled())
}

func TestNewConfigRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"penalty rate":   {"PENALTY_RATE", "ten percent"},
		"negative rate":  {"PENALTY_RATE", "-0.1"},
		"period unit":    {"PERIOD_UNIT", "fortnight"},
		"period count":   {"PERIOD_COUNT", "0"},
		"timeout":        {"CORE_SERVICE_TIMEOUT", "soon"},
		"storage driver": {"STORAGE_DRIVER", "mongo"},
		"jwt secret":     {"JWT_SECRET", ""},
		"hmac secret":    {"CREDIT_HMAC_SECRET", ""},
		"min amount":     {"MIN_CREDIT_AMOUNT", "lots"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			withSecrets(t)
			t.Setenv(kv[0], kv[1])
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}
