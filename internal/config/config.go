package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/credit-service/internal/amortization"
	"github.com/shopspring/decimal"
)

// Storage drivers
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port            string
	StorageDriver   string
	DBConn          string
	LogLevel        string
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	CBRURL          string
	CreditHMACKey   string
	InternalKeyHash string

	CoreServiceURL     string
	CoreServiceAPIKey  string
	CoreServiceTimeout time.Duration

	PenaltyRate     decimal.Decimal
	MinCreditAmount decimal.Decimal
	PeriodStep      amortization.PeriodStep
	SweepCron       string
	TariffCron      string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		StorageDriver:   strings.ToLower(getEnv("STORAGE_DRIVER", StoragePostgres)),
		DBConn:          getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=credit sslmode=disable"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", ""),
		JWTAudience:     getEnv("JWT_AUDIENCE", ""),
		CBRURL:          getEnv("CBR_URL", "https://www.cbr.ru/DailyInfoWebServ/DailyInfo.asmx"),
		CreditHMACKey:   getEnv("CREDIT_HMAC_SECRET", ""),
		InternalKeyHash: getEnv("INTERNAL_API_KEY_HASH", ""),

		CoreServiceURL:    strings.TrimRight(getEnv("CORE_SERVICE_URL", "http://localhost:8081"), "/"),
		CoreServiceAPIKey: getEnv("CORE_SERVICE_API_KEY", ""),

		SweepCron:  getEnv("SWEEP_CRON", "@every 1h"),
		TariffCron: getEnv("TARIFF_CRON", "@midnight"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "noreply@credit-service.local"),
	}

	var err error
	if cfg.CoreServiceTimeout, err = time.ParseDuration(getEnv("CORE_SERVICE_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid CORE_SERVICE_TIMEOUT: %w", err)
	}
	if cfg.PenaltyRate, err = decimal.NewFromString(getEnv("PENALTY_RATE", "0.1")); err != nil {
		return nil, fmt.Errorf("invalid PENALTY_RATE: %w", err)
	}
	if cfg.PenaltyRate.IsNegative() {
		return nil, fmt.Errorf("PENALTY_RATE must not be negative")
	}
	if cfg.MinCreditAmount, err = decimal.NewFromString(getEnv("MIN_CREDIT_AMOUNT", "1000")); err != nil {
		return nil, fmt.Errorf("invalid MIN_CREDIT_AMOUNT: %w", err)
	}
	count, err := strconv.Atoi(getEnv("PERIOD_COUNT", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid PERIOD_COUNT: %w", err)
	}
	if cfg.PeriodStep, err = amortization.ParsePeriodStep(getEnv("PERIOD_UNIT", "month"), count); err != nil {
		return nil, fmt.Errorf("invalid period step: %w", err)
	}

	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.DBConn == "" {
			return nil, fmt.Errorf("DB_CONN is required")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.CreditHMACKey == "" {
		return nil, fmt.Errorf("CREDIT_HMAC_SECRET is required")
	}

	return cfg, nil
}

// EmailEnabled reports whether overdue notices can be sent
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
