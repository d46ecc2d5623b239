package config

import (
	"os"
	"strconv"
	"time"
)

type LedgerConfig struct {
	LockTimeout       time.Duration
	MaxNumberAttempts int
	MaxCreateRetries  int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		LockTimeout:       getEnvAsDuration("LEDGER_LOCK_TIMEOUT", 3*time.Second),
		MaxNumberAttempts: getEnvAsInt("LEDGER_NUMBER_MAX_ATTEMPTS", 100),
		MaxCreateRetries:  getEnvAsInt("LEDGER_CREATE_MAX_RETRIES", 3),
	}
}

func LoadRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
		Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
