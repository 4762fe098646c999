package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabasePath string
	Port         string
	BaseURL      string

	JWTSecret    string
	GeminiAPIKey string

	SynthesisTimeout time.Duration
	LockStaleAfter   time.Duration

	NudgeCooldown    time.Duration
	NudgeMaxPerCycle int

	LogLevel string
}

func Load() (Config, error) {
	config := Config{
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/ritual.db"),
		Port:             envOrDefault("PORT", "8080"),
		BaseURL:          envOrDefault("BASE_URL", "http://localhost:8080"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		SynthesisTimeout: envDurationOrDefault("SYNTH_TIMEOUT_SECONDS", time.Second, 90*time.Second),
		LockStaleAfter:   envDurationOrDefault("LOCK_STALE_AFTER_MINUTES", time.Minute, 10*time.Minute),
		NudgeCooldown:    envDurationOrDefault("NUDGE_COOLDOWN_HOURS", time.Hour, 4*time.Hour),
		NudgeMaxPerCycle: envIntOrDefault("NUDGE_MAX_PER_CYCLE", 3),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
	}

	if config.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	return config, nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func envDurationOrDefault(key string, unit time.Duration, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return defaultValue
}
