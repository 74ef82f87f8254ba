package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds engine configuration loaded from the environment.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// NLU collaborator
	NLUBaseURL string
	NLUAPIKey  string
	NLUTimeout time.Duration

	// Dialogue engine
	TurnWorkers       int
	PersistMaxRetries int

	// Re-engagement scheduler
	SweepInterval      time.Duration
	IdleThreshold      time.Duration
	SweepBatchSize     int
	MaxFollowUps       int
	FollowUpBaseDelay  time.Duration
	FollowUpMaxDelay   time.Duration
	DeliveryMaxRetries int

	// Per-tenant daily outbound quota for scheduler-originated sends.
	DailyNudgeQuota int
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		NLUBaseURL: getEnv("NLU_BASE_URL", ""),
		NLUAPIKey:  getEnv("NLU_API_KEY", ""),
		NLUTimeout: getEnvAsDuration("NLU_TIMEOUT", 2*time.Second),

		TurnWorkers:       getEnvAsInt("TURN_WORKERS", 4),
		PersistMaxRetries: getEnvAsInt("PERSIST_MAX_RETRIES", 3),

		SweepInterval:      getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
		IdleThreshold:      getEnvAsDuration("IDLE_THRESHOLD", 24*time.Hour),
		SweepBatchSize:     getEnvAsInt("SWEEP_BATCH_SIZE", 50),
		MaxFollowUps:       getEnvAsInt("MAX_FOLLOWUPS", 5),
		FollowUpBaseDelay:  getEnvAsDuration("FOLLOWUP_BASE_DELAY", 24*time.Hour),
		FollowUpMaxDelay:   getEnvAsDuration("FOLLOWUP_MAX_DELAY", 168*time.Hour),
		DeliveryMaxRetries: getEnvAsInt("DELIVERY_MAX_RETRIES", 2),

		DailyNudgeQuota: getEnvAsInt("DAILY_NUDGE_QUOTA", 200),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
