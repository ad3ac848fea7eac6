package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	Logger LoggerConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	HTTPAddr string

	RedisAddr     string
	RedisPassword string

	Metering  MeteringConfig
	Reconcile ReconcileConfig
	Scheduler SchedulerConfig
}

type LoggerConfig struct {
	Level string
}

// MeteringConfig configures the external metering/invoicing API client.
type MeteringConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// ReconcileConfig configures the reconciliation engine.
type ReconcileConfig struct {
	// SubmitDelay is the fixed pause between usage-event submissions.
	// The metering vendor throttles aggressively; this is not optional.
	SubmitDelay time.Duration
	// ExcludeTenantID is the internal test tenant skipped by every run.
	ExcludeTenantID int64
}

// SchedulerConfig configures the periodic reconciliation trigger.
type SchedulerConfig struct {
	Interval time.Duration
	Backfill bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "lotshot"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "lotshot"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		Metering: MeteringConfig{
			BaseURL:       strings.TrimRight(getenv("METERING_BASE_URL", "https://api.metering.example.com"), "/"),
			APIKey:        strings.TrimSpace(getenv("METERING_API_KEY", "")),
			Timeout:       getenvDuration("METERING_TIMEOUT", 10*time.Second),
			RetryAttempts: getenvInt("METERING_RETRY_ATTEMPTS", 3),
			RetryDelay:    getenvDuration("METERING_RETRY_DELAY", 500*time.Millisecond),
		},
		Reconcile: ReconcileConfig{
			SubmitDelay:     getenvDuration("RECONCILE_SUBMIT_DELAY", 150*time.Millisecond),
			ExcludeTenantID: getenvInt64("RECONCILE_EXCLUDE_TENANT_ID", 0),
		},
		Scheduler: SchedulerConfig{
			Interval: getenvDuration("SCHEDULER_INTERVAL", time.Hour),
			Backfill: getenvBool("SCHEDULER_BACKFILL", false),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
