package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	HTTPPort    string
	IPHashSalt  string

	IdempotencyWindow time.Duration

	Rollup   RollupConfig
	Postgres PostgresConfig
}

type RollupConfig struct {
	Hour   int
	Minute int
}

type PostgresConfig struct {
	Host            string
	Port            string
	Database        string
	Username        string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		IPHashSalt:        getEnv("IP_HASH_SALT", "dev-only-salt"),
		IdempotencyWindow: getEnvAsDuration("IDEMPOTENCY_WINDOW", 24*time.Hour),
	}

	cfg.Rollup = RollupConfig{
		Hour:   getEnvAsInt("ROLLUP_HOUR", 1),
		Minute: getEnvAsInt("ROLLUP_MINUTE", 5),
	}

	if cfg.Rollup.Hour < 0 || cfg.Rollup.Hour > 23 || cfg.Rollup.Minute < 0 || cfg.Rollup.Minute > 59 {
		return nil, fmt.Errorf("invalid rollup schedule %02d:%02d", cfg.Rollup.Hour, cfg.Rollup.Minute)
	}

	cfg.Postgres = PostgresConfig{
		Host:            getEnv("POSTGRES_HOST", "localhost"),
		Port:            getEnv("POSTGRES_PORT", "5432"),
		Database:        getEnv("POSTGRES_DB", "analytics"),
		Username:        getEnv("POSTGRES_USER", "admin"),
		Password:        getEnv("POSTGRES_PASSWORD", "password"),
		MaxOpenConns:    getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
	}

	return cfg, nil
}

func (c *PostgresConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
