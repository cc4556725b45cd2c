package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const envFile = "config.env"

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type AppConfig struct {
	HTTPAddr            string
	Storage             string
	Location            *time.Location
	LowBalanceThreshold decimal.Decimal
	LogDir              string
	RedisURL            string
	IdempotencyTTL      time.Duration
}

// loadEnvFile reads config.env when it exists. Variables already present in
// the environment are not overridden.
func loadEnvFile() error {
	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

func LoadConfigDB() (*DBConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdle, err := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	return &DBConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         port,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: maxOpen,
		MaxIdleConns: maxIdle,
	}, nil
}

func LoadConfigApp() (*AppConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	storage := strings.ToLower(getEnv("STORAGE", StoragePostgres))
	if storage != StoragePostgres && storage != StorageMemory {
		return nil, fmt.Errorf("invalid STORAGE: %q", storage)
	}

	loc, err := time.LoadLocation(getEnv("SCHOOL_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHOOL_TIMEZONE: %w", err)
	}

	threshold, err := decimal.NewFromString(getEnv("LOW_BALANCE_THRESHOLD", "100"))
	if err != nil || threshold.IsNegative() {
		return nil, fmt.Errorf("invalid LOW_BALANCE_THRESHOLD: %q", os.Getenv("LOW_BALANCE_THRESHOLD"))
	}

	ttl, err := time.ParseDuration(getEnv("IDEMPOTENCY_TTL", "24h"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL: %q", os.Getenv("IDEMPOTENCY_TTL"))
	}

	return &AppConfig{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		Storage:             storage,
		Location:            loc,
		LowBalanceThreshold: threshold,
		LogDir:              os.Getenv("LOG_DIR"),
		RedisURL:            os.Getenv("REDIS_URL"),
		IdempotencyTTL:      ttl,
	}, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
