package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTP_PORT string
	DB_STRING string

	REDIS_ADDR string
	REDIS_DB   int

	KAFKA_BROKERS string
	KAFKA_TOPIC   string

	// eSewa merchant integration
	ESEWA_SECRET_KEY   string
	ESEWA_PRODUCT_CODE string
	ESEWA_BASE_URL     string
	ESEWA_STATUS_CHECK bool

	// Window after order creation within which a confirmation is honored.
	SETTLEMENT_TTL time.Duration
	// TTL of the per-transaction redis lock.
	LOCK_TTL time.Duration

	SEED_ADMIN_TOKEN string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		HTTP_PORT:          getEnv("HTTP_PORT", "8080"),
		DB_STRING:          os.Getenv("DB_STRING"),
		REDIS_ADDR:         getEnv("REDIS_ADDR", "localhost:6379"),
		KAFKA_BROKERS:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		KAFKA_TOPIC:        getEnv("KAFKA_TOPIC", "order-settlements"),
		ESEWA_SECRET_KEY:   os.Getenv("ESEWA_SECRET_KEY"),
		ESEWA_PRODUCT_CODE: os.Getenv("ESEWA_PRODUCT_CODE"),
		ESEWA_BASE_URL:     getEnv("ESEWA_BASE_URL", "https://rc.esewa.com.np"),
		SEED_ADMIN_TOKEN:   getEnv("SEED_ADMIN_TOKEN", "dev-admin-token"),
	}

	if cfg.DB_STRING == "" {
		return nil, fmt.Errorf("DB_STRING must not be empty")
	}
	if cfg.ESEWA_SECRET_KEY == "" {
		return nil, fmt.Errorf("ESEWA_SECRET_KEY must not be empty")
	}
	if cfg.ESEWA_PRODUCT_CODE == "" {
		return nil, fmt.Errorf("ESEWA_PRODUCT_CODE must not be empty")
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.REDIS_DB = redisDB

	ttlMin, err := getEnvInt("SETTLEMENT_TTL_MIN", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLEMENT_TTL_MIN: %w", err)
	}
	if ttlMin <= 0 {
		return nil, fmt.Errorf("SETTLEMENT_TTL_MIN must be > 0")
	}
	cfg.SETTLEMENT_TTL = time.Duration(ttlMin) * time.Minute

	lockSec, err := getEnvInt("LOCK_TTL_SEC", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_TTL_SEC: %w", err)
	}
	if lockSec <= 0 {
		return nil, fmt.Errorf("LOCK_TTL_SEC must be > 0")
	}
	cfg.LOCK_TTL = time.Duration(lockSec) * time.Second

	cfg.ESEWA_STATUS_CHECK = strings.EqualFold(getEnv("ESEWA_STATUS_CHECK", "false"), "true")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
