package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken         string
	PostgresDSN      string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	RootAdminID      int64
	AdminUsername    string
	CacheTTLSecs     int
	BroadcastWorkers int
}

// New loads configuration from the environment (with .env as a fallback for
// local runs) and validates the required values.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:         os.Getenv("BOT_TOKEN"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		RedisHost:        getEnvDefault("REDIS_HOST", "localhost"),
		RedisPort:        getEnvDefault("REDIS_PORT", "6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		AdminUsername:    getEnvDefault("ADMIN_USERNAME", "@admin"),
		CacheTTLSecs:     getEnvInt("CACHE_TTL_SECONDS", 300),
		BroadcastWorkers: getEnvInt("BROADCAST_WORKERS", 3),
	}

	rootID, err := strconv.ParseInt(strings.TrimSpace(os.Getenv("ROOT_ADMIN_ID")), 10, 64)
	if err != nil || rootID == 0 {
		return nil, fmt.Errorf("ROOT_ADMIN_ID must be set to the root admin's telegram id")
	}
	cfg.RootAdminID = rootID

	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}
	// POSTGRES_DSN may stay empty: the store falls back to the discrete
	// POSTGRES_* variables.

	return cfg, nil
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func getEnvDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
