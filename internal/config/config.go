package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                     string
	AllowedOrigin            string
	DatabaseDriver           string
	DatabaseURL              string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	DefaultOwnerID           string
	AuthSecret               string
	ManagerPIN               string
	FinancialsCacheTTLSeconds int
	MaxCommitAttempts        int
	LogLevel                 string
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set in the process win.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("FINANCIALS_CACHE_TTL_SECONDS", "30"))
	if err != nil || ttl < 1 {
		ttl = 30
	}
	attempts, err := strconv.Atoi(getEnv("MAX_COMMIT_ATTEMPTS", "5"))
	if err != nil || attempts < 1 {
		attempts = 5
	}

	cfg := Config{
		Port:                     getEnv("PORT", "8080"),
		AllowedOrigin:            getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseDriver:           strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
		DefaultOwnerID:           getEnv("DEFAULT_OWNER_ID", "main-owner"),
		AuthSecret:               strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		ManagerPIN:               strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		FinancialsCacheTTLSeconds: ttl,
		MaxCommitAttempts:        attempts,
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
