package config

import (
	"os"
	"strconv"
	"time"

	"poker_arena/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	JWTSecret   string
	LogLevel    string
	LogJSON     bool

	// Matchmaking
	MatchTimeout time.Duration
	RatingRange  int

	// Battle
	TotalRounds  int
	RoundTimeout time.Duration

	// API rate limiting
	APIRateLimit  int
	APIRateWindow time.Duration
}

// Load reads configuration from the environment (.env is honored if present).
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		AppPort:     port,
		DatabaseURL: dbURL,
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:     envInt("REDIS_DB", 0),
		JWTSecret:   jwtSecret,
		LogLevel:    envStr("LOG_LEVEL", "info"),
		LogJSON:     os.Getenv("LOG_JSON") == "true",

		MatchTimeout: envSeconds("MATCH_TIMEOUT_SECONDS", 120),
		RatingRange:  envInt("RATING_RANGE", 200),

		TotalRounds:  envInt("TOTAL_ROUNDS", 5),
		RoundTimeout: envSeconds("ROUND_TIMEOUT_SECONDS", 45),

		APIRateLimit:  envInt("API_RATE_LIMIT", 60),
		APIRateWindow: envSeconds("API_RATE_WINDOW_SECONDS", 60),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}
