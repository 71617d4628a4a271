// Package config loads process Settings from the environment and declares
// the process-lifetime BookmakerConfig table, following the same
// typed-struct-over-raw-getenv convention this codebase has always used for
// its component configs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna-bet/retador/internal/corerr"
)

// Settings is the full environment-driven configuration surface (§6).
type Settings struct {
	APIURL       string
	APIToken     string
	APITimeout   time.Duration

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisUsername string

	TelegramBotTokens  []string
	TelegramLogChannel int64

	PollingBaseInterval time.Duration
	PollingMaxInterval  time.Duration

	MinOdds   float64
	MaxOdds   float64
	MinProfit float64
	MaxProfit float64

	ConcurrentPicks    int
	ConcurrentRequests int

	CacheTTL     time.Duration
	CacheMaxSize int

	ClosingLineDSN string // optional; empty disables the recorder
}

// Load reads Settings from the process environment, applying defaults for
// everything the spec doesn't mark required, and failing fast for the two
// required credentials.
func Load() (Settings, error) {
	s := Settings{
		APIURL:     getEnv("API_URL", "https://api.apostasseguras.com"),
		APIToken:   os.Getenv("API_TOKEN"),
		APITimeout: getDuration("API_TIMEOUT", 30*time.Second),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),

		TelegramLogChannel: getInt64("TELEGRAM_LOG_CHANNEL", 0),

		PollingBaseInterval: getDuration("POLLING_BASE_INTERVAL", 500*time.Millisecond),
		PollingMaxInterval:  getDuration("POLLING_MAX_INTERVAL", 5*time.Second),

		MinOdds:   getFloat("MIN_ODDS", 1.10),
		MaxOdds:   getFloat("MAX_ODDS", 9.99),
		MinProfit: getFloat("MIN_PROFIT", -1.0),
		MaxProfit: getFloat("MAX_PROFIT", 25.0),

		ConcurrentPicks:    getInt("CONCURRENT_PICKS", 250),
		ConcurrentRequests: getInt("CONCURRENT_REQUESTS", 10),

		CacheTTL:     getDuration("CACHE_TTL", 60*time.Second),
		CacheMaxSize: getInt("CACHE_MAX_SIZE", 10000),

		ClosingLineDSN: os.Getenv("CLOSING_LINE_DSN"),
	}

	if tokens := os.Getenv("TELEGRAM_BOT_TOKENS"); tokens != "" {
		for _, t := range strings.Split(tokens, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				s.TelegramBotTokens = append(s.TelegramBotTokens, t)
			}
		}
	}

	if s.APIToken == "" {
		return s, &corerr.ConfigurationError{Field: "API_TOKEN", Reason: "must be set"}
	}
	if len(s.TelegramBotTokens) == 0 {
		return s, &corerr.ConfigurationError{Field: "TELEGRAM_BOT_TOKENS", Reason: "must contain at least one token"}
	}

	return s, nil
}

// RedisAddr returns the host:port pair go-redis expects.
func (s Settings) RedisAddr() string {
	return fmt.Sprintf("%s:%s", s.RedisHost, s.RedisPort)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}
