package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the client.
type Config struct {
	APIURL       string
	FeedURL      string
	HTTPTimeout  time.Duration
	HoldWarning  time.Duration
	GuestSession string
	StateDir     string
	DisableFeed  bool

	LogLevel  string
	LogFile   string
	LogFormat string
}

// Load reads an optional .env file from the working directory and then the
// environment. Values already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		APIURL:       getEnv("BOOKING_API_URL", "http://localhost:8080/api/v1"),
		FeedURL:      getEnv("BOOKING_WS_URL", ""),
		HTTPTimeout:  getDurationEnv("BOOKING_HTTP_TIMEOUT", 12*time.Second),
		HoldWarning:  getDurationEnv("BOOKING_HOLD_WARNING", 60*time.Second),
		GuestSession: getEnv("BOOKING_GUEST_SESSION", ""),
		StateDir:     getEnv("BOOKING_STATE_DIR", ""),
		DisableFeed:  getBoolEnv("BOOKING_DISABLE_FEED", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}
