package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultHTTPAddr        = ":8765"
	defaultDBPath          = "/data/sentinel_console.db"
	defaultBackendURL      = "http://127.0.0.1:5000"
	defaultStatusInterval  = time.Second
	defaultResultsInterval = 2 * time.Second
	defaultCycleInterval   = 2 * time.Second
)

// Config stores runtime settings loaded from environment variables.
type Config struct {
	HTTPAddr        string
	DBPath          string
	BackendURL      string
	BackendToken    string
	StatusInterval  time.Duration
	ResultsInterval time.Duration
	CycleInterval   time.Duration
	LogLevel        slog.Level
}

// Load builds Config from environment variables using stable defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", defaultHTTPAddr),
		DBPath:          getenv("DB_PATH", defaultDBPath),
		BackendURL:      getenv("BACKEND_URL", defaultBackendURL),
		BackendToken:    os.Getenv("BACKEND_TOKEN"),
		StatusInterval:  parseDuration("STATUS_POLL_INTERVAL", defaultStatusInterval),
		ResultsInterval: parseDuration("RESULTS_POLL_INTERVAL", defaultResultsInterval),
		CycleInterval:   parseDuration("NOTIFY_CYCLE_INTERVAL", defaultCycleInterval),
		LogLevel:        parseLogLevel(getenv("LOG_LEVEL", "info")),
	}
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
