package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
	"github.com/bobby-s-dev/weather-consensus/internal/weights"
	"github.com/bobby-s-dev/weather-consensus/pkg/client"
)

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	// Providers holds one entry per provider with an API key or URL set.
	Providers map[models.ProviderID]models.ProviderConfig

	Weights weights.Table

	Client struct {
		Timeout time.Duration
	}

	Scheduler struct {
		Enabled          bool
		FetchInterval    time.Duration
		DefaultLocations []string
	}

	Cache struct {
		Duration time.Duration
		MaxSize  int
	}

	CircuitBreaker struct {
		Threshold int
		Timeout   time.Duration
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}

	History struct {
		Path string
	}

	Tracing struct {
		Endpoint    string
		ServiceName string
	}
}

// ClientConfig returns the transport settings shared by all providers.
func (c *Config) ClientConfig() client.ClientConfig {
	return client.ClientConfig{
		Timeout:        c.Client.Timeout,
		MaxRetries:     c.Retry.MaxRetries,
		RetryDelay:     c.Retry.Delay,
		Multiplier:     c.Retry.Multiplier,
		Threshold:      c.CircuitBreaker.Threshold,
		BreakerTimeout: c.CircuitBreaker.Timeout,
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("FIBER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("FIBER_WRITE_TIMEOUT", "10s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Provider configuration
	cfg.Providers = make(map[models.ProviderID]models.ProviderConfig)
	for _, id := range models.AllProviders {
		prefix := envPrefix(id)
		key := os.Getenv(prefix + "_API_KEY")
		endpoint := os.Getenv(prefix + "_URL")
		if key == "" && endpoint == "" {
			continue
		}
		cfg.Providers[id] = models.ProviderConfig{Endpoint: endpoint, Credential: key}
	}

	// Weight configuration
	table, err := weights.Parse(getEnv("WEIGHTS", weights.Default().String()))
	if err != nil {
		return nil, fmt.Errorf("invalid WEIGHTS: %w", err)
	}
	if path := os.Getenv("WEIGHTS_FILE"); path != "" {
		table, err = weights.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("invalid WEIGHTS_FILE: %w", err)
		}
	}
	cfg.Weights = table

	// Client configuration
	cfg.Client.Timeout = parseDuration(getEnv("PROVIDER_TIMEOUT", "5s"))
	if cfg.Client.Timeout <= 0 {
		return nil, fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}

	// Scheduler configuration
	cfg.Scheduler.Enabled = parseBool(getEnv("SCHEDULER_ENABLED", "true"))
	cfg.Scheduler.FetchInterval = parseDuration(getEnv("FETCH_INTERVAL", "15m"))
	cfg.Scheduler.DefaultLocations = splitList(getEnv("DEFAULT_LOCATIONS", "Buffalo, NY;London;Prague"))

	// Cache configuration
	cfg.Cache.Duration = parseDuration(getEnv("CACHE_DURATION", "10m"))
	cfg.Cache.MaxSize = parseInt(getEnv("MAX_CACHE_SIZE", "1000"))

	// Circuit breaker configuration
	cfg.CircuitBreaker.Threshold = parseInt(getEnv("CIRCUIT_BREAKER_THRESHOLD", "3"))
	cfg.CircuitBreaker.Timeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	// Retry configuration, zero retries means a single attempt
	cfg.Retry.MaxRetries = parseInt(getEnv("MAX_RETRIES", "0"))
	cfg.Retry.Delay = parseDuration(getEnv("RETRY_DELAY", "1s"))
	cfg.Retry.Multiplier = parseFloat(getEnv("RETRY_MULTIPLIER", "2"))

	cfg.History.Path = getEnv("HISTORY_DB_PATH", "weather-history.db")

	cfg.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.Tracing.ServiceName = getEnv("OTEL_SERVICE_NAME", "weather-consensus")

	return cfg, nil
}

// envPrefix maps a provider to its variable prefix, e.g. TomorrowIO -> TOMORROWIO.
func envPrefix(id models.ProviderID) string {
	return strings.ToUpper(string(id))
}

// splitList splits on ';' since location names often contain commas.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}

func parseBool(value string) bool {
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		zap.L().Warn("Failed to parse bool", zap.String("value", value), zap.Error(err))
		return false
	}
	return boolValue
}
