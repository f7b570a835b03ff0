// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Advisory collaborator settings
	AdvisoryURL         string
	AdvisoryAPIKey      string
	AdvisoryModel       string
	AdvisoryTemperature float64
	AdvisoryMaxTokens   int
	AdvisoryTimeout     time.Duration

	// Trade qualification settings
	MinTradeUSD float64
	// BNBPriceUSD is the reference price used to value raw swap amounts.
	// A live oracle feed replaces it when one is configured upstream.
	BNBPriceUSD float64

	// Whale discovery settings
	SubgraphURL       string
	DiscoveryInterval time.Duration
	MinWhaleVolume    float64
	MinWhaleTrades    int64

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Circuit breaker settings for the advisory backend
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration

	// Decision audit webhook
	WebhookURL    string
	WebhookAPIKey string
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		Port:                GetEnvOrDefault("PORT", "8080"),
		AdvisoryURL:         GetEnvOrDefault("ADVISORY_URL", "https://openrouter.ai/api/v1/chat/completions"),
		AdvisoryAPIKey:      GetEnvOrDefault("OPENROUTER_API_KEY", ""),
		AdvisoryModel:       strings.ToLower(GetEnvOrDefault("ADVISORY_MODEL", "deepseek/deepseek-r1-0528:free")),
		AdvisoryTemperature: GetEnvAsFloat("ADVISORY_TEMPERATURE", 0.3),
		AdvisoryMaxTokens:   GetEnvAsInt("ADVISORY_MAX_TOKENS", 1000),
		AdvisoryTimeout:     GetEnvAsDuration("ADVISORY_TIMEOUT", 30*time.Second),
		MinTradeUSD:         GetEnvAsFloat("MIN_TRADE_USD", 1000),
		BNBPriceUSD:         GetEnvAsFloat("BNB_PRICE", 675),
		SubgraphURL:         GetEnvOrDefault("SUBGRAPH_URL", ""),
		DiscoveryInterval:   GetEnvAsDuration("DISCOVERY_INTERVAL", 15*time.Minute),
		MinWhaleVolume:      GetEnvAsFloat("MIN_WHALE_VOLUME", 10000),
		MinWhaleTrades:      int64(GetEnvAsInt("MIN_WHALE_TRADES", 10)),
		OtelEndpoint:        GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		BreakerFailureThreshold: GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", 3),
		BreakerCooldown:         GetEnvAsDuration("BREAKER_COOLDOWN", 5*time.Minute),

		WebhookURL:    GetEnvOrDefault("WEBHOOK_URL", ""),
		WebhookAPIKey: GetEnvOrDefault("WEBHOOK_API_KEY", ""),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
