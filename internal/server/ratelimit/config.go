package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig overrides the default rate for one route family.
type EndpointConfig struct {
	Path      string  // Exact path, or a prefix when it ends with "/"
	Method    string  // HTTP method
	RPS       float64 // Sustained requests per second
	Burst     int     // Bucket capacity
	Unlimited bool
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// LoadConfig builds a Config with the given default rate. Lists and the
// on/off switch come from RATE_LIMIT_ENABLED, RATE_LIMIT_WHITELIST and
// RATE_LIMIT_BLACKLIST. A zero rps disables limiting.
func LoadConfig(rps float64, burst int) *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true) && rps > 0
	if !enabled {
		return &Config{Enabled: false}
	}
	if burst < 1 {
		burst = 1
	}

	return &Config{
		Enabled:         true,
		RPS:             rps,
		Burst:           burst,
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		IdleTTL:         time.Hour,
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the route-specific limits.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Paid model calls
		{Path: "/applications/", Method: "POST", RPS: 0.2, Burst: 5},
		{Path: "/jobs/generate", Method: "POST", RPS: 0.2, Burst: 5},

		// Job writes
		{Path: "/jobs", Method: "POST", RPS: 1, Burst: 10},
		{Path: "/jobs/", Method: "PATCH", RPS: 2, Burst: 20},
		{Path: "/jobs/", Method: "DELETE", RPS: 1, Burst: 10},

		// Probes
		{Path: "/health", Method: "GET", Unlimited: true},
	}
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
