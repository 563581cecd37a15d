// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Scoring dispatch modes
const (
	DispatchLocal    = "local"
	DispatchRabbitMQ = "rabbitmq"
)

// Config is the process-wide configuration shared by the serve and worker commands.
type Config struct {
	DatabaseURL string
	Port        int

	LogJSON  bool
	LogDebug bool

	// Scoring
	LLMProvider        string
	GeminiAPIKey       string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	ScoringModel       string
	ScoringTimeout     time.Duration
	ScoringConcurrency int

	// Dispatch
	ScoringDispatch string
	RabbitMQURL     string
	ScoringQueue    string

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads the configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		LogJSON:            getEnvBool("LOG_JSON", false),
		LogDebug:           getEnvBool("LOG_DEBUG", false),
		LLMProvider:        strings.ToLower(getEnvString("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		ScoringModel:       os.Getenv("SCORING_MODEL"),
		ScoringDispatch:    strings.ToLower(getEnvString("SCORING_DISPATCH", DispatchLocal)),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		ScoringQueue:       getEnvString("SCORING_QUEUE", "assessment_scoring"),
		RateLimitBurst:     20,
		RateLimitRPS:       10,
		ScoringConcurrency: 4,
		ScoringTimeout:     30 * time.Second,
		Port:               8080,
	}

	var err error
	if cfg.Port, err = getEnvInt("PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.ScoringConcurrency, err = getEnvInt("SCORING_CONCURRENCY", cfg.ScoringConcurrency); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return nil, err
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if cfg.RateLimitRPS, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
		}
	}
	if v := os.Getenv("SCORING_TIMEOUT"); v != "" {
		if cfg.ScoringTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid SCORING_TIMEOUT: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration has valid values.
// Required credentials are checked by the commands that need them.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("config error: unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.ScoringDispatch {
	case DispatchLocal:
	case DispatchRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("config error: RABBITMQ_URL is required when SCORING_DISPATCH=rabbitmq")
		}
	default:
		return fmt.Errorf("config error: unknown SCORING_DISPATCH %q", c.ScoringDispatch)
	}
	if c.ScoringTimeout <= 0 {
		return fmt.Errorf("config error: SCORING_TIMEOUT must be positive")
	}
	if c.ScoringConcurrency < 1 {
		return fmt.Errorf("config error: SCORING_CONCURRENCY must be at least 1")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("config error: rate limits must be non-negative")
	}
	return nil
}

// RequireDatabase returns an error when DATABASE_URL is unset.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required but not set")
	}
	return nil
}

// LLMAPIKey returns the API key of the selected provider.
func (c *Config) LLMAPIKey() string {
	if c.LLMProvider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
