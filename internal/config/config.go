// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Lookup providers
const (
	ProviderNone       = "none"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

// Config holds every setting the binaries read
type Config struct {
	Port              string
	DatabaseURL       string
	RedisAddr         string
	UseQueue          bool
	WorkerConcurrency int

	LookupProvider   string
	OllamaURL        string
	OllamaModel      string
	OpenRouterURL    string
	OpenRouterModel  string
	OpenRouterAPIKey string
	LookupTimeout    time.Duration
	LookupCacheTTL   time.Duration

	MinWords    int
	ServiceName string
}

// Load reads .env files (missing files are ignored) and then the process
// environment. Variables already set in the environment win over .env.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", "aidetector.db"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		UseQueue:          getEnvBool("USE_QUEUE", false),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),

		LookupProvider:   strings.ToLower(getEnv("LOOKUP_PROVIDER", ProviderNone)),
		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "gpt-oss:20b"),
		OpenRouterURL:    getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1/chat/completions"),
		OpenRouterModel:  getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		LookupTimeout:    getEnvDuration("LOOKUP_TIMEOUT", 60*time.Second),
		LookupCacheTTL:   getEnvDuration("LOOKUP_CACHE_TTL", 24*time.Hour),

		MinWords:    getEnvInt("MIN_WORDS", 20),
		ServiceName: getEnv("SERVICE_NAME", "aidetector"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	switch c.LookupProvider {
	case ProviderNone, ProviderOllama, ProviderOpenRouter:
	default:
		return fmt.Errorf("unknown LOOKUP_PROVIDER %q", c.LookupProvider)
	}
	if c.UseQueue && c.RedisAddr == "" {
		return errors.New("USE_QUEUE requires REDIS_ADDR")
	}
	if c.MinWords < 0 {
		return fmt.Errorf("MIN_WORDS must not be negative, got %d", c.MinWords)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
