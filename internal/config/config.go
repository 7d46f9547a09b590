// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Gemini settings
	GeminiAPIKey      string
	GeminiModel       string
	MaxGeminiRequests int // maximum Gemini requests per day (0 = unlimited)

	// OpenAI translation fallback
	OpenAIAPIKey      string
	OpenAIModel       string
	MaxOpenAIRequests int

	// Pipeline settings
	Summarizer          string // "gemini"
	NERBackend          string // "hybrid" | "prose" | "gemini"
	TranslationEnabled  bool
	SummaryMaxLength    int
	SummaryMinLength    int
	SummaryInputChars   int
	GlossaryMaxEntities int
	WikipediaAPIURL     string
	ScratchDir          string

	// Fetch settings
	FetchTimeout  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration

	// Definition cache settings
	DefinitionCache string // memory | file | postgres | redis | none
	CacheFilePath   string
	CacheTTLHours   int
	DatabaseURL     string
	RedisAddr       string

	// Feed batch mode
	FeedsConfigPath string
	FeedMaxArticles int
	FeedSchedule    string

	// App settings
	Debug    bool
	HTTPPort string

	invalid []string // variables set to values that could not be parsed
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		GeminiModel:         "gemini-2.0-flash",
		OpenAIModel:         "gpt-4o-mini",
		MaxGeminiRequests:   0,
		MaxOpenAIRequests:   0,
		Summarizer:          "gemini",
		NERBackend:          "hybrid",
		TranslationEnabled:  true,
		SummaryMaxLength:    200,
		SummaryMinLength:    30,
		SummaryInputChars:   3500,
		GlossaryMaxEntities: 15,
		WikipediaAPIURL:     "https://en.wikipedia.org/api/rest_v1",
		FetchTimeout:        15 * time.Second,
		RetryAttempts:       2,
		RetryDelay:          time.Second,
		DefinitionCache:     "memory",
		CacheFilePath:       "definitions.json",
		CacheTTLHours:       168,
		FeedsConfigPath:     "configs/feeds.yaml",
		FeedMaxArticles:     5,
		HTTPPort:            "8080",
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.ScratchDir = os.Getenv("SCRATCH_DIR")
	cfg.FeedSchedule = os.Getenv("FEED_SCHEDULE")

	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.Summarizer = getEnvOrDefault("SUMMARIZER", cfg.Summarizer)
	cfg.NERBackend = getEnvOrDefault("NER_BACKEND", cfg.NERBackend)
	cfg.WikipediaAPIURL = getEnvOrDefault("WIKIPEDIA_API_URL", cfg.WikipediaAPIURL)
	cfg.DefinitionCache = getEnvOrDefault("DEFINITION_CACHE", cfg.DefinitionCache)
	cfg.CacheFilePath = getEnvOrDefault("CACHE_FILE_PATH", cfg.CacheFilePath)
	cfg.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", cfg.FeedsConfigPath)
	cfg.HTTPPort = getEnvOrDefault("HTTP_PORT", cfg.HTTPPort)

	cfg.MaxGeminiRequests = getEnvIntOrDefault("MAX_GEMINI_REQUESTS", cfg.MaxGeminiRequests)
	cfg.MaxOpenAIRequests = getEnvIntOrDefault("MAX_OPENAI_REQUESTS", cfg.MaxOpenAIRequests)
	cfg.SummaryMaxLength = getEnvIntOrDefault("SUMMARY_MAX_LENGTH", cfg.SummaryMaxLength)
	cfg.SummaryMinLength = getEnvIntOrDefault("SUMMARY_MIN_LENGTH", cfg.SummaryMinLength)
	cfg.SummaryInputChars = getEnvIntOrDefault("SUMMARY_INPUT_CHARS", cfg.SummaryInputChars)
	cfg.GlossaryMaxEntities = getEnvIntOrDefault("GLOSSARY_MAX_ENTITIES", cfg.GlossaryMaxEntities)
	cfg.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.CacheTTLHours = getEnvIntOrDefault("CACHE_TTL_HOURS", cfg.CacheTTLHours)
	cfg.FeedMaxArticles = getEnvIntOrDefault("FEED_MAX_ARTICLES", cfg.FeedMaxArticles)

	cfg.FetchTimeout = getEnvDurationOrDefault("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.RetryDelay = getEnvDurationOrDefault("RETRY_DELAY", cfg.RetryDelay)

	if v := os.Getenv("TRANSLATION_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			cfg.invalid = append(cfg.invalid, fmt.Sprintf("TRANSLATION_ENABLED must be a boolean, got %q", v))
		} else {
			cfg.TranslationEnabled = b
		}
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

// LoadDotEnv populates the environment from .env files when present.
// Variables that are already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if len(c.invalid) > 0 {
		return errors.New(c.invalid[0])
	}
	if c.Summarizer != "gemini" {
		return fmt.Errorf("SUMMARIZER must be 'gemini'")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	switch c.NERBackend {
	case "hybrid", "prose", "gemini":
	default:
		return fmt.Errorf("NER_BACKEND must be 'hybrid', 'prose' or 'gemini'")
	}
	if c.FetchTimeout < 10*time.Second || c.FetchTimeout > 15*time.Second {
		return fmt.Errorf("FETCH_TIMEOUT must be between 10s and 15s")
	}
	if c.SummaryMinLength <= 0 || c.SummaryMaxLength < c.SummaryMinLength {
		return fmt.Errorf("SUMMARY_MIN_LENGTH must be positive and not exceed SUMMARY_MAX_LENGTH")
	}
	if c.SummaryInputChars <= 0 {
		return fmt.Errorf("SUMMARY_INPUT_CHARS must be positive")
	}
	if c.GlossaryMaxEntities < 0 {
		return fmt.Errorf("GLOSSARY_MAX_ENTITIES must not be negative")
	}
	switch c.DefinitionCache {
	case "memory", "none":
	case "file":
		if c.CacheFilePath == "" {
			return fmt.Errorf("CACHE_FILE_PATH is required for the file definition cache")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres definition cache")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis definition cache")
		}
	default:
		return fmt.Errorf("DEFINITION_CACHE must be one of memory, file, postgres, redis, none")
	}
	return nil
}
