package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/text/language"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-4o-mini)
// - LLM_THINKING_MODEL: Optional reasoning model for thinking mode
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 4000)
// - LLM_THINKING_MAX_TOKENS: Maximum tokens in thinking mode (default: 64000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 120)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Server Configuration:
// - HTTP_ADDR: Listen address (default: :8080)
// - DATA_DIR: Directory for the sqlite database and settings (default: /app/data)
//
// Translation Configuration:
// - TARGET_LANGUAGE: BCP 47 tag of the translation target (default: en)
// - POLL_INTERVAL_SECONDS: Translation status poll interval (default: 3)
// - POLL_MAX_ATTEMPTS: Polls before giving up on a job (default: 100)
// - TRANSLATE_WORKERS: Concurrent translation workers (default: 1)
//
// Pricing Configuration:
// - PRICING_API_URL: Model catalog endpoint (default: https://openrouter.ai/api/v1/models)
// - PRICING_TTL_HOURS: Hours before cached prices go stale (default: 24)
// - PRICING_CRON_EXPR: Schedule for background price refresh (default: 0 0 * * *)
//
// Import Configuration:
// - IMPORT_DIR: Root directory of novel chapter files to import (default: disabled)
// - IMPORT_CRON_EXPR: Schedule for rescanning the import directory (default: @every 10m)

type Config struct {
	LLM LLMConfig `json:"llm"`

	Server ServerConfig `json:"server"`

	Translate TranslateConfig `json:"translate"`

	Pricing PricingConfig `json:"pricing"`

	Import ImportConfig `json:"import"`
}

// LLMConfig holds the configuration for LLM client
// Supports any OpenAI-compatible provider (OpenRouter, OpenAI, etc.)
type LLMConfig struct {
	APIKey            string  `json:"api_key"`
	APIURL            string  `json:"api_url"`
	Model             string  `json:"model"`
	ThinkingModel     string  `json:"thinking_model"`
	MaxTokens         int     `json:"max_tokens"`
	ThinkingMaxTokens int     `json:"thinking_max_tokens"`
	Temperature       float64 `json:"temperature"`
	Timeout           int     `json:"timeout"`
	SiteURL           string  `json:"site_url"`
	AppName           string  `json:"app_name"`
}

type ServerConfig struct {
	HTTPAddr string `json:"http_addr"`
	DataDir  string `json:"data_dir"`
}

func (c ServerConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "chapters.db")
}

type TranslateConfig struct {
	TargetLanguage  language.Tag  `json:"target_language"`
	PollInterval    time.Duration `json:"poll_interval"`
	PollMaxAttempts int           `json:"poll_max_attempts"`
	Workers         int           `json:"workers"`
}

type PricingConfig struct {
	APIURL   string        `json:"api_url"`
	TTL      time.Duration `json:"ttl"`
	CronExpr string        `json:"cron_expr"`
}

// ImportConfig controls the filesystem chapter importer. An empty Dir
// disables it.
type ImportConfig struct {
	Dir      string `json:"dir"`
	CronExpr string `json:"cron_expr"`
}

func (c ImportConfig) Enabled() bool {
	return c.Dir != ""
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:            getEnvString("LLM_API_KEY", ""),
			APIURL:            getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:             getEnvString("LLM_MODEL", "openai/gpt-4o-mini"),
			ThinkingModel:     getEnvString("LLM_THINKING_MODEL", ""),
			MaxTokens:         getEnvInt("LLM_MAX_TOKENS", 4000),
			ThinkingMaxTokens: getEnvInt("LLM_THINKING_MAX_TOKENS", 64000),
			Temperature:       getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:           getEnvInt("LLM_TIMEOUT", 120),
			SiteURL:           getEnvString("LLM_SITE_URL", ""),
			AppName:           getEnvString("LLM_APP_NAME", ""),
		},
		Server: ServerConfig{
			HTTPAddr: getEnvString("HTTP_ADDR", ":8080"),
			DataDir:  getEnvString("DATA_DIR", "/app/data"),
		},
		Translate: TranslateConfig{
			TargetLanguage:  mustParseLanguage(getEnvString("TARGET_LANGUAGE", "en")),
			PollInterval:    time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 3)) * time.Second,
			PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 100),
			Workers:         getEnvInt("TRANSLATE_WORKERS", 1),
		},
		Pricing: PricingConfig{
			APIURL:   getEnvString("PRICING_API_URL", "https://openrouter.ai/api/v1/models"),
			TTL:      time.Duration(getEnvInt("PRICING_TTL_HOURS", 24)) * time.Hour,
			CronExpr: getEnvString("PRICING_CRON_EXPR", "0 0 * * *"),
		},
		Import: ImportConfig{
			Dir:      getEnvString("IMPORT_DIR", ""),
			CronExpr: getEnvString("IMPORT_CRON_EXPR", "@every 10m"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Translate.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if c.Translate.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if c.Translate.Workers <= 0 {
		return fmt.Errorf("TRANSLATE_WORKERS must be positive")
	}
	return nil
}

func mustParseLanguage(s string) language.Tag {
	tag, err := language.Parse(s)
	if err != nil {
		return language.English
	}
	return tag
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
