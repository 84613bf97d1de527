package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Generation modes.
const (
	ModeDirect   = "direct"
	ModeGrounded = "grounded"
)

// PricingInfo holds cost details per token for a specific model.
type PricingInfo struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
}

// LoggingConfig controls logrus level, format and file rotation.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type Config struct {
	Server struct {
		Host           string        `mapstructure:"host"`
		Port           int           `mapstructure:"port"`
		RateLimit      float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
		Burst          int           `mapstructure:"burst"`
		AllowedOrigins []string      `mapstructure:"allowed_origins"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
	} `mapstructure:"server"`

	Logging LoggingConfig `mapstructure:"logging"`

	Classifier struct {
		ArtifactPath string   `mapstructure:"artifact_path"` // model.json, .zst, .gz, or a directory holding one
		Threshold    *float64 `mapstructure:"threshold"`     // overrides the artifact threshold when set
		RulesFile    string   `mapstructure:"rules_file"`    // YAML keyword rules; empty uses the built-in Education rule
		DisableRules bool     `mapstructure:"disable_rules"`
	} `mapstructure:"classifier"`

	Categorization struct {
		Type           string `mapstructure:"type"`            // "local" or "llm"
		Provider       string `mapstructure:"provider"`        // "openai" (if type is "llm")
		Model          string `mapstructure:"model"`           // Model name for the provider
		PromptTemplate string `mapstructure:"prompt_template"` // Path to prompt template file
	} `mapstructure:"categorization"`

	Generation struct {
		Provider          string   `mapstructure:"provider"` // "openai", "gemini" or "none"
		Model             string   `mapstructure:"model"`
		FallbackProviders []string `mapstructure:"fallback_providers"`
		Temperature       float32  `mapstructure:"temperature"`
		Mode              string   `mapstructure:"mode"` // "direct", "grounded", or empty to pick from search availability
		MaxQueries        int      `mapstructure:"max_queries"`
		ResultsPerQuery   int      `mapstructure:"results_per_query"`
		SearchFallback    bool     `mapstructure:"search_fallback"`
		MaxRetries        int      `mapstructure:"max_retries"`
		Prompts           struct {
			Direct   string `mapstructure:"direct"`
			Queries  string `mapstructure:"queries"`
			Organize string `mapstructure:"organize"`
		} `mapstructure:"prompts"`
	} `mapstructure:"generation"`

	Providers struct {
		OpenAI struct {
			APIKey  string `mapstructure:"api_key"`
			BaseURL string `mapstructure:"base_url"`
		} `mapstructure:"openai"`
		Gemini struct {
			APIKey string `mapstructure:"api_key"`
		} `mapstructure:"gemini"`
	} `mapstructure:"providers"`

	Search struct {
		Provider          string        `mapstructure:"provider"` // "serpapi" or "none"
		APIKey            string        `mapstructure:"api_key"`
		BaseURL           string        `mapstructure:"base_url"`
		Engine            string        `mapstructure:"engine"`
		Timeout           time.Duration `mapstructure:"timeout"`
		CacheTTL          time.Duration `mapstructure:"cache_ttl"`
		RequestsPerSecond float64       `mapstructure:"requests_per_second"`
		Burst             int           `mapstructure:"burst"`
	} `mapstructure:"search"`

	Database struct {
		DSN string `mapstructure:"dsn"` // sqlite path or postgres:// URL; empty disables usage tracking
	} `mapstructure:"database"`

	// Pricing: map[provider][model] = struct{input_per_token, output_per_token}
	Pricing map[string]map[string]PricingInfo `mapstructure:"pricing"`
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.rate_limit", 10.0)
	viper.SetDefault("server.burst", 20)
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.request_timeout", 60*time.Second)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.max_size_mb", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age_days", 28)

	viper.SetDefault("classifier.artifact_path", "models")

	viper.SetDefault("categorization.type", "local")
	viper.SetDefault("categorization.provider", "openai")
	viper.SetDefault("categorization.model", "gpt-4o-mini")

	viper.SetDefault("generation.provider", "openai")
	viper.SetDefault("generation.model", "gpt-4o-mini")
	viper.SetDefault("generation.temperature", 0.3)
	viper.SetDefault("generation.max_queries", 6)
	viper.SetDefault("generation.results_per_query", 3)
	viper.SetDefault("generation.search_fallback", false)
	viper.SetDefault("generation.max_retries", 2)

	viper.SetDefault("search.provider", "serpapi")
	viper.SetDefault("search.base_url", "https://serpapi.com/search.json")
	viper.SetDefault("search.engine", "google")
	viper.SetDefault("search.timeout", 15*time.Second)
	viper.SetDefault("search.cache_ttl", time.Hour)
	viper.SetDefault("search.requests_per_second", 1.0)
	viper.SetDefault("search.burst", 3)

	viper.SetDefault("database.dsn", "tidytabs_usage.db")
}

// LoadConfig reads config.yaml from the working directory or
// ~/.config/tidytabs (or configFile when given), a .env file if present,
// and TIDYTABS_* / provider API key environment variables.
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "tidytabs"))
		}
	}

	viper.SetEnvPrefix("TIDYTABS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Provider keys are usually exported under their vendor names.
	_ = viper.BindEnv("providers.openai.api_key", "TIDYTABS_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("providers.gemini.api_key", "TIDYTABS_PROVIDERS_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = viper.BindEnv("search.api_key", "TIDYTABS_SEARCH_API_KEY", "SERPAPI_API_KEY", "SERPAPI_KEY")

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if the config file doesn't exist, Viper can rely on defaults and env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &config, nil
}

// GenerationMode resolves the configured mode. With no explicit mode the
// grounded pipeline is used whenever a search provider is usable.
func (c *Config) GenerationMode() string {
	switch strings.ToLower(c.Generation.Mode) {
	case ModeDirect:
		return ModeDirect
	case ModeGrounded:
		return ModeGrounded
	}
	if c.SearchEnabled() {
		return ModeGrounded
	}
	return ModeDirect
}

// SearchEnabled reports whether a search provider is configured with a key.
func (c *Config) SearchEnabled() bool {
	p := strings.ToLower(c.Search.Provider)
	return p != "" && p != "none" && c.Search.APIKey != ""
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
