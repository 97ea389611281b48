package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server          ServerConfig
	LLM             LLMConfig
	GoogleAnalytics GoogleAnalyticsConfig
	Stripe          StripeConfig
	Redis           RedisConfig
	History         HistoryConfig
}

type ServerConfig struct {
	Port         string        `envconfig:"SERVER_PORT" default:"8000"`
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
}

type LLMConfig struct {
	// Provider selects the LLM backend: "ollama", "openai", or "anthropic".
	Provider       string        `envconfig:"LLM_PROVIDER" default:"ollama"`
	APIKey         string        `envconfig:"LLM_API_KEY"`
	Endpoint       string        `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434/v1"`
	Model          string        `envconfig:"OLLAMA_MODEL" default:"mistral:7b"`
	EmbeddingModel string        `envconfig:"LLM_EMBEDDING_MODEL" default:"nomic-embed-text"`
	MaxTokens      int64         `envconfig:"LLM_MAX_TOKENS" default:"1024"`
	Temperature    float64       `envconfig:"LLM_TEMPERATURE" default:"0"`
	Timeout        time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`
}

type GoogleAnalyticsConfig struct {
	KeyFile    string        `envconfig:"GOOGLE_ANALYTICS_KEY_PATH"`
	PropertyID string        `envconfig:"GOOGLE_ANALYTICS_PROPERTY_ID"`
	Endpoint   string        `envconfig:"GOOGLE_ANALYTICS_ENDPOINT" default:"https://analyticsdata.googleapis.com/v1beta"`
	Timeout    time.Duration `envconfig:"GOOGLE_ANALYTICS_TIMEOUT" default:"30s"`
}

// Enabled reports whether the connector has enough configuration to run.
func (c GoogleAnalyticsConfig) Enabled() bool {
	return c.KeyFile != "" && c.PropertyID != ""
}

type StripeConfig struct {
	APIKey  string        `envconfig:"STRIPE_API_KEY"`
	Timeout time.Duration `envconfig:"STRIPE_TIMEOUT" default:"30s"`
}

func (c StripeConfig) Enabled() bool {
	return c.APIKey != ""
}

type RedisConfig struct {
	// Address of the Redis instance; empty disables the fetch cache.
	Address  string        `envconfig:"REDIS_ADDRESS"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"15m"`
}

func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

type HistoryConfig struct {
	// Postgres DSN; empty disables query history.
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

func (c HistoryConfig) Enabled() bool {
	return c.DatabaseURL != ""
}

func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Info("configuration loaded successfully")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "ollama":
	case "openai", "anthropic":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required for provider %q", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLM.Provider)
	}

	if (c.GoogleAnalytics.KeyFile == "") != (c.GoogleAnalytics.PropertyID == "") {
		return fmt.Errorf("google analytics requires both GOOGLE_ANALYTICS_KEY_PATH and GOOGLE_ANALYTICS_PROPERTY_ID")
	}

	if !c.GoogleAnalytics.Enabled() && !c.Stripe.Enabled() {
		return fmt.Errorf("at least one data source must be configured")
	}

	return nil
}
