package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nulzo/tier-router/pkg/api"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Database     DatabaseConfig     `mapstructure:"database"`
	CostTracking CostTrackingConfig `mapstructure:"cost_tracking"`
	Redis        RedisConfig        `mapstructure:"redis"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Routing      RoutingConfig      `mapstructure:"routing"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Guardrails   GuardrailsConfig   `mapstructure:"guardrails"`
	Providers    []ProviderConfig   `mapstructure:"providers"`
	Catalog      []api.Model        `mapstructure:"catalog"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	APIKeys         []string      `mapstructure:"api_keys"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	UpdateCheck     bool          `mapstructure:"update_check"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type CostTrackingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	DefaultLimit      int           `mapstructure:"default_limit"`
	Window            time.Duration `mapstructure:"window"`
}

// RoutingConfig holds the per-tier model chains and the streaming limits.
// Empty chain entries are replaced by the built-in defaults at startup.
type RoutingConfig struct {
	StreamTimeout      time.Duration `mapstructure:"stream_timeout"`
	MaxSessions        int64         `mapstructure:"max_sessions"`
	FallbackChunkDelay time.Duration `mapstructure:"fallback_chunk_delay"`
	Chains             ChainsConfig  `mapstructure:"chains"`
}

type ChainsConfig struct {
	Premium  []string `mapstructure:"premium"`
	Balanced []string `mapstructure:"balanced"`
	Eco      []string `mapstructure:"eco"`
}

type ClassifierConfig struct {
	LongPromptChars  int      `mapstructure:"long_prompt_chars"`
	ShortPromptChars int      `mapstructure:"short_prompt_chars"`
	PremiumKeywords  []string `mapstructure:"premium_keywords"`
	BalancedKeywords []string `mapstructure:"balanced_keywords"`
}

type GuardrailsConfig struct {
	PIIMasking        ToggleConfig     `mapstructure:"pii_masking"`
	ContentModeration ModerationConfig `mapstructure:"content_moderation"`
}

type ToggleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type ModerationConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	BlockedTerms []string `mapstructure:"blocked_terms"`
}

// ProviderConfig represents the configuration for a single upstream adapter.
type ProviderConfig struct {
	ID       string            `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Type     string            `json:"type" yaml:"type" mapstructure:"type" validate:"required,oneof=openai anthropic google ollama"`
	Name     string            `json:"name" yaml:"name" mapstructure:"name"`
	APIKey   string            `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	BaseURL  string            `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	Prefixes []string          `json:"prefixes" yaml:"prefixes" mapstructure:"prefixes"`
	Timeout  time.Duration     `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Config   map[string]string `json:"config" yaml:"config" mapstructure:"config"`
	Enabled  bool              `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve API Keys
	for i, p := range cfg.Providers {
		if strings.HasPrefix(p.APIKey, "ENV:") {
			envVar := strings.TrimPrefix(p.APIKey, "ENV:")
			// Check process environment first (explicit override)
			val := os.Getenv(envVar)
			if val == "" {
				val = v.GetString(envVar)
			}
			cfg.Providers[i].APIKey = val
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.update_check", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "tier-router")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("database.dsn", "file:tier-router.db?cache=shared&_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("cost_tracking.enabled", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.default_limit", 600)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("routing.stream_timeout", 60*time.Second)
	v.SetDefault("routing.max_sessions", 1024)
	v.SetDefault("routing.fallback_chunk_delay", 50*time.Millisecond)

	v.SetDefault("classifier.long_prompt_chars", 500)
	v.SetDefault("classifier.short_prompt_chars", 100)
	v.SetDefault("classifier.premium_keywords", []string{"code", "implement", "complex", "analyze", "refactor"})
	v.SetDefault("classifier.balanced_keywords", []string{"explain", "how"})

	v.SetDefault("guardrails.pii_masking.enabled", false)
	v.SetDefault("guardrails.content_moderation.enabled", false)
}
