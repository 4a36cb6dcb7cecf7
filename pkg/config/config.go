// Package config provides configuration file support for Recall.
// It handles loading, validation, and environment variable interpolation
// for recall.yaml configuration files.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/inkwell-ai/recall/pkg/pricing"
)

// Config represents the full Recall configuration.
type Config struct {
	Cache     CacheConfig     `mapstructure:"cache"`
	Store     StoreConfig     `mapstructure:"store"`
	Semantic  SemanticConfig  `mapstructure:"semantic"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// CacheConfig holds facade-level settings.
type CacheConfig struct {
	MaxEntries          int64         `mapstructure:"max_entries"`
	TTL                 time.Duration `mapstructure:"ttl"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
}

// StoreConfig holds response store settings.
type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis store settings.
type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	OpTimeout   time.Duration `mapstructure:"op_timeout"`
}

// SemanticConfig holds semantic index settings.
type SemanticConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Backend    string `mapstructure:"backend"`
	MaxVectors int    `mapstructure:"max_vectors"`
	Host       string `mapstructure:"host"`
	Collection string `mapstructure:"collection"`
	Index      string `mapstructure:"index"`
	Namespace  string `mapstructure:"namespace"`
	APIKey     string `mapstructure:"api_key"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

// PricingConfig holds per-model rate overrides. Rates are dollars per
// thousand tokens; models absent here fall back to the built-in table.
type PricingConfig struct {
	Rates map[string]pricing.Rate `mapstructure:"rates"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	MetricsAddr string        `mapstructure:"metrics_addr"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Insecure   bool    `mapstructure:"insecure"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxEntries:          10000,
			TTL:                 30 * 24 * time.Hour,
			SimilarityThreshold: 0.95,
		},
		Store: StoreConfig{
			Backend: "memory",
			Redis: RedisConfig{
				URL:         "redis://localhost:6379/0",
				KeyPrefix:   "recall:resp:",
				PoolSize:    10,
				DialTimeout: 5 * time.Second,
				OpTimeout:   2 * time.Second,
			},
		},
		Semantic: SemanticConfig{
			Enabled:    false,
			Backend:    "memory",
			MaxVectors: 10000,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Pricing: PricingConfig{
			Rates: map[string]pricing.Rate{},
		},
		Telemetry: TelemetryConfig{
			MetricsAddr: "",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "otlp",
				Endpoint:   "localhost:4317",
				SampleRate: 1.0,
				Insecure:   true,
			},
		},
	}
}

// Load reads configuration from the given viper instance and returns
// a validated Config. Environment variables in string values are
// interpolated using ${VAR} syntax.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Interpolate environment variables in string fields
	interpolateConfig(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads a specific config file and returns a validated Config.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Load(v)
}

// Validate checks the configuration for errors and returns a descriptive
// error if any field is invalid.
func Validate(cfg *Config) error {
	var errs []string

	// Cache validation
	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Sprintf("cache.max_entries: must be non-negative, got %d", cfg.Cache.MaxEntries))
	}
	if cfg.Cache.TTL < 0 {
		errs = append(errs, "cache.ttl: must be non-negative")
	}
	if cfg.Cache.SimilarityThreshold < 0 || cfg.Cache.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Sprintf("cache.similarity_threshold: must be between 0 and 1, got %f", cfg.Cache.SimilarityThreshold))
	}

	// Store validation
	validStoreBackends := map[string]bool{"memory": true, "redis": true, "": true}
	if !validStoreBackends[cfg.Store.Backend] {
		errs = append(errs, fmt.Sprintf("store.backend: unsupported backend %q (supported: memory, redis)", cfg.Store.Backend))
	}
	if cfg.Store.Backend == "redis" && cfg.Store.Redis.URL == "" {
		errs = append(errs, "store.redis.url: required when store.backend is redis")
	}
	if cfg.Store.Redis.PoolSize < 0 {
		errs = append(errs, "store.redis.pool_size: must be non-negative")
	}

	// Semantic validation
	validIndexBackends := map[string]bool{"memory": true, "qdrant": true, "pinecone": true, "": true}
	if !validIndexBackends[cfg.Semantic.Backend] {
		errs = append(errs, fmt.Sprintf("semantic.backend: unsupported backend %q (supported: memory, qdrant, pinecone)", cfg.Semantic.Backend))
	}
	if cfg.Semantic.MaxVectors < 0 {
		errs = append(errs, "semantic.max_vectors: must be non-negative")
	}
	if cfg.Semantic.Enabled {
		switch cfg.Semantic.Backend {
		case "qdrant":
			if cfg.Semantic.Host == "" {
				errs = append(errs, "semantic.host: required for qdrant backend")
			}
			if cfg.Semantic.Collection == "" {
				errs = append(errs, "semantic.collection: required for qdrant backend")
			}
		case "pinecone":
			if cfg.Semantic.Index == "" {
				errs = append(errs, "semantic.index: required for pinecone backend")
			}
		}
	}

	// Embedding validation
	validProviders := map[string]bool{"openai": true, "": true}
	if !validProviders[cfg.Embedding.Provider] {
		errs = append(errs, fmt.Sprintf("embedding.provider: unsupported provider %q (supported: openai)", cfg.Embedding.Provider))
	}
	if cfg.Semantic.Enabled && cfg.Embedding.APIKey == "" {
		errs = append(errs, "embedding.api_key: required when semantic caching is enabled")
	}

	// Pricing validation
	for model, rate := range cfg.Pricing.Rates {
		if rate.Prompt < 0 || rate.Completion < 0 {
			errs = append(errs, fmt.Sprintf("pricing.rates.%s: rates must be non-negative", model))
		}
	}

	// Telemetry validation
	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true, "": true}
	if !validExporters[cfg.Telemetry.Tracing.Exporter] {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.exporter: unsupported exporter %q (supported: otlp, stdout, none)", cfg.Telemetry.Tracing.Exporter))
	}
	if cfg.Telemetry.Tracing.SampleRate < 0 || cfg.Telemetry.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.sample_rate: must be between 0 and 1, got %f", cfg.Telemetry.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnv replaces ${VAR} and ${VAR:-default} patterns in a string
// with the corresponding environment variable values.
func InterpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		if defaultVal != "" {
			return defaultVal
		}
		return match
	})
}

// interpolateConfig applies environment variable interpolation to all
// string fields in the config.
func interpolateConfig(cfg *Config) {
	cfg.Store.Backend = InterpolateEnv(cfg.Store.Backend)
	cfg.Store.Redis.URL = InterpolateEnv(cfg.Store.Redis.URL)
	cfg.Store.Redis.Password = InterpolateEnv(cfg.Store.Redis.Password)
	cfg.Store.Redis.KeyPrefix = InterpolateEnv(cfg.Store.Redis.KeyPrefix)

	cfg.Semantic.Backend = InterpolateEnv(cfg.Semantic.Backend)
	cfg.Semantic.Host = InterpolateEnv(cfg.Semantic.Host)
	cfg.Semantic.Collection = InterpolateEnv(cfg.Semantic.Collection)
	cfg.Semantic.Index = InterpolateEnv(cfg.Semantic.Index)
	cfg.Semantic.Namespace = InterpolateEnv(cfg.Semantic.Namespace)
	cfg.Semantic.APIKey = InterpolateEnv(cfg.Semantic.APIKey)

	cfg.Embedding.Provider = InterpolateEnv(cfg.Embedding.Provider)
	cfg.Embedding.Model = InterpolateEnv(cfg.Embedding.Model)
	cfg.Embedding.APIKey = InterpolateEnv(cfg.Embedding.APIKey)

	cfg.Telemetry.MetricsAddr = InterpolateEnv(cfg.Telemetry.MetricsAddr)
	cfg.Telemetry.Tracing.Exporter = InterpolateEnv(cfg.Telemetry.Tracing.Exporter)
	cfg.Telemetry.Tracing.Endpoint = InterpolateEnv(cfg.Telemetry.Tracing.Endpoint)
}

// GenerateTemplate returns a YAML template string with all available
// configuration options and their defaults, suitable for writing to
// a recall.yaml file.
func GenerateTemplate() string {
	return `# Recall Configuration
# See: https://github.com/inkwell-ai/recall

cache:
  max_entries: 10000
  ttl: 720h                   # 30 days; 0 disables expiry
  similarity_threshold: 0.95  # 0.0 to 1.0

store:
  backend: memory             # memory or redis
  redis:
    url: ${REDIS_URL:-redis://localhost:6379/0}
    password: ""
    key_prefix: "recall:resp:"
    pool_size: 10
    dial_timeout: 5s
    op_timeout: 2s

semantic:
  enabled: false
  backend: memory             # memory, qdrant, or pinecone
  max_vectors: 10000
  host: ""                    # required for qdrant
  collection: ""              # required for qdrant
  index: ""                   # required for pinecone
  namespace: ""
  api_key: ${VECTOR_DB_API_KEY:-}

embedding:
  provider: openai
  model: text-embedding-3-small
  api_key: ${OPENAI_API_KEY:-}

pricing:
  rates:
    # gpt-4:
    #   prompt: 0.03          # dollars per 1K prompt tokens
    #   completion: 0.06      # dollars per 1K completion tokens

telemetry:
  metrics_addr: ""            # e.g. :9090 to expose /metrics
  tracing:
    enabled: false
    exporter: otlp            # otlp, stdout, or none
    endpoint: localhost:4317
    sample_rate: 1.0          # 0.0 to 1.0
    insecure: true
`
}
