package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// configFile is read from the working directory when present.
const configFile = "config.yaml"

// Config holds all configuration for the estimator.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// AutoMigrate applies embedded schema migrations on startup.
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE" env-default:"true"`

	Matching  MatchingConfig  `yaml:"matching"`
	LLM       LLMConfig       `yaml:"llm"`
	Cache     CacheConfig     `yaml:"cache"`
	MCP       MCPConfig       `yaml:"mcp"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"estimator"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"assembly"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// MatchingConfig holds the matching engine thresholds.
type MatchingConfig struct {
	// MinScore is the inclusive fuzzy acceptance threshold in [0,100].
	MinScore           int  `yaml:"min_score" env:"FUZZY_MIN_SCORE" env-default:"70"`
	MaxCandidates      int  `yaml:"max_candidates" env:"MAX_CANDIDATES" env-default:"30"`
	MaxResultsPerInput int  `yaml:"max_results_per_input" env:"MAX_RESULTS_PER_INPUT" env-default:"1"`
	UseTrigram         bool `yaml:"use_trigram" env:"USE_PG_TRGM" env-default:"true"`
	// SynonymsPath points at a YAML synonym table. Empty disables synonyms.
	SynonymsPath string `yaml:"synonyms_path" env:"SYNONYMS_PATH" env-default:"synonyms.yaml"`
	Parallelism  int    `yaml:"parallelism" env:"MATCH_PARALLELISM" env-default:"4"`
}

// LLMConfig holds the OpenAI-compatible endpoint used for reports and chat.
type LLMConfig struct {
	Enabled        bool    `yaml:"enabled" env:"ENABLE_LLM" env-default:"true"`
	BaseURL        string  `yaml:"base_url" env:"OLLAMA_BASE_URL" env-default:"http://localhost:11434"`
	Model          string  `yaml:"model" env:"OLLAMA_MODEL" env-default:"qwen2.5:3b"`
	APIKey         string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	TimeoutSeconds int     `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"60"`
	Temperature    float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.2"`
}

// CacheConfig holds the estimate cache settings.
type CacheConfig struct {
	// Capacity is the maximum number of cached outcomes. Zero disables caching.
	Capacity   int `yaml:"capacity" env:"CACHE_CAPACITY" env-default:"1000"`
	TTLSeconds int `yaml:"ttl_seconds" env:"CACHE_TTL_SECONDS" env-default:"300"`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// RateLimitConfig throttles /v1 API calls per client address.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"RATE_LIMIT_RPS" env-default:"10"`
	Burst             int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"20"`
}

// Enabled reports whether API calls are rate limited.
func (c *RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// Load reads configuration from config.yaml with environment variable overrides.
// Without a config.yaml, configuration comes from the environment alone.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(configFile); err == nil {
		if err := cleanenv.ReadConfig(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", configFile, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must be set")
	}

	m := c.Matching
	if m.MinScore < 0 || m.MinScore > 100 {
		return fmt.Errorf("matching.min_score must be within [0,100], got %d", m.MinScore)
	}
	if m.MaxCandidates < 1 {
		return fmt.Errorf("matching.max_candidates must be positive, got %d", m.MaxCandidates)
	}
	if m.Parallelism < 1 {
		return fmt.Errorf("matching.parallelism must be positive, got %d", m.Parallelism)
	}

	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative, got %d", c.Cache.Capacity)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must not be negative, got %d", c.Cache.TTLSeconds)
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative, got %g", c.RateLimit.RequestsPerSecond)
	}
	if c.RateLimit.Enabled() && c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be positive when limiting is enabled, got %d", c.RateLimit.Burst)
	}

	if c.LLM.Enabled {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil || c.LLM.BaseURL == "" {
			return fmt.Errorf("llm.base_url is not a valid URL: %q", c.LLM.BaseURL)
		}
		if c.LLM.Model == "" {
			return errors.New("llm.model must be set when llm is enabled")
		}
		if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
			return fmt.Errorf("llm.temperature must be within [0,2], got %g", c.LLM.Temperature)
		}
	}

	return nil
}

// IsLocal reports whether the server runs in the local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local"
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection settings as a postgres:// URL.
func (c *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// OpenAIBaseURL returns the OpenAI-compatible API root of the configured
// endpoint, e.g. http://localhost:11434/v1 for Ollama.
func (c *LLMConfig) OpenAIBaseURL() string {
	base := strings.TrimRight(ResolveURLForDocker(c.BaseURL), "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// Timeout returns the per-request LLM timeout.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TTL returns how long cached outcomes stay valid. Zero means no expiry.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
