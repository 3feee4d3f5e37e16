package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	Store          string        `mapstructure:"STORE"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	ABHABaseURL      string        `mapstructure:"ABHA_BASE_URL"`
	ABHAClientID     string        `mapstructure:"ABHA_CLIENT_ID"`
	ABHAClientSecret string        `mapstructure:"ABHA_CLIENT_SECRET"`
	ABHAJWKSURL      string        `mapstructure:"ABHA_JWKS_URL"`
	ABHAProfileURL   string        `mapstructure:"ABHA_PROFILE_URL"`
	ABHADemoMode     bool          `mapstructure:"ABHA_DEMO_MODE"`
	ABHADemoSecret   string        `mapstructure:"ABHA_DEMO_SECRET"`
	KeyCacheTTL      time.Duration `mapstructure:"KEY_CACHE_TTL"`
	ProfileCacheTTL  time.Duration `mapstructure:"PROFILE_CACHE_TTL"`

	GeminiAPIKey       string        `mapstructure:"GEMINI_API_KEY"`
	GeminiAPIURL       string        `mapstructure:"GEMINI_API_URL"`
	GeminiModel        string        `mapstructure:"GEMINI_MODEL"`
	AITimeout          time.Duration `mapstructure:"AI_TIMEOUT"`
	AIBreakerThreshold int           `mapstructure:"AI_BREAKER_THRESHOLD"`

	MappingConfidenceThreshold float64 `mapstructure:"MAPPING_CONFIDENCE_THRESHOLD"`
	BatchConcurrency           int     `mapstructure:"BATCH_CONCURRENCY"`
}

var keys = []string{
	"PORT", "ENV", "STORE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"ABHA_BASE_URL", "ABHA_CLIENT_ID", "ABHA_CLIENT_SECRET", "ABHA_JWKS_URL", "ABHA_PROFILE_URL",
	"ABHA_DEMO_MODE", "ABHA_DEMO_SECRET", "KEY_CACHE_TTL", "PROFILE_CACHE_TTL",
	"GEMINI_API_KEY", "GEMINI_API_URL", "GEMINI_MODEL", "AI_TIMEOUT", "AI_BREAKER_THRESHOLD",
	"MAPPING_CONFIDENCE_THRESHOLD", "BATCH_CONCURRENCY",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("ABHA_BASE_URL", "https://abhasbx.abdm.gov.in")
	v.SetDefault("ABHA_DEMO_MODE", false)
	v.SetDefault("KEY_CACHE_TTL", "24h")
	v.SetDefault("PROFILE_CACHE_TTL", "1h")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("AI_TIMEOUT", "10s")
	v.SetDefault("AI_BREAKER_THRESHOLD", 5)
	v.SetDefault("MAPPING_CONFIDENCE_THRESHOLD", 0.7)
	v.SetDefault("BATCH_CONCURRENCY", 8)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if cfg.Store == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required unless STORE=%s", StoreMemory)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UseMemoryStore reports whether concepts, mappings and users live in process.
func (c *Config) UseMemoryStore() bool {
	return c.Store == StoreMemory
}

// AIEnabled reports whether a Gemini key is configured.
func (c *Config) AIEnabled() bool {
	return c.GeminiAPIKey != ""
}

// JWKSURL is the explicit key set URL, or the conventional location under
// the ABHA base URL.
func (c *Config) JWKSURL() string {
	if c.ABHAJWKSURL != "" {
		return c.ABHAJWKSURL
	}
	return strings.TrimRight(c.ABHABaseURL, "/") + "/.well-known/jwks.json"
}

// ProfileURL is the ABHA account profile endpoint.
func (c *Config) ProfileURL() string {
	if c.ABHAProfileURL != "" {
		return c.ABHAProfileURL
	}
	return strings.TrimRight(c.ABHABaseURL, "/") + "/api/v1/account/profile"
}

// Validate checks that the configuration is safe to run. Demo mode accepts
// unsigned sentinel tokens and is refused in production.
func (c *Config) Validate() error {
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if c.Store == StorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE=%s", StorePostgres)
	}
	if c.IsProduction() && c.ABHADemoMode {
		return fmt.Errorf("ABHA_DEMO_MODE must not be enabled in production")
	}
	if !c.ABHADemoMode && c.ABHABaseURL == "" && c.ABHAJWKSURL == "" {
		return fmt.Errorf("ABHA_BASE_URL or ABHA_JWKS_URL is required when demo mode is off")
	}
	if c.MappingConfidenceThreshold < 0 || c.MappingConfidenceThreshold > 1 {
		return fmt.Errorf("MAPPING_CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.MappingConfidenceThreshold)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1, got %d", c.BatchConcurrency)
	}
	if c.AIBreakerThreshold < 1 {
		return fmt.Errorf("AI_BREAKER_THRESHOLD must be at least 1, got %d", c.AIBreakerThreshold)
	}
	return nil
}
