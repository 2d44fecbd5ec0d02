// Package config loads quotegate configuration: built-in defaults, then an
// optional YAML file, then .env and process environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/quotegate/pkg/cache"
	"github.com/Sternrassler/quotegate/pkg/fetcher"
	"github.com/Sternrassler/quotegate/pkg/logging"
	"github.com/Sternrassler/quotegate/pkg/provider/yahoo"
	"github.com/Sternrassler/quotegate/pkg/ratelimit"
)

// Config holds all quotegate configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Yahoo     YahooConfig     `yaml:"yahoo"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// RedisConfig locates the shared counter and cache store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CacheConfig holds entry expiries.
type CacheConfig struct {
	DefaultTTL Duration `yaml:"default_ttl"`
	PriceTTL   Duration `yaml:"price_ttl"`
	MetricsTTL Duration `yaml:"metrics_ttl"`
}

// RuleConfig is one fixed-window limit.
type RuleConfig struct {
	Window Duration `yaml:"window"`
	Max    int64    `yaml:"max"`
}

// RateLimitConfig holds the three limiter domains.
type RateLimitConfig struct {
	IP       RuleConfig `yaml:"ip"`
	Symbol   RuleConfig `yaml:"symbol"`
	External RuleConfig `yaml:"external"`
}

// FetchConfig tunes the fetch pipeline.
type FetchConfig struct {
	ThrottleCooldown Duration `yaml:"throttle_cooldown"`
	ProviderTimeout  Duration `yaml:"provider_timeout"`
	BatchConcurrency int      `yaml:"batch_concurrency"`
}

// YahooConfig points the provider adapter at its API.
type YahooConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// PortfolioConfig locates the holdings workbook.
type PortfolioConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rules := ratelimit.DefaultRules()
	ttl := cache.DefaultTTLConfig()
	fetch := fetcher.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port:        3000,
			CORSOrigins: []string{"http://localhost:3001"},
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Log:   LogConfig{Level: string(logging.LevelInfo)},
		Cache: CacheConfig{
			DefaultTTL: Duration(ttl.Default),
			PriceTTL:   Duration(ttl.Price),
			MetricsTTL: Duration(ttl.Metrics),
		},
		RateLimit: RateLimitConfig{
			IP:       RuleConfig{Window: Duration(rules.IP.Window), Max: rules.IP.Limit},
			Symbol:   RuleConfig{Window: Duration(rules.Symbol.Window), Max: rules.Symbol.Limit},
			External: RuleConfig{Window: Duration(rules.External.Window), Max: rules.External.Limit},
		},
		Fetch: FetchConfig{
			ThrottleCooldown: Duration(fetch.ThrottleCooldown),
			ProviderTimeout:  Duration(fetch.ProviderTimeout),
			BatchConcurrency: fetch.BatchConcurrency,
		},
		Yahoo: YahooConfig{
			BaseURL:   yahoo.DefaultBaseURL,
			UserAgent: yahoo.DefaultUserAgent,
		},
		Portfolio: PortfolioConfig{Path: "data/portfolio.xlsx"},
	}
}

// Load builds the configuration. A non-empty path names a YAML file whose
// ${VAR} references are expanded; environment variables (a .env file in the
// working directory included) override both file and defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Load .env file if it exists
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Redis.Addr, "REDIS_ADDR")
	if host := os.Getenv("REDIS_HOST"); host != "" && os.Getenv("REDIS_ADDR") == "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		c.Redis.Addr = host + ":" + port
	}
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Yahoo.BaseURL, "YAHOO_BASE_URL")
	setString(&c.Yahoo.UserAgent, "YAHOO_USER_AGENT")
	setString(&c.Portfolio.Path, "PORTFOLIO_PATH")

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.Server.Port},
		{"REDIS_DB", &c.Redis.DB},
		{"BATCH_CONCURRENCY", &c.Fetch.BatchConcurrency},
	}
	for _, f := range ints {
		if err := setInt(f.dst, f.key); err != nil {
			return err
		}
	}

	limits := []struct {
		key string
		dst *int64
	}{
		{"RATE_LIMIT_IP_MAX", &c.RateLimit.IP.Max},
		{"RATE_LIMIT_SYMBOL_MAX", &c.RateLimit.Symbol.Max},
		{"RATE_LIMIT_EXTERNAL_MAX", &c.RateLimit.External.Max},
	}
	for _, f := range limits {
		if err := setInt64(f.dst, f.key); err != nil {
			return err
		}
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"DEFAULT_TTL", &c.Cache.DefaultTTL},
		{"PRICE_TTL", &c.Cache.PriceTTL},
		{"METRICS_TTL", &c.Cache.MetricsTTL},
		{"RATE_LIMIT_IP_WINDOW", &c.RateLimit.IP.Window},
		{"RATE_LIMIT_SYMBOL_WINDOW", &c.RateLimit.Symbol.Window},
		{"RATE_LIMIT_EXTERNAL_WINDOW", &c.RateLimit.External.Window},
		{"THROTTLE_COOLDOWN", &c.Fetch.ThrottleCooldown},
		{"PROVIDER_TIMEOUT", &c.Fetch.ProviderTimeout},
	}
	for _, f := range durations {
		if err := setDuration(f.dst, f.key); err != nil {
			return err
		}
	}

	if v := os.Getenv("LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_PRETTY %q: %w", v, err)
		}
		c.Log.Pretty = b
	}
	return nil
}

// Validate checks that the configuration can start a working service.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if !logging.ValidLevel(logging.LogLevel(c.Log.Level)) {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if err := c.Rules().Validate(); err != nil {
		return err
	}
	if c.Fetch.ThrottleCooldown <= 0 {
		return fmt.Errorf("throttle cooldown must be positive")
	}
	if c.Fetch.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	if c.Fetch.BatchConcurrency <= 0 {
		return fmt.Errorf("batch concurrency must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// Rules returns the rate-limit rules.
func (c *Config) Rules() ratelimit.Rules {
	return ratelimit.Rules{
		IP:       ratelimit.Rule{Window: c.RateLimit.IP.Window.Std(), Limit: c.RateLimit.IP.Max},
		Symbol:   ratelimit.Rule{Window: c.RateLimit.Symbol.Window.Std(), Limit: c.RateLimit.Symbol.Max},
		External: ratelimit.Rule{Window: c.RateLimit.External.Window.Std(), Limit: c.RateLimit.External.Max},
	}
}

// CacheTTLs returns the cache expiries.
func (c *Config) CacheTTLs() cache.TTLConfig {
	return cache.TTLConfig{
		Default: c.Cache.DefaultTTL.Std(),
		Price:   c.Cache.PriceTTL.Std(),
		Metrics: c.Cache.MetricsTTL.Std(),
	}
}

// FetcherConfig returns the fetch pipeline settings.
func (c *Config) FetcherConfig() fetcher.Config {
	return fetcher.Config{
		ThrottleCooldown: c.Fetch.ThrottleCooldown.Std(),
		ProviderTimeout:  c.Fetch.ProviderTimeout.Std(),
		BatchConcurrency: c.Fetch.BatchConcurrency,
	}
}

// YahooClientConfig returns the provider adapter settings.
func (c *Config) YahooClientConfig() yahoo.Config {
	cfg := yahoo.DefaultConfig()
	cfg.BaseURL = c.Yahoo.BaseURL
	cfg.UserAgent = c.Yahoo.UserAgent
	return cfg
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
