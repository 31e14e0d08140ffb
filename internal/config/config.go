// Package config loads and validates SDK configuration from YAML with
// environment overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

// Config is the full SDK configuration handed to the facade.
type Config struct {
	Logging     LoggingConfig             `yaml:"logging"`
	Cache       CacheConfig               `yaml:"cache"`
	Aggregation AggregationConfig         `yaml:"aggregation"`
	Retry       RetryConfig               `yaml:"retry"`
	Breaker     BreakerConfig             `yaml:"breaker"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
	Priorities  map[string][]string       `yaml:"field_priorities"`
	Refresh     RefreshConfig             `yaml:"refresh"`
	Server      ServerConfig              `yaml:"server"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Durations use model.Duration so YAML accepts "5m" style values.
type CacheConfig struct {
	MaxSize       int            `yaml:"max_size"`
	DefaultTTL    model.Duration `yaml:"default_ttl"`
	SweepInterval model.Duration `yaml:"sweep_interval"`
	Redis         RedisConfig    `yaml:"redis"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AggregationConfig struct {
	Timeout          model.Duration `yaml:"timeout"`
	Routing          string         `yaml:"routing"`
	Conflict         string         `yaml:"conflict"`
	FetchAllPriority *bool          `yaml:"fetch_all_priority"`
}

type RetryConfig struct {
	MaxAttempts  int            `yaml:"max_attempts"`
	InitialDelay model.Duration `yaml:"initial_delay"`
	MaxDelay     model.Duration `yaml:"max_delay"`
	Multiplier   float64        `yaml:"multiplier"`
	Jitter       float64        `yaml:"jitter"`
}

type BreakerConfig struct {
	FailureThreshold int            `yaml:"failure_threshold"`
	SuccessThreshold int            `yaml:"success_threshold"`
	RecoveryTime     model.Duration `yaml:"recovery_time"`
}

type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Network string `yaml:"network"`
}

type RefreshConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Schedule string   `yaml:"schedule"`
	Tokens   []string `yaml:"tokens"`
	Wallets  []string `yaml:"wallets"`
	Fields   []string `yaml:"fields"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// envOverrides are credentials taken from the environment so secrets stay
// out of config files.
type envOverrides struct {
	BlockfrostProjectID string `env:"BLOCKFROST_PROJECT_ID,default="`
	KoiosAPIKey         string `env:"KOIOS_API_KEY,default="`
	CoinGeckoAPIKey     string `env:"COINGECKO_API_KEY,default="`
	RedisAddr           string `env:"REDIS_ADDR,default="`
	RedisPassword       string `env:"REDIS_PASSWORD,default="`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Cache: CacheConfig{
			MaxSize:       1000,
			DefaultTTL:    model.Duration(5 * time.Minute),
			SweepInterval: model.Duration(time.Minute),
		},
		Aggregation: AggregationConfig{
			Timeout:  model.Duration(30 * time.Second),
			Routing:  "priority",
			Conflict: "priority",
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: model.Duration(100 * time.Millisecond),
			MaxDelay:     model.Duration(10 * time.Second),
			Multiplier:   2.0,
			Jitter:       0.25,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			RecoveryTime:     model.Duration(30 * time.Second),
		},
		Providers: map[string]ProviderConfig{
			"blockfrost": {Enabled: true},
			"koios":      {Enabled: true},
			"coingecko":  {Enabled: true},
		},
		Refresh: RefreshConfig{Schedule: "@every 1m"},
		Server:  ServerConfig{Addr: ":8080"},
	}
}

// Load reads, env-overrides, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the file when present, otherwise returns defaults with
// env overrides applied.
func LoadOrDefault(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil {
		return
	}

	if env.BlockfrostProjectID != "" {
		p := c.Providers["blockfrost"]
		p.APIKey = env.BlockfrostProjectID
		c.Providers["blockfrost"] = p
	}
	if env.KoiosAPIKey != "" {
		p := c.Providers["koios"]
		p.APIKey = env.KoiosAPIKey
		c.Providers["koios"] = p
	}
	if env.CoinGeckoAPIKey != "" {
		p := c.Providers["coingecko"]
		p.APIKey = env.CoinGeckoAPIKey
		c.Providers["coingecko"] = p
	}
	if env.RedisAddr != "" {
		c.Cache.Redis.Addr = env.RedisAddr
	}
	if env.RedisPassword != "" {
		c.Cache.Redis.Password = env.RedisPassword
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache.max_size cannot be negative")
	}
	if c.Cache.DefaultTTL < 0 {
		return fmt.Errorf("cache.default_ttl cannot be negative")
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when redis is enabled")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts cannot be negative")
	}
	if c.Retry.Multiplier < 0 {
		return fmt.Errorf("retry.multiplier cannot be negative")
	}
	if c.Breaker.FailureThreshold < 0 {
		return fmt.Errorf("breaker.failure_threshold cannot be negative")
	}
	switch c.Aggregation.Routing {
	case "", "priority", "fastest", "reliability", "cost":
	default:
		return fmt.Errorf("aggregation.routing %q is not a valid strategy", c.Aggregation.Routing)
	}
	switch c.Aggregation.Conflict {
	case "", "priority", "majority", "newest":
	default:
		return fmt.Errorf("aggregation.conflict %q is not a valid strategy", c.Aggregation.Conflict)
	}
	if c.Refresh.Enabled && c.Refresh.Schedule == "" {
		return fmt.Errorf("refresh.schedule is required when refresh is enabled")
	}
	return nil
}
