// Package config loads the service configuration: YAML file first,
// environment overrides second, built-in defaults underneath.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	httpx "github.com/stratrun/stratrun/internal/interfaces/http"
	"github.com/stratrun/stratrun/internal/insight"
	"github.com/stratrun/stratrun/internal/marketdata"
)

// CacheConfig holds the optional Redis history cache settings. An empty
// Addr disables caching.
type CacheConfig struct {
	Addr     string
	DB       int
	Password string
	TTL      time.Duration
}

// StreamConfig holds stream orchestrator pacing.
type StreamConfig struct {
	StepDelay time.Duration
}

// Config is the full service configuration.
type Config struct {
	LogLevel string
	Server   httpx.ServerConfig
	Provider marketdata.YahooConfig
	Cache    CacheConfig
	Insight  insight.Config
	Stream   StreamConfig
}

// fileConfig is the YAML shape. Durations are strings ("30s", "2m") and
// parsed explicitly; yaml.v3 has no native duration support.
type fileConfig struct {
	LogLevel string `yaml:"log_level"`
	Server   struct {
		Host           string   `yaml:"host"`
		Port           *int     `yaml:"port"`
		ReadTimeout    string   `yaml:"read_timeout"`
		WriteTimeout   string   `yaml:"write_timeout"`
		IdleTimeout    string   `yaml:"idle_timeout"`
		RequestTimeout string   `yaml:"request_timeout"`
		RateLimitRPS   *float64 `yaml:"rate_limit_rps"`
		RateLimitBurst *int     `yaml:"rate_limit_burst"`
		LiveTick       string   `yaml:"live_tick"`
	} `yaml:"server"`
	Provider struct {
		BaseURL        string `yaml:"base_url"`
		RequestTimeout string `yaml:"request_timeout"`
		UserAgent      string `yaml:"user_agent"`
	} `yaml:"provider"`
	Cache struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Password string `yaml:"password"`
		TTL      string `yaml:"ttl"`
	} `yaml:"cache"`
	Insight struct {
		BaseURL     string   `yaml:"base_url"`
		APIKey      string   `yaml:"api_key"`
		Model       string   `yaml:"model"`
		Timeout     string   `yaml:"timeout"`
		Temperature *float64 `yaml:"temperature"`
	} `yaml:"insight"`
	Stream struct {
		StepDelay string `yaml:"step_delay"`
	} `yaml:"stream"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server:   httpx.DefaultServerConfig(),
		Cache:    CacheConfig{TTL: 5 * time.Minute},
		Stream:   StreamConfig{StepDelay: 450 * time.Millisecond},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := cfg.applyFile(&fc); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(fc *fileConfig) error {
	setString(&c.LogLevel, fc.LogLevel)

	setString(&c.Server.Host, fc.Server.Host)
	if fc.Server.Port != nil {
		c.Server.Port = *fc.Server.Port
	}
	if fc.Server.RateLimitRPS != nil {
		c.Server.RateLimitRPS = *fc.Server.RateLimitRPS
	}
	if fc.Server.RateLimitBurst != nil {
		c.Server.RateLimitBurst = *fc.Server.RateLimitBurst
	}
	for _, d := range []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{fc.Server.ReadTimeout, &c.Server.ReadTimeout, "server.read_timeout"},
		{fc.Server.WriteTimeout, &c.Server.WriteTimeout, "server.write_timeout"},
		{fc.Server.IdleTimeout, &c.Server.IdleTimeout, "server.idle_timeout"},
		{fc.Server.RequestTimeout, &c.Server.RequestTimeout, "server.request_timeout"},
		{fc.Server.LiveTick, &c.Server.LiveTick, "server.live_tick"},
		{fc.Provider.RequestTimeout, &c.Provider.RequestTimeout, "provider.request_timeout"},
		{fc.Cache.TTL, &c.Cache.TTL, "cache.ttl"},
		{fc.Insight.Timeout, &c.Insight.Timeout, "insight.timeout"},
		{fc.Stream.StepDelay, &c.Stream.StepDelay, "stream.step_delay"},
	} {
		if err := setDuration(d.dst, d.raw, d.name); err != nil {
			return err
		}
	}

	setString(&c.Provider.BaseURL, fc.Provider.BaseURL)
	setString(&c.Provider.UserAgent, fc.Provider.UserAgent)

	setString(&c.Cache.Addr, fc.Cache.Addr)
	if fc.Cache.DB != 0 {
		c.Cache.DB = fc.Cache.DB
	}
	setString(&c.Cache.Password, fc.Cache.Password)

	setString(&c.Insight.BaseURL, fc.Insight.BaseURL)
	setString(&c.Insight.APIKey, fc.Insight.APIKey)
	setString(&c.Insight.Model, fc.Insight.Model)
	if fc.Insight.Temperature != nil {
		c.Insight.Temperature = *fc.Insight.Temperature
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw, name string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STRATRUN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("STRATRUN_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("STRATRUN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Password = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Insight.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Insight.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Insight.Model = v
	}
}
