// Package config handles configuration loading for FolioIQ.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"`
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"`
	Market   MarketConfig   `mapstructure:"market"   yaml:"market"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LLMConfig holds analyst model provider configuration.
type LLMConfig struct {
	Provider     string  `mapstructure:"provider"      yaml:"provider"` // "anthropic" or "openai"
	AnthropicKey string  `mapstructure:"anthropic_key" yaml:"anthropic_key"`
	OpenAIKey    string  `mapstructure:"openai_key"    yaml:"openai_key"`
	Model        string  `mapstructure:"model"         yaml:"model"`
	Temperature  float64 `mapstructure:"temperature"   yaml:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"    yaml:"max_tokens"`
	TimeoutSec   int     `mapstructure:"timeout_sec"   yaml:"timeout_sec"`
}

// MarketConfig holds market data fetching settings.
type MarketConfig struct {
	FetchTimeoutSec int               `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	CacheTTLSec     int               `mapstructure:"cache_ttl_sec"     yaml:"cache_ttl_sec"`
	Indicators      map[string]string `mapstructure:"indicators"        yaml:"indicators"` // label → provider symbol
	NewsFeeds       []string          `mapstructure:"news_feeds"        yaml:"news_feeds"` // extra market-wide RSS feeds
	NewsLimit       int               `mapstructure:"news_limit"        yaml:"news_limit"` // headlines per symbol
}

// DatabaseConfig holds holdings store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"` // console output instead of JSON
}

// DefaultIndicators maps the fixed macro indicator set to Yahoo symbols.
var DefaultIndicators = map[string]string{
	"VIX":          "^VIX",
	"US_10Y_YIELD": "^TNX",
	"DXY":          "DX-Y.NYB",
	"CRUDE_OIL":    "CL=F",
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.folioiq/config.yaml (home directory)
//  3. /etc/folioiq/config.yaml (system)
//
// Environment variables override config file values.
// Format: FOLIOIQ_<SECTION>_<KEY>, e.g., FOLIOIQ_LLM_ANTHROPIC_KEY
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".folioiq"))
	v.AddConfigPath("/etc/folioiq")

	v.SetEnvPrefix("FOLIOIQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, fall back to defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("FOLIOIQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-sonnet-4-20250514")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 8096)
	v.SetDefault("llm.timeout_sec", 120)

	v.SetDefault("market.fetch_timeout_sec", 15)
	v.SetDefault("market.cache_ttl_sec", 120)
	v.SetDefault("market.indicators", DefaultIndicators)
	v.SetDefault("market.news_limit", 7)

	v.SetDefault("database.path", "./data/folioiq.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", true)
}

// overrideFromEnv applies sensitive values from well-known environment
// variables, taking precedence over everything else. This keeps API keys
// out of config files.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
}

// homeDir returns the user's home directory, or "." if unresolvable.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
