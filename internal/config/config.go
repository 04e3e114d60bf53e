// Package config loads policyqa settings from a config file, POLICYQA_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/0xcro3dile/policyqa-go/internal/logging"
)

// Name is used for the config file name, its search paths and the env prefix.
const Name = "policyqa"

// Usage counter backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// ServerOptions configures the HTTP listener.
type ServerOptions struct {
	Addr            string        `json:"addr" mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `json:"read-timeout" mapstructure:"read-timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `json:"write-timeout" mapstructure:"write-timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout" validate:"gt=0"`
}

// AssetOptions locates policy.json and chunks.json. BaseURL, when set,
// takes precedence over Dir.
type AssetOptions struct {
	Dir        string        `json:"dir" mapstructure:"dir" validate:"required_without=BaseURL"`
	BaseURL    string        `json:"base-url" mapstructure:"base-url" validate:"omitempty,url"`
	ChunksFile string        `json:"chunks-file" mapstructure:"chunks-file" validate:"required"`
	PolicyFile string        `json:"policy-file" mapstructure:"policy-file" validate:"required"`
	Watch      bool          `json:"watch" mapstructure:"watch"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// AccessOptions holds the two optional keys. Empty disables the gate.
type AccessOptions struct {
	SiteKey string `json:"site-key" mapstructure:"site-key"`
	BotKey  string `json:"bot-key" mapstructure:"bot-key"`
}

// LimitOptions configures the daily question quota and where it is counted.
type LimitOptions struct {
	Daily       int           `json:"daily" mapstructure:"daily" validate:"gte=1"`
	TimeZone    string        `json:"time-zone" mapstructure:"time-zone" validate:"required"`
	TTL         time.Duration `json:"ttl" mapstructure:"ttl" validate:"gt=0"`
	Backend     string        `json:"backend" mapstructure:"backend" validate:"oneof=none memory redis sqlite"`
	RedisAddr   string        `json:"redis-addr" mapstructure:"redis-addr" validate:"required_if=Backend redis"`
	RedisPass   string        `json:"redis-password" mapstructure:"redis-password"`
	RedisDB     int           `json:"redis-db" mapstructure:"redis-db" validate:"gte=0"`
	RedisPrefix string        `json:"redis-prefix" mapstructure:"redis-prefix"`
	SQLitePath  string        `json:"sqlite-path" mapstructure:"sqlite-path" validate:"required_if=Backend sqlite"`
}

// LLMOptions selects the language model backend.
type LLMOptions struct {
	Provider  string        `json:"provider" mapstructure:"provider" validate:"oneof=none ollama openai"`
	BaseURL   string        `json:"base-url" mapstructure:"base-url" validate:"omitempty,url"`
	APIKey    string        `json:"api-key" mapstructure:"api-key"`
	Model     string        `json:"model" mapstructure:"model"`
	MaxTokens int           `json:"max-tokens" mapstructure:"max-tokens" validate:"gte=1"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// Config is the full set of options.
type Config struct {
	Server ServerOptions   `json:"server" mapstructure:"server"`
	Assets AssetOptions    `json:"assets" mapstructure:"assets"`
	Access AccessOptions   `json:"access" mapstructure:"access"`
	Limits LimitOptions    `json:"limits" mapstructure:"limits"`
	LLM    LLMOptions      `json:"llm" mapstructure:"llm"`
	Log    logging.Options `json:"log" mapstructure:"log"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerOptions{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    150 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Assets: AssetOptions{
			Dir:        "./assets",
			ChunksFile: "chunks.json",
			PolicyFile: "policy.json",
			Watch:      true,
			Timeout:    10 * time.Second,
		},
		Limits: LimitOptions{
			Daily:       5,
			TimeZone:    "America/Los_Angeles",
			TTL:         48 * time.Hour,
			Backend:     BackendMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "policyqa:",
			SQLitePath:  "./data/usage.db",
		},
		LLM: LLMOptions{
			Provider:  "none",
			MaxTokens: 700,
			Timeout:   120 * time.Second,
		},
		Log: logging.Options{
			Level:  "info",
			Format: "json",
		},
	}
}

// AddFlags registers one flag per option. Flag names equal the config keys
// so viper can bind them directly.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Server.Addr, "server.addr", c.Server.Addr, "HTTP listen address")
	fs.DurationVar(&c.Server.ReadTimeout, "server.read-timeout", c.Server.ReadTimeout, "HTTP read timeout")
	fs.DurationVar(&c.Server.WriteTimeout, "server.write-timeout", c.Server.WriteTimeout, "HTTP write timeout")
	fs.DurationVar(&c.Server.ShutdownTimeout, "server.shutdown-timeout", c.Server.ShutdownTimeout, "Graceful shutdown timeout")

	fs.StringVar(&c.Assets.Dir, "assets.dir", c.Assets.Dir, "Directory holding policy.json and chunks.json")
	fs.StringVar(&c.Assets.BaseURL, "assets.base-url", c.Assets.BaseURL, "Fetch assets from this URL instead of assets.dir")
	fs.StringVar(&c.Assets.ChunksFile, "assets.chunks-file", c.Assets.ChunksFile, "Chunk collection file name")
	fs.StringVar(&c.Assets.PolicyFile, "assets.policy-file", c.Assets.PolicyFile, "Policy document file name")
	fs.BoolVar(&c.Assets.Watch, "assets.watch", c.Assets.Watch, "Reload assets when files in assets.dir change")
	fs.DurationVar(&c.Assets.Timeout, "assets.timeout", c.Assets.Timeout, "Timeout for fetching remote assets")

	fs.StringVar(&c.Access.SiteKey, "access.site-key", c.Access.SiteKey, "Key required to view the site (empty disables)")
	fs.StringVar(&c.Access.BotKey, "access.bot-key", c.Access.BotKey, "Key required to ask questions (empty disables)")

	fs.IntVar(&c.Limits.Daily, "limits.daily", c.Limits.Daily, "Questions allowed per access key per day")
	fs.StringVar(&c.Limits.TimeZone, "limits.time-zone", c.Limits.TimeZone, "Time zone defining the calendar day")
	fs.DurationVar(&c.Limits.TTL, "limits.ttl", c.Limits.TTL, "Lifetime of a daily usage counter")
	fs.StringVar(&c.Limits.Backend, "limits.backend", c.Limits.Backend, "Usage counter backend: none, memory, redis or sqlite")
	fs.StringVar(&c.Limits.RedisAddr, "limits.redis-addr", c.Limits.RedisAddr, "Redis address for the redis backend")
	fs.StringVar(&c.Limits.RedisPass, "limits.redis-password", c.Limits.RedisPass, "Redis password")
	fs.IntVar(&c.Limits.RedisDB, "limits.redis-db", c.Limits.RedisDB, "Redis database number")
	fs.StringVar(&c.Limits.RedisPrefix, "limits.redis-prefix", c.Limits.RedisPrefix, "Prefix for Redis keys")
	fs.StringVar(&c.Limits.SQLitePath, "limits.sqlite-path", c.Limits.SQLitePath, "Database file for the sqlite backend")

	fs.StringVar(&c.LLM.Provider, "llm.provider", c.LLM.Provider, "Language model provider: none, ollama or openai")
	fs.StringVar(&c.LLM.BaseURL, "llm.base-url", c.LLM.BaseURL, "Provider base URL")
	fs.StringVar(&c.LLM.APIKey, "llm.api-key", c.LLM.APIKey, "Provider API key")
	fs.StringVar(&c.LLM.Model, "llm.model", c.LLM.Model, "Model name")
	fs.IntVar(&c.LLM.MaxTokens, "llm.max-tokens", c.LLM.MaxTokens, "Maximum tokens per answer")
	fs.DurationVar(&c.LLM.Timeout, "llm.timeout", c.LLM.Timeout, "Language model request timeout")

	fs.StringVar(&c.Log.Level, "log.level", c.Log.Level, "Log level: debug, info, warn or error")
	fs.StringVar(&c.Log.Format, "log.format", c.Log.Format, "Log format: json or console")
}

// Load reads configFile (or searches for policyqa.yaml), overlays
// POLICYQA_* environment variables and the flags in fs, and validates
// the result.
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/" + Name)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(Name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := New()
	if fs == nil {
		fs = pflag.NewFlagSet(Name, pflag.ContinueOnError)
		cfg.AddFlags(fs)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: limits.time-zone: %w", err)
	}
	if c.Assets.BaseURL == "" {
		if info, err := os.Stat(c.Assets.Dir); err == nil && !info.IsDir() {
			return fmt.Errorf("invalid config: assets.dir %q is not a directory", c.Assets.Dir)
		}
		// The asset watcher only covers assets.dir itself.
		for key, name := range map[string]string{
			"assets.chunks-file": c.Assets.ChunksFile,
			"assets.policy-file": c.Assets.PolicyFile,
		} {
			if filepath.Base(name) != name {
				return fmt.Errorf("invalid config: %s %q must be a file name inside assets.dir", key, name)
			}
		}
	}
	return nil
}

// Location resolves limits.time-zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Limits.TimeZone)
}
