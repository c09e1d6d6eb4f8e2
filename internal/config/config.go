// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

// Package config loads server configuration from defaults, a YAML file,
// environment secrets and command-line flags, in that order of precedence.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/dungeondash/dungeondash/internal/auth"
	"github.com/dungeondash/dungeondash/internal/logging"
	"github.com/dungeondash/dungeondash/internal/store"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

// Environment variables that override file values.
const (
	EnvDatabaseURL   = "DATABASE_URL"
	EnvRedisPassword = "REDIS_PASSWORD"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig     `koanf:"server"`
	Metrics  MetricsConfig    `koanf:"metrics"`
	Log      LogConfig        `koanf:"log"`
	Store    StoreConfig      `koanf:"store"`
	Database store.PoolConfig `koanf:"database"`
	Redis    RedisConfig      `koanf:"redis"`
	Auth     AuthConfig       `koanf:"auth"`
	Roster   RosterConfig     `koanf:"roster"`
}

// ServerConfig configures the API listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// StoreConfig selects the record store for each repository.
type StoreConfig struct {
	Accounts string `koanf:"accounts"`
	Sessions string `koanf:"sessions"`
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// AuthConfig configures credential hashing and session tokens.
type AuthConfig struct {
	Hasher      auth.HasherConfig `koanf:"hasher"`
	TokenLength int               `koanf:"token_length"`
}

// RosterConfig points at an alternative character roster.
type RosterConfig struct {
	File string `koanf:"file"`
}

// Token length bounds accepted by Validate.
const (
	MinTokenLength = 16
	MaxTokenLength = 256
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Store: StoreConfig{
			Accounts: BackendPostgres,
			Sessions: BackendPostgres,
		},
		Database: store.PoolConfig{
			MaxConns:       10,
			ConnectTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Auth: AuthConfig{
			Hasher:      auth.DefaultHasherConfig(),
			TokenLength: auth.DefaultTokenLength,
		},
	}
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"addr":           "server.addr",
	"metrics-addr":   "metrics.addr",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"accounts-store": "store.accounts",
	"sessions-store": "store.sessions",
	"redis-addr":     "redis.addr",
	"roster-file":    "roster.file",
}

// Load builds a Config. path may be empty, in which case only defaults,
// environment and flags apply. flags may be nil. Only flags the user set
// override lower layers.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
// Flags still win for keys that have one.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Redis.Password = v
	}
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return invalid("server.addr", "server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout", "server.shutdown_timeout must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level %q is not a known level", c.Log.Level)
	}

	switch c.Store.Accounts {
	case BackendPostgres, BackendMemory:
	default:
		return invalid("store.accounts", "store.accounts must be 'postgres' or 'memory', got %q", c.Store.Accounts)
	}
	switch c.Store.Sessions {
	case BackendPostgres, BackendMemory, BackendRedis:
	default:
		return invalid("store.sessions", "store.sessions must be 'postgres', 'memory' or 'redis', got %q", c.Store.Sessions)
	}
	// sessions reference accounts by foreign key
	if c.Store.Sessions == BackendPostgres && c.Store.Accounts != BackendPostgres {
		return invalid("store.sessions", "postgres sessions require postgres accounts")
	}
	if c.UsesPostgres() && c.Database.URL == "" {
		return invalid("database.url", "database.url (or %s) is required for the postgres store", EnvDatabaseURL)
	}
	if c.Store.Sessions == BackendRedis && c.Redis.Addr == "" {
		return invalid("redis.addr", "redis.addr is required for the redis session store")
	}

	if c.Auth.TokenLength < MinTokenLength || c.Auth.TokenLength > MaxTokenLength {
		return invalid("auth.token_length", "auth.token_length must be between %d and %d, got %d",
			MinTokenLength, MaxTokenLength, c.Auth.TokenLength)
	}
	if _, err := auth.NewPasswordHasher(c.Auth.Hasher); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "auth.hasher").Wrap(err)
	}
	return nil
}

// UsesPostgres reports whether any repository is backed by PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.Store.Accounts == BackendPostgres || c.Store.Sessions == BackendPostgres
}
