// Package config loads the broker's configuration: a YAML file, then
// DBBROKER_* environment overrides, then optionally a YAML document
// fetched from object storage.
//
// Usage:
//
//	cfg, err := config.Load("dbbroker.yaml")
//	if err != nil { ... }
//	poolCfg, err := cfg.PoolConfig()
package config

import (
	"context"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/dbbroker/internal/dialect"
	"github.com/koustreak/dbbroker/internal/errs"
	"github.com/koustreak/dbbroker/internal/filestore"
	"github.com/koustreak/dbbroker/internal/logger"
	"github.com/koustreak/dbbroker/internal/pool"
)

// DefaultMaxTotalKey is the max_total_pool_size entry applied to types
// without an entry of their own.
const DefaultMaxTotalKey = "default"

type Config struct {
	Log     logger.Config `yaml:"log"`
	Pooling PoolingConfig `yaml:"pooling"`
	Server  ServerConfig  `yaml:"server"`
	Remote  RemoteConfig  `yaml:"remote"`
}

// PoolingConfig is the file form of pool.Config.
type PoolingConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxTotalPoolSize is keyed by database type name, plus "default".
	MaxTotalPoolSize map[string]int `yaml:"max_total_pool_size"`

	PerUserMaxPoolSize     int  `yaml:"per_user_max_pool_size"`
	CleanupIntervalSeconds int  `yaml:"cleanup_interval_seconds"`
	MaxIdleSeconds         int  `yaml:"max_idle_seconds"`
	MaxLifetimeSeconds     int  `yaml:"max_lifetime_seconds"`
	TestOnCheckout         bool `yaml:"test_on_checkout"`
	ConnectTimeoutSeconds  int  `yaml:"connect_timeout_seconds"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Address              string `yaml:"address"`
	ReadTimeoutSeconds   int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds  int    `yaml:"write_timeout_seconds"`
	ShutdownGraceSeconds int    `yaml:"shutdown_grace_seconds"`
}

// RemoteConfig points at a YAML document in object storage that is
// merged over the local configuration at startup.
type RemoteConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Key       string `yaml:"key"`
}

// DefaultConfig returns pooling disabled with the stock limits, JSON
// logging at info and the admin server on :8080.
func DefaultConfig() *Config {
	return &Config{
		Log: logger.Config{
			Level:      "info",
			Format:     "json",
			TimeFormat: "rfc3339",
		},
		Pooling: PoolingConfig{
			Enabled:                false,
			MaxTotalPoolSize:       map[string]int{DefaultMaxTotalKey: pool.DefaultMaxTotalPoolSize},
			PerUserMaxPoolSize:     pool.DefaultPerUserMaxPool,
			CleanupIntervalSeconds: int(pool.DefaultCleanupInterval / time.Second),
		},
		Server: ServerConfig{
			Address:              ":8080",
			ReadTimeoutSeconds:   10,
			WriteTimeoutSeconds:  10,
			ShutdownGraceSeconds: 15,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errs.Wrap(errs.ErrKindNotFound, "config file "+path+" not found", err)
			}
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file "+path, err)
		}
		if err := cfg.merge(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge decodes a YAML document over c. Keys absent from data keep their
// current values.
func (c *Config) merge(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to parse YAML config", err)
	}
	return nil
}

// LoadRemote fetches the YAML document at bucket/key from store and
// returns a copy of c with it merged on top. c itself is not modified.
func (c *Config) LoadRemote(ctx context.Context, store filestore.Store, bucket, key string) (*Config, *filestore.ObjectInfo, error) {
	data, info, err := filestore.ReadAll(ctx, store, bucket, key, filestore.MaxDocumentSize)
	if err != nil {
		return nil, nil, err
	}

	out := c.clone()
	if err := out.merge(data); err != nil {
		return nil, nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, nil, err
	}
	return out, info, nil
}

func (c *Config) clone() *Config {
	out := *c
	out.Pooling.MaxTotalPoolSize = maps.Clone(c.Pooling.MaxTotalPoolSize)
	return &out
}

// LookupFunc reads one environment variable; os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from DBBROKER_* variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "invalid "+key, err)
		}
		*dst = n
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "invalid "+key, err)
		}
		*dst = b
		return nil
	}

	str("DBBROKER_LOG_LEVEL", &c.Log.Level)
	str("DBBROKER_LOG_FORMAT", &c.Log.Format)
	str("DBBROKER_SERVER_ADDR", &c.Server.Address)
	str("DBBROKER_REMOTE_ENDPOINT", &c.Remote.Endpoint)
	str("DBBROKER_REMOTE_ACCESS_KEY", &c.Remote.AccessKey)
	str("DBBROKER_REMOTE_SECRET_KEY", &c.Remote.SecretKey)
	str("DBBROKER_REMOTE_BUCKET", &c.Remote.Bucket)
	str("DBBROKER_REMOTE_KEY", &c.Remote.Key)

	for _, f := range []func() error{
		func() error { return flag("DBBROKER_POOLING_ENABLED", &c.Pooling.Enabled) },
		func() error { return num("DBBROKER_PER_USER_MAX_POOL_SIZE", &c.Pooling.PerUserMaxPoolSize) },
		func() error { return num("DBBROKER_CLEANUP_INTERVAL_SECONDS", &c.Pooling.CleanupIntervalSeconds) },
		func() error { return flag("DBBROKER_REMOTE_ENABLED", &c.Remote.Enabled) },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "log level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "log format %q is not one of json, console", c.Log.Format)
	}

	if c.Server.Address == "" {
		return errs.New(errs.ErrKindInvalidInput, "server address is empty")
	}

	if _, err := c.PoolConfig(); err != nil {
		return err
	}

	if c.Remote.Enabled {
		if c.Remote.Endpoint == "" || c.Remote.Bucket == "" || c.Remote.Key == "" {
			return errs.New(errs.ErrKindInvalidInput, "remote config needs endpoint, bucket and key")
		}
	}
	return nil
}

// PoolConfig converts the pooling section into a validated pool.Config.
func (c *Config) PoolConfig() (pool.Config, error) {
	p := c.Pooling
	out := pool.Config{
		Enabled:         p.Enabled,
		DefaultMaxTotal: pool.DefaultMaxTotalPoolSize,
		PerUserMax:      p.PerUserMaxPoolSize,
		CleanupInterval: time.Duration(p.CleanupIntervalSeconds) * time.Second,
		MaxConnIdleTime: time.Duration(p.MaxIdleSeconds) * time.Second,
		MaxConnLifetime: time.Duration(p.MaxLifetimeSeconds) * time.Second,
		TestOnCheckout:  p.TestOnCheckout,
		ConnectTimeout:  time.Duration(p.ConnectTimeoutSeconds) * time.Second,
	}

	for name, n := range p.MaxTotalPoolSize {
		if name == DefaultMaxTotalKey {
			out.DefaultMaxTotal = n
			continue
		}
		t, err := dialect.Parse(name)
		if err != nil {
			return pool.Config{}, errs.Wrap(errs.ErrKindInvalidInput, "invalid max_total_pool_size entry "+name, err)
		}
		if out.MaxTotal == nil {
			out.MaxTotal = make(map[dialect.Type]int)
		}
		out.MaxTotal[t] = n
	}

	if err := out.Validate(); err != nil {
		return pool.Config{}, err
	}
	return out, nil
}

// StoreConfig returns the file store settings for the remote section.
func (c *Config) StoreConfig() *filestore.Config {
	return &filestore.Config{
		Provider:  filestore.ProviderMinIO,
		Endpoint:  c.Remote.Endpoint,
		AccessKey: c.Remote.AccessKey,
		SecretKey: c.Remote.SecretKey,
		UseSSL:    c.Remote.UseSSL,
		Region:    c.Remote.Region,
		Bucket:    c.Remote.Bucket,
	}
}

// ReadTimeout and WriteTimeout convert the server section's seconds.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

func (s ServerConfig) ShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownGraceSeconds) * time.Second
}
