package pool

import (
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/dialect"
	"github.com/koustreak/dbbroker/internal/errs"
)

const (
	DefaultMaxTotalPoolSize = 100
	DefaultPerUserMaxPool   = 20
	DefaultCleanupInterval  = 7200 * time.Second
)

// Property keys understood by ParseProperties. The per-type total is
// "<type>.maxTotalPoolSize", e.g. "oracle.maxTotalPoolSize".
const (
	PropPoolingEnabled  = "pooling.enabled"
	PropMaxTotalSuffix  = ".maxTotalPoolSize"
	PropPerUserMax      = "perUser.maxPoolSize"
	PropCleanupInterval = "cleanup.intervalSeconds"
	PropMaxIdle         = "source.maxIdleSeconds"
	PropMaxLifetime     = "source.maxLifetimeSeconds"
	PropTestOnCheckout  = "source.testOnCheckout"
)

// Config is the pooling configuration a Registry runs under. A Registry
// holds one installed value and replaces it whole; fields are never
// updated in place.
type Config struct {
	Enabled bool

	// MaxTotal caps, per database type, the connections all sources of one
	// endpoint may grow to. Types without an entry use DefaultMaxTotal.
	MaxTotal        map[dialect.Type]int
	DefaultMaxTotal int

	// PerUserMax is the connection ceiling of a single source.
	PerUserMax int

	// CleanupInterval is the idle reclaimer's sleep between sweeps.
	CleanupInterval time.Duration

	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
	TestOnCheckout  bool

	// ConnectTimeout bounds a single dial. Zero leaves it to the caller's
	// context and the driver.
	ConnectTimeout time.Duration
}

// DefaultConfig returns pooling disabled with the stock limits.
func DefaultConfig() Config {
	return Config{
		Enabled:         false,
		DefaultMaxTotal: DefaultMaxTotalPoolSize,
		PerUserMax:      DefaultPerUserMaxPool,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// MaxTotalFor returns the total pool size ceiling for t.
func (c Config) MaxTotalFor(t dialect.Type) int {
	if n, ok := c.MaxTotal[t]; ok {
		return n
	}
	return c.DefaultMaxTotal
}

// SourceConfig derives the settings applied to each new source.
func (c Config) SourceConfig() database.SourceConfig {
	return database.SourceConfig{
		MaxConns:        c.PerUserMax,
		MaxConnIdleTime: c.MaxConnIdleTime,
		MaxConnLifetime: c.MaxConnLifetime,
		TestOnCheckout:  c.TestOnCheckout,
		ConnectTimeout:  c.ConnectTimeout,
	}.WithDefaults()
}

// Validate rejects limits that would make every admission check fail or
// the reclaimer spin.
func (c Config) Validate() error {
	if c.PerUserMax <= 0 {
		return errs.Newf(errs.ErrKindInvalidInput, "per-user max pool size must be positive, got %d", c.PerUserMax)
	}
	if c.DefaultMaxTotal <= 0 {
		return errs.Newf(errs.ErrKindInvalidInput, "default max total pool size must be positive, got %d", c.DefaultMaxTotal)
	}
	for t, n := range c.MaxTotal {
		if n <= 0 {
			return errs.Newf(errs.ErrKindInvalidInput, "max total pool size for %s must be positive, got %d", t, n)
		}
	}
	if c.CleanupInterval <= 0 {
		return errs.Newf(errs.ErrKindInvalidInput, "cleanup interval must be positive, got %s", c.CleanupInterval)
	}
	return nil
}

func (c Config) clone() Config {
	c.MaxTotal = maps.Clone(c.MaxTotal)
	return c
}

// ParseProperties builds a Config from a flat key/value bundle, starting
// from DefaultConfig. Keys it does not know are ignored.
func ParseProperties(props map[string]string) (Config, error) {
	cfg := DefaultConfig()

	for key, raw := range props {
		val := strings.TrimSpace(raw)
		switch {
		case key == PropPoolingEnabled:
			b, err := strconv.ParseBool(val)
			if err != nil {
				return Config{}, badProperty(key, err)
			}
			cfg.Enabled = b

		case key == PropPerUserMax:
			n, err := strconv.Atoi(val)
			if err != nil {
				return Config{}, badProperty(key, err)
			}
			cfg.PerUserMax = n

		case key == PropCleanupInterval:
			d, err := seconds(val)
			if err != nil {
				return Config{}, badProperty(key, err)
			}
			cfg.CleanupInterval = d

		case key == PropMaxIdle:
			d, err := seconds(val)
			if err != nil {
				return Config{}, badProperty(key, err)
			}
			cfg.MaxConnIdleTime = d

		case key == PropMaxLifetime:
			d, err := seconds(val)
			if err != nil {
				return Config{}, badProperty(key, err)
			}
			cfg.MaxConnLifetime = d

		case key == PropTestOnCheckout:
			b, err := strconv.ParseBool(val)
			if err != nil {
				return Config{}, badProperty(key, err)
			}
			cfg.TestOnCheckout = b

		case strings.HasSuffix(key, PropMaxTotalSuffix):
			t, err := dialect.Parse(strings.TrimSuffix(key, PropMaxTotalSuffix))
			if err != nil {
				return Config{}, badProperty(key, err)
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				return Config{}, badProperty(key, err)
			}
			if cfg.MaxTotal == nil {
				cfg.MaxTotal = make(map[dialect.Type]int)
			}
			cfg.MaxTotal[t] = n
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func seconds(val string) (time.Duration, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func badProperty(key string, cause error) error {
	return errs.Wrap(errs.ErrKindInvalidInput, "invalid pooling property "+key, cause)
}
