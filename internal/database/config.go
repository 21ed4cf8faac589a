package database

import "time"

// SourceConfig holds the settings applied to every pooled source a driver
// package opens.
type SourceConfig struct {
	// MaxConns caps the connections one source may hold open. The pool
	// registry sets it to the per-user maximum pool size.
	MaxConns int

	// MaxConnIdleTime closes connections that sit idle longer than this.
	// A source whose connections have all expired reports zero open
	// connections and becomes eligible for reclamation.
	MaxConnIdleTime time.Duration

	// MaxConnLifetime retires connections after this long regardless of use.
	MaxConnLifetime time.Duration

	// TestOnCheckout pings every connection before handing it out.
	TestOnCheckout bool

	// ConnectTimeout bounds a single dial when the caller's context has no
	// deadline of its own. Zero leaves it to the driver.
	ConnectTimeout time.Duration
}

// DefaultSourceConfig returns the settings used when none are configured.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		MaxConns:        20,
		MaxConnIdleTime: 5 * time.Minute,
		MaxConnLifetime: 30 * time.Minute,
		TestOnCheckout:  false,
	}
}

// WithDefaults fills zero fields from DefaultSourceConfig.
func (c SourceConfig) WithDefaults() SourceConfig {
	def := DefaultSourceConfig()
	if c.MaxConns <= 0 {
		c.MaxConns = def.MaxConns
	}
	if c.MaxConnIdleTime <= 0 {
		c.MaxConnIdleTime = def.MaxConnIdleTime
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = def.MaxConnLifetime
	}
	return c
}
