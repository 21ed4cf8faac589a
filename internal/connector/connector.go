// Package connector opens connection sources and direct connections for a
// resolved endpoint by dispatching on its database type to the matching
// driver package.
package connector

import (
	"context"
	"time"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/database/generic"
	"github.com/koustreak/dbbroker/internal/database/mssql"
	"github.com/koustreak/dbbroker/internal/database/mysql"
	"github.com/koustreak/dbbroker/internal/database/oracle"
	"github.com/koustreak/dbbroker/internal/database/postgres"
	"github.com/koustreak/dbbroker/internal/database/sybase"
	"github.com/koustreak/dbbroker/internal/dialect"
	"github.com/koustreak/dbbroker/internal/errs"
	"github.com/koustreak/dbbroker/internal/logger"
)

// Connector is the production pool.Opener.
type Connector struct {
	log *logger.Logger
}

// Option configures a Connector.
type Option func(*Connector)

func WithLogger(l *logger.Logger) Option {
	return func(c *Connector) { c.log = l }
}

func New(opts ...Option) *Connector {
	c := &Connector{log: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open creates a pooled source for ep as cred. Sources dial lazily; the
// first connection is made by the caller's Acquire.
func (c *Connector) Open(ctx context.Context, ep dialect.Endpoint, cred database.Credentials, cfg database.SourceConfig) (database.Source, error) {
	c.log.With().
		Str("db_type", ep.Type.String()).
		Str("url", dialect.Redact(ep.URL)).
		Str("user", cred.Username).
		Int("max_conns", cfg.MaxConns).
		Logger().
		Debug("opening connection source")

	switch ep.Type {
	case dialect.PostgreSQL:
		return postgres.Open(ctx, ep.URL, cred, cfg)
	case dialect.MySQL:
		return mysql.Open(ctx, ep.URL, cred, cfg)
	case dialect.MSSQL:
		return mssql.Open(ctx, ep.URL, cred, cfg)
	case dialect.Oracle:
		return oracle.Open(ctx, ep.URL, cred, cfg)
	case dialect.Sybase, dialect.Netcool:
		return sybase.Open(ctx, ep.URL, cred, cfg)
	case dialect.DB2:
		return generic.Open(ctx, generic.DB2DriverName, ep.URL, cred, cfg)
	case dialect.Custom:
		return generic.Open(ctx, ep.Driver, ep.URL, cred, cfg)
	default:
		return nil, errs.Newf(errs.ErrKindUnsupportedType, "unsupported database type %d", int(ep.Type))
	}
}

// Connect dials one unpooled connection to ep as cred.
func (c *Connector) Connect(ctx context.Context, ep dialect.Endpoint, cred database.Credentials, timeout time.Duration) (database.Conn, error) {
	c.log.With().
		Str("db_type", ep.Type.String()).
		Str("url", dialect.Redact(ep.URL)).
		Str("user", cred.Username).
		Logger().
		Debug("opening direct connection")

	switch ep.Type {
	case dialect.PostgreSQL:
		return postgres.Connect(ctx, ep.URL, cred, timeout)
	case dialect.MySQL:
		return mysql.Connect(ctx, ep.URL, cred, timeout)
	case dialect.MSSQL:
		return mssql.Connect(ctx, ep.URL, cred, timeout)
	case dialect.Oracle:
		return oracle.Connect(ctx, ep.URL, cred, timeout)
	case dialect.Sybase, dialect.Netcool:
		return sybase.Connect(ctx, ep.URL, cred, timeout)
	case dialect.DB2:
		return generic.Connect(ctx, generic.DB2DriverName, ep.URL, cred, timeout)
	case dialect.Custom:
		return generic.Connect(ctx, ep.Driver, ep.URL, cred, timeout)
	default:
		return nil, errs.Newf(errs.ErrKindUnsupportedType, "unsupported database type %d", int(ep.Type))
	}
}
