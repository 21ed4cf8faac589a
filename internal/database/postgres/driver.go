// Package postgres opens PostgreSQL sources on pgxpool and direct
// connections on pgx, bypassing database/sql.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

// Source is a database.Source backed by a pgxpool.Pool.
// It is safe for concurrent use by multiple goroutines.
type Source struct {
	pool     *pgxpool.Pool
	cfg      database.SourceConfig
	classify database.Classifier
	diag     database.Diagnostics
}

// Open builds a pool for connString as cred. pgxpool connects lazily, so
// nothing is dialed until the first Acquire.
func Open(ctx context.Context, connString string, cred database.Credentials, cfg database.SourceConfig) (database.Source, error) {
	cfg = cfg.WithDefaults()
	classify := database.ScrubClassifier(mapError, cred.Password)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid postgres url", err)
	}

	poolCfg.ConnConfig.User = cred.Username
	poolCfg.ConnConfig.Password = cred.Password
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = 0
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, classify(err, "failed to create connection pool")
	}

	return &Source{pool: pool, cfg: cfg, classify: classify}, nil
}

// Acquire checks out a connection, pinging it first when configured to.
func (s *Source) Acquire(ctx context.Context) (database.Conn, error) {
	c, err := s.pool.Acquire(ctx)
	if err != nil {
		s.diag.Record(database.PhaseCheckout, err)
		return nil, s.classify(err, "checkout failed")
	}

	if s.cfg.TestOnCheckout {
		if err := c.Ping(ctx); err != nil {
			s.diag.Record(database.PhaseTest, err)
			// Closing the underlying conn makes Release destroy it.
			_ = c.Conn().Close(ctx)
			c.Release()
			return nil, s.classify(err, "connection test failed")
		}
	}

	return &pooledConn{conn: c, classify: s.classify}, nil
}

func (s *Source) Stats() database.Stats {
	st := s.pool.Stat()
	return database.Stats{
		Open:  int(st.TotalConns()),
		InUse: int(st.AcquiredConns()),
		Idle:  int(st.IdleConns()),
	}
}

func (s *Source) LastFailure() (database.Phase, error, bool) {
	return s.diag.LastFailure()
}

// Close drains the pool. pgxpool blocks until checked-out connections are
// released, so with connections still out the drain finishes in the
// background and Close returns at once.
func (s *Source) Close() error {
	if s.pool.Stat().AcquiredConns() > 0 {
		go s.pool.Close()
		return nil
	}
	s.pool.Close()
	return nil
}

type pooledConn struct {
	conn     *pgxpool.Conn
	classify database.Classifier
}

func (c *pooledConn) Ping(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return c.classify(err, "ping failed")
	}
	return nil
}

func (c *pooledConn) Close() error {
	c.conn.Release()
	return nil
}

// Conn exposes the pgx connection for callers that run statements on it.
func (c *pooledConn) Conn() *pgx.Conn {
	return c.conn.Conn()
}

// Connect dials a single unpooled connection.
func Connect(ctx context.Context, connString string, cred database.Credentials, timeout time.Duration) (database.Conn, error) {
	classify := database.ScrubClassifier(mapError, cred.Password)

	connCfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid postgres url", err)
	}
	connCfg.User = cred.Username
	connCfg.Password = cred.Password
	if timeout > 0 {
		connCfg.ConnectTimeout = timeout
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, classify(err, "connect failed")
	}
	return &directConn{conn: conn, classify: classify}, nil
}

type directConn struct {
	conn     *pgx.Conn
	classify database.Classifier
}

func (c *directConn) Ping(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return c.classify(err, "ping failed")
	}
	return nil
}

func (c *directConn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.conn.Close(ctx); err != nil {
		return c.classify(err, "close failed")
	}
	return nil
}

func (c *directConn) Conn() *pgx.Conn {
	return c.conn
}
