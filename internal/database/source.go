package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"time"
)

// Phase names the step of a connection's life a failure happened in.
type Phase int

const (
	PhaseCheckout Phase = iota // dialing or taking a connection from the pool
	PhaseTest                  // ping on checkout
	PhaseCheckin               // returning a connection to the pool
)

func (p Phase) String() string {
	switch p {
	case PhaseCheckout:
		return "checkout"
	case PhaseTest:
		return "checkout test"
	case PhaseCheckin:
		return "checkin"
	default:
		return "unknown"
	}
}

// Diagnostics remembers the most recent failure of each phase.
type Diagnostics struct {
	mu   sync.Mutex
	last [3]error
}

// Record stores err as the latest failure of phase p.
func (d *Diagnostics) Record(p Phase, err error) {
	d.mu.Lock()
	d.last[p] = err
	d.mu.Unlock()
}

// LastFailure returns the most specific recorded failure, checking phases
// in checkout, test, checkin order. ok is false when nothing has failed.
func (d *Diagnostics) LastFailure() (p Phase, err error, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.last {
		if e != nil {
			return Phase(i), e, true
		}
	}
	return 0, nil, false
}

// SQLSource is a Source backed by a *sql.DB connection pool. Every driver
// reached through database/sql uses it.
type SQLSource struct {
	db       *sql.DB
	cfg      SourceConfig
	classify Classifier
	diag     Diagnostics
}

// NewSQLSource applies cfg to db and wraps it. classify maps the driver's
// errors; nil uses MapError.
func NewSQLSource(db *sql.DB, cfg SourceConfig, classify Classifier) *SQLSource {
	cfg = cfg.WithDefaults()
	if classify == nil {
		classify = MapError
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)

	return &SQLSource{db: db, cfg: cfg, classify: classify}
}

// Acquire checks out a dedicated connection, testing it first when the
// source is configured to.
func (s *SQLSource) Acquire(ctx context.Context) (Conn, error) {
	ctx, cancel := withConnectTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	c, err := s.db.Conn(ctx)
	if err != nil {
		s.diag.Record(PhaseCheckout, err)
		return nil, s.classify(err, "checkout failed")
	}

	if s.cfg.TestOnCheckout {
		if err := c.PingContext(ctx); err != nil {
			s.diag.Record(PhaseTest, err)
			// ErrBadConn discards the connection instead of pooling it.
			_ = c.Raw(func(any) error { return driver.ErrBadConn })
			_ = c.Close()
			return nil, s.classify(err, "connection test failed")
		}
	}

	return &sqlConn{conn: c, src: s}, nil
}

func (s *SQLSource) Stats() Stats {
	st := s.db.Stats()
	return Stats{Open: st.OpenConnections, InUse: st.InUse, Idle: st.Idle}
}

// LastFailure exposes the source's diagnostics.
func (s *SQLSource) LastFailure() (Phase, error, bool) {
	return s.diag.LastFailure()
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}

// DB returns the underlying pool.
func (s *SQLSource) DB() *sql.DB {
	return s.db
}

type sqlConn struct {
	conn *sql.Conn
	src  *SQLSource
}

func (c *sqlConn) Ping(ctx context.Context) error {
	if err := c.conn.PingContext(ctx); err != nil {
		return c.src.classify(err, "ping failed")
	}
	return nil
}

func (c *sqlConn) Close() error {
	if err := c.conn.Close(); err != nil {
		c.src.diag.Record(PhaseCheckin, err)
		return c.src.classify(err, "checkin failed")
	}
	return nil
}

// Raw exposes the *sql.Conn for callers that run statements on it.
func (c *sqlConn) Raw() *sql.Conn {
	return c.conn
}

// OpenDirect dials a single unpooled connection on db. The returned Conn
// owns db and closes it along with the connection.
func OpenDirect(ctx context.Context, db *sql.DB, timeout time.Duration, classify Classifier) (Conn, error) {
	if classify == nil {
		classify = MapError
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := withConnectTimeout(ctx, timeout)
	defer cancel()

	c, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, classify(err, "connect failed")
	}
	if err := c.PingContext(ctx); err != nil {
		_ = c.Close()
		_ = db.Close()
		return nil, classify(err, "connect failed")
	}
	return &directConn{conn: c, db: db, classify: classify}, nil
}

type directConn struct {
	conn     *sql.Conn
	db       *sql.DB
	classify Classifier
}

func (c *directConn) Ping(ctx context.Context) error {
	if err := c.conn.PingContext(ctx); err != nil {
		return c.classify(err, "ping failed")
	}
	return nil
}

func (c *directConn) Close() error {
	connErr := c.conn.Close()
	dbErr := c.db.Close()
	if connErr != nil {
		return c.classify(connErr, "close failed")
	}
	if dbErr != nil {
		return c.classify(dbErr, "close failed")
	}
	return nil
}

func (c *directConn) Raw() *sql.Conn {
	return c.conn
}

func withConnectTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
