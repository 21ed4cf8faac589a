package pool

import (
	"context"
	"sync"
	"time"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/dialect"
	"github.com/koustreak/dbbroker/internal/errs"
)

// stubSource counts connections the way a real pool would if idle
// connections expired the moment they were returned.
type stubSource struct {
	mu         sync.Mutex
	open       int
	inUse      int
	closed     bool
	acquireErr error
	diag       database.Diagnostics
}

func (s *stubSource) Acquire(context.Context) (database.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errs.New(errs.ErrKindConnectionFailed, "source closed")
	}
	if s.acquireErr != nil {
		s.diag.Record(database.PhaseCheckout, s.acquireErr)
		return nil, s.acquireErr
	}
	s.open++
	s.inUse++
	return &stubConn{src: s}, nil
}

func (s *stubSource) Stats() database.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return database.Stats{Open: s.open, InUse: s.inUse, Idle: s.open - s.inUse}
}

func (s *stubSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *stubSource) LastFailure() (database.Phase, error, bool) {
	return s.diag.LastFailure()
}

func (s *stubSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type stubConn struct {
	src  *stubSource
	once sync.Once
}

func (c *stubConn) Ping(context.Context) error { return nil }

func (c *stubConn) Close() error {
	c.once.Do(func() {
		c.src.mu.Lock()
		c.src.open--
		c.src.inUse--
		c.src.mu.Unlock()
	})
	return nil
}

type nopConn struct{}

func (nopConn) Ping(context.Context) error { return nil }
func (nopConn) Close() error               { return nil }

type stubOpener struct {
	mu         sync.Mutex
	opens      int
	connects   int
	sources    []*stubSource
	openErr    error
	acquireErr error
}

func (o *stubOpener) Open(_ context.Context, _ dialect.Endpoint, _ database.Credentials, _ database.SourceConfig) (database.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.openErr != nil {
		return nil, o.openErr
	}
	s := &stubSource{acquireErr: o.acquireErr}
	o.sources = append(o.sources, s)
	return s, nil
}

func (o *stubOpener) Connect(context.Context, dialect.Endpoint, database.Credentials, time.Duration) (database.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connects++
	return nopConn{}, nil
}

func (o *stubOpener) counts() (opens, connects int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens, o.connects
}

func (o *stubOpener) source(i int) *stubSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sources[i]
}

var oracleEP = dialect.Endpoint{Type: dialect.Oracle, Driver: "oracle", URL: "oracle://db1:1521/ORCL"}

func cred(user, pass string) database.Credentials {
	return database.Credentials{Username: user, Password: pass}
}

func pooled() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	return cfg
}
