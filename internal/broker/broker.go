// Package broker turns a connection request into a live connection: it
// resolves the request's candidate endpoints and probes them in order
// through a pool registry until one answers.
//
// Usage:
//
//	reg := pool.NewRegistry(connector.New())
//	b := broker.New(reg)
//
//	req := &broker.Request{Type: "oracle", Params: dialect.Params{Server: "db1", Database: "ORCL"},
//		Username: "scott", Password: pw}
//	conn, err := b.Connect(ctx, req)
//	// req.URL now holds the candidate that answered.
package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/dialect"
	"github.com/koustreak/dbbroker/internal/errs"
	"github.com/koustreak/dbbroker/internal/logger"
	"github.com/koustreak/dbbroker/internal/metrics"
	"github.com/koustreak/dbbroker/internal/pool"
)

// Pool hands out connections for one endpoint at a time. *pool.Registry
// implements it.
type Pool interface {
	GetConnection(ctx context.Context, ep dialect.Endpoint, cred database.Credentials, cfg *pool.Config) (database.Conn, error)
}

// Request describes the connection a caller wants.
type Request struct {
	// Type is a database type name accepted by dialect.Parse.
	Type     string
	Params   dialect.Params
	Username string
	Password string

	// Pooling, when set, is installed in the registry before connecting.
	Pooling *pool.Config

	// URL is filled in with the candidate that produced the connection.
	URL string
}

// Broker connects requests through a Pool.
type Broker struct {
	pool    Pool
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Option configures a Broker.
type Option func(*Broker)

func WithLogger(l *logger.Logger) Option {
	return func(b *Broker) { b.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

func New(p Pool, opts ...Option) *Broker {
	b := &Broker{pool: p, log: logger.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.Component("broker")
	return b
}

// Connect resolves req into candidate endpoints and returns a connection
// from the first that answers, recording its URL in req.URL. Credentials
// and the type are checked before anything is dialed.
func (b *Broker) Connect(ctx context.Context, req *Request) (database.Conn, error) {
	if req == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "connection request is nil")
	}

	t, err := dialect.Parse(req.Type)
	if err != nil {
		return nil, err
	}

	switch {
	case req.Username == "":
		return nil, errs.New(errs.ErrKindInvalidInput, "database username is empty")
	case req.Password == "":
		return nil, errs.New(errs.ErrKindInvalidInput, "database password is empty")
	}

	driver, err := dialect.DriverName(t, req.Params)
	if err != nil {
		return nil, err
	}
	urls, err := dialect.Resolve(t, req.Params)
	if err != nil {
		return nil, err
	}

	cred := database.Credentials{Username: req.Username, Password: req.Password}
	conn, url, err := b.Obtain(ctx, dialect.Endpoints(t, driver, urls), cred, req.Pooling)
	if err != nil {
		return nil, err
	}
	req.URL = url
	return conn, nil
}

// Obtain tries candidates in order and returns the first connection along
// with the URL that produced it.
//
// Blank candidates are skipped without counting as attempts. An error that
// errs.Retryable rejects, such as a capacity violation, ends the search at
// once. Otherwise the search ends when candidates run out, with an error
// carrying the last failure's kind and the redacted URLs tried.
func (b *Broker) Obtain(ctx context.Context, candidates []dialect.Endpoint, cred database.Credentials, cfg *pool.Config) (database.Conn, string, error) {
	var (
		tried   []string
		lastErr error
	)

	for _, ep := range candidates {
		tag := ep.Type.String()
		if strings.TrimSpace(ep.URL) == "" {
			b.metrics.ProbeAttempt(tag, metrics.ResultSkipped)
			continue
		}

		redacted := dialect.Redact(ep.URL)
		tried = append(tried, redacted)
		log := b.log.With().Str("db_type", tag).Str("url", redacted).Str("user", cred.Username).Logger()

		conn, err := b.pool.GetConnection(ctx, ep, cred, cfg)
		if err == nil {
			b.metrics.ProbeAttempt(tag, metrics.ResultOK)
			log.With().Int("attempts", len(tried)).Logger().Info("connection obtained")
			return conn, ep.URL, nil
		}
		lastErr = err

		if !errs.Retryable(err) {
			if errs.IsCapacityExceeded(err) {
				b.metrics.ProbeAttempt(tag, metrics.ResultCapacity)
			} else {
				b.metrics.ProbeAttempt(tag, metrics.ResultError)
			}
			log.WarnWith("candidate failed, not trying further candidates", err, nil)
			return nil, "", err
		}

		b.metrics.ProbeAttempt(tag, metrics.ResultError)
		log.WarnWith("candidate failed", err, nil)

		if ctx.Err() != nil {
			break
		}
	}

	if len(tried) == 0 {
		return nil, "", errs.New(errs.ErrKindNoEndpoints, "no database URL was provided")
	}

	kind := errs.KindOf(lastErr)
	if kind == errs.ErrKindUnknown {
		kind = errs.ErrKindConnectionFailed
	}
	return nil, "", errs.Wrap(kind,
		fmt.Sprintf("could not connect to any of %d candidate(s) [%s]", len(tried), strings.Join(tried, ", ")),
		lastErr)
}
