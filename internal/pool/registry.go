// Package pool keeps the process-wide table of pooled connection sources.
//
// Sources are partitioned by endpoint (PoolKey) and, within an endpoint,
// by identity (SourceKey). New sources are admitted under a per-type
// capacity check, and an idle reclaimer closes sources that no longer
// hold connections.
//
// Usage:
//
//	reg := pool.NewRegistry(connector.New(), pool.WithLogger(log))
//	defer reg.Shutdown()
//
//	conn, err := reg.GetConnection(ctx, ep, cred, &cfg)
package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/dialect"
	"github.com/koustreak/dbbroker/internal/errs"
	"github.com/koustreak/dbbroker/internal/logger"
	"github.com/koustreak/dbbroker/internal/metrics"
)

const (
	modePooled = "pooled"
	modeDirect = "direct"
)

// Opener creates connection sources and direct connections for an
// endpoint. connector.Connector is the production implementation.
type Opener interface {
	Open(ctx context.Context, ep dialect.Endpoint, cred database.Credentials, cfg database.SourceConfig) (database.Source, error)
	Connect(ctx context.Context, ep dialect.Endpoint, cred database.Credentials, timeout time.Duration) (database.Conn, error)
}

// Registry is the two-level table PoolKey -> SourceKey -> Source plus the
// installed pooling Config. It is safe for concurrent use.
//
// mu guards pools, pending and cfg. Admission and reservation happen in
// one critical section; dialing does not. The reclaimer's own mutex is
// only ever taken after mu.
type Registry struct {
	mu      sync.Mutex
	pools   map[PoolKey]map[SourceKey]database.Source
	pending map[PoolKey]map[SourceKey]*pendingSource
	cfg     Config

	opener   Opener
	digester Digester
	log      *logger.Logger
	metrics  *metrics.Metrics

	rec reclaimer
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithDigester replaces the default per-process keyed BLAKE2b digester.
func WithDigester(d Digester) Option {
	return func(r *Registry) { r.digester = d }
}

// WithConfig installs an initial Config instead of DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(r *Registry) { r.cfg = cfg.clone() }
}

// NewRegistry returns an empty registry opening sources through opener.
func NewRegistry(opener Opener, opts ...Option) *Registry {
	r := &Registry{
		pools:   make(map[PoolKey]map[SourceKey]database.Source),
		pending: make(map[PoolKey]map[SourceKey]*pendingSource),
		cfg:     DefaultConfig(),
		opener:  opener,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Component("pool")

	if r.digester == nil {
		r.digester = newProcessDigester()
	}
	return r
}

// GetConnection returns a connection to ep as cred. A non-nil cfg is
// installed first and governs this and later requests.
//
// With pooling disabled the connection is dialed directly and nothing is
// registered. With pooling enabled the connection comes from the source
// registered for (ep, cred), which is created on first use. Creating a
// second or later source for an endpoint is subject to AllowNewSource and
// fails with a capacity error when denied.
//
// A source being created is reserved in the table while it dials, so the
// dial runs without mu. The reservation counts toward capacity, and
// callers with the same identity wait for it instead of dialing twice.
func (r *Registry) GetConnection(ctx context.Context, ep dialect.Endpoint, cred database.Credentials, cfg *Config) (database.Conn, error) {
	if err := validateRequest(ep.URL, cred); err != nil {
		return nil, err
	}
	tag := ep.Type.String()

	r.mu.Lock()
	if cfg != nil {
		r.cfg = cfg.clone()
	}
	cur := r.cfg
	r.mu.Unlock()

	if !cur.Enabled {
		conn, err := r.opener.Connect(ctx, ep, cred, cur.ConnectTimeout)
		r.metrics.Acquired(tag, modeDirect, result(err))
		return conn, err
	}

	digest, err := r.digester.Digest(cred.Password)
	if err != nil {
		r.metrics.Acquired(tag, modePooled, metrics.ResultError)
		if errs.IsCredentialTransform(err) {
			return nil, err
		}
		return nil, errs.Wrap(errs.ErrKindCredentialTransform, "credential digest failed", err)
	}

	pk := PoolKey{Type: ep.Type, URL: ep.URL}
	sk := SourceKey{URL: ep.URL, Username: cred.Username, digest: digest}

	for {
		r.mu.Lock()
		if src, ok := r.pools[pk][sk]; ok {
			r.startReclaimerLocked()
			r.mu.Unlock()
			return r.acquire(ctx, tag, sk, src)
		}

		if p, ok := r.pending[pk][sk]; ok {
			r.mu.Unlock()
			select {
			case <-p.done:
				continue
			case <-ctx.Done():
				r.metrics.Acquired(tag, modePooled, metrics.ResultError)
				return nil, errs.Wrap(errs.ErrKindTimeout, "waiting for connection source", ctx.Err())
			}
		}

		if n := len(r.pools[pk]) + len(r.pending[pk]); n > 0 {
			maxTotal := cur.MaxTotalFor(ep.Type)
			if !AllowNewSource(maxTotal, cur.PerUserMax, n) {
				r.mu.Unlock()
				r.metrics.Acquired(tag, modePooled, metrics.ResultCapacity)
				r.log.With().
					Str("pool", pk.String()).
					Str("user", cred.Username).
					Int("sources", n).
					Logger().
					Warn("max total pool size exceeded")
				return nil, errs.Newf(errs.ErrKindCapacityExceeded,
					"max total pool size exceeded for %s: %d sources x %d connections per user = %d, limit %d",
					pk, n, cur.PerUserMax, n*cur.PerUserMax, maxTotal)
			}
		}

		p := r.reserveLocked(pk, sk)
		r.mu.Unlock()
		return r.create(ctx, ep, cred, cur, sk, p)
	}
}

// pendingSource marks a source whose first dial is in flight. done is
// closed once it is registered or abandoned.
type pendingSource struct {
	done chan struct{}
}

func (r *Registry) reserveLocked(pk PoolKey, sk SourceKey) *pendingSource {
	p := &pendingSource{done: make(chan struct{})}
	if r.pending[pk] == nil {
		r.pending[pk] = make(map[SourceKey]*pendingSource)
	}
	r.pending[pk][sk] = p
	return p
}

func (r *Registry) releaseLocked(pk PoolKey, sk SourceKey, p *pendingSource) {
	delete(r.pending[pk], sk)
	if len(r.pending[pk]) == 0 {
		delete(r.pending, pk)
	}
	close(p.done)
}

// create opens a source for a reserved slot, checks out its first
// connection, and registers it. A source that cannot hand out a
// connection is closed and never registered.
func (r *Registry) create(ctx context.Context, ep dialect.Endpoint, cred database.Credentials, cur Config, sk SourceKey, p *pendingSource) (database.Conn, error) {
	tag := ep.Type.String()
	pk := PoolKey{Type: ep.Type, URL: ep.URL}
	src, conn, err := r.dial(ctx, ep, cred, cur.SourceConfig(), sk)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(pk, sk, p)

	if err != nil {
		r.metrics.Acquired(tag, modePooled, metrics.ResultError)
		return nil, err
	}

	sources := r.pools[pk]
	if sources == nil {
		sources = make(map[SourceKey]database.Source)
		r.pools[pk] = sources
	}
	sources[sk] = src
	r.metrics.SourceCreated(tag)
	r.metrics.Acquired(tag, modePooled, metrics.ResultOK)
	r.updateSizeLocked()
	r.startReclaimerLocked()

	r.log.With().
		Str("pool", pk.String()).
		Str("user", cred.Username).
		Int("sources", len(sources)).
		Logger().
		Info("connection source registered")

	return conn, nil
}

func (r *Registry) dial(ctx context.Context, ep dialect.Endpoint, cred database.Credentials, cfg database.SourceConfig, sk SourceKey) (database.Source, database.Conn, error) {
	src, err := r.opener.Open(ctx, ep, cred, cfg)
	if err != nil {
		return nil, nil, err
	}

	conn, err := src.Acquire(ctx)
	if err != nil {
		if cerr := src.Close(); cerr != nil {
			r.log.WarnWith("closing unregistered source failed", cerr, map[string]interface{}{"source": sk.String()})
		}
		return nil, nil, describe(err, src)
	}
	return src, conn, nil
}

// acquire checks out from an already registered source. It runs without
// the registry lock; the source serializes its own checkouts.
func (r *Registry) acquire(ctx context.Context, tag string, sk SourceKey, src database.Source) (database.Conn, error) {
	conn, err := src.Acquire(ctx)
	if err != nil {
		r.metrics.Acquired(tag, modePooled, metrics.ResultError)
		r.log.WarnWith("checkout from registered source failed", err, map[string]interface{}{"source": sk.String()})
		return nil, describe(err, src)
	}
	r.metrics.Acquired(tag, modePooled, metrics.ResultOK)
	return conn, nil
}

func validateRequest(url string, cred database.Credentials) error {
	switch {
	case strings.TrimSpace(url) == "":
		return errs.Newf(errs.ErrKindInvalidInput, "database url is empty for user %q", cred.Username)
	case cred.Username == "":
		return errs.New(errs.ErrKindInvalidInput, "database username is empty")
	case cred.Password == "":
		return errs.New(errs.ErrKindInvalidInput, "database password is empty")
	}
	return nil
}

type diagnoser interface {
	LastFailure() (database.Phase, error, bool)
}

// describe gives an unclassified acquisition failure the most specific
// diagnostic the source recorded.
func describe(err error, src database.Source) error {
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	if d, ok := src.(diagnoser); ok {
		if phase, _, failed := d.LastFailure(); failed {
			return errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("connection %s failed", phase), err)
		}
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, "connection could not be acquired", err)
}

func result(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultOK
}

// Sweep closes every source with no open connections and drops emptied
// pools, as the reclaimer does on each wake. It returns the number of
// pools left.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

func (r *Registry) sweepLocked() int {
	for pk, sources := range r.pools {
		for sk, src := range sources {
			if src.Stats().Open > 0 {
				continue
			}
			if err := src.Close(); err != nil {
				r.log.WarnWith("closing idle source failed", err, map[string]interface{}{"source": sk.String()})
			}
			delete(sources, sk)
			r.metrics.SourceReclaimed(pk.Type.String())
			r.log.With().Str("source", sk.String()).Logger().Debug("idle source closed")
		}
		if len(sources) == 0 {
			delete(r.pools, pk)
		}
	}
	r.metrics.Swept()
	r.updateSizeLocked()
	return len(r.pools)
}

// Shutdown stops the reclaimer, then closes every source whether or not
// it has connections checked out and clears the registry. The registry
// remains usable afterwards.
func (r *Registry) Shutdown() error {
	r.stopReclaimer()

	r.mu.Lock()
	defer r.mu.Unlock()

	var closeErrs []error
	for pk, sources := range r.pools {
		for sk, src := range sources {
			if err := src.Close(); err != nil {
				closeErrs = append(closeErrs, fmt.Errorf("%s: %w", sk, err))
			}
			r.metrics.SourceReclaimed(pk.Type.String())
		}
	}
	r.pools = make(map[PoolKey]map[SourceKey]database.Source)
	r.updateSizeLocked()

	r.log.Info("registry shut down")
	return errors.Join(closeErrs...)
}

func (r *Registry) updateSizeLocked() {
	n := 0
	for _, sources := range r.pools {
		n += len(sources)
	}
	r.metrics.RegistrySize(len(r.pools), n)
}

// Config returns the installed pooling configuration.
func (r *Registry) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.clone()
}

// SetConfig installs cfg for subsequent requests.
func (r *Registry) SetConfig(cfg Config) {
	r.mu.Lock()
	r.cfg = cfg.clone()
	r.mu.Unlock()
}

// PoolCount returns the number of registered endpoints.
func (r *Registry) PoolCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

// SourceCount returns the number of sources registered for (t, url).
func (r *Registry) SourceCount(t dialect.Type, url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools[PoolKey{Type: t, URL: url}])
}

// ConnectionCount returns the connections open across every source of
// (t, url), idle ones included.
func (r *Registry) ConnectionCount(t dialect.Type, url string) int {
	return r.sumStats(t, url, func(s database.Stats) int { return s.Open })
}

// CheckedOutCount returns the connections of (t, url) currently in use.
func (r *Registry) CheckedOutCount(t dialect.Type, url string) int {
	return r.sumStats(t, url, func(s database.Stats) int { return s.InUse })
}

func (r *Registry) sumStats(t dialect.Type, url string, pick func(database.Stats) int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, src := range r.pools[PoolKey{Type: t, URL: url}] {
		n += pick(src.Stats())
	}
	return n
}

// PoolInfo describes one registered endpoint.
type PoolInfo struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Sources     int    `json:"sources"`
	Open        int    `json:"open_connections"`
	InUse       int    `json:"in_use_connections"`
	FailedPhase string `json:"last_failed_phase,omitempty"`
}

// Snapshot is a point-in-time view of the registry. It never carries
// credentials or digests.
type Snapshot struct {
	PoolingEnabled bool       `json:"pooling_enabled"`
	Reclaimer      string     `json:"reclaimer"`
	Pools          []PoolInfo `json:"pools"`
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		PoolingEnabled: r.cfg.Enabled,
		Reclaimer:      r.ReclaimerState().String(),
		Pools:          make([]PoolInfo, 0, len(r.pools)),
	}
	for pk, sources := range r.pools {
		info := PoolInfo{Type: pk.Type.String(), URL: dialect.Redact(pk.URL), Sources: len(sources)}
		for _, src := range sources {
			st := src.Stats()
			info.Open += st.Open
			info.InUse += st.InUse
			if d, ok := src.(diagnoser); ok {
				if phase, _, failed := d.LastFailure(); failed {
					info.FailedPhase = phase.String()
				}
			}
		}
		snap.Pools = append(snap.Pools, info)
	}
	sort.Slice(snap.Pools, func(i, j int) bool {
		if snap.Pools[i].Type != snap.Pools[j].Type {
			return snap.Pools[i].Type < snap.Pools[j].Type
		}
		return snap.Pools[i].URL < snap.Pools[j].URL
	})
	return snap
}
