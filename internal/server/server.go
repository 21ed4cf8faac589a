// Package server is the broker's admin HTTP surface: liveness, a snapshot
// of the pool registry, a forced idle sweep, connection probes and
// Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koustreak/dbbroker/internal/broker"
	"github.com/koustreak/dbbroker/internal/config"
	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/logger"
	"github.com/koustreak/dbbroker/internal/pool"
)

// Registry is the part of *pool.Registry the server reads.
type Registry interface {
	Snapshot() pool.Snapshot
	Sweep() int
}

// Connector obtains connections; *broker.Broker implements it.
type Connector interface {
	Connect(ctx context.Context, req *broker.Request) (database.Conn, error)
}

// Server serves the admin API.
type Server struct {
	httpServer *http.Server
	reg        Registry
	conn       Connector
	log        *logger.Logger
}

// New builds a server for reg and conn. gatherer backs /metrics; nil uses
// the default Prometheus registry.
func New(cfg config.ServerConfig, reg Registry, conn Connector, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{reg: reg, conn: conn, log: log.Component("server")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/pools", func(r chi.Router) {
		r.Get("/", s.handlePools)
		r.Post("/sweep", s.handleSweep)
	})
	r.Post("/probe", s.handleProbe)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.With().Str("addr", ln.Addr().String()).Logger().Info("admin server listening")
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Snapshot())
}

func (s *Server) handleSweep(w http.ResponseWriter, _ *http.Request) {
	remaining := s.reg.Sweep()
	s.log.With().Int("remaining_pools", remaining).Logger().Info("forced idle sweep")
	writeJSON(w, http.StatusOK, map[string]int{"remaining_pools": remaining})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Logger().
			Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
