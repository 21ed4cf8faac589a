package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/koustreak/dbbroker/internal/broker"
	"github.com/koustreak/dbbroker/internal/dialect"
	"github.com/koustreak/dbbroker/internal/errs"
)

const maxProbeBody = 64 << 10

type probeRequest struct {
	Type     string            `json:"type"`
	Server   string            `json:"server"`
	Port     int               `json:"port"`
	Database string            `json:"database"`
	Instance string            `json:"instance"`
	SSLMode  string            `json:"sslmode"`
	Driver   string            `json:"driver"`
	URLs     []string          `json:"urls"`
	Options  map[string]string `json:"options"`
	Username string            `json:"username"`
	Password string            `json:"password"`
}

type probeResponse struct {
	URL       string `json:"url"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// handleProbe connects with the posted request under the registry's
// installed pooling config, pings, and releases the connection.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var body probeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProbeBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "malformed probe request", err))
		return
	}

	req := &broker.Request{
		Type: body.Type,
		Params: dialect.Params{
			Server:   body.Server,
			Port:     body.Port,
			Database: body.Database,
			Instance: body.Instance,
			SSLMode:  body.SSLMode,
			URLs:     body.URLs,
			Driver:   body.Driver,
			Options:  body.Options,
		},
		Username: body.Username,
		Password: body.Password,
	}

	start := time.Now()
	conn, err := s.conn.Connect(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	defer conn.Close()

	if err := conn.Ping(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, probeResponse{
		URL:       dialect.Redact(req.URL),
		ElapsedMS: time.Since(start).Milliseconds(),
	})
}

func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	writeJSON(w, statusFor(kind), errorResponse{Error: err.Error(), Kind: kind.String()})
}

func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindInvalidInput, errs.ErrKindUnsupportedType, errs.ErrKindNoEndpoints:
		return http.StatusBadRequest
	case errs.ErrKindPermissionDenied:
		return http.StatusUnauthorized
	case errs.ErrKindCapacityExceeded:
		return http.StatusServiceUnavailable
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindConnectionFailed, errs.ErrKindDriverUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
