package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/bsengine/pkg/engine"
	"github.com/yourusername/bsengine/pkg/game"
	"github.com/yourusername/bsengine/pkg/record"
)

// maxBodyBytes caps request bodies. Records of very large boards stay well below it.
const maxBodyBytes = 4 << 20

var validate = validator.New()

// Handlers holds the HTTP handlers and the session manager.
type Handlers struct {
	manager  *game.Manager
	version  string
	pool     *WorkerPool
	defaults game.FleetSpec
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance without a worker pool.
func NewHandlers(m *game.Manager, version string) *Handlers {
	return NewHandlersWithPool(m, version, nil)
}

// NewHandlersWithPool creates a new Handlers instance with a worker pool.
func NewHandlersWithPool(m *game.Manager, version string, pool *WorkerPool) *Handlers {
	return &Handlers{
		manager:  m,
		version:  version,
		pool:     pool,
		defaults: game.StandardFleetSpec(),
		logger:   slog.New(slog.DiscardHandler),
	}
}

// SetDefaultGame sets the board and fleet used by create requests without a fleet.
func (h *Handlers) SetDefaultGame(spec game.FleetSpec) error {
	if _, err := spec.Build(); err != nil {
		return err
	}
	h.defaults = spec
	return nil
}

// SetLogger sets the logger for handler errors.
func (h *Handlers) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: msg,
		Code:  code,
	})
}

// errorStatus maps a session or engine error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrUnknownSession):
		return http.StatusNotFound, "UNKNOWN_SESSION"
	case errors.Is(err, game.ErrUnknownShipName), errors.Is(err, engine.ErrUnknownShip):
		return http.StatusNotFound, "UNKNOWN_SHIP"
	case errors.Is(err, engine.ErrUnknownSunkShip):
		return http.StatusConflict, "NOT_SUNK"
	case errors.Is(err, engine.ErrOutOfBounds):
		return http.StatusBadRequest, "OUT_OF_BOUNDS"
	case errors.Is(err, engine.ErrIllegalTargetState):
		return http.StatusBadRequest, "ILLEGAL_STATE"
	case errors.Is(err, record.ErrSyntax), errors.Is(err, game.ErrInvalidRecord):
		return http.StatusBadRequest, "INVALID_RECORD"
	case errors.Is(err, engine.ErrInvalidDimensions), errors.Is(err, engine.ErrDuplicateShip),
		errors.Is(err, engine.ErrEmptyShip), errors.Is(err, game.ErrInvalidFleet):
		return http.StatusBadRequest, "INVALID_FLEET"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "CANCELLED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (h *Handlers) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	writeError(w, status, err.Error(), code)
}

// decodeRequest decodes and validates a JSON body. It writes the error
// response and returns false on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "INVALID_JSON")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// acquireFast takes a fast pool slot, writing 503 when the server is busy.
func (h *Handlers) acquireFast(w http.ResponseWriter, r *http.Request) (func(), bool) {
	if h.pool == nil {
		return func() {}, true
	}
	if err := h.pool.AcquireFast(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
		return nil, false
	}
	return h.pool.ReleaseFast, true
}

// acquireSlow takes a slow pool slot, writing 503 when the server is busy.
func (h *Handlers) acquireSlow(w http.ResponseWriter, r *http.Request) (func(), bool) {
	if h.pool == nil {
		return func() {}, true
	}
	if err := h.pool.AcquireSlow(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy", "SERVER_BUSY")
		return nil, false
	}
	return h.pool.ReleaseSlow, true
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Ready:   h.manager != nil,
	}
	if h.manager != nil {
		ids, err := h.manager.List(r.Context())
		if err != nil {
			resp.Status = "error"
		}
		resp.Sessions = len(ids)
	}
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateSession handles POST /api/sessions
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquireSlow(w, r)
	if !ok {
		return
	}
	defer release()

	var req CreateSessionRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error(), "INVALID_JSON")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "INVALID_JSON")
			return
		}
	}

	spec := h.defaults
	if req.Fleet != nil {
		if err := validate.Struct(req.Fleet); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "invalid fleet",
				Code:    "INVALID_FLEET",
				Details: err.Error(),
			})
			return
		}
		spec = *req.Fleet
	}
	fleet, err := spec.Build()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_FLEET")
		return
	}

	s, err := h.manager.Create(r.Context(), spec.Width, spec.Height, fleet)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.View())
}

// ImportSession handles POST /api/sessions/import
//
// The body is either a text record (Content-Type text/plain) or an ImportRequest.
func (h *Handlers) ImportSession(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquireSlow(w, r)
	if !ok {
		return
	}
	defer release()

	var text string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error(), "INVALID_RECORD")
			return
		}
		text = string(body)
	} else {
		var req ImportRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		text = req.Record
	}

	rec, err := record.Import(strings.NewReader(text))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_RECORD")
		return
	}
	s, err := h.manager.Import(r.Context(), rec)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.View())
}

// ListSessions handles GET /api/sessions
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := h.manager.List(r.Context())
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: ids})
}

// GetSession handles GET /api/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquireFast(w, r)
	if !ok {
		return
	}
	defer release()

	s, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// update runs fn on the session named in the path and writes its result.
func (h *Handlers) update(w http.ResponseWriter, r *http.Request, fn func(*game.Session) (any, error)) {
	release, ok := h.acquireFast(w, r)
	if !ok {
		return
	}
	defer release()

	var resp any
	err := h.manager.Update(r.Context(), r.PathValue("id"), func(s *game.Session) error {
		var err error
		resp, err = fn(s)
		return err
	})
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetState handles POST /api/sessions/{id}/state
func (h *Handlers) SetState(w http.ResponseWriter, r *http.Request) {
	var req StateRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	state, err := engine.ParseSquareState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "ILLEGAL_STATE")
		return
	}

	h.update(w, r, func(s *game.Session) (any, error) {
		if err := s.SetState(req.X, req.Y, state); err != nil {
			return nil, err
		}
		return s.View(), nil
	})
}

// Cycle handles POST /api/sessions/{id}/cycle
func (h *Handlers) Cycle(w http.ResponseWriter, r *http.Request) {
	var req SquareRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	h.update(w, r, func(s *game.Session) (any, error) {
		state, err := s.Cycle(req.X, req.Y)
		if err != nil {
			return nil, err
		}
		return CycleResponse{
			Square:  engine.Square{X: req.X, Y: req.Y},
			State:   state,
			StateID: s.StateID(),
		}, nil
	})
}

// Sink handles POST /api/sessions/{id}/sink
func (h *Handlers) Sink(w http.ResponseWriter, r *http.Request) {
	var req SinkRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	h.update(w, r, func(s *game.Session) (any, error) {
		sunk, err := s.Sink(req.Ship, req.Rotation, req.X, req.Y)
		if err != nil {
			return nil, err
		}
		return SinkResponse{Sunk: sunk, StateID: s.StateID()}, nil
	})
}

// Raise handles POST /api/sessions/{id}/raise
func (h *Handlers) Raise(w http.ResponseWriter, r *http.Request) {
	var req RaiseRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	h.update(w, r, func(s *game.Session) (any, error) {
		if err := s.Raise(req.Ship); err != nil {
			return nil, err
		}
		return s.View(), nil
	})
}

// Targets handles GET /api/sessions/{id}/targets?n=5&by=probability
func (h *Handlers) Targets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	n := parseIntParam(query.Get("n"), 5)
	if n < 0 {
		writeError(w, http.StatusBadRequest, "n must not be negative", "INVALID_REQUEST")
		return
	}
	by, err := engine.ParseRankBy(query.Get("by"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	release, ok := h.acquireFast(w, r)
	if !ok {
		return
	}
	defer release()

	s, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	targets := s.Targets(n, by)
	if targets == nil {
		targets = []engine.Target{}
	}
	writeJSON(w, http.StatusOK, TargetsResponse{RankBy: by.String(), Targets: targets})
}

// ShipProbability handles GET /api/sessions/{id}/ships/{ship}/probability
func (h *Handlers) ShipProbability(w http.ResponseWriter, r *http.Request) {
	release, ok := h.acquireFast(w, r)
	if !ok {
		return
	}
	defer release()

	s, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	name := r.PathValue("ship")
	prob, err := s.ShipProbability(name)
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ShipProbabilityResponse{Ship: name, Probability: prob})
}

// Record handles GET /api/sessions/{id}/record and returns the text record.
func (h *Handlers) Record(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := record.Export(&buf, s.Record()); err != nil {
		h.writeSessionError(w, r, fmt.Errorf("export record: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.ID()+".bsr"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
