package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nvandessel/strangeloop/internal/constants"
	"github.com/nvandessel/strangeloop/internal/loop"
	"github.com/nvandessel/strangeloop/internal/network"
	"github.com/nvandessel/strangeloop/internal/ratelimit"
)

const maxBodyBytes = 1 << 16

// Server exposes a frame loop over HTTP: state and topology reads, control
// commands, and a WebSocket frame stream when a Hub is attached.
type Server struct {
	loop       *loop.Loop
	hub        *Hub
	limiters   ratelimit.ToolLimiters
	logger     *slog.Logger
	listenAddr string

	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address. "localhost:0" (the default) lets the OS pick a port.
func WithAddr(addr string) ServerOption {
	return func(s *Server) {
		if addr != "" {
			s.listenAddr = addr
		}
	}
}

// WithHub serves hub on /ws. The hub must also be the loop's renderer for
// clients to receive frames.
func WithHub(hub *Hub) ServerOption {
	return func(s *Server) { s.hub = hub }
}

// WithLimiters replaces the default endpoint rate limiters.
func WithLimiters(limiters ratelimit.ToolLimiters) ServerOption {
	return func(s *Server) { s.limiters = limiters }
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a control server for l.
func NewServer(l *loop.Loop, opts ...ServerOption) *Server {
	s := &Server{
		loop:       l,
		limiters:   ratelimit.NewEndpointLimiters(),
		listenAddr: constants.DefaultServerAddr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the HTTP routes without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/topology", s.handleTopology)
	mux.HandleFunc("POST /api/stimulus", s.handleStimulus)
	mux.HandleFunc("POST /api/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/reinit", s.handleReinit)
	mux.HandleFunc("POST /api/step", s.handleStep)
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}
	return mux
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled. Returns nil on clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.logger.Info("control surface listening", "addr", s.addr)

	// Graceful shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		if s.hub != nil {
			s.hub.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type stimulusRequest struct {
	X             float64  `json:"x"`
	Y             float64  `json:"y"`
	RadiusSquared *float64 `json:"radius_squared,omitempty"`
}

type stimulusResponse struct {
	Stimulated int `json:"stimulated"`
}

type toggleRequest struct {
	Running *bool `json:"running,omitempty"`
}

type toggleResponse struct {
	Running bool `json:"running"`
}

type stepRequest struct {
	Count int `json:"count"`
}

type statusResponse struct {
	OK   bool  `json:"ok"`
	Tick int64 `json:"tick"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name": "strangeloop",
		"endpoints": []string{
			"GET /api/state",
			"GET /api/topology?format=json|dot",
			"POST /api/stimulus",
			"POST /api/toggle",
			"POST /api/reset",
			"POST /api/reinit",
			"POST /api/step",
			"GET /ws",
		},
		"websocket": s.hub != nil,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	frame, err := s.loop.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	format := constants.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		format = constants.Format(f)
	}
	if !format.Valid() {
		http.Error(w, "invalid format: "+string(format)+" (valid: dot, json)", http.StatusBadRequest)
		return
	}

	snapshot, err := s.loop.Network(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	if format == constants.FormatDOT {
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		io.WriteString(w, RenderDOT(snapshot, nil))
		return
	}
	writeJSON(w, http.StatusOK, RenderJSON(snapshot, nil))
}

func (s *Server) handleStimulus(w http.ResponseWriter, r *http.Request) {
	if err := ratelimit.CheckLimit(s.limiters, "stimulus"); err != nil {
		s.writeError(w, err)
		return
	}

	var req stimulusRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := network.Point{X: req.X, Y: req.Y}
	var (
		hit int
		err error
	)
	switch {
	case req.RadiusSquared != nil && *req.RadiusSquared < 0:
		http.Error(w, "radius_squared must not be negative", http.StatusBadRequest)
		return
	case req.RadiusSquared == nil || *req.RadiusSquared == 0:
		hit, err = s.loop.Stimulate(r.Context(), p)
	default:
		hit, err = s.loop.InjectStimulus(r.Context(), p, *req.RadiusSquared)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Debug("stimulus", "x", req.X, "y", req.Y, "stimulated", hit)
	writeJSON(w, http.StatusOK, stimulusResponse{Stimulated: hit})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := ratelimit.CheckLimit(s.limiters, "toggle"); err != nil {
		s.writeError(w, err)
		return
	}

	var req toggleRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		running bool
		err     error
	)
	if req.Running != nil {
		running = *req.Running
		err = s.loop.SetRunning(r.Context(), running)
	} else {
		running, err = s.loop.Toggle(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Running: running})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := ratelimit.CheckLimit(s.limiters, "reset"); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.loop.Reset(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeStatus(w, r)
}

func (s *Server) handleReinit(w http.ResponseWriter, r *http.Request) {
	if err := ratelimit.CheckLimit(s.limiters, "reinit"); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.loop.Reinitialize(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeStatus(w, r)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	if err := ratelimit.CheckLimit(s.limiters, "step"); err != nil {
		s.writeError(w, err)
		return
	}

	req := stepRequest{Count: 1}
	if err := decodeBody(w, r, &req, true); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Count < 1 || req.Count > constants.MaxStepsPerRequest {
		http.Error(w, fmt.Sprintf("count must be between 1 and %d", constants.MaxStepsPerRequest), http.StatusBadRequest)
		return
	}

	stats, err := s.loop.StepOnce(r.Context(), req.Count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request) {
	frame, err := s.loop.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{OK: true, Tick: frame.Tick})
}

// writeError maps loop and limiter errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, loop.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.logger.Warn("request failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// decodeBody decodes a JSON request body into v. An empty body is accepted
// only when optional is set, leaving v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
