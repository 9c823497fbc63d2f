package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	goccy "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hangout/internal/config"
)

// HealthPath is where Server mounts the health endpoint.
const HealthPath = "/healthz"

// HealthHandler reports engine counts as JSON.
func HealthHandler(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body, err := goccy.Marshal(engine.Stats())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

// NewMux mounts the websocket endpoint at cfg.Path and the health endpoint at HealthPath.
func NewMux(engine Engine, cfg config.HTTPConfig, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, NewHandler(engine, cfg, logger))
	mux.HandleFunc(HealthPath, HealthHandler(engine))
	return mux
}

// Server is the HTTP listener lifecycle service.
type Server struct {
	cfg    config.HTTPConfig
	srv    *http.Server
	logger *zap.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a Server for engine.
//
// Precondition: cfg.Path must start with "/"; engine and logger must be non-nil.
func NewServer(cfg config.HTTPConfig, engine Engine, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Handler:           NewMux(engine, cfg, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start listens on cfg.Addr() and serves until Stop is called.
//
// Postcondition: Returns nil after a clean Stop.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.logger.Info("http listener started",
		zap.String("addr", l.Addr().String()),
		zap.String("ws_path", s.cfg.Path),
	)
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Addr returns the bound address, or nil before Start has listened.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops accepting connections and waits briefly for in-flight requests.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
}
