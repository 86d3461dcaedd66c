package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hbdrevv/email-filter-utility/internal/config"
)

// Server represents the upload form server
type Server struct {
	config   config.ServerConfig
	handler  http.Handler
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new server around h.
func NewServer(cfg config.ServerConfig, h *Handlers, health *HealthChecker) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(h, health, cfg.AllowedOrigins),
	}
}

// Listen binds the configured host and port. Port 0 picks a free port.
// It returns the address the server will answer on.
func (s *Server) Listen() (string, error) {
	addr := net.JoinHostPort(s.config.GetHost(), strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.server = newHTTPServer(s.handler)
	return ln.Addr().String(), nil
}

// Serve answers requests on the listener bound by Listen until Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}
	return s.server.Serve(s.listener)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	if s.listener != nil {
		// Already closed if Serve was running.
		s.listener.Close()
	}
	return err
}

func newHTTPServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler: h,
		// Uploads can be large client lists.
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
}
