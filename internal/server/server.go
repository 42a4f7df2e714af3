// Package server wraps the HTTP server of the status API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"event-enricher/internal/common/logging"
)

// Server runs an http.Server in the background
type Server struct {
	srv    *http.Server
	errCh  chan error
	logger logging.Logger
}

// New creates a server listening on port
func New(handler http.Handler, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		errCh:  make(chan error, 1),
		logger: logging.ForComponent("server"),
	}
}

// Start binds the listener and serves in a goroutine. Bind failures are
// returned; later serve failures are reported on Errors.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", logging.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
		close(s.errCh)
	}()
	return nil
}

// Errors delivers a serve failure, and is closed once the server stops
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
