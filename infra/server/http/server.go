// Package http hosts the websocket endpoint behind a plain HTTP server.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    addr,
			Handler: handler,
			// Upgraded connections are long-lived, so no blanket write
			// deadline here. Handshake reads still get bounded.
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving in a background goroutine and returns immediately.
func (s *Server) Start() {
	go func() {
		s.logger.Info("[HTTP_LISTENING] server accepting connections", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("[HTTP_FAILED] server stopped unexpectedly", "error", err)
		}
	}()
}

// Stop drains in-flight requests before closing. Connections that outlive
// the grace period are cut.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
