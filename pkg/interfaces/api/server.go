package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
)

// ServerConfig holds the listener settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server runs the HTTP API until interrupted
type Server struct {
	config  ServerConfig
	handler http.Handler
	http    *http.Server
	closers []func()
	logger  logr.Logger
}

// NewServer creates a server. closers run after the listener stops, e.g. to close
// a database pool.
func NewServer(config ServerConfig, handler http.Handler, logger logr.Logger, closers ...func()) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		config:  config,
		handler: handler,
		closers: closers,
		logger:  logger.WithName("server"),
	}
}

// Run serves until the listener fails, ctx is cancelled, or SIGINT/SIGTERM arrives
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.http.Addr)
		serverErrors <- s.http.ListenAndServe()
	}()

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(osSignals)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			s.close()
			return fmt.Errorf("error starting server: %w", err)
		}
	case sig := <-osSignals:
		s.logger.Info("Received OS signal, initiating shutdown", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("Context cancelled, initiating shutdown")
	}

	return s.Shutdown(context.Background())
}

// Shutdown stops the listener and runs the closers
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error(err, "HTTP server shutdown error")
			shutdownErr = fmt.Errorf("server shutdown completed with errors: %w", err)
		} else {
			s.logger.Info("HTTP server gracefully stopped")
		}
	}
	s.close()
	return shutdownErr
}

func (s *Server) close() {
	for _, closer := range s.closers {
		closer()
	}
	s.closers = nil
}
