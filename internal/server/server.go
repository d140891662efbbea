// Package server builds the HTTP service and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecopier/internal/api"
	"github.com/JakeFAU/sitecopier/internal/app"
	"github.com/JakeFAU/sitecopier/internal/config"
	"github.com/JakeFAU/sitecopier/internal/id/uuid"
	"github.com/JakeFAU/sitecopier/internal/telemetry"
)

const serviceName = "sitecopier"

// Server contains the running service's dependencies.
type Server struct {
	cfg            config.Config
	logger         *zap.Logger
	app            *app.App
	apiServer      *api.Server
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	// Define a struct for logging only non-sensitive config fields
	type SanitizedConfig struct {
		ServerPort      int    `json:"server_port"`
		StorageProvider string `json:"storage_provider"`
		HeadlessEnabled bool   `json:"headless_enabled"`
		AuthEnabled     bool   `json:"auth_enabled"`
	}
	logger.Info("building application dependencies", zap.Any("config", SanitizedConfig{
		ServerPort:      cfg.Server.Port,
		StorageProvider: cfg.Storage.Provider,
		HeadlessEnabled: cfg.Headless.Enabled,
		AuthEnabled:     cfg.Auth.Enabled,
	}))

	tp, err := telemetry.InitTracerProvider(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	s := &Server{cfg: cfg, logger: logger, tracerShutdown: tp.Shutdown}

	s.app, err = app.New(cfg, logger)
	if err != nil {
		s.closeObservability(ctx)
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	if err := s.app.OpenPersistence(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	s.apiServer, err = api.NewServer(api.Deps{
		Scanner:   s.app.Crawler,
		Analyzer:  s.app.Analyzer,
		Archiver:  s.app.Assembler,
		Fetcher:   s.app.Static,
		Store:     s.app.Store,
		Publisher: s.app.Publisher,
		IDs:       uuid.New(),
		Now:       time.Now,
	}, cfg, logger.Named("api"))
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("api init failed: %w", err)
	}
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.apiServer.Handler()
}

// Run listens on the configured port and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then drains in-flight requests within the
// configured shutdown timeout and releases every dependency.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown initiated")
	case err := <-serveErr:
		s.logger.Error("http server error", zap.Error(err))
		runErr = fmt.Errorf("serve: %w", err)
	}

	timeout := s.cfg.Server.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := s.Close(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Close gracefully shuts down the application.
func (s *Server) Close(ctx context.Context) error {
	var err error
	if s.app != nil {
		err = s.app.Close()
	}
	s.closeObservability(ctx)
	s.logger.Info("shutdown complete")
	return err
}

func (s *Server) closeObservability(ctx context.Context) {
	if s.tracerShutdown != nil {
		if err := s.tracerShutdown(ctx); err != nil {
			s.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		s.tracerShutdown = nil
	}
	if err := s.logger.Sync(); err != nil {
		s.logger.Debug("logger sync failed", zap.Error(err))
	}
}
