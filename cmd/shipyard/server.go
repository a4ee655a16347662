package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/shipyard/internal/shell/api"
	"github.com/artpar/shipyard/internal/shell/catalog"
	"github.com/artpar/shipyard/internal/shell/compose"
	"github.com/artpar/shipyard/internal/shell/deployer"
	"github.com/artpar/shipyard/internal/shell/docker"
	"github.com/artpar/shipyard/internal/shell/store"
	"github.com/artpar/shipyard/internal/shell/vcs"
	"github.com/artpar/shipyard/internal/shell/workspace"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDockerError     = 3
	ExitHTTPServerError = 4
	ExitStorageError    = 5
)

// =============================================================================
// Server
// =============================================================================

// Server represents the shipyard application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	docker     docker.Client
	logger     *slog.Logger
}

// NewServer wires the store, workspace, runtime and API from cfg.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	ws, err := workspace.New(cfg.Storage.Dir, logger)
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitStorageError}
	}
	if err := ws.Bootstrap(); err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitStorageError}
	}

	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDatabaseError}
	}

	d, err := docker.NewDockerClient(cfg.Docker.Host, logger)
	if err != nil {
		s.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDockerError}
	}

	if err := d.Ping(context.Background()); err != nil {
		s.Close()
		d.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDockerError}
	}

	fetcher := vcs.NewFetcher(vcs.Config{
		SSHKeyPath:       cfg.VCS.SSHKeyPath,
		SSHKeyPassphrase: cfg.VCS.SSHKeyPassphrase,
		KnownHostsPath:   cfg.VCS.KnownHostsPath,
		Username:         cfg.VCS.Username,
		Token:            cfg.VCS.Token,
		Retries:          cfg.VCS.Retries,
		RetryDelay:       cfg.VCS.RetryDelay,
	}, logger)

	svc := catalog.NewService(catalog.Config{
		Store:     s,
		Workspace: ws,
		Fetcher:   fetcher,
		Runtime:   d,
		Timeouts: catalog.Timeouts{
			Fetch:    cfg.Timeouts.Fetch,
			Build:    cfg.Timeouts.Build,
			Registry: cfg.Timeouts.Registry,
		},
		Logger: logger,
	})

	runner := compose.NewRunner(compose.Config{
		Binary:        cfg.Compose.Binary,
		ProjectPrefix: cfg.Compose.ProjectPrefix,
	}, logger)

	dep := deployer.New(deployer.Config{
		Applications:   svc,
		Images:         svc,
		Stack:          runner,
		Workspace:      ws,
		ComposeTimeout: cfg.Timeouts.Compose,
		Logger:         logger,
	})

	handler := api.NewHandler(api.Config{
		Catalog:      svc,
		Deployer:     dep,
		Database:     s,
		Runtime:      d,
		Logger:       logger,
		SharedSecret: cfg.Auth.SharedSecret,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		docker:     d,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.closeBackends()
		return &ServerError{Op: "Start", Err: err, ExitCode: ExitHTTPServerError}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.closeBackends()
	s.logger.Info("shutdown complete")
	return nil
}

func (s *Server) closeBackends() {
	if err := s.docker.Close(); err != nil {
		s.logger.Error("Docker client close error", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
