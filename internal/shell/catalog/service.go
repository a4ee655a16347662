// Package catalog implements the image, build template and application
// workflows on top of the store, the workspace, the fetcher and the
// container runtime.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/artpar/shipyard/internal/shell/docker"
	"github.com/artpar/shipyard/internal/shell/store"
	"github.com/artpar/shipyard/internal/shell/workspace"
)

// Fetcher clones and updates source trees.
type Fetcher interface {
	Fetch(ctx context.Context, remote, dest string) error
	Reclone(ctx context.Context, remote, dest string) error
}

// Timeouts bound each external call. Zero means no extra deadline.
type Timeouts struct {
	Fetch    time.Duration
	Build    time.Duration
	Registry time.Duration
}

// Config holds the collaborators of a Service.
type Config struct {
	Store     store.Store
	Workspace *workspace.Workspace
	Fetcher   Fetcher
	Runtime   docker.Client
	Locks     *workspace.KeyLock // nil creates a private one
	Timeouts  Timeouts
	Logger    *slog.Logger
}

// Service runs catalog operations. Every operation touching an image's
// source tree or runtime image holds the lock keyed by its source directory.
type Service struct {
	store    store.Store
	ws       *workspace.Workspace
	fetcher  Fetcher
	runtime  docker.Client
	locks    *workspace.KeyLock
	timeouts Timeouts
	logger   *slog.Logger
}

// NewService creates a catalog service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Locks == nil {
		cfg.Locks = workspace.NewKeyLock()
	}
	return &Service{
		store:    cfg.Store,
		ws:       cfg.Workspace,
		fetcher:  cfg.Fetcher,
		runtime:  cfg.Runtime,
		locks:    cfg.Locks,
		timeouts: cfg.Timeouts,
		logger:   cfg.Logger.With("component", "catalog"),
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
