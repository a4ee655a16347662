// Package deployer refreshes an application's images and restarts its stack.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/artpar/shipyard/internal/shell/docker"
	"github.com/artpar/shipyard/internal/shell/store"
	"github.com/artpar/shipyard/internal/shell/workspace"
)

// =============================================================================
// Errors
// =============================================================================

// Deploy stages reported by DeployError.
const (
	StageResolve = "resolve"
	StageStartup = "startup"
)

// DeployError is a failure that aborts a deploy: the application could not
// be resolved or its stack could not be started.
type DeployError struct {
	Application string
	Stage       string
	Err         error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy %s: %s: %v", e.Application, e.Stage, e.Err)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Collaborators
// =============================================================================

// Applications resolves application records.
type Applications interface {
	GetApplication(ctx context.Context, name string) (*domain.Application, error)
}

// Images refreshes a catalog image: remove the runtime image, fetch the
// source and rebuild. The image key lock is held by the implementation.
type Images interface {
	RefreshImage(ctx context.Context, ref domain.ImageRef) (*domain.Image, *docker.BuildOutput, error)
}

// Stack brings a compose stack down and up.
type Stack interface {
	Down(ctx context.Context, dir string) error
	UpAll(ctx context.Context, dir string) error
}

// Config holds the collaborators of a Deployer.
type Config struct {
	Applications   Applications
	Images         Images
	Stack          Stack
	Workspace      *workspace.Workspace
	ComposeTimeout time.Duration
	Logger         *slog.Logger
}

// =============================================================================
// Deployer
// =============================================================================

// Deployer runs deploys. Deploys of the same application are serialized;
// different applications deploy concurrently.
type Deployer struct {
	apps           Applications
	images         Images
	stack          Stack
	ws             *workspace.Workspace
	composeTimeout time.Duration
	locks          *workspace.KeyLock
	logger         *slog.Logger
}

// New creates a Deployer.
func New(cfg Config) *Deployer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Deployer{
		apps:           cfg.Applications,
		images:         cfg.Images,
		stack:          cfg.Stack,
		ws:             cfg.Workspace,
		composeTimeout: cfg.ComposeTimeout,
		locks:          workspace.NewKeyLock(),
		logger:         cfg.Logger.With("component", "deployer"),
	}
}

// Deploy tears the application's stack down, refreshes every service image
// in declared order and brings the stack back up. Per-service failures are
// recorded in the report and do not stop the run; only resolve and startup
// failures return a DeployError. Cancelling ctx only aborts a deploy that
// has not yet torn the stack down.
func (d *Deployer) Deploy(ctx context.Context, name string) (*domain.DeployReport, error) {
	logger := d.logger.With("application", name)

	unlock, err := d.locks.Lock(ctx, name)
	if err != nil {
		return nil, &DeployError{Application: name, Stage: StageResolve, Err: err}
	}
	defer unlock()

	app, err := d.apps.GetApplication(ctx, name)
	if err != nil {
		logger.Error("failed to resolve application", "error", err)
		return nil, &DeployError{Application: name, Stage: StageResolve, Err: err}
	}

	report := domain.NewDeployReport(app.Name, time.Now())
	dir := d.ws.AppDir(app.Name)
	logger.Info("deploy started", "deploy_id", report.ID, "services", len(app.Services))

	// Once the stack goes down it must come back up, so the run no longer
	// follows the caller's cancellation. Per-call timeouts still apply.
	run := context.WithoutCancel(ctx)

	if err := d.compose(run, d.stack.Down, dir); err != nil {
		logger.Warn("teardown failed, continuing", "error", err)
		report.Warn(fmt.Sprintf("teardown failed: %v", err))
	}

	for _, svc := range app.Services {
		d.refresh(run, report, svc)
	}

	if ctx.Err() != nil {
		logger.Warn("caller went away, starting stack anyway", "error", ctx.Err())
	}
	if err := d.compose(run, d.stack.UpAll, dir); err != nil {
		report.FinishedAt = time.Now()
		logger.Error("startup failed", "deploy_id", report.ID, "error", err)
		return report, &DeployError{Application: app.Name, Stage: StageStartup, Err: err}
	}

	report.FinishedAt = time.Now()
	logger.Info("deploy finished",
		"deploy_id", report.ID,
		"succeeded", report.Count(domain.OutcomeSucceeded),
		"skipped", report.Count(domain.OutcomeSkipped),
		"failed", report.Count(domain.OutcomeFailed),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// refresh rebuilds one service's image and records the outcome.
func (d *Deployer) refresh(ctx context.Context, report *domain.DeployReport, svc domain.Service) {
	logger := d.logger.With("application", report.Application, "service", svc.Name, "image", svc.Image)

	ref, err := domain.ParseImageRef(svc.Image)
	if err != nil {
		logger.Error("invalid image reference", "error", err)
		report.Failed(svc.Name, svc.Image, err, "")
		return
	}

	_, _, err = d.images.RefreshImage(ctx, ref)
	switch {
	case err == nil:
		logger.Info("service image refreshed")
		report.Succeeded(svc.Name, ref.String())
	case errors.Is(err, store.ErrNotFound):
		logger.Info("image not in catalog, skipping")
		report.Skipped(svc.Name, ref.String(), "image not in catalog")
	default:
		output := ""
		var buildErr *docker.BuildError
		if errors.As(err, &buildErr) {
			output = buildErr.Output
		}
		logger.Error("service image refresh failed", "error", err)
		report.Failed(svc.Name, ref.String(), err, output)
	}
}

func (d *Deployer) compose(ctx context.Context, op func(context.Context, string) error, dir string) error {
	if d.composeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.composeTimeout)
		defer cancel()
	}
	return op(ctx, dir)
}
