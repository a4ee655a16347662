// Package api provides the HTTP handlers for the shipyard API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/shipyard/internal/core/domain"
	apimw "github.com/artpar/shipyard/internal/shell/api/middleware"
	"github.com/artpar/shipyard/internal/shell/api/openapi"
	"github.com/artpar/shipyard/internal/shell/catalog"
	"github.com/artpar/shipyard/internal/shell/deployer"
	"github.com/artpar/shipyard/internal/shell/docker"
	"github.com/artpar/shipyard/internal/shell/store"
	"github.com/artpar/shipyard/internal/shell/vcs"
	"github.com/artpar/shipyard/internal/shell/workspace"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BasePath prefixes every catalog route.
const BasePath = "/app-management"

// =============================================================================
// Dependencies
// =============================================================================

// Catalog is the set of catalog operations the API exposes.
type Catalog interface {
	CreateImage(ctx context.Context, in catalog.CreateImageInput) (*domain.Image, *docker.BuildOutput, error)
	GetImage(ctx context.Context, ref domain.ImageRef) (*domain.Image, error)
	ListImages(ctx context.Context, opts store.ListOptions) ([]domain.Image, error)
	UpdateImage(ctx context.Context, ref domain.ImageRef, in catalog.UpdateImageInput) (*domain.Image, *docker.BuildOutput, error)
	DeleteImage(ctx context.Context, ref domain.ImageRef) error
	BuildImage(ctx context.Context, ref domain.ImageRef) (*domain.Image, *docker.BuildOutput, error)
	PushImage(ctx context.Context, ref domain.ImageRef, creds docker.Credentials) (*domain.Image, *docker.PushOutput, error)

	CreateBuildTemplate(ctx context.Context, ref, name string, steps []string) (*domain.BuildTemplate, error)
	GetBuildTemplate(ctx context.Context, ref string) (*domain.BuildTemplate, error)
	ListBuildTemplates(ctx context.Context, opts store.ListOptions) ([]domain.BuildTemplate, error)
	UpdateBuildTemplate(ctx context.Context, ref, name string, steps []string) (*domain.BuildTemplate, error)
	DeleteBuildTemplate(ctx context.Context, ref string) error

	CreateApplication(ctx context.Context, in catalog.ApplicationInput) (*domain.Application, error)
	GetApplication(ctx context.Context, name string) (*domain.Application, error)
	ListApplications(ctx context.Context, opts store.ListOptions) ([]domain.Application, error)
	UpdateApplication(ctx context.Context, name string, in catalog.ApplicationInput) (*domain.Application, error)
	DeleteApplication(ctx context.Context, name string) error
	Manifest(ctx context.Context, name string) (string, error)
}

// Deployer runs application deploys.
type Deployer interface {
	Deploy(ctx context.Context, name string) (*domain.DeployReport, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the handler's collaborators.
type Config struct {
	Catalog  Catalog
	Deployer Deployer
	Database Pinger
	Runtime  Pinger
	Logger   *slog.Logger

	// SharedSecret, when set, must accompany every request except the
	// health probes.
	SharedSecret string
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	catalog  Catalog
	deployer Deployer
	database Pinger
	runtime  Pinger
	auth     *apimw.AuthMiddleware
	spec     *openapi.Generator
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "api")
	return &Handler{
		catalog:  cfg.Catalog,
		deployer: cfg.Deployer,
		database: cfg.Database,
		runtime:  cfg.Runtime,
		auth: apimw.NewAuthMiddleware(apimw.AuthConfig{
			SharedSecret: cfg.SharedSecret,
			Exempt:       []string{"/health", "/ready"},
			Logger:       logger,
		}),
		spec:   newSpec(),
		logger: logger,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimw.RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)
	r.Use(h.auth.Handler)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Get("/openapi.json", h.spec.Handler())

	r.Route(BasePath, func(r chi.Router) {
		r.Route("/images", func(r chi.Router) {
			r.Post("/", h.handleCreateImage)
			r.Get("/", h.handleListImages)

			r.Get("/{ref}", h.handleGetImage)
			r.Put("/{ref}", h.handleUpdateImage)
			r.Delete("/{ref}", h.handleDeleteImage)
			r.Get("/{ref}/build", h.handleBuildImage)
			r.Post("/{ref}/build", h.handleBuildImage)
			r.Get("/{ref}/push", h.handlePushImage)
			r.Post("/{ref}/push", h.handlePushImage)

			// Namespaced images: user/name:tag
			r.Get("/{user}/{ref}", h.handleGetImage)
			r.Put("/{user}/{ref}", h.handleUpdateImage)
			r.Delete("/{user}/{ref}", h.handleDeleteImage)
			r.Get("/{user}/{ref}/build", h.handleBuildImage)
			r.Post("/{user}/{ref}/build", h.handleBuildImage)
			r.Get("/{user}/{ref}/push", h.handlePushImage)
			r.Post("/{user}/{ref}/push", h.handlePushImage)
		})

		r.Route("/build-templates", func(r chi.Router) {
			r.Post("/", h.handleCreateBuildTemplate)
			r.Get("/", h.handleListBuildTemplates)
			// Refs may contain '/'.
			r.Get("/*", h.handleGetBuildTemplate)
			r.Put("/*", h.handleUpdateBuildTemplate)
			r.Delete("/*", h.handleDeleteBuildTemplate)
		})

		r.Route("/applications", func(r chi.Router) {
			r.Post("/", h.handleCreateApplication)
			r.Get("/", h.handleListApplications)
			r.Get("/{name}", h.handleGetApplication)
			r.Put("/{name}", h.handleUpdateApplication)
			r.Delete("/{name}", h.handleDeleteApplication)
			r.Get("/{name}/manifest", h.handleGetManifest)
			r.Get("/{name}/deploy", h.handleDeploy)
			r.Post("/{name}/deploy", h.handleDeploy)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true
	for name, p := range map[string]Pinger{"database": h.database, "docker": h.runtime} {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "check", name, "error", err)
			checks[name] = "failed"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Checks: checks})
		return
	}
	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: checks})
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, message string, data any) {
	h.writeJSON(w, status, Envelope{Code: status, Message: message, Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, kind string) {
	h.writeJSON(w, status, Envelope{Code: status, Message: message, Error: kind})
}

// writeFailure maps err onto a status code and writes it. data, when not
// nil, is returned alongside the error (e.g. a partial deploy report).
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, op string, err error, data any) {
	status, kind := classify(err)
	env := Envelope{Code: status, Message: err.Error(), Error: kind, Data: data}

	var buildErr *docker.BuildError
	if errors.As(err, &buildErr) {
		env.Output = buildErr.Output
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", "error", err, "status", status, "request_id", middleware.GetReqID(r.Context()))
	} else {
		h.logger.Info(op+" rejected", "error", err, "status", status)
	}
	h.writeJSON(w, status, env)
}

// classify maps an error to an HTTP status and an error kind.
func classify(err error) (int, string) {
	var fetchErr *vcs.FetchError
	var ioErr *workspace.IOError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, catalog.ErrImageExists), errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, catalog.ErrSourceMissing):
		return http.StatusConflict, "source_missing"
	case errors.Is(err, catalog.ErrSourceConflict):
		return http.StatusConflict, "source_conflict"
	case errors.Is(err, catalog.ErrInvalidInput), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "fetch_failed"
	case errors.Is(err, docker.ErrBuildFailed):
		return http.StatusBadGateway, "build_failed"
	case errors.Is(err, docker.ErrLoginFailed):
		return http.StatusBadGateway, "login_failed"
	case errors.Is(err, docker.ErrPushFailed):
		return http.StatusBadGateway, "push_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &ioErr):
		return http.StatusInternalServerError, "io_error"
	}
	var deployErr *deployer.DeployError
	if errors.As(err, &deployErr) && deployErr.Stage == deployer.StageStartup {
		return http.StatusBadGateway, "startup_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// decode reads a JSON request body.
func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// listOptions reads limit and offset query parameters.
func listOptions(r *http.Request) store.ListOptions {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	return opts.Normalize()
}
