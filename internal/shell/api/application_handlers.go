package api

import (
	"net/http"
	"strings"

	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/artpar/shipyard/internal/shell/catalog"
	"github.com/go-chi/chi/v5"
)

// =============================================================================
// Build Template Handlers
// =============================================================================

func (h *Handler) handleCreateBuildTemplate(w http.ResponseWriter, r *http.Request) {
	var req BuildTemplateRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	bt, err := h.catalog.CreateBuildTemplate(r.Context(), req.Ref, req.Name, req.Steps)
	if err != nil {
		h.writeFailure(w, r, "create build template", err, nil)
		return
	}

	h.writeData(w, http.StatusCreated, "Build template created successfully", bt)
}

func (h *Handler) handleListBuildTemplates(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)
	templates, err := h.catalog.ListBuildTemplates(r.Context(), opts)
	if err != nil {
		h.writeFailure(w, r, "list build templates", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Build templates retrieved successfully", ListResponse[domain.BuildTemplate]{
		Items: templates,
		Meta:  ListMeta{Total: len(templates), Limit: opts.Limit, Offset: opts.Offset},
	})
}

func (h *Handler) handleGetBuildTemplate(w http.ResponseWriter, r *http.Request) {
	bt, err := h.catalog.GetBuildTemplate(r.Context(), templateRef(r))
	if err != nil {
		h.writeFailure(w, r, "get build template", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Build template retrieved successfully", bt)
}

func (h *Handler) handleUpdateBuildTemplate(w http.ResponseWriter, r *http.Request) {
	var req BuildTemplateRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	bt, err := h.catalog.UpdateBuildTemplate(r.Context(), templateRef(r), req.Name, req.Steps)
	if err != nil {
		h.writeFailure(w, r, "update build template", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Build template updated successfully", bt)
}

func (h *Handler) handleDeleteBuildTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteBuildTemplate(r.Context(), templateRef(r)); err != nil {
		h.writeFailure(w, r, "delete build template", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Build template deleted successfully", nil)
}

func templateRef(r *http.Request) string {
	return strings.Trim(chi.URLParam(r, "*"), "/")
}

// =============================================================================
// Application Handlers
// =============================================================================

func (h *Handler) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req ApplicationRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	app, err := h.catalog.CreateApplication(r.Context(), catalog.ApplicationInput{
		Name:           req.Name,
		ComposeVersion: req.ComposeVersion,
		Services:       req.Services,
		Volumes:        req.Volumes,
	})
	if err != nil {
		h.writeFailure(w, r, "create application", err, nil)
		return
	}

	h.writeData(w, http.StatusCreated, "Application created successfully", app)
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)
	apps, err := h.catalog.ListApplications(r.Context(), opts)
	if err != nil {
		h.writeFailure(w, r, "list applications", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Applications retrieved successfully", ListResponse[domain.Application]{
		Items: apps,
		Meta:  ListMeta{Total: len(apps), Limit: opts.Limit, Offset: opts.Offset},
	})
}

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.catalog.GetApplication(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeFailure(w, r, "get application", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Application retrieved successfully", app)
}

func (h *Handler) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	var req ApplicationRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	app, err := h.catalog.UpdateApplication(r.Context(), chi.URLParam(r, "name"), catalog.ApplicationInput{
		ComposeVersion: req.ComposeVersion,
		Services:       req.Services,
		Volumes:        req.Volumes,
	})
	if err != nil {
		h.writeFailure(w, r, "update application", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Application updated successfully", app)
}

func (h *Handler) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteApplication(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.writeFailure(w, r, "delete application", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Application deleted successfully", nil)
}

func (h *Handler) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	manifest, err := h.catalog.Manifest(r.Context(), name)
	if err != nil {
		h.writeFailure(w, r, "get manifest", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Manifest retrieved successfully", ManifestResponse{
		Application: name,
		Manifest:    manifest,
	})
}

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	report, err := h.deployer.Deploy(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		var data any
		if report != nil {
			data = report
		}
		h.writeFailure(w, r, "deploy application", err, data)
		return
	}

	h.writeData(w, http.StatusOK, "Application deployed successfully", report)
}
