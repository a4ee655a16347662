package api

import (
	"fmt"
	"net/http"

	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/artpar/shipyard/internal/shell/catalog"
	"github.com/artpar/shipyard/internal/shell/docker"
	"github.com/go-chi/chi/v5"
)

// =============================================================================
// Image Handlers
// =============================================================================

func (h *Handler) handleCreateImage(w http.ResponseWriter, r *http.Request) {
	var req CreateImageRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	img, out, err := h.catalog.CreateImage(r.Context(), catalog.CreateImageInput{
		Name:             req.Name,
		Tag:              req.Tag,
		Remote:           req.Remote,
		BuildTemplateRef: req.BTRef,
	})
	if err != nil {
		h.writeFailure(w, r, "create image", err, imageResult(img, nil))
		return
	}

	h.writeData(w, http.StatusCreated, "Image created successfully", imageResult(img, out))
}

func (h *Handler) handleListImages(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)
	images, err := h.catalog.ListImages(r.Context(), opts)
	if err != nil {
		h.writeFailure(w, r, "list images", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Images retrieved successfully", ListResponse[domain.Image]{
		Items: images,
		Meta:  ListMeta{Total: len(images), Limit: opts.Limit, Offset: opts.Offset},
	})
}

func (h *Handler) handleGetImage(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.imageRef(w, r)
	if !ok {
		return
	}

	img, err := h.catalog.GetImage(r.Context(), ref)
	if err != nil {
		h.writeFailure(w, r, "get image", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Image retrieved successfully", img)
}

func (h *Handler) handleUpdateImage(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.imageRef(w, r)
	if !ok {
		return
	}

	var req UpdateImageRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	img, out, err := h.catalog.UpdateImage(r.Context(), ref, catalog.UpdateImageInput{
		Remote:           req.Remote,
		BuildTemplateRef: req.BTRef,
	})
	if err != nil {
		h.writeFailure(w, r, "update image", err, imageResult(img, nil))
		return
	}

	h.writeData(w, http.StatusOK, "Image updated successfully", imageResult(img, out))
}

func (h *Handler) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.imageRef(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteImage(r.Context(), ref); err != nil {
		h.writeFailure(w, r, "delete image", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Image deleted successfully", nil)
}

func (h *Handler) handleBuildImage(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.imageRef(w, r)
	if !ok {
		return
	}

	img, out, err := h.catalog.BuildImage(r.Context(), ref)
	if err != nil {
		h.writeFailure(w, r, "build image", err, imageResult(img, nil))
		return
	}

	h.writeData(w, http.StatusOK, "Image built successfully", imageResult(img, out))
}

func (h *Handler) handlePushImage(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.imageRef(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	creds := docker.Credentials{
		Username:      q.Get("docker_user"),
		Password:      q.Get("docker_password"),
		ServerAddress: q.Get("registry"),
	}

	img, out, err := h.catalog.PushImage(r.Context(), ref, creds)
	if err != nil {
		h.writeFailure(w, r, "push image", err, nil)
		return
	}

	h.writeData(w, http.StatusOK, "Image pushed successfully", ImageResult{
		Image:  img,
		Digest: out.Digest,
		Log:    out.Log,
	})
}

// imageRef reads "{ref}" or "{user}/{ref}" from the path. A ref without a
// tag addresses the latest tag.
func (h *Handler) imageRef(w http.ResponseWriter, r *http.Request) (domain.ImageRef, bool) {
	raw := chi.URLParam(r, "ref")
	if user := chi.URLParam(r, "user"); user != "" {
		raw = user + "/" + raw
	}

	ref, err := domain.ParseImageRef(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid image reference %q: %v", raw, err), "validation_error")
		return domain.ImageRef{}, false
	}
	return ref, true
}

func imageResult(img *domain.Image, out *docker.BuildOutput) any {
	if img == nil {
		return nil
	}
	res := ImageResult{Image: img}
	if out != nil {
		res.ImageID = out.ImageID
		res.Log = out.Log
	}
	return res
}
