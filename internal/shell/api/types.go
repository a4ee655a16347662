package api

import (
	"github.com/artpar/shipyard/internal/core/domain"
)

// =============================================================================
// Request Types
// =============================================================================

// CreateImageRequest is the request body for creating an image.
type CreateImageRequest struct {
	Name   string `json:"name"`
	Tag    string `json:"tag,omitempty"`
	Remote string `json:"remote"`
	BTRef  string `json:"bt_ref"`
}

// UpdateImageRequest is the request body for updating an image. Omitted
// fields keep their current value.
type UpdateImageRequest struct {
	Remote string `json:"remote,omitempty"`
	BTRef  string `json:"bt_ref,omitempty"`
}

// BuildTemplateRequest is the request body for creating or replacing a
// build template. Ref is ignored on update.
type BuildTemplateRequest struct {
	Ref   string   `json:"ref,omitempty"`
	Name  string   `json:"name"`
	Steps []string `json:"steps"`
}

// ApplicationRequest is the request body for creating or replacing an
// application. Name is ignored on update.
type ApplicationRequest struct {
	Name           string           `json:"name,omitempty"`
	ComposeVersion string           `json:"compose_version,omitempty"`
	Services       []domain.Service `json:"services"`
	Volumes        []string         `json:"volumes,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// Envelope wraps every API response.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`  // machine-readable error kind
	Output  string `json:"output,omitempty"` // tool output for failed fetch/build/push
}

// ImageResult is returned by operations that build or push an image.
type ImageResult struct {
	Image   *domain.Image `json:"image"`
	ImageID string        `json:"image_id,omitempty"`
	Digest  string        `json:"digest,omitempty"`
	Log     string        `json:"log,omitempty"`
}

// ListMeta describes a page of results.
type ListMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListResponse is the data of a list call.
type ListResponse[T any] struct {
	Items []T      `json:"items"`
	Meta  ListMeta `json:"meta"`
}

// ManifestResponse is the data of a manifest call.
type ManifestResponse struct {
	Application string `json:"application"`
	Manifest    string `json:"manifest"`
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for readiness check.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
