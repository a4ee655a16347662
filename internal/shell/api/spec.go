package api

import (
	"net/http"

	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/artpar/shipyard/internal/shell/api/openapi"
)

// newSpec registers the catalog resources with the OpenAPI generator.
func newSpec() *openapi.Generator {
	g := openapi.NewGenerator(
		openapi.WithTitle("Shipyard API"),
		openapi.WithDescription("Image, build template and application catalog with build and deploy actions"),
		openapi.WithBasePath(BasePath),
	)

	g.RegisterResource(openapi.ResourceInfo{
		Name:           "images",
		Key:            "ref",
		Model:          domain.Image{},
		Request:        CreateImageRequest{},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
		Actions: []openapi.Action{
			{Name: "build", Summary: "Rebuild an image from its source tree", Methods: []string{http.MethodGet, http.MethodPost}},
			{Name: "push", Summary: "Push an image to a registry", Methods: []string{http.MethodGet, http.MethodPost},
				Query: []string{"docker_user", "docker_password", "registry"}},
		},
	})

	g.RegisterResource(openapi.ResourceInfo{
		Name:           "build-templates",
		Key:            "ref",
		Model:          domain.BuildTemplate{},
		Request:        BuildTemplateRequest{},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
	})

	g.RegisterResource(openapi.ResourceInfo{
		Name:           "applications",
		Key:            "name",
		Model:          domain.Application{},
		Request:        ApplicationRequest{},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
		Actions: []openapi.Action{
			{Name: "manifest", Summary: "Get the generated compose manifest", Methods: []string{http.MethodGet}},
			{Name: "deploy", Summary: "Refresh images and restart the application", Methods: []string{http.MethodGet, http.MethodPost}},
		},
	})

	return g
}
