package compose

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// validationProject is the throwaway project name used while loading
// manifests in memory.
const validationProject = "shipyard-validate"

// =============================================================================
// Loading
// =============================================================================

// Parse loads a compose manifest with compose-go and converts it to a Manifest.
// This is a pure function - no I/O, no side effects.
func Parse(manifest string) (*Manifest, error) {
	if strings.TrimSpace(manifest) == "" {
		return nil, ErrEmptyInput
	}

	dict, err := preParse(manifest)
	if err != nil {
		return nil, err
	}

	project, err := loadProject(manifest, dict)
	if err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, NewParseError("services", "no services defined", ErrNoServices)
	}

	out := &Manifest{
		Services: make([]Service, 0, len(project.Services)),
		Volumes:  make([]string, 0, len(project.Volumes)),
	}
	if v, ok := dict["version"]; ok && v != nil {
		out.Version = fmt.Sprint(v)
	}

	for _, svc := range project.Services {
		converted, err := convertService(svc)
		if err != nil {
			return nil, err
		}
		out.Services = append(out.Services, converted)
	}
	sort.Slice(out.Services, func(i, j int) bool { return out.Services[i].Name < out.Services[j].Name })

	for name := range project.Volumes {
		out.Volumes = append(out.Volumes, name)
	}
	sort.Strings(out.Volumes)

	return out, nil
}

// Validate checks that a generated manifest loads cleanly and still describes
// the Application it was rendered from.
func Validate(app domain.Application, manifest string) error {
	parsed, err := Parse(manifest)
	if err != nil {
		return err
	}

	want := app.ComposeVersion
	if want == "" {
		want = domain.DefaultComposeVersion
	}
	if parsed.Version != want {
		return NewParseError("version", fmt.Sprintf("got %q, want %q", parsed.Version, want), ErrVersionMismatch)
	}

	if len(parsed.Services) != len(app.Services) {
		return NewParseError("services", fmt.Sprintf("got %d services, want %d", len(parsed.Services), len(app.Services)), ErrServiceSetChanged)
	}
	for _, svc := range app.Services {
		got, ok := parsed.Service(svc.Name)
		if !ok {
			return NewParseError("services."+svc.Name, "service missing from manifest", ErrServiceSetChanged)
		}
		if got.Image != svc.Image {
			return NewParseError("services."+svc.Name+".image", fmt.Sprintf("got %q, want %q", got.Image, svc.Image), ErrServiceSetChanged)
		}
	}

	return nil
}

// preParse decodes the raw YAML so syntax errors surface before compose-go
// sees the document.
func preParse(manifest string) (map[string]interface{}, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(manifest), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	return dict, nil
}

// loadProject loads a manifest using compose-go.
func loadProject(manifest string, dict map[string]interface{}) (*types.Project, error) {
	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(manifest),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName(validationProject, false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// In-memory: nothing to resolve against.
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "undefined volume") {
			return nil, NewParseError("volumes", errStr, ErrUndefinedVolume)
		}
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError("", "service must have an image", ErrServiceNoImage)
		}
		return nil, NewParseError("", errStr, ErrInvalidManifest)
	}

	return project, nil
}

// convertService converts a compose-go service to our Service type.
func convertService(svc types.ServiceConfig) (Service, error) {
	if svc.Image == "" {
		return Service{}, NewParseError("services."+svc.Name, "service must have an image", ErrServiceNoImage)
	}

	service := Service{
		Name:        svc.Name,
		Image:       svc.Image,
		Environment: make(map[string]string, len(svc.Environment)),
	}

	for _, p := range svc.Ports {
		service.Ports = append(service.Ports, Port{
			Target:    p.Target,
			Published: p.Published,
			Protocol:  p.Protocol,
			HostIP:    p.HostIP,
		})
	}

	for k, v := range svc.Environment {
		if v != nil {
			service.Environment[k] = *v
		} else {
			service.Environment[k] = ""
		}
	}

	for _, v := range svc.Volumes {
		service.Volumes = append(service.Volumes, VolumeMount{
			Type:     v.Type,
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	return service, nil
}
