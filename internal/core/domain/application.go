package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrAppNameRequired       = errors.New("application name is required")
	ErrAppNameInvalid        = errors.New("application name may only contain letters, digits, '.', '_' and '-'")
	ErrServiceNameRequired   = errors.New("service name is required")
	ErrServiceNameInvalid    = errors.New("service name may only contain letters, digits, '.', '_' and '-'")
	ErrServiceNameDuplicate  = errors.New("duplicate service name")
	ErrServiceImageRequired  = errors.New("service image is required")
	ErrServicePortInvalid    = errors.New("invalid port specification")
	ErrServiceEnvInvalid     = errors.New("environment entries must be KEY or KEY=value")
	ErrServiceVolumeInvalid  = errors.New("volume entries must not be blank")
	ErrVolumeNameInvalid     = errors.New("volume name may only contain letters, digits, '.', '_' and '-'")
	ErrVolumeNameDuplicate   = errors.New("duplicate volume name")
	ErrComposeVersionInvalid = errors.New("compose version must be a dotted number")
	ErrApplicationNoServices = errors.New("application must define at least one service")
)

// DefaultComposeVersion is the manifest version used when none is given.
const DefaultComposeVersion = "3.9"

var (
	identifierPattern     = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	composeVersionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)
	envKeyPattern         = regexp.MustCompile(`^[^=\s]+$`)
)

// =============================================================================
// Application
// =============================================================================

// Application is a named multi-service stack compiled to a compose manifest.
// Services reference Images by "name[:tag]"; the reference is resolved lazily
// at deploy time.
type Application struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name" validate:"required,max=255"`
	ComposeVersion string    `json:"compose_version" db:"compose_version"`
	Services       []Service `json:"services" db:"-" validate:"dive"`
	Volumes        []string  `json:"volumes" db:"-"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Service is one entry of an Application's topology. Absent and empty lists
// are equivalent.
type Service struct {
	Name        string   `json:"name" validate:"required"`
	Image       string   `json:"image" validate:"required"`
	Ports       []string `json:"ports,omitempty"`
	Environment []string `json:"environment,omitempty"`
	Volumes     []string `json:"volumes,omitempty"`
}

// NewApplication creates a validated Application with defaults applied.
func NewApplication(name, composeVersion string, services []Service, volumes []string) (*Application, error) {
	now := time.Now()
	app := &Application{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(name),
		ComposeVersion: composeVersion,
		Services:       services,
		Volumes:        volumes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	app.Normalize()
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return app, nil
}

// Normalize applies defaults and turns nil lists into empty ones so that
// absent and empty lists serialize identically.
func (a *Application) Normalize() {
	a.ComposeVersion = strings.TrimSpace(a.ComposeVersion)
	if a.ComposeVersion == "" {
		a.ComposeVersion = DefaultComposeVersion
	}
	if a.Services == nil {
		a.Services = []Service{}
	}
	if a.Volumes == nil {
		a.Volumes = []string{}
	}
	for i := range a.Services {
		s := &a.Services[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Image = strings.TrimSpace(s.Image)
		if s.Ports == nil {
			s.Ports = []string{}
		}
		if s.Environment == nil {
			s.Environment = []string{}
		}
		if s.Volumes == nil {
			s.Volumes = []string{}
		}
	}
}

// Validate checks the application and all of its services.
func (a Application) Validate() error {
	if a.Name == "" {
		return ErrAppNameRequired
	}
	if !identifierPattern.MatchString(a.Name) {
		return ErrAppNameInvalid
	}
	if !composeVersionPattern.MatchString(a.ComposeVersion) {
		return ErrComposeVersionInvalid
	}
	if len(a.Services) == 0 {
		return ErrApplicationNoServices
	}

	seen := make(map[string]bool, len(a.Services))
	for i, svc := range a.Services {
		if err := svc.Validate(); err != nil {
			return fmt.Errorf("services[%d]: %w", i, err)
		}
		if seen[svc.Name] {
			return fmt.Errorf("services[%d] %q: %w", i, svc.Name, ErrServiceNameDuplicate)
		}
		seen[svc.Name] = true
	}

	vols := make(map[string]bool, len(a.Volumes))
	for _, v := range a.Volumes {
		if !identifierPattern.MatchString(v) {
			return fmt.Errorf("volume %q: %w", v, ErrVolumeNameInvalid)
		}
		if vols[v] {
			return fmt.Errorf("volume %q: %w", v, ErrVolumeNameDuplicate)
		}
		vols[v] = true
	}

	return validateStruct(a)
}

// Validate checks a single service definition.
func (s Service) Validate() error {
	if s.Name == "" {
		return ErrServiceNameRequired
	}
	if !identifierPattern.MatchString(s.Name) {
		return ErrServiceNameInvalid
	}
	if s.Image == "" {
		return ErrServiceImageRequired
	}
	if _, err := ParseImageRef(s.Image); err != nil {
		return err
	}
	for _, p := range s.Ports {
		if _, err := nat.ParsePortSpec(p); err != nil {
			return fmt.Errorf("port %q: %w: %v", p, ErrServicePortInvalid, err)
		}
	}
	for _, e := range s.Environment {
		key, _, _ := strings.Cut(e, "=")
		if !envKeyPattern.MatchString(key) {
			return fmt.Errorf("environment %q: %w", e, ErrServiceEnvInvalid)
		}
	}
	for _, v := range s.Volumes {
		if strings.TrimSpace(v) == "" {
			return ErrServiceVolumeInvalid
		}
	}
	return nil
}

// ImageRef parses the service's image reference.
func (s Service) ImageRef() (ImageRef, error) {
	return ParseImageRef(s.Image)
}
