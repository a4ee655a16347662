package store

import (
	"context"

	"github.com/artpar/shipyard/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface. Images are keyed by name and tag,
// build templates by ref and applications by name.
type Store interface {
	// Image operations
	CreateImage(ctx context.Context, img *domain.Image) error
	GetImage(ctx context.Context, ref domain.ImageRef) (*domain.Image, error)
	GetImageBySourceDir(ctx context.Context, dir string) (*domain.Image, error)
	UpdateImage(ctx context.Context, img *domain.Image) error
	DeleteImage(ctx context.Context, ref domain.ImageRef) error
	ListImages(ctx context.Context, opts ListOptions) ([]domain.Image, error)

	// Build template operations
	CreateBuildTemplate(ctx context.Context, bt *domain.BuildTemplate) error
	GetBuildTemplate(ctx context.Context, ref string) (*domain.BuildTemplate, error)
	UpdateBuildTemplate(ctx context.Context, bt *domain.BuildTemplate) error
	DeleteBuildTemplate(ctx context.Context, ref string) error
	ListBuildTemplates(ctx context.Context, opts ListOptions) ([]domain.BuildTemplate, error)

	// Application operations
	CreateApplication(ctx context.Context, app *domain.Application) error
	GetApplication(ctx context.Context, name string) (*domain.Application, error)
	UpdateApplication(ctx context.Context, app *domain.Application) error
	DeleteApplication(ctx context.Context, name string) error
	ListApplications(ctx context.Context, opts ListOptions) ([]domain.Application, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Health
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
