package catalog

import (
	"context"
	"time"

	"github.com/artpar/shipyard/internal/core/compose"
	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/artpar/shipyard/internal/shell/store"
)

// ApplicationInput describes an application's topology.
type ApplicationInput struct {
	Name           string
	ComposeVersion string
	Services       []domain.Service
	Volumes        []string
}

// CreateApplication stores an application and writes its manifest. The
// record is rolled back when the manifest cannot be written.
func (s *Service) CreateApplication(ctx context.Context, in ApplicationInput) (*domain.Application, error) {
	app, err := domain.NewApplication(in.Name, in.ComposeVersion, in.Services, in.Volumes)
	if err != nil {
		return nil, invalid(err)
	}
	manifest, err := render(app)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateApplication(ctx, app); err != nil {
			return err
		}
		return s.ws.WriteManifest(app.Name, manifest)
	})
	if err != nil {
		s.logger.Error("failed to create application", "application", app.Name, "error", err)
		return nil, err
	}
	s.logger.Info("application created", "application", app.Name, "services", len(app.Services))
	return app, nil
}

// UpdateApplication replaces an application's topology and rewrites its
// manifest. The running stack is untouched until the next deploy.
func (s *Service) UpdateApplication(ctx context.Context, name string, in ApplicationInput) (*domain.Application, error) {
	var updated *domain.Application
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		app, err := tx.GetApplication(ctx, name)
		if err != nil {
			return err
		}
		app.ComposeVersion = in.ComposeVersion
		app.Services = in.Services
		app.Volumes = in.Volumes
		app.Normalize()
		if err := app.Validate(); err != nil {
			return invalid(err)
		}
		manifest, err := render(app)
		if err != nil {
			return err
		}

		app.UpdatedAt = time.Now()
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return err
		}
		if err := s.ws.WriteManifest(app.Name, manifest); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("application updated", "application", name, "services", len(updated.Services))
	return updated, nil
}

func (s *Service) GetApplication(ctx context.Context, name string) (*domain.Application, error) {
	return s.store.GetApplication(ctx, name)
}

func (s *Service) ListApplications(ctx context.Context, opts store.ListOptions) ([]domain.Application, error) {
	return s.store.ListApplications(ctx, opts)
}

// Manifest returns the manifest currently on disk for an application.
func (s *Service) Manifest(ctx context.Context, name string) (string, error) {
	if _, err := s.store.GetApplication(ctx, name); err != nil {
		return "", err
	}
	return s.ws.ReadManifest(name)
}

// DeleteApplication removes the record and the application directory.
func (s *Service) DeleteApplication(ctx context.Context, name string) error {
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.DeleteApplication(ctx, name); err != nil {
			return err
		}
		return s.ws.RemoveApp(name)
	})
	if err != nil {
		return err
	}
	s.logger.Info("application deleted", "application", name)
	return nil
}

// render generates the manifest and checks it loads back as the same
// application.
func render(app *domain.Application) (string, error) {
	manifest := compose.Generate(*app)
	if err := compose.Validate(*app, manifest); err != nil {
		return "", invalid(err)
	}
	return manifest, nil
}
