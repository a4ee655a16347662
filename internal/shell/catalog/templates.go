package catalog

import (
	"context"

	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/artpar/shipyard/internal/shell/store"
)

// CreateBuildTemplate stores a new template. Images built from it are not
// touched by later template changes.
func (s *Service) CreateBuildTemplate(ctx context.Context, ref, name string, steps []string) (*domain.BuildTemplate, error) {
	bt, err := domain.NewBuildTemplate(ref, name, steps)
	if err != nil {
		return nil, invalid(err)
	}
	if err := s.store.CreateBuildTemplate(ctx, bt); err != nil {
		return nil, err
	}
	s.logger.Info("build template created", "ref", bt.Ref, "steps", len(bt.Steps))
	return bt, nil
}

func (s *Service) GetBuildTemplate(ctx context.Context, ref string) (*domain.BuildTemplate, error) {
	return s.store.GetBuildTemplate(ctx, ref)
}

func (s *Service) ListBuildTemplates(ctx context.Context, opts store.ListOptions) ([]domain.BuildTemplate, error) {
	return s.store.ListBuildTemplates(ctx, opts)
}

// UpdateBuildTemplate replaces name and steps wholesale.
func (s *Service) UpdateBuildTemplate(ctx context.Context, ref, name string, steps []string) (*domain.BuildTemplate, error) {
	var updated *domain.BuildTemplate
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		bt, err := tx.GetBuildTemplate(ctx, ref)
		if err != nil {
			return err
		}
		if err := bt.Replace(name, steps); err != nil {
			return invalid(err)
		}
		if err := tx.UpdateBuildTemplate(ctx, bt); err != nil {
			return err
		}
		updated = bt
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("build template updated", "ref", ref, "steps", len(updated.Steps))
	return updated, nil
}

func (s *Service) DeleteBuildTemplate(ctx context.Context, ref string) error {
	if err := s.store.DeleteBuildTemplate(ctx, ref); err != nil {
		return err
	}
	s.logger.Info("build template deleted", "ref", ref)
	return nil
}
