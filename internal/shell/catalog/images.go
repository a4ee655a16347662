package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/artpar/shipyard/internal/shell/docker"
	"github.com/artpar/shipyard/internal/shell/store"
)

// =============================================================================
// Inputs
// =============================================================================

// CreateImageInput describes a new image.
type CreateImageInput struct {
	Name             string
	Tag              string
	Remote           string
	BuildTemplateRef string
}

// UpdateImageInput changes an image's remote and/or build template. Empty
// fields keep their current value.
type UpdateImageInput struct {
	Remote           string
	BuildTemplateRef string
}

// =============================================================================
// Queries
// =============================================================================

// GetImage returns the image for ref.
func (s *Service) GetImage(ctx context.Context, ref domain.ImageRef) (*domain.Image, error) {
	return s.store.GetImage(ctx, normalizeRef(ref))
}

// ListImages returns a page of images ordered by name and tag.
func (s *Service) ListImages(ctx context.Context, opts store.ListOptions) ([]domain.Image, error) {
	return s.store.ListImages(ctx, opts)
}

// =============================================================================
// Commands
// =============================================================================

// CreateImage registers an image, clones its source, writes its Dockerfile
// and builds it. An existing name:tag, or another image owning the same
// source tree, is rejected before anything touches disk. A failed build
// leaves the record in place so it can be rebuilt.
func (s *Service) CreateImage(ctx context.Context, in CreateImageInput) (*domain.Image, *docker.BuildOutput, error) {
	img, err := domain.NewImage(in.Name, in.Tag, in.Remote, in.BuildTemplateRef)
	if err != nil {
		return nil, nil, invalid(err)
	}
	ref := img.Ref()
	logger := s.logger.With("image", ref.String())

	unlock, err := s.lockSource(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	if _, err := s.store.GetImage(ctx, ref); err == nil {
		logger.Info("image already exists")
		return nil, nil, ErrImageExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}

	if owner, err := s.store.GetImageBySourceDir(ctx, img.SourceDir()); err == nil {
		logger.Info("source tree owned by another image", "owner", owner.Ref().String(), "dir", img.SourceDir())
		return nil, nil, fmt.Errorf("%w: %s is used by %s", ErrSourceConflict, img.SourceDir(), owner.Ref().String())
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}

	bt, err := s.store.GetBuildTemplate(ctx, img.BuildTemplateRef)
	if err != nil {
		return nil, nil, err
	}

	if err := s.materialize(ctx, img, bt); err != nil {
		return nil, nil, err
	}

	if err := s.store.CreateImage(ctx, img); err != nil {
		if rmErr := s.ws.RemoveSource(ref); rmErr != nil {
			logger.Warn("failed to remove unsaved source tree", "error", rmErr)
		}
		if errors.Is(err, store.ErrDuplicate) {
			return nil, nil, ErrImageExists
		}
		logger.Error("failed to save image", "error", err)
		return nil, nil, err
	}
	logger.Info("image created", "remote", img.Remote, "bt_ref", img.BuildTemplateRef)

	out, err := s.build(ctx, ref)
	if err != nil {
		return img, nil, err
	}
	return img, out, nil
}

// UpdateImage points an image at a new remote and/or template, then
// reclones, rewrites the Dockerfile and rebuilds. The previous source tree
// is removed entirely before cloning.
func (s *Service) UpdateImage(ctx context.Context, ref domain.ImageRef, in UpdateImageInput) (*domain.Image, *docker.BuildOutput, error) {
	ref = normalizeRef(ref)

	unlock, err := s.lockSource(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	img, err := s.store.GetImage(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	if remote := strings.TrimSpace(in.Remote); remote != "" {
		img.Remote = remote
	}
	if btRef := strings.TrimSpace(in.BuildTemplateRef); btRef != "" {
		img.BuildTemplateRef = btRef
	}
	if err := img.Validate(); err != nil {
		return nil, nil, invalid(err)
	}

	bt, err := s.store.GetBuildTemplate(ctx, img.BuildTemplateRef)
	if err != nil {
		return nil, nil, err
	}

	if err := s.materialize(ctx, img, bt); err != nil {
		return nil, nil, err
	}

	img.UpdatedAt = time.Now()
	if err := s.store.UpdateImage(ctx, img); err != nil {
		s.logger.Error("failed to save image", "image", ref.String(), "error", err)
		return nil, nil, err
	}

	out, err := s.build(ctx, ref)
	if err != nil {
		return img, nil, err
	}
	return img, out, nil
}

// DeleteImage removes the runtime image (best effort), the source tree and
// the record.
func (s *Service) DeleteImage(ctx context.Context, ref domain.ImageRef) error {
	ref = normalizeRef(ref)

	unlock, err := s.lockSource(ctx, ref)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.store.GetImage(ctx, ref); err != nil {
		return err
	}

	s.removeRuntimeImage(ctx, ref)

	if err := s.ws.RemoveSource(ref); err != nil {
		s.logger.Error("failed to remove source tree", "image", ref.String(), "error", err)
		return err
	}
	if err := s.store.DeleteImage(ctx, ref); err != nil {
		return err
	}
	s.logger.Info("image deleted", "image", ref.String())
	return nil
}

// BuildImage rebuilds an image from its existing source tree and
// Dockerfile. Nothing is fetched.
func (s *Service) BuildImage(ctx context.Context, ref domain.ImageRef) (*domain.Image, *docker.BuildOutput, error) {
	ref = normalizeRef(ref)

	unlock, err := s.lockSource(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	img, err := s.store.GetImage(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if !s.ws.SourceExists(ref) {
		return img, nil, fmt.Errorf("%w: %s", ErrSourceMissing, s.ws.SourcePath(ref))
	}

	out, err := s.build(ctx, ref)
	if err != nil {
		return img, nil, err
	}
	return img, out, nil
}

// RefreshImage brings an image up to date with its remote: the runtime
// image is removed (best effort), the source tree is cloned or pulled and
// the image is rebuilt with the Dockerfile already in the tree.
func (s *Service) RefreshImage(ctx context.Context, ref domain.ImageRef) (*domain.Image, *docker.BuildOutput, error) {
	ref = normalizeRef(ref)

	unlock, err := s.lockSource(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	img, err := s.store.GetImage(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	s.removeRuntimeImage(ctx, ref)

	if err := s.fetch(ctx, img, false); err != nil {
		return img, nil, err
	}

	out, err := s.build(ctx, ref)
	if err != nil {
		return img, nil, err
	}
	return img, out, nil
}

// PushImage logs in with creds and pushes the image.
func (s *Service) PushImage(ctx context.Context, ref domain.ImageRef, creds docker.Credentials) (*domain.Image, *docker.PushOutput, error) {
	ref = normalizeRef(ref)
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return nil, nil, invalid(errors.New("registry username and password are required"))
	}

	img, err := s.store.GetImage(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	regCtx, cancel := withTimeout(ctx, s.timeouts.Registry)
	defer cancel()

	if err := s.runtime.Login(regCtx, creds); err != nil {
		s.logger.Error("registry login failed", "image", ref.String(), "username", creds.Username, "error", err)
		return img, nil, err
	}
	out, err := s.runtime.PushImage(regCtx, ref, creds)
	if err != nil {
		s.logger.Error("push failed", "image", ref.String(), "error", err)
		return img, nil, err
	}
	s.logger.Info("image pushed", "image", ref.String(), "digest", out.Digest)
	return img, out, nil
}

// =============================================================================
// Steps
// =============================================================================

// materialize reclones the image source and writes the Dockerfile rendered
// from bt.
func (s *Service) materialize(ctx context.Context, img *domain.Image, bt *domain.BuildTemplate) error {
	if err := s.fetch(ctx, img, true); err != nil {
		return err
	}
	if err := s.ws.WriteDockerfile(s.ws.SourcePath(img.Ref()), bt.Steps); err != nil {
		s.logger.Error("failed to write Dockerfile", "image", img.Ref().String(), "error", err)
		return err
	}
	return nil
}

func (s *Service) fetch(ctx context.Context, img *domain.Image, fresh bool) error {
	fetchCtx, cancel := withTimeout(ctx, s.timeouts.Fetch)
	defer cancel()

	dest := s.ws.SourcePath(img.Ref())
	var err error
	if fresh {
		err = s.fetcher.Reclone(fetchCtx, img.Remote, dest)
	} else {
		err = s.fetcher.Fetch(fetchCtx, img.Remote, dest)
	}
	if err != nil {
		s.logger.Error("fetch failed", "image", img.Ref().String(), "remote", img.Remote, "error", err)
		return err
	}
	return nil
}

func (s *Service) build(ctx context.Context, ref domain.ImageRef) (*docker.BuildOutput, error) {
	buildCtx, cancel := withTimeout(ctx, s.timeouts.Build)
	defer cancel()

	start := time.Now()
	out, err := s.runtime.BuildImage(buildCtx, ref, s.ws.SourcePath(ref))
	if err != nil {
		s.logger.Error("build failed", "image", ref.String(), "error", err)
		return nil, err
	}
	s.logger.Info("image built", "image", ref.String(), "image_id", out.ImageID, "duration", time.Since(start))
	return out, nil
}

func (s *Service) removeRuntimeImage(ctx context.Context, ref domain.ImageRef) {
	if err := s.runtime.RemoveImage(ctx, ref); err != nil {
		if errors.Is(err, docker.ErrImageNotFound) {
			s.logger.Debug("no local image to remove", "image", ref.String())
			return
		}
		s.logger.Warn("failed to remove local image", "image", ref.String(), "error", err)
	}
}

// lockSource takes the lock guarding ref's source tree. Distinct names can
// flatten to one directory, so the key is the directory, not name:tag.
func (s *Service) lockSource(ctx context.Context, ref domain.ImageRef) (func(), error) {
	return s.locks.Lock(ctx, domain.SourceDirName(ref.Name, ref.Tag))
}

func normalizeRef(ref domain.ImageRef) domain.ImageRef {
	return domain.ImageRef{Name: strings.TrimSpace(ref.Name), Tag: domain.NormalizeTag(ref.Tag)}
}
