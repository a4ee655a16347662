// Package workspace owns the on-disk storage layout: one source tree per
// image under the codes directory and one manifest directory per application.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/shipyard/internal/core/compose"
	"github.com/artpar/shipyard/internal/core/dockerfile"
	"github.com/artpar/shipyard/internal/core/domain"
)

const (
	codesDirName        = "codes"
	applicationsDirName = "applications"
)

// Workspace resolves and mutates paths under a storage root.
type Workspace struct {
	root     string
	codesDir string
	appsDir  string
	logger   *slog.Logger
}

// New creates a Workspace rooted at dir. The root is made absolute because
// compose and the build context both need stable paths.
func New(dir string, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for storage dir: %w", err)
	}
	return &Workspace{
		root:     root,
		codesDir: filepath.Join(root, codesDirName),
		appsDir:  filepath.Join(root, applicationsDirName),
		logger:   logger.With("component", "workspace"),
	}, nil
}

// Bootstrap creates the codes and applications directories.
func (w *Workspace) Bootstrap() error {
	for _, dir := range []string{w.codesDir, w.appsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return newIOError("Bootstrap", dir, err)
		}
	}
	w.logger.Info("storage ready", "codes_dir", w.codesDir, "applications_dir", w.appsDir)
	return nil
}

// Root returns the absolute storage root.
func (w *Workspace) Root() string { return w.root }

// CodesDir returns the directory holding image source trees.
func (w *Workspace) CodesDir() string { return w.codesDir }

// ApplicationsDir returns the directory holding application manifests.
func (w *Workspace) ApplicationsDir() string { return w.appsDir }

// =============================================================================
// Image Source Trees
// =============================================================================

// SourcePath returns the source tree location for an image.
func (w *Workspace) SourcePath(ref domain.ImageRef) string {
	return filepath.Join(w.codesDir, domain.SourceDirName(ref.Name, ref.Tag))
}

// SourceExists reports whether an image's source tree is on disk.
func (w *Workspace) SourceExists(ref domain.ImageRef) bool {
	info, err := os.Stat(w.SourcePath(ref))
	return err == nil && info.IsDir()
}

// RemoveSource deletes an image's source tree. A missing tree is not an error.
func (w *Workspace) RemoveSource(ref domain.ImageRef) error {
	path := w.SourcePath(ref)
	if err := w.contained(w.codesDir, path); err != nil {
		return newIOError("RemoveSource", path, err)
	}
	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return newIOError("RemoveSource", path, err)
	}
	w.logger.Debug("removed source tree", "image", ref.String(), "path", path)
	return nil
}

// WriteDockerfile renders steps into <dir>/Dockerfile, replacing any
// existing file.
func (w *Workspace) WriteDockerfile(dir string, steps []string) error {
	path := filepath.Join(dir, dockerfile.FileName)
	if err := os.WriteFile(path, []byte(dockerfile.Render(steps)), 0644); err != nil {
		return newIOError("WriteDockerfile", path, err)
	}
	w.logger.Debug("wrote Dockerfile", "path", path, "steps", len(steps))
	return nil
}

// =============================================================================
// Application Manifests
// =============================================================================

// AppDir returns the directory holding an application's manifest.
func (w *Workspace) AppDir(name string) string {
	return filepath.Join(w.appsDir, name)
}

// ManifestPath returns the manifest file path for an application.
func (w *Workspace) ManifestPath(name string) string {
	return filepath.Join(w.AppDir(name), compose.ManifestFile)
}

// HasManifest reports whether an application's manifest is on disk.
func (w *Workspace) HasManifest(name string) bool {
	_, err := os.Stat(w.ManifestPath(name))
	return err == nil
}

// WriteManifest writes an application's manifest, creating its directory.
func (w *Workspace) WriteManifest(name, manifest string) error {
	dir := w.AppDir(name)
	if err := w.contained(w.appsDir, dir); err != nil {
		return newIOError("WriteManifest", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return newIOError("WriteManifest", dir, err)
	}
	path := w.ManifestPath(name)
	if err := os.WriteFile(path, []byte(manifest), 0644); err != nil {
		return newIOError("WriteManifest", path, err)
	}
	w.logger.Debug("wrote manifest", "application", name, "path", path)
	return nil
}

// ReadManifest returns the stored manifest for an application.
func (w *Workspace) ReadManifest(name string) (string, error) {
	path := w.ManifestPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", newIOError("ReadManifest", path, err)
	}
	return string(data), nil
}

// RemoveApp deletes an application's directory. A missing directory is not
// an error.
func (w *Workspace) RemoveApp(name string) error {
	dir := w.AppDir(name)
	if err := w.contained(w.appsDir, dir); err != nil {
		return newIOError("RemoveApp", dir, err)
	}
	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return newIOError("RemoveApp", dir, err)
	}
	w.logger.Debug("removed application dir", "application", name, "path", dir)
	return nil
}

// contained rejects paths that are the parent itself or lie outside it.
func (w *Workspace) contained(parent, path string) error {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrOutsideWorkspace
	}
	return nil
}
