package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/shipyard/internal/core/dockerfile"
	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/patternmatcher/ignorefile"
)

// =============================================================================
// Docker Client Implementation
// =============================================================================

// DockerClient implements the Client interface using the Docker SDK.
type DockerClient struct {
	cli    *client.Client
	logger *slog.Logger
}

// NewDockerClient creates a new Docker client.
// If host is empty, it uses the default Docker host from environment.
// On macOS with Docker Desktop, it automatically detects the correct socket.
func NewDockerClient(host string, logger *slog.Logger) (*DockerClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "docker")

	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewDockerClient", "", "", "failed to create client", ErrConnectionFailed)
	}

	// Try to ping with default settings
	ctx := context.Background()
	if _, pingErr := cli.Ping(ctx); pingErr != nil && host == "" {
		homeDir, _ := os.UserHomeDir()
		dockerDesktopSocket := "unix://" + homeDir + "/.docker/run/docker.sock"

		cli2, err2 := client.NewClientWithOpts(
			client.WithHost(dockerDesktopSocket),
			client.WithAPIVersionNegotiation(),
		)
		if err2 == nil {
			if _, pingErr2 := cli2.Ping(ctx); pingErr2 == nil {
				cli.Close()
				return &DockerClient{cli: cli2, logger: logger}, nil
			}
			cli2.Close()
		}
	}

	return &DockerClient{cli: cli, logger: logger}, nil
}

// Ping checks if Docker daemon is reachable.
func (d *DockerClient) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Image Operations
// =============================================================================

// BuildImage builds contextDir with its Dockerfile and tags the result
// name:tag, replacing any image previously under that tag.
func (d *DockerClient) BuildImage(ctx context.Context, ref domain.ImageRef, contextDir string) (*BuildOutput, error) {
	tag := ref.String()

	excludes, err := readDockerignore(contextDir)
	if err != nil {
		return nil, &BuildError{Ref: tag, Err: fmt.Errorf("%w: %v", ErrContextFailed, err)}
	}

	buildCtx, err := archive.TarWithOptions(contextDir, &archive.TarOptions{ExcludePatterns: excludes})
	if err != nil {
		return nil, &BuildError{Ref: tag, Err: fmt.Errorf("%w: %v", ErrContextFailed, err)}
	}
	defer buildCtx.Close()

	d.logger.Info("building image", "image", tag, "context", contextDir)
	resp, err := d.cli.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  dockerfile.FileName,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		d.logger.Error("image build request failed", "image", tag, "error", err)
		return nil, &BuildError{Ref: tag, Err: err}
	}
	defer resp.Body.Close()

	imageID, log, err := readBuildStream(resp.Body)
	if err != nil {
		d.logger.Error("image build failed", "image", tag, "error", err)
		return nil, &BuildError{Ref: tag, Output: log, Err: err}
	}

	d.logger.Info("image built", "image", tag, "id", imageID)
	return &BuildOutput{ImageID: imageID, Log: log}, nil
}

// RemoveImage removes the local image tagged name:tag.
func (d *DockerClient) RemoveImage(ctx context.Context, ref domain.ImageRef) error {
	tag := ref.String()
	_, err := d.cli.ImageRemove(ctx, tag, image.RemoveOptions{Force: true, PruneChildren: true})
	if err != nil {
		if client.IsErrNotFound(err) {
			return NewDockerError("RemoveImage", "image", tag, "image not found", ErrImageNotFound)
		}
		return NewDockerError("RemoveImage", "image", tag, err.Error(), err)
	}
	d.logger.Info("image removed", "image", tag)
	return nil
}

// ImageExists checks if an image exists locally.
func (d *DockerClient) ImageExists(ctx context.Context, ref domain.ImageRef) (bool, error) {
	_, err := d.cli.ImageInspect(ctx, ref.String())
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, NewDockerError("ImageExists", "image", ref.String(), err.Error(), err)
	}
	return true, nil
}

// =============================================================================
// Registry Operations
// =============================================================================

// Login authenticates against a registry.
func (d *DockerClient) Login(ctx context.Context, creds Credentials) error {
	resp, err := d.cli.RegistryLogin(ctx, authConfig(creds))
	if err != nil {
		return NewDockerError("Login", "registry", creds.ServerAddress, err.Error(), ErrLoginFailed)
	}
	d.logger.Info("registry login", "user", creds.Username, "registry", creds.ServerAddress, "status", resp.Status)
	return nil
}

// PushImage pushes name:tag using the given credentials.
func (d *DockerClient) PushImage(ctx context.Context, ref domain.ImageRef, creds Credentials) (*PushOutput, error) {
	tag := ref.String()

	encoded, err := registry.EncodeAuthConfig(authConfig(creds))
	if err != nil {
		return nil, NewDockerError("PushImage", "image", tag, err.Error(), ErrPushFailed)
	}

	reader, err := d.cli.ImagePush(ctx, tag, image.PushOptions{RegistryAuth: encoded})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewDockerError("PushImage", "image", tag, "image not found", ErrImageNotFound)
		}
		return nil, NewDockerError("PushImage", "image", tag, err.Error(), ErrPushFailed)
	}
	defer reader.Close()

	var out bytes.Buffer
	var digest string
	err = jsonmessage.DisplayJSONMessagesStream(reader, &out, 0, false, func(msg jsonmessage.JSONMessage) {
		var aux struct {
			Digest string `json:"Digest"`
		}
		if msg.Aux != nil && json.Unmarshal(*msg.Aux, &aux) == nil && aux.Digest != "" {
			digest = aux.Digest
		}
	})
	if err != nil {
		return nil, NewDockerError("PushImage", "image", tag, err.Error(), fmt.Errorf("%w: %s", ErrPushFailed, out.String()))
	}

	d.logger.Info("image pushed", "image", tag, "digest", digest)
	return &PushOutput{Digest: digest, Log: out.String()}, nil
}

func authConfig(creds Credentials) registry.AuthConfig {
	return registry.AuthConfig{
		Username:      creds.Username,
		Password:      creds.Password,
		ServerAddress: creds.ServerAddress,
	}
}

// =============================================================================
// Stream Helpers
// =============================================================================

// readBuildStream drains a build response. The returned log is everything
// the daemon printed; a stream error message becomes the error.
func readBuildStream(r io.Reader) (imageID, log string, err error) {
	var out bytes.Buffer
	err = jsonmessage.DisplayJSONMessagesStream(r, &out, 0, false, func(msg jsonmessage.JSONMessage) {
		var aux struct {
			ID string `json:"ID"`
		}
		if msg.Aux != nil && json.Unmarshal(*msg.Aux, &aux) == nil && aux.ID != "" {
			imageID = aux.ID
		}
	})
	log = out.String()
	if err != nil {
		var jerr *jsonmessage.JSONError
		if errors.As(err, &jerr) {
			return imageID, log, fmt.Errorf("%w: %s", ErrBuildFailed, strings.TrimSpace(jerr.Message))
		}
		return imageID, log, err
	}
	return imageID, log, nil
}

// readDockerignore returns the exclude patterns of contextDir/.dockerignore.
func readDockerignore(contextDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(contextDir, ".dockerignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return ignorefile.ReadAll(f)
}
