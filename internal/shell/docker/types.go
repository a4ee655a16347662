// Package docker provides the container runtime client used to build,
// remove and publish images.
package docker

import (
	"context"

	"github.com/artpar/shipyard/internal/core/domain"
)

// =============================================================================
// Image Types
// =============================================================================

// BuildOutput is the result of a successful build.
type BuildOutput struct {
	ImageID string // Content-addressed ID reported by the daemon, if any
	Log     string // Build log as printed by the daemon
}

// PushOutput is the result of a successful push.
type PushOutput struct {
	Digest string
	Log    string
}

// Credentials authenticate against a registry. An empty ServerAddress means
// the daemon's default registry.
type Credentials struct {
	Username      string
	Password      string
	ServerAddress string
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the container runtime operations the build and deploy
// workflows depend on.
type Client interface {
	// Image operations
	BuildImage(ctx context.Context, ref domain.ImageRef, contextDir string) (*BuildOutput, error)
	RemoveImage(ctx context.Context, ref domain.ImageRef) error
	ImageExists(ctx context.Context, ref domain.ImageRef) (bool, error)

	// Registry operations
	Login(ctx context.Context, creds Credentials) error
	PushImage(ctx context.Context, ref domain.ImageRef, creds Credentials) (*PushOutput, error)

	// Health operations
	Ping(ctx context.Context) error
	Close() error
}
