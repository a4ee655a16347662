// Package vcs fetches image source trees from git remotes using go-git.
package vcs

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Config holds fetcher settings.
type Config struct {
	SSHKeyPath       string
	SSHKeyPassphrase string
	KnownHostsPath   string
	Username         string
	Token            string

	// Retries is the number of extra attempts after a transient failure.
	// Zero means fail fast.
	Retries    int
	RetryDelay time.Duration
}

// Fetcher clones and updates source trees.
type Fetcher struct {
	cfg    Config
	logger *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Fetcher{cfg: cfg, logger: logger.With("component", "vcs")}
}

// Fetch clones remote into dest when dest does not exist and pulls in place
// otherwise. An already up-to-date tree is success.
func (f *Fetcher) Fetch(ctx context.Context, remote, dest string) error {
	if strings.TrimSpace(remote) == "" {
		return newFetchError("fetch", remote, dest, ErrRemoteRequired)
	}

	if _, err := os.Stat(dest); err != nil {
		if !os.IsNotExist(err) {
			return newFetchError("fetch", remote, dest, err)
		}
		return f.withRetry(ctx, "clone", remote, dest, func() error {
			return f.clone(ctx, remote, dest)
		})
	}

	return f.withRetry(ctx, "pull", remote, dest, func() error {
		return f.pull(ctx, remote, dest)
	})
}

// Reclone deletes dest entirely and clones remote into it. Nothing from the
// previous tree survives.
func (f *Fetcher) Reclone(ctx context.Context, remote, dest string) error {
	if strings.TrimSpace(remote) == "" {
		return newFetchError("reclone", remote, dest, ErrRemoteRequired)
	}
	if err := os.RemoveAll(dest); err != nil {
		return newFetchError("reclone", remote, dest, err)
	}
	return f.withRetry(ctx, "clone", remote, dest, func() error {
		return f.clone(ctx, remote, dest)
	})
}

func (f *Fetcher) clone(ctx context.Context, remote, dest string) error {
	auth, err := f.authFor(remote)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	f.logger.Info("cloning", "remote", remote, "path", dest)
	_, err = git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:  remote,
		Auth: auth,
	})
	if err != nil {
		// A half-written clone would turn the next Fetch into a pull.
		os.RemoveAll(dest)
		return err
	}
	return nil
}

func (f *Fetcher) pull(ctx context.Context, remote, dest string) error {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return ErrNotRepository
		}
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	auth, err := f.authFor(remote)
	if err != nil {
		return err
	}

	f.logger.Info("pulling", "remote", remote, "path", dest)
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       auth,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		f.logger.Debug("already up to date", "path", dest)
		return nil
	}
	return err
}

// withRetry runs fn once plus up to cfg.Retries more times while the failure
// looks transient.
func (f *Fetcher) withRetry(ctx context.Context, op, remote, dest string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= f.cfg.Retries; attempt++ {
		if attempt > 0 {
			f.logger.Warn("retrying fetch", "op", op, "remote", remote, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return newFetchError(op, remote, dest, ctx.Err())
			case <-time.After(f.cfg.RetryDelay):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if !transient(ctx, err) {
			break
		}
	}

	f.logger.Error("fetch failed", "op", op, "remote", remote, "path", dest, "error", err)
	return newFetchError(op, remote, dest, err)
}

func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository),
		errors.Is(err, ErrNotRepository),
		errors.Is(err, git.ErrNonFastForwardUpdate):
		return false
	}
	return true
}
