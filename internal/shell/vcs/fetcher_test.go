package vcs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Helpers
// =============================================================================

// skipIfNoGit skips tests that clone over the file transport, which runs the
// system's git-upload-pack.
func skipIfNoGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git-upload-pack"); err != nil {
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("git not available:", err)
		}
	}
}

// newOriginRepo creates a repository with one commit containing files.
func newOriginRepo(t *testing.T, files map[string]string) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commitFiles(t, dir, repo, files)
	return dir, repo
}

func commitFiles(t *testing.T, dir string, repo *git.Repository, files map[string]string) {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}

	_, err = wt.Commit("update", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func newTestFetcher() *Fetcher {
	return NewFetcher(Config{}, nil)
}

// =============================================================================
// Fetch Tests
// =============================================================================

func TestFetch_ClonesWhenMissing(t *testing.T) {
	skipIfNoGit(t)
	origin, _ := newOriginRepo(t, map[string]string{"main.go": "package main"})
	dest := filepath.Join(t.TempDir(), "codes", "web_latest")

	require.NoError(t, newTestFetcher().Fetch(context.Background(), origin, dest))

	data, err := os.ReadFile(filepath.Join(dest, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main", string(data))
}

func TestFetch_PullsWhenPresent(t *testing.T) {
	skipIfNoGit(t)
	origin, repo := newOriginRepo(t, map[string]string{"main.go": "package main"})
	dest := filepath.Join(t.TempDir(), "web_latest")
	f := newTestFetcher()

	require.NoError(t, f.Fetch(context.Background(), origin, dest))
	commitFiles(t, origin, repo, map[string]string{"README.md": "hello"})

	require.NoError(t, f.Fetch(context.Background(), origin, dest))
	data, err := os.ReadFile(filepath.Join(dest, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFetch_UpToDateIsSuccess(t *testing.T) {
	skipIfNoGit(t)
	origin, _ := newOriginRepo(t, map[string]string{"main.go": "package main"})
	dest := filepath.Join(t.TempDir(), "web_latest")
	f := newTestFetcher()

	require.NoError(t, f.Fetch(context.Background(), origin, dest))
	assert.NoError(t, f.Fetch(context.Background(), origin, dest))
}

func TestFetch_PullKeepsUntrackedDockerfile(t *testing.T) {
	skipIfNoGit(t)
	origin, repo := newOriginRepo(t, map[string]string{"main.go": "package main"})
	dest := filepath.Join(t.TempDir(), "web_latest")
	f := newTestFetcher()

	require.NoError(t, f.Fetch(context.Background(), origin, dest))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "Dockerfile"), []byte("FROM alpine"), 0644))
	commitFiles(t, origin, repo, map[string]string{"extra.go": "package main"})

	require.NoError(t, f.Fetch(context.Background(), origin, dest))
	data, err := os.ReadFile(filepath.Join(dest, "Dockerfile"))
	require.NoError(t, err)
	assert.Equal(t, "FROM alpine", string(data))
}

func TestFetch_CloneFailureLeavesNoTree(t *testing.T) {
	skipIfNoGit(t)
	dest := filepath.Join(t.TempDir(), "web_latest")

	err := newTestFetcher().Fetch(context.Background(), filepath.Join(t.TempDir(), "missing"), dest)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "clone", fe.Op)
	assert.Equal(t, dest, fe.Path)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetch_NotARepository(t *testing.T) {
	dest := t.TempDir()

	err := newTestFetcher().Fetch(context.Background(), "/somewhere", dest)
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestFetch_RemoteRequired(t *testing.T) {
	err := newTestFetcher().Fetch(context.Background(), " ", t.TempDir())
	assert.ErrorIs(t, err, ErrRemoteRequired)
}

// =============================================================================
// Reclone Tests
// =============================================================================

func TestReclone_DropsOldTree(t *testing.T) {
	skipIfNoGit(t)
	oldOrigin, _ := newOriginRepo(t, map[string]string{"old.txt": "old"})
	newOrigin, _ := newOriginRepo(t, map[string]string{"new.txt": "new"})
	dest := filepath.Join(t.TempDir(), "web_latest")
	f := newTestFetcher()

	require.NoError(t, f.Fetch(context.Background(), oldOrigin, dest))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "Dockerfile"), []byte("FROM old"), 0644))

	require.NoError(t, f.Reclone(context.Background(), newOrigin, dest))

	_, err := os.Stat(filepath.Join(dest, "old.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dest, "Dockerfile"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dest, "new.txt"))
	assert.NoError(t, err)
}

// =============================================================================
// Retry Tests
// =============================================================================

func TestWithRetry_FailFastByDefault(t *testing.T) {
	f := newTestFetcher()
	calls := 0

	err := f.withRetry(context.Background(), "clone", "r", "d", func() error {
		calls++
		return errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesTransient(t *testing.T) {
	f := NewFetcher(Config{Retries: 2, RetryDelay: time.Millisecond}, nil)
	calls := 0

	err := f.withRetry(context.Background(), "pull", "r", "d", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_DoesNotRetryAuth(t *testing.T) {
	f := NewFetcher(Config{Retries: 3, RetryDelay: time.Millisecond}, nil)
	calls := 0

	err := f.withRetry(context.Background(), "clone", "r", "d", func() error {
		calls++
		return transport.ErrAuthenticationRequired
	})
	assert.ErrorIs(t, err, transport.ErrAuthenticationRequired)
	assert.Equal(t, 1, calls)
}

// =============================================================================
// Auth Tests
// =============================================================================

func TestAuthFor(t *testing.T) {
	f := NewFetcher(Config{Token: "secret"}, nil)

	auth, err := f.authFor("https://example.com/acme/web.git")
	require.NoError(t, err)
	basic, ok := auth.(*githttp.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "git", basic.Username)
	assert.Equal(t, "secret", basic.Password)

	auth, err = f.authFor("/local/path")
	require.NoError(t, err)
	assert.Nil(t, auth)

	auth, err = newTestFetcher().authFor("git@example.com:acme/web.git")
	require.NoError(t, err)
	assert.Nil(t, auth)
}

func TestAuthFor_MissingKey(t *testing.T) {
	f := NewFetcher(Config{SSHKeyPath: filepath.Join(t.TempDir(), "id_missing")}, nil)

	_, err := f.authFor("git@example.com:acme/web.git")
	assert.Error(t, err)
}
