// Package compose drives the compose CLI against an application's manifest
// directory.
package compose

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	corecompose "github.com/artpar/shipyard/internal/core/compose"
	"github.com/artpar/shipyard/internal/core/domain"
)

// DefaultBinary is the compose CLI used when none is configured.
const DefaultBinary = "docker compose"

// Config holds compose CLI settings.
type Config struct {
	// Binary is the compose command, e.g. "docker compose" or "docker-compose".
	Binary string
	// ProjectPrefix is prepended to the application name to form the
	// compose project name.
	ProjectPrefix string
}

// CommandRunner executes name with args in dir and returns its output.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) (stdout, stderr bytes.Buffer, exitCode int, err error)

// Runner brings application stacks down and up.
type Runner struct {
	name   string
	prefix []string
	cfg    Config
	run    CommandRunner
	logger *slog.Logger
}

// NewRunner creates a Runner that shells out to the configured binary.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	binary := strings.Fields(cfg.Binary)
	if len(binary) == 0 {
		binary = strings.Fields(DefaultBinary)
	}
	return &Runner{
		name:   binary[0],
		prefix: binary[1:],
		cfg:    cfg,
		run:    runCommand,
		logger: logger.With("component", "compose"),
	}
}

// WithCommandRunner replaces how commands are executed.
func (r *Runner) WithCommandRunner(run CommandRunner) *Runner {
	r.run = run
	return r
}

// Down stops and removes the stack described by dir's manifest. A missing
// directory or manifest means nothing can be running and is success.
func (r *Runner) Down(ctx context.Context, dir string) error {
	manifest := filepath.Join(dir, corecompose.ManifestFile)
	if _, err := os.Stat(manifest); err != nil {
		if os.IsNotExist(err) {
			r.logger.Info("no manifest, nothing to bring down", "dir", dir)
			return nil
		}
		return err
	}
	return r.exec(ctx, dir, "down")
}

// UpAll starts every service of the stack described by dir's manifest.
func (r *Runner) UpAll(ctx context.Context, dir string) error {
	return r.exec(ctx, dir, "up", "-d")
}

// ProjectName returns the compose project name for an application directory.
func (r *Runner) ProjectName(dir string) string {
	return domain.ProjectSlug(r.cfg.ProjectPrefix + filepath.Base(dir))
}

func (r *Runner) exec(ctx context.Context, dir string, command ...string) error {
	args := append([]string{}, r.prefix...)
	args = append(args,
		"--project-directory", dir,
		"-f", filepath.Join(dir, corecompose.ManifestFile),
		"-p", r.ProjectName(dir),
	)
	args = append(args, command...)

	r.logger.Info("running compose", "dir", dir, "command", strings.Join(command, " "))
	stdout, stderr, code, err := r.run(ctx, dir, r.name, args...)
	if err != nil {
		r.logger.Error("compose failed",
			"dir", dir,
			"command", strings.Join(command, " "),
			"exit_code", code,
			"stdout", stdout.String(),
			"stderr", stderr.String(),
		)
		return &CommandError{
			Command:  r.name,
			Args:     args,
			ExitCode: code,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	r.logger.Debug("compose finished", "dir", dir, "stdout", stdout.String(), "stderr", stderr.String())
	return nil
}

func runCommand(ctx context.Context, dir, name string, args ...string) (bytes.Buffer, bytes.Buffer, int, error) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	code := 0
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if err == nil && code != 0 {
		err = errors.New("process returned non-zero exit code")
	}
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	return stdout, stderr, code, err
}
