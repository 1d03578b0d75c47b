// Package jj wraps the Jujutsu CLI and the colocated Git repository it
// manages. Change-level operations (describe, abandon, rebase) shell out
// to jj; Git-object-level reads and writes go through go-git.
package jj

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"revstack.dev/revstack/internal/errors"
)

// DefaultCommandTimeout bounds every external command invocation.
const DefaultCommandTimeout = 5 * time.Minute

// CommandRunner executes jj and git commands in a working directory.
type CommandRunner struct {
	workingDir string
}

// NewCommandRunner creates a runner rooted at workingDir.
func NewCommandRunner(workingDir string) *CommandRunner {
	return &CommandRunner{workingDir: workingDir}
}

// Run executes a jj command and returns its trimmed stdout.
func (r *CommandRunner) Run(ctx context.Context, args ...string) (string, error) {
	return r.run(ctx, "jj", true, args...)
}

// RunRaw executes a jj command and returns stdout without trimming.
func (r *CommandRunner) RunRaw(ctx context.Context, args ...string) (string, error) {
	return r.run(ctx, "jj", false, args...)
}

// RunGit executes a git command in the same repository.
func (r *CommandRunner) RunGit(ctx context.Context, args ...string) (string, error) {
	return r.run(ctx, "git", true, args...)
}

func (r *CommandRunner) run(ctx context.Context, name string, trim bool, args ...string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCommandTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if r.workingDir != "" {
		cmd.Dir = r.workingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewCommandError(name, args, stdout.String(), stderr.String(), ctx.Err())
		}
		return "", errors.NewCommandError(name, args, stdout.String(), stderr.String(), err)
	}
	if trim {
		return strings.TrimSpace(stdout.String()), nil
	}
	return stdout.String(), nil
}
