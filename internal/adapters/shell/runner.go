// Package shell runs external commands (queue clients, pipeline stages) behind a small interface.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env is appended to the current environment.
	Env []string
	// Stdout, when set, receives the process output instead of it being captured.
	Stdout io.Writer
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands.
type Runner interface {
	// Run executes cmd and returns its captured stdout.
	// A non-zero exit is reported as a *CommandError carrying the exit code and stderr.
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// CommandError reports a command that exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	if c.Name == "" {
		return nil, errors.New("command name is required")
	}

	// #nosec G204 -- command names come from operator configuration, not end-user input
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), &CommandError{
				Command:  c.String(),
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}
		return stdout.Bytes(), fmt.Errorf("execute %s: %w", c.Name, err)
	}
	return stdout.Bytes(), nil
}

// TimeoutRunner bounds every command run through Next.
type TimeoutRunner struct {
	Next    Runner
	Timeout time.Duration
}

// WithTimeout wraps next so each command is killed after d. A non-positive d returns next unchanged.
//
//nolint:ireturn // callers only need the Runner behaviour.
func WithTimeout(next Runner, d time.Duration) Runner {
	if d <= 0 {
		return next
	}
	return &TimeoutRunner{Next: next, Timeout: d}
}

// Run implements Runner.
func (r *TimeoutRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	out, err := r.Next.Run(ctx, c)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%s: timed out after %s: %w", c.String(), r.Timeout, context.DeadlineExceeded)
	}
	return out, err
}
