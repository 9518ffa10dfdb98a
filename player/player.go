// Package player drives the external interactive form player as a
// black-box process: spawn with a time budget, feed the session script
// on stdin, capture stdout/stderr, and classify timeout and
// launch-failure conditions. Retries are an orchestrator policy, never
// applied here.
package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Command describes how to invoke the player executable.
type Command struct {
	// Program is the executable, e.g. "java".
	Program string
	// Args precede the player subcommand, e.g. ["-jar", ".cc/commcare-cli.jar"].
	Args []string
}

// JarCommand builds the invocation for a commcare-cli jar.
func JarCommand(javaPath, jarPath string) Command {
	return Command{Program: javaPath, Args: []string{"-jar", jarPath}}
}

// Result is the captured output of one player session.
type Result struct {
	// Stdout is the captured standard output as text.
	Stdout string
	// Stderr is the captured standard error as text.
	Stderr string
	// ExitCode is the process exit code.
	ExitCode int
}

// TimeoutError reports that the player exceeded its time budget.
// The process has already been killed when this is returned; the
// condition is reported, not fatal, and recoverable at the
// orchestrator level.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("player timed out after %s", e.Timeout)
}

// NotFoundError reports that the player executable could not be located
// or launched, typically because the backing jar has not been built yet.
type NotFoundError struct {
	Program string
	Err     error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("player executable %q not found: %v", e.Program, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Runner drives sessions against a fixed player command.
type Runner struct {
	cmd Command
}

// NewRunner creates a runner for the given player command.
func NewRunner(cmd Command) *Runner {
	return &Runner{cmd: cmd}
}

// Play runs `<player> play <ccz> -r <restore>`, feeding script on stdin.
// An empty restorePath falls back to the demo-user restore bundled in
// the app (-d). timeout of zero means no budget beyond ctx.
func (r *Runner) Play(ctx context.Context, cczPath, restorePath, script string, timeout time.Duration) (*Result, error) {
	args := []string{"play", cczPath}
	if restorePath != "" {
		args = append(args, "-r", restorePath)
	} else {
		args = append(args, "-d")
	}
	return r.run(ctx, args, script, timeout)
}

// Validate runs the player's validate subcommand against an app package.
func (r *Runner) Validate(ctx context.Context, appPath string, timeout time.Duration) (*Result, error) {
	return r.run(ctx, []string{"validate", appPath}, "", timeout)
}

// run spawns the player, writes stdin fully and closes it (the player
// reads until EOF or session completion), and waits for exit within the
// time budget. A non-zero exit code is a Result, not an error.
func (r *Runner) run(ctx context.Context, subArgs []string, stdin string, timeout time.Duration) (*Result, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := append(append([]string(nil), r.cmd.Args...), subArgs...)
	cmd := exec.CommandContext(runCtx, r.cmd.Program, args...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return result, nil
	}

	// CommandContext has already killed the process on context expiry,
	// so a deadline here means a clean, zombie-free timeout.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, &TimeoutError{Timeout: timeout}
	}
	if errors.Is(runCtx.Err(), context.Canceled) {
		return nil, fmt.Errorf("player session canceled: %w", context.Canceled)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.ExitCode = status.ExitStatus()
		} else {
			result.ExitCode = -1
		}
		return result, nil
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Program: r.cmd.Program, Err: err}
	}

	return nil, fmt.Errorf("failed to start player: %w", err)
}
