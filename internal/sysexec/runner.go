// Package sysexec runs external tools (package managers, systemctl, boot
// updaters) synchronously with a bounded timeout, capturing exit code and
// output. Everything the engine learns about the host through another binary
// goes through a Runner so tests can substitute a fake.
package sysexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Result captures one finished command invocation.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes external commands. Run returns a non-nil error only when
// the command could not run to completion (binary missing, timeout); a
// non-zero exit is reported through Result.ExitCode with a nil error, since
// several consumers (is-enabled, ownership queries) treat non-zero exits as
// ordinary answers.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)
	LookPath(name string) (string, error)
}

// New returns the Runner backed by os/exec.
func New() Runner {
	return execRunner{}
}

type execRunner struct{}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (execRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res := Result{Command: commandLine(name, args)}

	var stdout, stderr bytes.Buffer
	// #nosec G204 -- name/args come from the engine's fixed command tables, not user input
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running external command", "command", res.Command, "timeout", timeout)
	err := cmd.Run()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if runCtx.Err() == context.DeadlineExceeded {
				return res, fmt.Errorf("command timed out after %s: %s", timeout, res.Command)
			}
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return res, fmt.Errorf("command timed out after %s: %s", timeout, res.Command)
		}
		return res, fmt.Errorf("run %s: %w", res.Command, err)
	}
	return res, nil
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
