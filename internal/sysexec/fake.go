package sysexec

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake is a scripted Runner for tests. Responses are keyed by the full
// command line ("systemctl is-enabled tracker-miner-fs-3.service"); commands
// without a scripted response fall back to Fallback, or fail when
// StrictCommands is set.
type Fake struct {
	mu sync.Mutex

	Responses      map[string]Result
	Errors         map[string]error
	Fallback       Result
	StrictCommands bool

	// Binaries maps names LookPath should resolve to fake paths.
	Binaries map[string]string

	Calls []string
}

// NewFake returns an empty Fake that answers every command with exit 0.
func NewFake() *Fake {
	return &Fake{
		Responses: make(map[string]Result),
		Errors:    make(map[string]error),
		Binaries:  make(map[string]string),
	}
}

// Respond scripts a response for one exact command line.
func (f *Fake) Respond(command string, exitCode int, stdout string) *Fake {
	f.Responses[command] = Result{Command: command, ExitCode: exitCode, Stdout: stdout}
	return f
}

// Fail scripts a run failure (timeout, missing binary) for one command line.
func (f *Fake) Fail(command string, err error) *Fake {
	f.Errors[command] = err
	return f
}

func (f *Fake) LookPath(name string) (string, error) {
	if path, ok := f.Binaries[name]; ok {
		return path, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
}

func (f *Fake) Run(_ context.Context, _ time.Duration, name string, args ...string) (Result, error) {
	line := commandLine(name, args)

	f.mu.Lock()
	f.Calls = append(f.Calls, line)
	f.mu.Unlock()

	if err, ok := f.Errors[line]; ok {
		return Result{Command: line}, err
	}
	if res, ok := f.Responses[line]; ok {
		return res, nil
	}
	if f.StrictCommands {
		return Result{Command: line}, fmt.Errorf("unscripted command: %s", line)
	}
	res := f.Fallback
	res.Command = line
	return res, nil
}

// Ran reports whether a command line was executed.
func (f *Fake) Ran(command string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if c == command {
			return true
		}
	}
	return false
}
