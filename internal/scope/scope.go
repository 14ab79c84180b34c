// Package scope carries the execution context the engines operate under:
// which trust domain (user or root) a run targets, the effective privilege,
// and the filesystem roots that hold transaction state. Threading this value
// explicitly keeps deep helpers free of ambient process state and makes the
// restore logic testable against a throwaway tree.
package scope

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Scope names one of the two transaction namespaces.
type Scope string

const (
	User Scope = "user"
	Root Scope = "root"
)

// Parse validates a scope name from CLI input.
func Parse(s string) (Scope, error) {
	switch Scope(s) {
	case User, Root:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown scope %q (want user or root)", s)
	}
}

// Context is the execution context threaded through the engines.
type Context struct {
	Scope      Scope
	EUID       int
	Home       string
	UserRoot   string
	SystemRoot string
}

// New resolves a Context from the host environment. userRoot may be empty, in
// which case it defaults to $XDG_STATE_HOME/tweakctl (or ~/.local/state/tweakctl).
func New(s Scope, userRoot, systemRoot string) (*Context, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	if userRoot == "" {
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			stateHome = filepath.Join(home, ".local", "state")
		}
		userRoot = filepath.Join(stateHome, "tweakctl")
	}
	return &Context{
		Scope:      s,
		EUID:       unix.Geteuid(),
		Home:       home,
		UserRoot:   userRoot,
		SystemRoot: systemRoot,
	}, nil
}

// Privileged reports whether the process holds root.
func (c *Context) Privileged() bool {
	return c.EUID == 0
}

// StateRoot returns the transaction root for the context's own scope.
func (c *Context) StateRoot() string {
	return c.RootFor(c.Scope)
}

// RootFor returns the transaction root for the given scope.
func (c *Context) RootFor(s Scope) string {
	if s == Root {
		return c.SystemRoot
	}
	return c.UserRoot
}

// UnderHome reports whether path resolves under the user's home directory.
func (c *Context) UnderHome(path string) bool {
	if c.Home == "" {
		return false
	}
	p := filepath.Clean(path)
	h := filepath.Clean(c.Home)
	return p == h || strings.HasPrefix(p, h+string(filepath.Separator))
}
