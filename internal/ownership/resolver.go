// Package ownership answers whether a distro package owns a file and whether
// that package can be used to restore it. Ownership is advisory: every
// failure mode (missing binary, timeout, non-zero exit) collapses to
// "not owned" rather than an error, because the backup strategy is always a
// valid fallback.
package ownership

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/tweakctl/internal/sysexec"
)

// Manager identifies the host's package database.
type Manager string

const (
	RPM     Manager = "rpm"
	Dpkg    Manager = "dpkg"
	Pacman  Manager = "pacman"
	Unknown Manager = "unknown"
)

// Info is the resolver's answer for one path.
type Info struct {
	Owned      bool    `json:"owned"`
	Package    string  `json:"package,omitempty"`
	Manager    Manager `json:"manager"`
	CanRestore bool    `json:"can_restore"`
}

// Resolver queries the single package database present on the host.
type Resolver struct {
	runner  sysexec.Runner
	timeout time.Duration
	home    string

	// dirExists is swappable so tests can fake the manager state dirs.
	dirExists func(string) bool
}

// NewResolver builds a Resolver. home is the user's home directory; paths
// under it are never package-owned.
func NewResolver(runner sysexec.Runner, timeout time.Duration, home string) *Resolver {
	return &Resolver{
		runner:  runner,
		timeout: timeout,
		home:    home,
		dirExists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && info.IsDir()
		},
	}
}

// WithStateDirCheck overrides the package-database directory probe (tests).
func (r *Resolver) WithStateDirCheck(fn func(string) bool) *Resolver {
	r.dirExists = fn
	return r
}

// DetectManager reports which package manager the host uses. A manager counts
// as present only when both its binary and its state directory exist; real
// systems have at most one, so probe order does not matter.
func (r *Resolver) DetectManager() Manager {
	candidates := []struct {
		manager  Manager
		binary   string
		stateDir string
	}{
		{RPM, "rpm", "/var/lib/rpm"},
		{Dpkg, "dpkg", "/var/lib/dpkg"},
		{Pacman, "pacman", "/var/lib/pacman"},
	}
	for _, c := range candidates {
		if _, err := r.runner.LookPath(c.binary); err != nil {
			continue
		}
		if !r.dirExists(c.stateDir) {
			continue
		}
		return c.manager
	}
	return Unknown
}

// Resolve determines package ownership for path. It never returns an error.
func (r *Resolver) Resolve(ctx context.Context, path string) Info {
	if r.underHome(path) {
		return Info{Manager: Unknown}
	}

	manager := r.DetectManager()
	if manager == Unknown {
		return Info{Manager: Unknown}
	}

	info := Info{Manager: manager}
	var pkg string
	var ok bool
	switch manager {
	case RPM:
		pkg, ok = r.queryRPM(ctx, path)
	case Dpkg:
		pkg, ok = r.queryDpkg(ctx, path)
	case Pacman:
		pkg, ok = r.queryPacman(ctx, path)
	}
	if !ok || pkg == "" {
		return info
	}

	info.Owned = true
	info.Package = pkg
	info.CanRestore = r.reinstallAvailable(manager)
	return info
}

func (r *Resolver) underHome(path string) bool {
	if r.home == "" {
		return false
	}
	p := filepath.Clean(path)
	h := filepath.Clean(r.home)
	return p == h || strings.HasPrefix(p, h+string(filepath.Separator))
}

func (r *Resolver) queryRPM(ctx context.Context, path string) (string, bool) {
	res, err := r.runner.Run(ctx, r.timeout, "rpm", "-qf", "--queryformat", "%{NAME}", path)
	if err != nil || res.ExitCode != 0 {
		r.logMiss("rpm", path, err)
		return "", false
	}
	return strings.TrimSpace(res.Stdout), true
}

func (r *Resolver) queryDpkg(ctx context.Context, path string) (string, bool) {
	res, err := r.runner.Run(ctx, r.timeout, "dpkg", "-S", path)
	if err != nil || res.ExitCode != 0 {
		r.logMiss("dpkg", path, err)
		return "", false
	}
	// "coreutils: /bin/ls" or "libfoo:amd64, libbar: /usr/lib/foo"
	line, _, _ := strings.Cut(res.Stdout, "\n")
	idx := strings.LastIndex(line, ": ")
	if idx < 0 {
		return "", false
	}
	pkg := line[:idx]
	if first, _, found := strings.Cut(pkg, ","); found {
		pkg = first
	}
	// strip architecture qualifier
	if name, _, found := strings.Cut(pkg, ":"); found {
		pkg = name
	}
	return strings.TrimSpace(pkg), true
}

func (r *Resolver) queryPacman(ctx context.Context, path string) (string, bool) {
	res, err := r.runner.Run(ctx, r.timeout, "pacman", "-Qoq", path)
	if err != nil || res.ExitCode != 0 {
		r.logMiss("pacman", path, err)
		return "", false
	}
	return strings.TrimSpace(res.Stdout), true
}

func (r *Resolver) reinstallAvailable(manager Manager) bool {
	switch manager {
	case RPM:
		for _, bin := range []string{"dnf", "yum"} {
			if _, err := r.runner.LookPath(bin); err == nil {
				return true
			}
		}
	case Dpkg:
		_, err := r.runner.LookPath("apt-get")
		return err == nil
	case Pacman:
		_, err := r.runner.LookPath("pacman")
		return err == nil
	}
	return false
}

func (r *Resolver) logMiss(manager, path string, err error) {
	if err != nil {
		slog.Debug("Ownership query failed", "manager", manager, "path", path, "error", err)
	}
}
