// Package engine interprets a knob's declarative implementation descriptor
// and performs the corresponding mutation. File mutations go through the
// backup store (capture before write); live-system mutations capture their
// pre-state inline as Effect records. Every kind is idempotent: applying the
// same knob twice performs no duplicate mutation and the second capture's
// "before" equals the first apply's "after", so restoring the first
// transaction stays valid.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/tweakctl/internal/backup"
	"git.home.luguber.info/inful/tweakctl/internal/bootcfg"
	tkerrors "git.home.luguber.info/inful/tweakctl/internal/errors"
	"git.home.luguber.info/inful/tweakctl/internal/ledger"
	"git.home.luguber.info/inful/tweakctl/internal/registry"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
	"git.home.luguber.info/inful/tweakctl/internal/sysexec"
	"git.home.luguber.info/inful/tweakctl/internal/systemd"
)

// Outcome reports one knob's mutations. On error the already-performed
// backups and effects are still populated so the caller can record them in
// the manifest: a half-applied knob must stay reversible.
type Outcome struct {
	Applied bool                    `json:"applied"`
	Backups []ledger.BackupMetadata `json:"backups"`
	Effects []ledger.Effect         `json:"effects"`
}

// Engine applies knobs within one execution context.
type Engine struct {
	ctx     *scope.Context
	store   *backup.Store
	units   *systemd.Client
	boot    *bootcfg.Editor
	runner  sysexec.Runner
	timeout time.Duration

	// sysctlDir holds per-knob sysctl drop-ins; overridable for tests.
	sysctlDir string
}

// New builds an Engine. The systemd client must match the context's scope
// (--user for user scope).
func New(ctx *scope.Context, store *backup.Store, units *systemd.Client, boot *bootcfg.Editor, runner sysexec.Runner, timeout time.Duration) *Engine {
	return &Engine{
		ctx:       ctx,
		store:     store,
		units:     units,
		boot:      boot,
		runner:    runner,
		timeout:   timeout,
		sysctlDir: "/etc/sysctl.d",
	}
}

// WithSysctlDir overrides the sysctl drop-in directory (tests).
func (e *Engine) WithSysctlDir(dir string) *Engine {
	e.sysctlDir = dir
	return e
}

// Gate rejects an invocation whose privilege does not match its scope.
// Called once at entry, before any mutation: privilege is all-or-nothing per
// invocation, never discovered mid-batch.
func (e *Engine) Gate() error {
	if e.ctx.Scope == scope.Root && !e.ctx.Privileged() {
		return tkerrors.Privilege("root scope requires elevated privilege")
	}
	return nil
}

// Apply performs one knob's mutation and records what it touched.
func (e *Engine) Apply(cx context.Context, tx *ledger.Transaction, knob *registry.Knob) (Outcome, error) {
	out := Outcome{}

	if !knob.Capabilities.Apply || knob.Impl == nil {
		return out, tkerrors.ValidationError(fmt.Sprintf("knob %s is not applicable", knob.ID))
	}
	if e.ctx.Scope == scope.User && knob.RequiresRoot {
		return out, tkerrors.Privilege(fmt.Sprintf("knob %s requires root scope", knob.ID))
	}

	var err error
	switch knob.Impl.Kind {
	case registry.KindFileMerge:
		err = e.applyFileMerge(cx, tx, knob.Impl, &out)
	case registry.KindFileWrite:
		err = e.applyFileWrite(cx, tx, knob.Impl, &out)
	case registry.KindSysctl:
		err = e.applySysctl(cx, tx, knob, &out)
	case registry.KindSysfsWrite:
		err = e.applySysfsWrite(knob.Impl, &out)
	case registry.KindServiceMask:
		err = e.applyServiceMask(cx, knob.Impl, &out)
	case registry.KindKernelCmdline:
		err = e.applyKernelCmdline(cx, tx, knob.Impl, &out)
	case registry.KindSearchIndexer:
		err = e.applySearchIndexer(cx, knob.Impl, &out)
	default:
		// load-time validation makes this unreachable for registry knobs
		err = tkerrors.ValidationError(fmt.Sprintf("unsupported knob implementation kind %q", knob.Impl.Kind))
	}
	if err != nil {
		return out, fmt.Errorf("apply knob %s: %w", knob.ID, err)
	}

	out.Applied = true
	return out, nil
}

func (e *Engine) applyFileMerge(cx context.Context, tx *ledger.Transaction, im *registry.Impl, out *Outcome) error {
	path := im.Params["path"]
	meta, err := e.store.Capture(cx, tx, path)
	if err != nil {
		return err
	}
	out.Backups = append(out.Backups, meta)

	var content string
	if meta.Existed {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		content = string(data)
	}

	merged, changed := MergeLines(content, im.Lines())
	if !changed {
		return nil
	}
	return writeFile(path, []byte(merged), meta)
}

func (e *Engine) applyFileWrite(cx context.Context, tx *ledger.Transaction, im *registry.Impl, out *Outcome) error {
	path := im.Params["path"]
	meta, err := e.store.Capture(cx, tx, path)
	if err != nil {
		return err
	}
	out.Backups = append(out.Backups, meta)

	content := im.Params["content"]
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return writeFile(path, []byte(content), meta)
}

func (e *Engine) applySysctl(cx context.Context, tx *ledger.Transaction, knob *registry.Knob, out *Outcome) error {
	key := knob.Impl.Params["key"]
	value := knob.Impl.Params["value"]
	path := filepath.Join(e.sysctlDir, fmt.Sprintf("90-tweakctl-%s.conf", knob.ID))

	meta, err := e.store.Capture(cx, tx, path)
	if err != nil {
		return err
	}
	out.Backups = append(out.Backups, meta)

	content := fmt.Sprintf("%s = %s\n", key, value)
	if err := writeFile(path, []byte(content), meta); err != nil {
		return err
	}

	// Load the value now; the drop-in alone only takes effect on reboot.
	// Failure here is degradation, not a failed apply: the persisted file is
	// the durable mutation and it is already captured.
	if res, err := e.runner.Run(cx, e.timeout, "sysctl", "-w", fmt.Sprintf("%s=%s", key, value)); err != nil || res.ExitCode != 0 {
		slog.Warn("Could not load sysctl value immediately", "key", key, "error", err)
	}
	return nil
}

func (e *Engine) applySysfsWrite(im *registry.Impl, out *Outcome) error {
	path := im.Params["path"]
	value := im.Params["value"]

	before, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sysfs node %s: %w", path, err)
	}

	effect := ledger.Effect{
		Kind:   ledger.EffectSysfsWrite,
		Path:   path,
		Before: strings.TrimSpace(string(before)),
		After:  value,
	}
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write sysfs node %s: %w", path, err)
	}
	out.Effects = append(out.Effects, effect)
	return nil
}

func (e *Engine) applyServiceMask(cx context.Context, im *registry.Impl, out *Outcome) error {
	units := im.UnitList()

	// Capture all pre-states before the first mutation so the effect record
	// is complete even if a later mask fails.
	states := make([]ledger.UnitState, 0, len(units))
	for _, unit := range units {
		state, err := e.units.UnitState(cx, unit)
		if err != nil {
			return err
		}
		states = append(states, state)
	}

	var masked []ledger.UnitState
	for i, unit := range units {
		if err := e.units.Mask(cx, unit); err != nil {
			if len(masked) > 0 {
				out.Effects = append(out.Effects, ledger.Effect{Kind: ledger.EffectServiceMask, Units: masked})
			}
			return err
		}
		masked = append(masked, states[i])
	}

	out.Effects = append(out.Effects, ledger.Effect{Kind: ledger.EffectServiceMask, Units: masked})
	return nil
}

func (e *Engine) applyKernelCmdline(cx context.Context, tx *ledger.Transaction, im *registry.Impl, out *Outcome) error {
	param := im.Params["param"]

	style, file, err := e.boot.Detect()
	if err != nil {
		return err
	}

	meta, err := e.store.Capture(cx, tx, file)
	if err != nil {
		return err
	}
	out.Backups = append(out.Backups, meta)

	added, err := e.boot.AddParam(style, file, param)
	if err != nil {
		return err
	}

	effect := ledger.Effect{
		Kind:  ledger.EffectKernelCmdline,
		Param: param,
		File:  file,
		Style: string(style),
		Added: added,
	}
	if added {
		if err := e.boot.Regenerate(cx, style); err != nil {
			out.Effects = append(out.Effects, effect)
			return err
		}
	}
	out.Effects = append(out.Effects, effect)
	return nil
}

func (e *Engine) applySearchIndexer(cx context.Context, im *registry.Impl, out *Outcome) error {
	tool := im.Param("tool", "balooctl")

	status, err := e.runner.Run(cx, e.timeout, tool, "status")
	if err != nil {
		return tkerrors.Wrap(err, tkerrors.CategoryExternal, tkerrors.SeverityError,
			fmt.Sprintf("query %s status", tool))
	}
	wasEnabled := status.ExitCode == 0

	res, err := e.runner.Run(cx, e.timeout, tool, "disable")
	if err != nil {
		return tkerrors.Wrap(err, tkerrors.CategoryExternal, tkerrors.SeverityError,
			fmt.Sprintf("disable %s", tool))
	}
	if res.ExitCode != 0 {
		return tkerrors.External(fmt.Errorf("exit status %d", res.ExitCode), res.Command, res.ExitCode, res.Stderr)
	}

	out.Effects = append(out.Effects, ledger.Effect{
		Kind:       ledger.EffectSearchIndexer,
		Tool:       tool,
		WasEnabled: wasEnabled,
	})
	return nil
}

// writeFile writes the new content, creating parents for files we create and
// preserving the captured mode for files that pre-existed.
func writeFile(path string, data []byte, meta ledger.BackupMetadata) error {
	mode := os.FileMode(0o644)
	if meta.Existed {
		mode = os.FileMode(meta.Mode)
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
