// Package restore reverses recorded transactions: file mutations through the
// frozen reset strategy captured at backup time, effects through
// kind-specific undo logic. Failures are collected per item; one broken
// restore never aborts the remaining items.
package restore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/tweakctl/internal/backup"
	"git.home.luguber.info/inful/tweakctl/internal/bootcfg"
	tkerrors "git.home.luguber.info/inful/tweakctl/internal/errors"
	"git.home.luguber.info/inful/tweakctl/internal/ledger"
	"git.home.luguber.info/inful/tweakctl/internal/ownership"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
	"git.home.luguber.info/inful/tweakctl/internal/sysexec"
	"git.home.luguber.info/inful/tweakctl/internal/systemd"
)

// Item reports one restored target or one per-item failure.
type Item struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Error  string `json:"error,omitempty"`
}

// Result summarizes one transaction's restore.
type Result struct {
	TxID     string `json:"txid"`
	Restored []Item `json:"restored"`
	Errors   []Item `json:"errors"`
}

// Engine reverses transactions.
type Engine struct {
	ctx              *scope.Context
	store            *backup.Store
	boot             *bootcfg.Editor
	runner           sysexec.Runner
	resolver         *ownership.Resolver
	unitTimeout      time.Duration
	reinstallTimeout time.Duration
}

// New builds a restore Engine.
func New(ctx *scope.Context, store *backup.Store, boot *bootcfg.Editor, runner sysexec.Runner, resolver *ownership.Resolver, unitTimeout, reinstallTimeout time.Duration) *Engine {
	return &Engine{
		ctx:              ctx,
		store:            store,
		boot:             boot,
		runner:           runner,
		resolver:         resolver,
		unitTimeout:      unitTimeout,
		reinstallTimeout: reinstallTimeout,
	}
}

func (e *Engine) unitsFor(s scope.Scope) *systemd.Client {
	return systemd.NewClient(e.runner, e.unitTimeout, s == scope.User)
}

// RestoreTransaction reverses every recorded mutation of one transaction.
// A root-scope transaction is rejected before any mutation when the process
// is unprivileged.
func (e *Engine) RestoreTransaction(cx context.Context, l *ledger.Ledger, txid string) (*Result, error) {
	tx, err := l.Get(txid)
	if err != nil {
		return nil, err
	}
	return e.restore(cx, tx)
}

func (e *Engine) restore(cx context.Context, tx *ledger.Transaction) (*Result, error) {
	if tx.Scope == scope.Root && !e.ctx.Privileged() {
		return nil, tkerrors.Privilege(fmt.Sprintf("restoring root-scope transaction %s requires elevated privilege", tx.ID))
	}

	m, err := tx.Manifest()
	if err != nil {
		return nil, err
	}

	result := &Result{TxID: tx.ID}
	for _, meta := range m.Backups {
		item := Item{Target: meta.Path, Kind: "file"}
		if err := e.restoreFile(cx, tx, meta); err != nil {
			item.Error = err.Error()
			result.Errors = append(result.Errors, item)
			continue
		}
		result.Restored = append(result.Restored, item)
	}
	for _, effect := range m.Effects {
		if effect.Informational() {
			continue
		}
		item := Item{Target: effect.Target(), Kind: string(effect.Kind)}
		if err := e.restoreEffect(cx, tx.Scope, effect); err != nil {
			item.Error = err.Error()
			result.Errors = append(result.Errors, item)
			continue
		}
		result.Restored = append(result.Restored, item)
	}
	return result, nil
}

// restoreFile dispatches on the strategy frozen at capture time. Re-deriving
// the strategy here would be wrong: the live ownership state may have changed
// since the backup was taken.
func (e *Engine) restoreFile(cx context.Context, tx *ledger.Transaction, meta ledger.BackupMetadata) error {
	switch meta.Strategy {
	case ledger.StrategyDelete, ledger.StrategyBackup:
		return e.store.Restore(tx, meta)
	case ledger.StrategyPackage:
		return e.reinstall(cx, tx, meta)
	case ledger.StrategyManual:
		return tkerrors.New(tkerrors.CategoryState, tkerrors.SeverityWarning,
			fmt.Sprintf("%s requires manual restoration", meta.Path))
	default:
		return tkerrors.New(tkerrors.CategoryState, tkerrors.SeverityError,
			fmt.Sprintf("unknown reset strategy %q for %s", meta.Strategy, meta.Path))
	}
}

func (e *Engine) reinstall(cx context.Context, tx *ledger.Transaction, meta ledger.BackupMetadata) error {
	var argv []string
	switch e.resolver.DetectManager() {
	case ownership.RPM:
		bin := "dnf"
		if _, err := e.runner.LookPath(bin); err != nil {
			bin = "yum"
		}
		argv = []string{bin, "reinstall", "-y", meta.Package}
	case ownership.Dpkg:
		argv = []string{"apt-get", "install", "--reinstall", "-y", meta.Package}
	case ownership.Pacman:
		argv = []string{"pacman", "-S", "--noconfirm", meta.Package}
	default:
		// The manager vanished since capture; fall back to the captured blob.
		slog.Warn("Package manager unavailable, restoring from backup blob", "path", meta.Path, "package", meta.Package)
		return e.store.Restore(tx, meta)
	}

	res, err := e.runner.Run(cx, e.reinstallTimeout, argv[0], argv[1:]...)
	if err != nil {
		return tkerrors.Wrap(err, tkerrors.CategoryExternal, tkerrors.SeverityError,
			fmt.Sprintf("reinstall package %s", meta.Package))
	}
	if res.ExitCode != 0 {
		return tkerrors.External(fmt.Errorf("exit status %d", res.ExitCode), res.Command, res.ExitCode, res.Stderr)
	}
	return nil
}

func (e *Engine) restoreEffect(cx context.Context, s scope.Scope, effect ledger.Effect) error {
	switch effect.Kind {
	case ledger.EffectServiceMask:
		units := e.unitsFor(s)
		for _, u := range effect.Units {
			// A unit already disabled or masked before the transaction stays
			// that way: only the recorded pre-state comes back.
			if !u.WasEnabled && !u.WasActive {
				continue
			}
			if err := units.Unmask(cx, u.Name); err != nil {
				return err
			}
			if u.WasEnabled {
				if err := units.Enable(cx, u.Name); err != nil {
					return err
				}
			}
			if u.WasActive {
				if err := units.Restart(cx, u.Name); err != nil {
					return err
				}
			}
		}
		return nil
	case ledger.EffectKernelCmdline:
		if !effect.Added {
			return nil
		}
		if err := e.boot.RemoveParam(bootcfg.Style(effect.Style), effect.File, effect.Param); err != nil {
			return err
		}
		return e.boot.Regenerate(cx, bootcfg.Style(effect.Style))
	case ledger.EffectSysfsWrite:
		if err := os.WriteFile(effect.Path, []byte(effect.Before), 0o644); err != nil {
			return fmt.Errorf("restore sysfs node %s: %w", effect.Path, err)
		}
		return nil
	case ledger.EffectSearchIndexer:
		if !effect.WasEnabled {
			return nil
		}
		res, err := e.runner.Run(cx, e.unitTimeout, effect.Tool, "enable")
		if err != nil {
			return tkerrors.Wrap(err, tkerrors.CategoryExternal, tkerrors.SeverityError,
				fmt.Sprintf("re-enable %s", effect.Tool))
		}
		if res.ExitCode != 0 {
			return tkerrors.External(fmt.Errorf("exit status %d", res.ExitCode), res.Command, res.ExitCode, res.Stderr)
		}
		return nil
	case ledger.EffectServiceRestart:
		return nil
	default:
		return tkerrors.New(tkerrors.CategoryState, tkerrors.SeverityError,
			fmt.Sprintf("unknown effect kind %q", effect.Kind))
	}
}

// RestoreKnob reverses the OLDEST transaction that applied the given knob id.
// Repeated re-application of a knob records intermediate states in newer
// transactions; only the oldest one holds the true original pre-state.
func (e *Engine) RestoreKnob(cx context.Context, l *ledger.Ledger, knobID string) (*Result, error) {
	txs, err := l.List(scope.User, scope.Root)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		m, err := tx.Manifest()
		if err != nil {
			slog.Warn("Skipping unreadable manifest", "txid", tx.ID, "error", err)
			continue
		}
		for _, id := range m.Applied {
			if id == knobID {
				return e.restore(cx, tx)
			}
		}
	}
	return nil, tkerrors.NotFound("transaction applying knob", knobID)
}

// ResetDefaults restores every transaction of the requested scopes, newest
// first, and summarizes per-transaction results. Every transaction is
// attempted even when earlier ones fail.
func (e *Engine) ResetDefaults(cx context.Context, l *ledger.Ledger, scopes []scope.Scope) ([]*Result, error) {
	txs, err := l.List(scopes...)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		res, err := e.restore(cx, tx)
		if err != nil {
			res = &Result{TxID: tx.ID, Errors: []Item{{Target: tx.ID, Kind: "transaction", Error: err.Error()}}}
		}
		results = append(results, res)
	}
	return results, nil
}
