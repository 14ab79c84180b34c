// Package ledger persists the transactional record of every mutation the
// engine performs. A transaction is a directory per run holding a write-once
// manifest.json plus the backup blobs captured before file mutations. There
// is deliberately no mutable "current status" store: current status is always
// recomputed by folding manifests, which keeps one source of truth.
package ledger

import (
	"fmt"
	"sort"
	"strings"
)

// SchemaVersion is the persisted manifest/registry/output schema.
const SchemaVersion = 1

// Strategy is the frozen decision, made at capture time, of how a file
// mutation will be reversed. Restore never re-derives it: the live ownership
// state may have changed since capture (package uninstalled, file adopted).
type Strategy string

const (
	StrategyDelete  Strategy = "delete"
	StrategyBackup  Strategy = "backup"
	StrategyPackage Strategy = "package"
	StrategyManual  Strategy = "manual"
)

// BackupMetadata records one file mutated in a transaction.
type BackupMetadata struct {
	Path      string   `json:"path"`
	Existed   bool     `json:"existed"`
	WeCreated bool     `json:"we_created"`
	Mode      uint32   `json:"mode,omitempty"`
	UID       int      `json:"uid,omitempty"`
	GID       int      `json:"gid,omitempty"`
	Key       string   `json:"key"`
	Strategy  Strategy `json:"strategy"`
	Package   string   `json:"package,omitempty"`
}

// Validate checks the metadata invariants.
func (m BackupMetadata) Validate() error {
	if m.Path == "" || !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("backup metadata: path must be absolute, got %q", m.Path)
	}
	if m.WeCreated && m.Strategy != StrategyDelete {
		return fmt.Errorf("backup metadata for %s: we_created requires delete strategy, got %s", m.Path, m.Strategy)
	}
	if m.Strategy == StrategyPackage && m.Package == "" {
		return fmt.Errorf("backup metadata for %s: package strategy requires a package name", m.Path)
	}
	return nil
}

// EffectKind tags a recorded non-file mutation. The set is closed: dispatch
// over kinds is exhaustive and an unknown kind fails loudly.
type EffectKind string

const (
	EffectServiceMask   EffectKind = "service_mask"
	EffectKernelCmdline EffectKind = "kernel_cmdline"
	EffectSysfsWrite    EffectKind = "sysfs_write"
	EffectSearchIndexer EffectKind = "search_indexer"
	// EffectServiceRestart is informational: a restart that followed a config
	// write. It is not reversible and never appears in pending views.
	EffectServiceRestart EffectKind = "service_restart"
)

// UnitState captures a systemd unit's pre-mutation state so restore can avoid
// re-enabling units that were already disabled before the transaction.
type UnitState struct {
	Name       string `json:"name"`
	WasEnabled bool   `json:"was_enabled"`
	WasActive  bool   `json:"was_active"`
}

// Effect is one recorded non-file mutation. The payload fields are
// kind-specific; unrelated fields stay at their zero value and are omitted
// from the persisted JSON.
type Effect struct {
	Kind EffectKind `json:"kind"`

	// service_mask
	Units []UnitState `json:"units,omitempty"`

	// kernel_cmdline
	Param string `json:"param,omitempty"`
	File  string `json:"file,omitempty"`
	Style string `json:"style,omitempty"`
	Added bool   `json:"added,omitempty"`

	// sysfs_write
	Path   string `json:"path,omitempty"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`

	// search_indexer
	Tool       string `json:"tool,omitempty"`
	WasEnabled bool   `json:"was_enabled,omitempty"`

	// service_restart
	Unit string `json:"unit,omitempty"`
}

// Target returns the identity used to deduplicate effects across
// transactions. Two effects with equal (Kind, Target) describe the same live
// system toggle.
func (e Effect) Target() string {
	switch e.Kind {
	case EffectServiceMask:
		names := make([]string, len(e.Units))
		for i, u := range e.Units {
			names[i] = u.Name
		}
		// Identity must not depend on the order units were listed in.
		sort.Strings(names)
		return strings.Join(names, ",")
	case EffectKernelCmdline:
		return e.Param
	case EffectSysfsWrite:
		return e.Path
	case EffectSearchIndexer:
		return e.Tool
	case EffectServiceRestart:
		return e.Unit
	default:
		return ""
	}
}

// Informational reports whether the effect is a non-actionable audit record.
func (e Effect) Informational() bool {
	return e.Kind == EffectServiceRestart
}

// Manifest is the write-once record persisted per transaction.
type Manifest struct {
	Schema  int              `json:"schema"`
	TxID    string           `json:"txid"`
	Applied []string         `json:"applied"`
	Backups []BackupMetadata `json:"backups"`
	Effects []Effect         `json:"effects"`
}

// NewManifest returns an empty manifest for the given transaction id.
func NewManifest(txid string) *Manifest {
	return &Manifest{
		Schema:  SchemaVersion,
		TxID:    txid,
		Applied: []string{},
		Backups: []BackupMetadata{},
		Effects: []Effect{},
	}
}
