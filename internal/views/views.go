// Package views folds the transaction log into derived reports. There is no
// mutable current-state store: "what has ever been touched" and "what is still
// pending" are always recomputed from the manifests.
//
// The two deduplication directions differ on purpose. Files keep the NEWEST
// record per path, because the newest transaction's blob is the one a restore
// of recent work needs. Effects keep the OLDEST record per (kind, target),
// because only the oldest transaction saw the true pre-change baseline; a
// newer record's before-value is an intermediate state introduced by
// re-application.
package views

import (
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/tweakctl/internal/ledger"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

// FileChange is one deduplicated file mutation in a view.
type FileChange struct {
	TxID   string                `json:"txid"`
	Scope  scope.Scope           `json:"scope"`
	Backup ledger.BackupMetadata `json:"backup"`
}

// EffectChange is one deduplicated non-file mutation in a view.
type EffectChange struct {
	TxID   string        `json:"txid"`
	Scope  scope.Scope   `json:"scope"`
	Effect ledger.Effect `json:"effect"`
}

// Changes is the result of folding all transactions of both scopes.
type Changes struct {
	Files   []FileChange   `json:"files"`
	Effects []EffectChange `json:"effects"`
}

func effectIdentity(e ledger.Effect) string {
	return string(e.Kind) + "\x00" + e.Target()
}

// fold walks every transaction of both scopes newest first. Files are
// first-seen-wins under that order; effects overwrite their slot on every
// revisit, so the last writer is the oldest transaction.
func fold(l *ledger.Ledger) (*Changes, map[string]*ledger.Transaction, error) {
	txs, err := l.List(scope.User, scope.Root)
	if err != nil {
		return nil, nil, err
	}

	changes := &Changes{Files: []FileChange{}, Effects: []EffectChange{}}
	fileOwner := make(map[string]*ledger.Transaction)
	seenFile := make(map[string]bool)
	effectSlot := make(map[string]int)

	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		m, err := tx.Manifest()
		if err != nil {
			slog.Warn("Skipping unreadable manifest", "txid", tx.ID, "error", err)
			continue
		}
		for _, b := range m.Backups {
			if seenFile[b.Path] {
				continue
			}
			seenFile[b.Path] = true
			fileOwner[b.Path] = tx
			changes.Files = append(changes.Files, FileChange{TxID: tx.ID, Scope: tx.Scope, Backup: b})
		}
		for _, e := range m.Effects {
			id := effectIdentity(e)
			if slot, ok := effectSlot[id]; ok {
				changes.Effects[slot] = EffectChange{TxID: tx.ID, Scope: tx.Scope, Effect: e}
				continue
			}
			effectSlot[id] = len(changes.Effects)
			changes.Effects = append(changes.Effects, EffectChange{TxID: tx.ID, Scope: tx.Scope, Effect: e})
		}
	}
	return changes, fileOwner, nil
}

// Audit returns every change ever recorded, deduplicated by target identity.
func Audit(l *ledger.Ledger) (*Changes, error) {
	changes, _, err := fold(l)
	return changes, err
}

// Pending returns the subset of the audit view that is still live and
// actionable. A created file is pending only while it exists; a modified file
// only while both the live file and the recording transaction's backup blob
// exist; informational effects are never pending.
func Pending(l *ledger.Ledger) (*Changes, error) {
	all, fileOwner, err := fold(l)
	if err != nil {
		return nil, err
	}

	pending := &Changes{Files: []FileChange{}, Effects: []EffectChange{}}
	for _, fc := range all.Files {
		if !fileLive(fc, fileOwner[fc.Backup.Path]) {
			continue
		}
		pending.Files = append(pending.Files, fc)
	}
	for _, ec := range all.Effects {
		if ec.Effect.Informational() {
			continue
		}
		pending.Effects = append(pending.Effects, ec)
	}
	return pending, nil
}

func fileLive(fc FileChange, tx *ledger.Transaction) bool {
	if _, err := os.Stat(fc.Backup.Path); err != nil {
		return false
	}
	if fc.Backup.WeCreated {
		return true
	}
	// A modified file is only actionable while its blob survives.
	blob := filepath.Join(tx.BackupsDir(), fc.Backup.Key)
	_, err := os.Stat(blob)
	return err == nil
}
