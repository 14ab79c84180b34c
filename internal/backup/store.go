// Package backup captures content+permission snapshots of files before the
// engine mutates them, and restores them from a transaction's backup area.
// Capture must run before any mutation of the target path.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	tkerrors "git.home.luguber.info/inful/tweakctl/internal/errors"
	"git.home.luguber.info/inful/tweakctl/internal/ledger"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

// Store reads and writes backup blobs under a transaction's backups directory.
type Store struct {
	ctx      *scope.Context
	selector *Selector

	mu       sync.Mutex
	captured map[string]ledger.BackupMetadata
}

// NewStore builds a Store using the given strategy selector.
func NewStore(ctx *scope.Context, selector *Selector) *Store {
	return &Store{ctx: ctx, selector: selector, captured: make(map[string]ledger.BackupMetadata)}
}

// Capture snapshots path into the transaction before mutation. A missing
// path records existed=false/we_created=true with the delete strategy and no
// blob; an existing path is copied byte-for-byte together with its mode,
// owner and group.
//
// Within one transaction the first capture of a path wins: a later knob
// touching the same file gets the recorded metadata back instead of
// re-snapshotting, which would clobber the pre-state blob with the earlier
// knob's output.
func (s *Store) Capture(cx context.Context, tx *ledger.Transaction, path string) (ledger.BackupMetadata, error) {
	memoKey := tx.ID + "\x00" + path
	s.mu.Lock()
	if meta, ok := s.captured[memoKey]; ok {
		s.mu.Unlock()
		return meta, nil
	}
	s.mu.Unlock()

	meta := ledger.BackupMetadata{
		Path: path,
		Key:  EncodeKey(path),
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		meta.Existed = false
		meta.WeCreated = true
		meta.Strategy = ledger.StrategyDelete
		s.memoize(memoKey, meta)
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("stat %s: %w", path, err)
	}

	meta.Existed = true
	meta.Mode = uint32(info.Mode() & (os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky))

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err == nil {
		meta.UID = int(st.Uid)
		meta.GID = int(st.Gid)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("read %s: %w", path, err)
	}
	blobPath := filepath.Join(tx.BackupsDir(), meta.Key)
	if err := os.WriteFile(blobPath, data, info.Mode().Perm()); err != nil {
		return meta, fmt.Errorf("write backup blob for %s: %w", path, err)
	}

	meta.Strategy, meta.Package = s.selector.Select(cx, path, false)
	s.memoize(memoKey, meta)
	return meta, nil
}

func (s *Store) memoize(key string, meta ledger.BackupMetadata) {
	s.mu.Lock()
	s.captured[key] = meta
	s.mu.Unlock()
}

// Restore reverses one captured file mutation. For files we created, the live
// path is deleted (absent is success, so restore is idempotent). For files
// that pre-existed, a missing blob is surfaced as a distinct not-found error:
// it means data loss and must never be silently skipped.
func (s *Store) Restore(tx *ledger.Transaction, meta ledger.BackupMetadata) error {
	if !meta.Existed {
		if err := os.Remove(meta.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove created file %s: %w", meta.Path, err)
		}
		return nil
	}

	blobPath := filepath.Join(tx.BackupsDir(), meta.Key)
	data, err := os.ReadFile(blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return tkerrors.NotFound("backup blob", blobPath).
				WithContext("path", meta.Path).
				WithContext("txid", tx.ID)
		}
		return fmt.Errorf("read backup blob %s: %w", blobPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(meta.Path), 0o755); err != nil {
		return fmt.Errorf("recreate parent of %s: %w", meta.Path, err)
	}
	if err := os.WriteFile(meta.Path, data, os.FileMode(meta.Mode)); err != nil {
		return fmt.Errorf("restore %s: %w", meta.Path, err)
	}
	if err := os.Chmod(meta.Path, os.FileMode(meta.Mode)); err != nil {
		return fmt.Errorf("restore mode of %s: %w", meta.Path, err)
	}

	// Ownership restoration is advisory when not running as root.
	if err := unix.Chown(meta.Path, meta.UID, meta.GID); err != nil {
		slog.Debug("Skipping owner restore", "path", meta.Path, "error", err)
	}
	return nil
}
