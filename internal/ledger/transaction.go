package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	tkerrors "git.home.luguber.info/inful/tweakctl/internal/errors"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

const (
	transactionsDirName = "transactions"
	backupsDirName      = "backups"
	manifestFileName    = "manifest.json"
)

// Transaction is one apply invocation's durable record. Immutable once its
// manifest is written; a later corrective action creates a new transaction.
type Transaction struct {
	ID    string
	Scope scope.Scope
	Dir   string
}

// BackupsDir returns the directory holding this transaction's backup blobs.
func (t *Transaction) BackupsDir() string {
	return filepath.Join(t.Dir, backupsDirName)
}

// ManifestPath returns the path of the transaction's manifest.json.
func (t *Transaction) ManifestPath() string {
	return filepath.Join(t.Dir, manifestFileName)
}

// WriteManifest persists the manifest atomically (tmp + rename). Writing a
// manifest twice is a programming error and fails.
func (t *Transaction) WriteManifest(m *Manifest) error {
	if _, err := os.Stat(t.ManifestPath()); err == nil {
		return tkerrors.New(tkerrors.CategoryState, tkerrors.SeverityFatal,
			fmt.Sprintf("transaction %s already has a manifest", t.ID))
	}
	for _, b := range m.Backups {
		if err := b.Validate(); err != nil {
			return tkerrors.Wrap(err, tkerrors.CategoryState, tkerrors.SeverityFatal, "invalid backup metadata")
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tempPath := t.ManifestPath() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temporary manifest: %w", err)
	}
	if err := os.Rename(tempPath, t.ManifestPath()); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// Manifest loads the transaction's persisted manifest.
func (t *Transaction) Manifest() (*Manifest, error) {
	data, err := os.ReadFile(t.ManifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tkerrors.NotFound("manifest", t.ID)
		}
		return nil, fmt.Errorf("read manifest for %s: %w", t.ID, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, tkerrors.Wrap(err, tkerrors.CategoryState, tkerrors.SeverityError,
			fmt.Sprintf("corrupt manifest for transaction %s", t.ID))
	}
	if m.Schema != SchemaVersion {
		return nil, tkerrors.New(tkerrors.CategoryState, tkerrors.SeverityError,
			fmt.Sprintf("unsupported manifest schema %d for transaction %s", m.Schema, t.ID))
	}
	return &m, nil
}

// Ledger creates and enumerates transactions under the scope roots.
type Ledger struct {
	ctx *scope.Context
}

// New returns a Ledger bound to an execution context.
func New(ctx *scope.Context) *Ledger {
	return &Ledger{ctx: ctx}
}

var (
	idMu   sync.Mutex
	lastID int64
)

// newID derives a transaction id from the high-resolution creation timestamp.
// Fixed-width hex keeps lexical order equal to chronological order; the guard
// keeps ids strictly monotonic within one process.
func newID() string {
	idMu.Lock()
	defer idMu.Unlock()
	now := time.Now().UnixNano()
	if now <= lastID {
		now = lastID + 1
	}
	lastID = now
	return fmt.Sprintf("%016x", now)
}

// Begin creates a fresh transaction directory for the given scope. Creation
// fails loudly if the directory already exists; it is never silently reused.
func (l *Ledger) Begin(s scope.Scope) (*Transaction, error) {
	root := filepath.Join(l.ctx.RootFor(s), transactionsDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create transactions root: %w", err)
	}

	id := newID()
	dir := filepath.Join(root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, tkerrors.New(tkerrors.CategoryState, tkerrors.SeverityFatal,
				fmt.Sprintf("transaction directory already exists: %s", dir))
		}
		return nil, fmt.Errorf("create transaction directory: %w", err)
	}
	if err := os.Mkdir(filepath.Join(dir, backupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create backups directory: %w", err)
	}
	return &Transaction{ID: id, Scope: s, Dir: dir}, nil
}

// List returns the transactions of the given scopes sorted oldest first.
// Transactions without a manifest (an apply that died before finishing) are
// skipped: they recorded nothing.
func (l *Ledger) List(scopes ...scope.Scope) ([]*Transaction, error) {
	var txs []*Transaction
	for _, s := range scopes {
		root := filepath.Join(l.ctx.RootFor(s), transactionsDirName)
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("list transactions in %s: %w", root, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			tx := &Transaction{ID: e.Name(), Scope: s, Dir: filepath.Join(root, e.Name())}
			if _, err := os.Stat(tx.ManifestPath()); err != nil {
				continue
			}
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	return txs, nil
}

// Get locates a transaction by id, searching both scopes.
func (l *Ledger) Get(txid string) (*Transaction, error) {
	for _, s := range []scope.Scope{scope.User, scope.Root} {
		dir := filepath.Join(l.ctx.RootFor(s), transactionsDirName, txid)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return &Transaction{ID: txid, Scope: s, Dir: dir}, nil
		}
	}
	return nil, tkerrors.NotFound("transaction", txid)
}
