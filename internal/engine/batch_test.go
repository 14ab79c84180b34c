package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tweakctl/internal/registry"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

func batchRegistry(t *testing.T, dir string) *registry.Registry {
	t.Helper()
	doc := `{"schema":1,"knobs":[
	  {"id":"good","title":"Good","capabilities":{"apply":true,"restore":true},
	   "impl":{"kind":"file_write","params":{"path":"` + filepath.Join(dir, "good.conf") + `","content":"ok"}}},
	  {"id":"bad","title":"Bad","capabilities":{"apply":true,"restore":true},
	   "impl":{"kind":"sysfs_write","params":{"path":"/sys/tweakctl/missing-node","value":"1"}}}
	]}`
	r, err := registry.Parse([]byte(doc))
	require.NoError(t, err)
	return r
}

func TestApplyBatchKnobsFailIndependently(t *testing.T) {
	h := newHarness(t, scope.Root)
	reg := batchRegistry(t, h.dir)

	res, err := h.engine.ApplyBatch(context.Background(), h.ledger, reg, []string{"good", "bad", "unknown"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Failed)
	require.Len(t, res.Results, 3)
	require.True(t, res.Results[0].Applied)
	require.False(t, res.Results[1].Applied)
	require.NotEmpty(t, res.Results[2].Error)

	// the good knob's mutation happened and survived the bad knob
	require.FileExists(t, filepath.Join(h.dir, "good.conf"))

	// manifest records exactly what succeeded
	tx, err := h.ledger.Get(res.TxID)
	require.NoError(t, err)
	m, err := tx.Manifest()
	require.NoError(t, err)
	require.Equal(t, []string{"good"}, m.Applied)
	require.Len(t, m.Backups, 1)
}

func TestApplyBatchSharedFileKeepsOriginalSnapshot(t *testing.T) {
	h := newHarness(t, scope.Root)
	path := filepath.Join(h.dir, "shared.conf")
	require.NoError(t, os.WriteFile(path, []byte("original\n"), 0o644))

	doc := `{"schema":1,"knobs":[
	  {"id":"first","title":"First","capabilities":{"apply":true,"restore":true},
	   "impl":{"kind":"file_merge","params":{"path":"` + path + `","lines":"lineA"}}},
	  {"id":"second","title":"Second","capabilities":{"apply":true,"restore":true},
	   "impl":{"kind":"file_merge","params":{"path":"` + path + `","lines":"lineB"}}}
	]}`
	reg, err := registry.Parse([]byte(doc))
	require.NoError(t, err)

	res, err := h.engine.ApplyBatch(context.Background(), h.ledger, reg, []string{"first", "second"})
	require.NoError(t, err)
	require.Zero(t, res.Failed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "original\nlineA\nlineB\n", string(data))

	tx, err := h.ledger.Get(res.TxID)
	require.NoError(t, err)
	m, err := tx.Manifest()
	require.NoError(t, err)

	// one backup record per path, and its blob holds the pre-transaction
	// bytes, not the intermediate state after the first knob
	require.Len(t, m.Backups, 1)
	blob, err := os.ReadFile(filepath.Join(tx.BackupsDir(), m.Backups[0].Key))
	require.NoError(t, err)
	require.Equal(t, "original\n", string(blob))
}

func TestApplyBatchWritesManifestEvenWhenAllFail(t *testing.T) {
	h := newHarness(t, scope.Root)
	reg := batchRegistry(t, h.dir)

	res, err := h.engine.ApplyBatch(context.Background(), h.ledger, reg, []string{"unknown"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Failed)

	tx, err := h.ledger.Get(res.TxID)
	require.NoError(t, err)
	m, err := tx.Manifest()
	require.NoError(t, err)
	require.Empty(t, m.Applied)
}

func TestApplyBatchGateRunsBeforeAnyMutation(t *testing.T) {
	h := newHarness(t, scope.Root)
	h.ctx.EUID = 1000
	reg := batchRegistry(t, h.dir)

	_, err := h.engine.ApplyBatch(context.Background(), h.ledger, reg, []string{"good"})
	require.Error(t, err)
	require.NoFileExists(t, filepath.Join(h.dir, "good.conf"))

	// no new transaction was created (the harness itself began one)
	entries, _ := os.ReadDir(filepath.Join(h.ctx.SystemRoot, "transactions"))
	require.Len(t, entries, 1)
}
