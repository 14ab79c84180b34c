package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	tkerrors "git.home.luguber.info/inful/tweakctl/internal/errors"
)

const validRegistry = `{
  "schema": 1,
  "knobs": [
    {
      "id": "vm-swappiness",
      "title": "Reduce swap pressure",
      "description": "Sets vm.swappiness to 10.",
      "category": "memory",
      "risk_level": "low",
      "requires_root": true,
      "capabilities": {"read": true, "apply": true, "restore": true},
      "impl": {"kind": "sysctl", "params": {"key": "vm.swappiness", "value": "10"}}
    },
    {
      "id": "mask-tracker",
      "title": "Disable tracker miners",
      "risk_level": "medium",
      "capabilities": {"read": true, "apply": true, "restore": true},
      "impl": {"kind": "service_mask", "params": {"units": "tracker-miner-fs-3.service, tracker-xdg-portal-3.service"}}
    },
    {
      "id": "info-only",
      "title": "Status-only knob",
      "capabilities": {"read": true, "apply": false, "restore": false}
    }
  ]
}`

func TestParseValidRegistry(t *testing.T) {
	r, err := Parse([]byte(validRegistry))
	require.NoError(t, err)
	require.Len(t, r.Knobs(), 3)

	k, err := r.Get("vm-swappiness")
	require.NoError(t, err)
	require.True(t, k.RequiresRoot)
	require.Equal(t, KindSysctl, k.Impl.Kind)

	mask, err := r.Get("mask-tracker")
	require.NoError(t, err)
	require.Equal(t, []string{"tracker-miner-fs-3.service", "tracker-xdg-portal-3.service"}, mask.Impl.UnitList())

	noImpl, err := r.Get("info-only")
	require.NoError(t, err)
	require.Nil(t, noImpl.Impl)
}

func TestGetUnknownKnob(t *testing.T) {
	r, err := Parse([]byte(validRegistry))
	require.NoError(t, err)
	_, err = r.Get("does-not-exist")
	require.True(t, tkerrors.IsCategory(err, tkerrors.CategoryNotFound))
}

func TestParseFailsClosedOnSchemaMismatch(t *testing.T) {
	_, err := Parse([]byte(`{"schema": 2, "knobs": []}`))
	require.Error(t, err)
}

func TestParseFailsClosedOnNonArrayKnobs(t *testing.T) {
	_, err := Parse([]byte(`{"schema": 1, "knobs": {"id": "x"}}`))
	require.Error(t, err)
}

func TestParseFailsClosedOnDuplicateID(t *testing.T) {
	doc := `{"schema":1,"knobs":[
	  {"id":"a","title":"A","capabilities":{}},
	  {"id":"a","title":"A again","capabilities":{}}
	]}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestParseFailsClosedOnEmptyID(t *testing.T) {
	doc := `{"schema":1,"knobs":[{"id":"","title":"X","capabilities":{}}]}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParseFailsClosedOnBadRiskLevel(t *testing.T) {
	doc := `{"schema":1,"knobs":[{"id":"x","title":"X","risk_level":"scary","capabilities":{}}]}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(validRegistry), 0o644))
	r, err := Load(path)
	require.NoError(t, err)
	require.Len(t, r.Knobs(), 3)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.True(t, tkerrors.IsCategory(err, tkerrors.CategoryConfig))
}
