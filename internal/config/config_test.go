package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "/var/lib/tweakctl", cfg.State.SystemRoot)
	require.Equal(t, 10*time.Second, cfg.Timeouts.OwnershipQuery)
	require.Equal(t, "/usr/share/tweakctl/registry.json", cfg.Registry)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state:\n  system_root: /srv/tweaks\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/tweaks", cfg.State.SystemRoot)
	require.Equal(t, 5*time.Minute, cfg.Timeouts.PackageReinstall)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TWEAKCTL_TEST_ROOT", "/tmp/envroot")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state:\n  user_root: ${TWEAKCTL_TEST_ROOT}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/envroot", cfg.State.UserRoot)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
