package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImplValidateUnknownKind(t *testing.T) {
	im := &Impl{Kind: "reboot_randomly"}
	require.Error(t, im.Validate())
}

func TestImplValidateRequiredParams(t *testing.T) {
	im := &Impl{Kind: KindFileMerge, Params: map[string]string{"path": "/etc/security/limits.conf"}}
	require.Error(t, im.Validate(), "lines param missing")

	im.Params["lines"] = "alice hard nofile 1048576"
	require.NoError(t, im.Validate())
}

func TestImplValidateSysfsPathConstraint(t *testing.T) {
	im := &Impl{Kind: KindSysfsWrite, Params: map[string]string{"path": "/etc/foo", "value": "1"}}
	require.Error(t, im.Validate())

	im.Params["path"] = "/sys/kernel/mm/transparent_hugepage/enabled"
	require.NoError(t, im.Validate())
}

func TestImplValidateCmdlineSingleToken(t *testing.T) {
	im := &Impl{Kind: KindKernelCmdline, Params: map[string]string{"param": "audit=0 quiet"}}
	require.Error(t, im.Validate())

	im.Params["param"] = "audit=0"
	require.NoError(t, im.Validate())
}

func TestImplSearchIndexerNeedsNoParams(t *testing.T) {
	im := &Impl{Kind: KindSearchIndexer}
	require.NoError(t, im.Validate())
	require.Equal(t, "balooctl", im.Param("tool", "balooctl"))
}

func TestImplLines(t *testing.T) {
	im := &Impl{Kind: KindFileMerge, Params: map[string]string{
		"path":  "/etc/security/limits.conf",
		"lines": "a hard nofile 4096\n\nb soft nofile 1024\n",
	}}
	require.Equal(t, []string{"a hard nofile 4096", "b soft nofile 1024"}, im.Lines())
}
