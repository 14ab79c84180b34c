package bootcfg

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tweakctl/internal/sysexec"
)

func TestTokenPresent(t *testing.T) {
	require.True(t, TokenPresent([]string{"quiet", "audit=0"}, "audit=0"))
	require.False(t, TokenPresent([]string{"nothreadirqs"}, "threadirqs"), "no substring matches")
	require.True(t, TokenPresent([]string{"mitigations=off"}, "mitigations"), "bare key matches key=value")
	require.False(t, TokenPresent([]string{"quiet"}, "audit=0"))
	require.False(t, TokenPresent([]string{"audit=1"}, "audit=0"), "valued params match exactly")
}

func editorWithFiles(t *testing.T, cmdline, grub string) *Editor {
	t.Helper()
	dir := t.TempDir()
	cmdlinePath := filepath.Join(dir, "cmdline")
	grubPath := filepath.Join(dir, "grub")
	if cmdline != "" {
		require.NoError(t, os.WriteFile(cmdlinePath, []byte(cmdline), 0o644))
	}
	if grub != "" {
		require.NoError(t, os.WriteFile(grubPath, []byte(grub), 0o644))
	}
	return NewEditor(sysexec.NewFake(), time.Second).WithPaths(cmdlinePath, grubPath)
}

func TestDetectPrefersCmdlineFile(t *testing.T) {
	e := editorWithFiles(t, "quiet splash\n", "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet\"\n")
	style, file, err := e.Detect()
	require.NoError(t, err)
	require.Equal(t, StyleCmdline, style)
	require.Equal(t, e.cmdlinePath, file)
}

func TestDetectFallsBackToGrub(t *testing.T) {
	e := editorWithFiles(t, "", "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet\"\n")
	style, _, err := e.Detect()
	require.NoError(t, err)
	require.Equal(t, StyleGrub, style)
}

func TestDetectNoBootConfig(t *testing.T) {
	e := editorWithFiles(t, "", "")
	_, _, err := e.Detect()
	require.Error(t, err)
}

func TestAddParamCmdline(t *testing.T) {
	e := editorWithFiles(t, "quiet splash\n", "")

	added, err := e.AddParam(StyleCmdline, e.cmdlinePath, "audit=0")
	require.NoError(t, err)
	require.True(t, added)

	data, err := os.ReadFile(e.cmdlinePath)
	require.NoError(t, err)
	require.Equal(t, "quiet splash audit=0\n", string(data))

	// second apply leaves the file untouched
	added, err = e.AddParam(StyleCmdline, e.cmdlinePath, "audit=0")
	require.NoError(t, err)
	require.False(t, added)
	data, _ = os.ReadFile(e.cmdlinePath)
	require.Equal(t, "quiet splash audit=0\n", string(data))
}

func TestAddParamToEmptyCmdlineTwiceYieldsSingleToken(t *testing.T) {
	e := editorWithFiles(t, "\n", "")

	added, err := e.AddParam(StyleCmdline, e.cmdlinePath, "audit=0")
	require.NoError(t, err)
	require.True(t, added)
	added, err = e.AddParam(StyleCmdline, e.cmdlinePath, "audit=0")
	require.NoError(t, err)
	require.False(t, added)

	data, _ := os.ReadFile(e.cmdlinePath)
	require.Equal(t, []string{"audit=0"}, Tokens(string(data)))
}

const grubFile = `# If you change this file, run 'update-grub' afterwards.
GRUB_DEFAULT=0
GRUB_CMDLINE_LINUX_DEFAULT="quiet splash"
GRUB_CMDLINE_LINUX=""
`

func TestAddParamGrubPreservesOtherLines(t *testing.T) {
	e := editorWithFiles(t, "", grubFile)

	added, err := e.AddParam(StyleGrub, e.grubPath, "mitigations=off")
	require.NoError(t, err)
	require.True(t, added)

	data, err := os.ReadFile(e.grubPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `GRUB_CMDLINE_LINUX_DEFAULT="quiet splash mitigations=off"`)
	require.Contains(t, string(data), "GRUB_DEFAULT=0")
	require.Contains(t, string(data), `GRUB_CMDLINE_LINUX=""`)
}

func TestAddParamGrubBareKeyAlreadyPresent(t *testing.T) {
	e := editorWithFiles(t, "", "GRUB_CMDLINE_LINUX_DEFAULT=\"mitigations=off\"\n")

	added, err := e.AddParam(StyleGrub, e.grubPath, "mitigations")
	require.NoError(t, err)
	require.False(t, added)
}

func TestRemoveParamCmdline(t *testing.T) {
	e := editorWithFiles(t, "quiet audit=0 splash\n", "")

	require.NoError(t, e.RemoveParam(StyleCmdline, e.cmdlinePath, "audit=0"))
	data, _ := os.ReadFile(e.cmdlinePath)
	require.Equal(t, "quiet splash\n", string(data))

	// removing an absent token is a no-op
	require.NoError(t, e.RemoveParam(StyleCmdline, e.cmdlinePath, "audit=0"))
}

func TestRemoveParamGrub(t *testing.T) {
	e := editorWithFiles(t, "", "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet mitigations=off\"\n")

	require.NoError(t, e.RemoveParam(StyleGrub, e.grubPath, "mitigations=off"))
	data, _ := os.ReadFile(e.grubPath)
	require.Contains(t, string(data), `GRUB_CMDLINE_LINUX_DEFAULT="quiet"`)
}

func TestRenderAddDoesNotWrite(t *testing.T) {
	e := editorWithFiles(t, "quiet\n", "")

	before, after, changed, err := e.RenderAdd(StyleCmdline, e.cmdlinePath, "audit=0")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "quiet\n", before)
	require.Equal(t, "quiet audit=0\n", after)

	data, _ := os.ReadFile(e.cmdlinePath)
	require.Equal(t, "quiet\n", string(data))
}

func TestRenderAddGrubAlreadyPresent(t *testing.T) {
	e := editorWithFiles(t, "", "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet audit=0\"\n")

	before, after, changed, err := e.RenderAdd(StyleGrub, e.grubPath, "audit=0")
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, before, after)
}

func TestCmdlineValue(t *testing.T) {
	require.Equal(t, "quiet audit=0", CmdlineValue(StyleCmdline, "quiet audit=0\n"))
	require.Equal(t, "quiet splash", CmdlineValue(StyleGrub, grubFile))
	require.Equal(t, "", CmdlineValue(StyleGrub, "GRUB_DEFAULT=0\n"))
}

func TestRegenerateGrubUsesFirstAvailableCommand(t *testing.T) {
	fake := sysexec.NewFake()
	fake.Binaries["update-grub"] = "/usr/sbin/update-grub"
	e := NewEditor(fake, time.Second)

	require.NoError(t, e.Regenerate(context.Background(), StyleGrub))
	require.True(t, fake.Ran("update-grub"))
}

func TestRegenerateNoCommandAvailable(t *testing.T) {
	e := NewEditor(sysexec.NewFake(), time.Second)
	require.Error(t, e.Regenerate(context.Background(), StyleCmdline))
}

func TestRegenerateFailureCarriesStderr(t *testing.T) {
	fake := sysexec.NewFake()
	fake.Binaries["update-grub"] = "/usr/sbin/update-grub"
	fake.Responses["update-grub"] = sysexec.Result{Command: "update-grub", ExitCode: 1, Stderr: "cannot write grub.cfg"}
	e := NewEditor(fake, time.Second)

	err := e.Regenerate(context.Background(), StyleGrub)
	require.Error(t, err)
}
