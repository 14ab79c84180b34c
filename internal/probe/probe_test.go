package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tweakctl/internal/bootcfg"
	"git.home.luguber.info/inful/tweakctl/internal/registry"
	"git.home.luguber.info/inful/tweakctl/internal/sysexec"
)

func newProber(t *testing.T) (*Prober, *sysexec.Fake, string) {
	t.Helper()
	dir := t.TempDir()
	fake := sysexec.NewFake()
	boot := bootcfg.NewEditor(fake, time.Second).
		WithPaths(filepath.Join(dir, "cmdline"), filepath.Join(dir, "grub"))
	return New(fake, boot, time.Second).WithSysctlDir(filepath.Join(dir, "sysctl.d")), fake, dir
}

func readableKnob(id string, kind registry.ImplKind, params map[string]string) *registry.Knob {
	return &registry.Knob{
		ID:           id,
		Title:        id,
		RequiresRoot: true,
		Capabilities: registry.Capabilities{Read: true, Apply: true},
		Impl:         &registry.Impl{Kind: kind, Params: params},
	}
}

func TestProbeFileMerge(t *testing.T) {
	p, _, dir := newProber(t)
	path := filepath.Join(dir, "limits.conf")
	knob := readableKnob("m", registry.KindFileMerge, map[string]string{"path": path, "lines": "wanted"})

	require.Equal(t, NotApplied, p.Probe(context.Background(), knob).State)

	require.NoError(t, os.WriteFile(path, []byte("other\nwanted\n"), 0o644))
	require.Equal(t, Applied, p.Probe(context.Background(), knob).State)
}

func TestProbeSysctlDropIn(t *testing.T) {
	p, _, dir := newProber(t)
	knob := readableKnob("swap", registry.KindSysctl, map[string]string{"key": "vm.swappiness", "value": "10"})

	require.Equal(t, NotApplied, p.Probe(context.Background(), knob).State)

	dropIn := filepath.Join(dir, "sysctl.d", "90-tweakctl-swap.conf")
	require.NoError(t, os.MkdirAll(filepath.Dir(dropIn), 0o755))
	require.NoError(t, os.WriteFile(dropIn, []byte("vm.swappiness = 10\n"), 0o644))
	require.Equal(t, Applied, p.Probe(context.Background(), knob).State)
}

func TestProbeSysfsValue(t *testing.T) {
	p, _, dir := newProber(t)
	node := filepath.Join(dir, "thp")
	require.NoError(t, os.WriteFile(node, []byte("never\n"), 0o644))

	knob := readableKnob("thp", registry.KindSysfsWrite, map[string]string{"path": node, "value": "never"})
	require.Equal(t, Applied, p.Probe(context.Background(), knob).State)

	require.NoError(t, os.WriteFile(node, []byte("always\n"), 0o644))
	require.Equal(t, NotApplied, p.Probe(context.Background(), knob).State)
}

func TestProbeServiceMaskNeedsEveryUnitMasked(t *testing.T) {
	p, fake, _ := newProber(t)
	fake.
		Respond("systemctl is-enabled a.service", 1, "masked\n").
		Respond("systemctl is-enabled b.service", 0, "enabled\n")

	knob := readableKnob("mask", registry.KindServiceMask, map[string]string{"units": "a.service,b.service"})
	require.Equal(t, NotApplied, p.Probe(context.Background(), knob).State)

	fake.Respond("systemctl is-enabled b.service", 1, "masked\n")
	require.Equal(t, Applied, p.Probe(context.Background(), knob).State)
}

func TestProbeUserServiceMaskUsesUserManager(t *testing.T) {
	p, fake, _ := newProber(t)
	fake.StrictCommands = true
	fake.Respond("systemctl --user is-enabled baloo.service", 1, "masked\n")

	knob := readableKnob("mask", registry.KindServiceMask, map[string]string{"units": "baloo.service"})
	knob.RequiresRoot = false
	require.Equal(t, Applied, p.Probe(context.Background(), knob).State)
}

func TestProbeRootServiceMaskUsesSystemManager(t *testing.T) {
	p, fake, _ := newProber(t)
	fake.StrictCommands = true
	fake.Respond("systemctl is-enabled NetworkManager-wait-online.service", 1, "masked\n")

	knob := readableKnob("mask", registry.KindServiceMask,
		map[string]string{"units": "NetworkManager-wait-online.service"})
	require.Equal(t, Applied, p.Probe(context.Background(), knob).State)
}

func TestProbeKernelCmdline(t *testing.T) {
	p, _, dir := newProber(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte("quiet audit=0\n"), 0o644))

	knob := readableKnob("audit", registry.KindKernelCmdline, map[string]string{"param": "audit=0"})
	require.Equal(t, Applied, p.Probe(context.Background(), knob).State)

	knob2 := readableKnob("irq", registry.KindKernelCmdline, map[string]string{"param": "threadirqs"})
	require.Equal(t, NotApplied, p.Probe(context.Background(), knob2).State)
}

func TestProbeSearchIndexer(t *testing.T) {
	p, fake, _ := newProber(t)
	fake.Respond("balooctl status", 1, "disabled\n")

	knob := readableKnob("baloo", registry.KindSearchIndexer, nil)
	require.Equal(t, Applied, p.Probe(context.Background(), knob).State)

	fake.Respond("balooctl status", 0, "running\n")
	require.Equal(t, NotApplied, p.Probe(context.Background(), knob).State)
}

func TestProbeKnobWithoutReadCapability(t *testing.T) {
	p, _, _ := newProber(t)
	knob := &registry.Knob{ID: "opaque", Title: "opaque"}

	status := p.Probe(context.Background(), knob)
	require.Equal(t, Unknown, status.State)
	require.NotEmpty(t, status.Detail)
}

func TestDetectCoversWholeRegistry(t *testing.T) {
	p, _, dir := newProber(t)
	node := filepath.Join(dir, "node")
	require.NoError(t, os.WriteFile(node, []byte("1"), 0o644))

	reg, err := registry.Parse([]byte(`{"schema":1,"knobs":[
	  {"id":"a","title":"a","capabilities":{"read":true},
	   "impl":{"kind":"sysfs_write","params":{"path":"/sys/a","value":"1"}}},
	  {"id":"b","title":"b","capabilities":{"apply":true}}
	]}`))
	require.NoError(t, err)

	statuses := p.Detect(context.Background(), reg)
	require.Len(t, statuses, 2)
	require.Equal(t, "a", statuses[0].KnobID)
	require.Equal(t, Unknown, statuses[1].State)
}
