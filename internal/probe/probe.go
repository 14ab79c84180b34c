// Package probe answers "is this knob currently in effect?" with read-only
// checks. Probes never mutate and never require privilege; anything that
// cannot be determined is reported as unknown rather than failing the scan.
package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/tweakctl/internal/bootcfg"
	"git.home.luguber.info/inful/tweakctl/internal/engine"
	"git.home.luguber.info/inful/tweakctl/internal/registry"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
	"git.home.luguber.info/inful/tweakctl/internal/sysexec"
	"git.home.luguber.info/inful/tweakctl/internal/systemd"
)

// State is a probe's verdict for one knob.
type State string

const (
	Applied    State = "applied"
	NotApplied State = "not_applied"
	Unknown    State = "unknown"
)

// KnobStatus is one knob's probed state.
type KnobStatus struct {
	KnobID string `json:"knob_id"`
	State  State  `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// Prober runs read-only status checks against the live system.
type Prober struct {
	runner    sysexec.Runner
	boot      *bootcfg.Editor
	timeout   time.Duration
	sysctlDir string
}

// New builds a Prober.
func New(runner sysexec.Runner, boot *bootcfg.Editor, timeout time.Duration) *Prober {
	return &Prober{runner: runner, boot: boot, timeout: timeout, sysctlDir: "/etc/sysctl.d"}
}

// WithSysctlDir overrides the sysctl drop-in directory (tests).
func (p *Prober) WithSysctlDir(dir string) *Prober {
	p.sysctlDir = dir
	return p
}

// Detect probes every readable knob in the registry.
func (p *Prober) Detect(cx context.Context, reg *registry.Registry) []KnobStatus {
	out := make([]KnobStatus, 0, len(reg.Knobs()))
	for _, knob := range reg.Knobs() {
		out = append(out, p.Probe(cx, &knob))
	}
	return out
}

// Probe checks one knob's live state.
func (p *Prober) Probe(cx context.Context, knob *registry.Knob) KnobStatus {
	status := KnobStatus{KnobID: knob.ID, State: Unknown}
	if !knob.Capabilities.Read || knob.Impl == nil {
		status.Detail = "knob has no status probe"
		return status
	}

	state, detail := p.probeImpl(cx, knob)
	status.State = state
	status.Detail = detail
	return status
}

func (p *Prober) probeImpl(cx context.Context, knob *registry.Knob) (State, string) {
	im := knob.Impl
	switch im.Kind {
	case registry.KindFileMerge:
		data, err := os.ReadFile(im.Params["path"])
		if err != nil {
			return NotApplied, ""
		}
		if _, changed := engine.MergeLines(string(data), im.Lines()); changed {
			return NotApplied, ""
		}
		return Applied, ""

	case registry.KindFileWrite:
		content := im.Params["content"]
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		data, err := os.ReadFile(im.Params["path"])
		if err != nil || string(data) != content {
			return NotApplied, ""
		}
		return Applied, ""

	case registry.KindSysctl:
		path := filepath.Join(p.sysctlDir, fmt.Sprintf("90-tweakctl-%s.conf", knob.ID))
		want := fmt.Sprintf("%s = %s\n", im.Params["key"], im.Params["value"])
		data, err := os.ReadFile(path)
		if err != nil || string(data) != want {
			return NotApplied, ""
		}
		return Applied, ""

	case registry.KindSysfsWrite:
		data, err := os.ReadFile(im.Params["path"])
		if err != nil {
			return Unknown, fmt.Sprintf("cannot read %s", im.Params["path"])
		}
		if strings.TrimSpace(string(data)) == im.Params["value"] {
			return Applied, ""
		}
		return NotApplied, ""

	case registry.KindServiceMask:
		return p.probeServiceMask(cx, knob)

	case registry.KindKernelCmdline:
		style, file, err := p.boot.Detect()
		if err != nil {
			return Unknown, err.Error()
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return Unknown, fmt.Sprintf("cannot read %s", file)
		}
		line := bootcfg.CmdlineValue(style, string(data))
		if bootcfg.TokenPresent(bootcfg.Tokens(line), im.Params["param"]) {
			return Applied, ""
		}
		return NotApplied, ""

	case registry.KindSearchIndexer:
		tool := im.Param("tool", "balooctl")
		res, err := p.runner.Run(cx, p.timeout, tool, "status")
		if err != nil {
			return Unknown, fmt.Sprintf("cannot run %s", tool)
		}
		if res.ExitCode == 0 {
			return NotApplied, ""
		}
		return Applied, ""

	default:
		return Unknown, fmt.Sprintf("unsupported knob implementation kind %q", im.Kind)
	}
}

// probeServiceMask reports applied only when every unit is masked. Units are
// queried in the manager of the scope the knob executes in, the same
// scope-to-manager mapping the apply and restore paths use.
func (p *Prober) probeServiceMask(cx context.Context, knob *registry.Knob) (State, string) {
	s := scope.User
	if knob.RequiresRoot {
		s = scope.Root
	}
	units := systemd.NewClient(p.runner, p.timeout, s == scope.User)
	for _, unit := range knob.Impl.UnitList() {
		masked, err := units.Masked(cx, unit)
		if err != nil {
			return Unknown, fmt.Sprintf("cannot query %s", unit)
		}
		if !masked {
			return NotApplied, ""
		}
	}
	return Applied, ""
}
