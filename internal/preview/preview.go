// Package preview renders what applying a knob would change, without touching
// the system. File targets get a line diff of current versus would-be content;
// live-system targets get an action description.
package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"git.home.luguber.info/inful/tweakctl/internal/bootcfg"
	"git.home.luguber.info/inful/tweakctl/internal/engine"
	"git.home.luguber.info/inful/tweakctl/internal/registry"
)

// Change describes one mutation a knob would perform.
type Change struct {
	Path   string `json:"path,omitempty"`
	Action string `json:"action"`
	Diff   string `json:"diff,omitempty"`
}

// KnobPreview is the dry-run result for one knob.
type KnobPreview struct {
	KnobID  string   `json:"knob_id"`
	Changes []Change `json:"changes"`
	Error   string   `json:"error,omitempty"`
}

// Previewer computes dry-run previews.
type Previewer struct {
	boot      *bootcfg.Editor
	sysctlDir string
}

// New builds a Previewer. The boot editor is only read from.
func New(boot *bootcfg.Editor) *Previewer {
	return &Previewer{boot: boot, sysctlDir: "/etc/sysctl.d"}
}

// WithSysctlDir overrides the sysctl drop-in directory (tests).
func (p *Previewer) WithSysctlDir(dir string) *Previewer {
	p.sysctlDir = dir
	return p
}

// Preview renders the changes the given knobs would make. Unknown ids and
// per-knob failures are reported in the result, never as a hard error.
func (p *Previewer) Preview(reg *registry.Registry, ids []string) []KnobPreview {
	out := make([]KnobPreview, 0, len(ids))
	for _, id := range ids {
		kp := KnobPreview{KnobID: id, Changes: []Change{}}

		knob, err := reg.Get(id)
		if err != nil {
			kp.Error = err.Error()
			out = append(out, kp)
			continue
		}
		if !knob.Capabilities.Apply || knob.Impl == nil {
			kp.Error = fmt.Sprintf("knob %s is not applicable", id)
			out = append(out, kp)
			continue
		}

		changes, err := p.previewKnob(knob)
		if err != nil {
			kp.Error = err.Error()
		}
		kp.Changes = append(kp.Changes, changes...)
		out = append(out, kp)
	}
	return out
}

func (p *Previewer) previewKnob(knob *registry.Knob) ([]Change, error) {
	im := knob.Impl
	switch im.Kind {
	case registry.KindFileMerge:
		current, existed := readIfPresent(im.Params["path"])
		merged, changed := engine.MergeLines(current, im.Lines())
		return fileChange(im.Params["path"], existed, changed, current, merged), nil

	case registry.KindFileWrite:
		content := im.Params["content"]
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		current, existed := readIfPresent(im.Params["path"])
		return fileChange(im.Params["path"], existed, current != content, current, content), nil

	case registry.KindSysctl:
		path := filepath.Join(p.sysctlDir, fmt.Sprintf("90-tweakctl-%s.conf", knob.ID))
		content := fmt.Sprintf("%s = %s\n", im.Params["key"], im.Params["value"])
		current, existed := readIfPresent(path)
		changes := fileChange(path, existed, current != content, current, content)
		if current != content {
			changes = append(changes, Change{Action: fmt.Sprintf("load %s=%s via sysctl", im.Params["key"], im.Params["value"])})
		}
		return changes, nil

	case registry.KindSysfsWrite:
		data, err := os.ReadFile(im.Params["path"])
		if err != nil {
			return nil, fmt.Errorf("read sysfs node %s: %w", im.Params["path"], err)
		}
		before := strings.TrimSpace(string(data))
		if before == im.Params["value"] {
			return []Change{{Path: im.Params["path"], Action: "unchanged"}}, nil
		}
		return []Change{{
			Path:   im.Params["path"],
			Action: "write",
			Diff:   LineDiff(before+"\n", im.Params["value"]+"\n"),
		}}, nil

	case registry.KindServiceMask:
		changes := make([]Change, 0, len(im.UnitList()))
		for _, unit := range im.UnitList() {
			changes = append(changes, Change{Action: fmt.Sprintf("mask and stop %s", unit)})
		}
		return changes, nil

	case registry.KindKernelCmdline:
		style, file, err := p.boot.Detect()
		if err != nil {
			return nil, err
		}
		before, after, changed, err := p.boot.RenderAdd(style, file, im.Params["param"])
		if err != nil {
			return nil, err
		}
		if !changed {
			return []Change{{Path: file, Action: "unchanged"}}, nil
		}
		return []Change{
			{Path: file, Action: "modify", Diff: LineDiff(before, after)},
			{Action: fmt.Sprintf("regenerate %s boot configuration", style)},
		}, nil

	case registry.KindSearchIndexer:
		return []Change{{Action: fmt.Sprintf("disable %s", im.Param("tool", "balooctl"))}}, nil

	default:
		return nil, fmt.Errorf("unsupported knob implementation kind %q", im.Kind)
	}
}

func fileChange(path string, existed, changed bool, before, after string) []Change {
	if !changed {
		return []Change{{Path: path, Action: "unchanged"}}
	}
	action := "modify"
	if !existed {
		action = "create"
	}
	return []Change{{Path: path, Action: action, Diff: LineDiff(before, after)}}
}

func readIfPresent(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// LineDiff renders a line-based diff with -/+/space prefixes.
func LineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		text := strings.TrimRight(d.Text, "\n")
		if text == "" && d.Text != "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
