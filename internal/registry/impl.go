package registry

import (
	"fmt"
	"strings"
)

// ImplKind names one of the closed set of knob implementation kinds. The
// apply and restore engines dispatch exhaustively over this set; an unknown
// kind is rejected at load time, never discovered mid-apply.
type ImplKind string

const (
	// KindFileMerge appends required lines to a shared config file,
	// preserving everything already there. Params: path, lines.
	KindFileMerge ImplKind = "file_merge"
	// KindFileWrite writes a file the tool owns outright. Params: path, content.
	KindFileWrite ImplKind = "file_write"
	// KindSysctl writes a sysctl drop-in and loads it. Params: key, value.
	KindSysctl ImplKind = "sysctl"
	// KindSysfsWrite writes a live sysfs node. Params: path, value.
	KindSysfsWrite ImplKind = "sysfs_write"
	// KindServiceMask masks and stops systemd units. Params: units (comma-separated).
	KindServiceMask ImplKind = "service_mask"
	// KindKernelCmdline appends a kernel boot parameter. Params: param.
	KindKernelCmdline ImplKind = "kernel_cmdline"
	// KindSearchIndexer disables a desktop search indexer. Params: tool (optional).
	KindSearchIndexer ImplKind = "search_indexer"
)

// Impl is a knob's implementation descriptor: an operation kind plus
// free-form parameters, validated per kind when the registry loads.
type Impl struct {
	Kind   ImplKind          `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

var requiredParams = map[ImplKind][]string{
	KindFileMerge:     {"path", "lines"},
	KindFileWrite:     {"path", "content"},
	KindSysctl:        {"key", "value"},
	KindSysfsWrite:    {"path", "value"},
	KindServiceMask:   {"units"},
	KindKernelCmdline: {"param"},
	KindSearchIndexer: nil,
}

// Validate checks that the kind is known and its required params are present.
func (im *Impl) Validate() error {
	required, known := requiredParams[im.Kind]
	if !known {
		return fmt.Errorf("unknown impl kind %q", im.Kind)
	}
	for _, p := range required {
		if strings.TrimSpace(im.Params[p]) == "" {
			return fmt.Errorf("impl kind %s requires param %q", im.Kind, p)
		}
	}
	switch im.Kind {
	case KindSysfsWrite:
		if !strings.HasPrefix(im.Params["path"], "/sys/") {
			return fmt.Errorf("sysfs_write path must be under /sys/, got %q", im.Params["path"])
		}
	case KindKernelCmdline:
		if strings.ContainsAny(im.Params["param"], " \t") {
			return fmt.Errorf("kernel_cmdline param must be a single token, got %q", im.Params["param"])
		}
	}
	return nil
}

// Param returns a named parameter, or def when unset.
func (im *Impl) Param(name, def string) string {
	if v, ok := im.Params[name]; ok && v != "" {
		return v
	}
	return def
}

// UnitList splits the comma-separated units param.
func (im *Impl) UnitList() []string {
	var units []string
	for _, u := range strings.Split(im.Params["units"], ",") {
		if u = strings.TrimSpace(u); u != "" {
			units = append(units, u)
		}
	}
	return units
}

// Lines splits the newline-separated lines param, dropping blank lines.
func (im *Impl) Lines() []string {
	var lines []string
	for _, l := range strings.Split(im.Params["lines"], "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
