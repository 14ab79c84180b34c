// Package bootcfg edits the kernel command line across the two boot
// configuration styles found on hosts: a plain single-line parameter list
// (/etc/kernel/cmdline) and a shell-variable-style file (/etc/default/grub).
// After an edit the style's regeneration command must run for the change to
// reach the boot loader.
package bootcfg

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tkerrors "git.home.luguber.info/inful/tweakctl/internal/errors"
	"git.home.luguber.info/inful/tweakctl/internal/sysexec"
)

// Style names the host's boot configuration flavor.
type Style string

const (
	// StyleCmdline is a single-line token list, e.g. /etc/kernel/cmdline.
	StyleCmdline Style = "cmdline"
	// StyleGrub is /etc/default/grub with GRUB_CMDLINE_LINUX_DEFAULT="...".
	StyleGrub Style = "grub"
)

const grubVar = "GRUB_CMDLINE_LINUX_DEFAULT"

// Editor detects and edits the host's boot configuration.
type Editor struct {
	runner  sysexec.Runner
	timeout time.Duration

	cmdlinePath string
	grubPath    string
}

// NewEditor builds an Editor with the standard file locations.
func NewEditor(runner sysexec.Runner, timeout time.Duration) *Editor {
	return &Editor{
		runner:      runner,
		timeout:     timeout,
		cmdlinePath: "/etc/kernel/cmdline",
		grubPath:    "/etc/default/grub",
	}
}

// WithPaths overrides the probed file locations (tests).
func (e *Editor) WithPaths(cmdline, grub string) *Editor {
	e.cmdlinePath = cmdline
	e.grubPath = grub
	return e
}

// Detect reports the host's boot configuration style and the file to edit.
func (e *Editor) Detect() (Style, string, error) {
	if _, err := os.Stat(e.cmdlinePath); err == nil {
		return StyleCmdline, e.cmdlinePath, nil
	}
	if _, err := os.Stat(e.grubPath); err == nil {
		return StyleGrub, e.grubPath, nil
	}
	return "", "", tkerrors.New(tkerrors.CategoryState, tkerrors.SeverityError,
		"no supported boot configuration found")
}

// Tokens splits a kernel command line into its parameter tokens.
func Tokens(line string) []string {
	return strings.Fields(line)
}

// CmdlineValue extracts the kernel parameter list from a boot config file's
// content for the given style.
func CmdlineValue(style Style, content string) string {
	if style == StyleGrub {
		for _, line := range strings.Split(content, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, grubVar+"=") {
				return strings.Trim(strings.TrimPrefix(trimmed, grubVar+"="), `"'`)
			}
		}
		return ""
	}
	return strings.TrimRight(content, "\n")
}

// TokenPresent reports whether param is already on the command line. The
// match is exact per token: no substring matches, so "threadirqs" is absent
// from ["nothreadirqs"]. A bare key also matches its valued form, so
// "mitigations" is present given "mitigations=off".
func TokenPresent(tokens []string, param string) bool {
	bareKey := !strings.Contains(param, "=")
	for _, tok := range tokens {
		if tok == param {
			return true
		}
		if bareKey && strings.HasPrefix(tok, param+"=") {
			return true
		}
	}
	return false
}

// AddParam appends param to file unless already present. Returns whether the
// file changed; a present parameter is left untouched, which keeps repeated
// applies from stacking duplicates. The caller is responsible for capturing a
// backup of file before calling.
func (e *Editor) AddParam(style Style, file, param string) (bool, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return false, fmt.Errorf("read boot config %s: %w", file, err)
	}

	switch style {
	case StyleCmdline:
		line := strings.TrimRight(string(data), "\n")
		if TokenPresent(Tokens(line), param) {
			return false, nil
		}
		line = strings.TrimSpace(line + " " + param)
		return true, os.WriteFile(file, []byte(line+"\n"), fileMode(file))
	case StyleGrub:
		updated, changed, err := editGrubLine(string(data), func(tokens []string) ([]string, bool) {
			if TokenPresent(tokens, param) {
				return tokens, false
			}
			return append(tokens, param), true
		})
		if err != nil || !changed {
			return false, err
		}
		return true, os.WriteFile(file, []byte(updated), fileMode(file))
	default:
		return false, fmt.Errorf("unknown boot configuration style %q", style)
	}
}

// RenderAdd computes the file content AddParam would produce, without
// writing anything. Returns the current content, the would-be content and
// whether they differ.
func (e *Editor) RenderAdd(style Style, file, param string) (before, after string, changed bool, err error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", "", false, fmt.Errorf("read boot config %s: %w", file, err)
	}
	before = string(data)

	switch style {
	case StyleCmdline:
		line := strings.TrimRight(before, "\n")
		if TokenPresent(Tokens(line), param) {
			return before, before, false, nil
		}
		return before, strings.TrimSpace(line+" "+param) + "\n", true, nil
	case StyleGrub:
		after, changed, err = editGrubLine(before, func(tokens []string) ([]string, bool) {
			if TokenPresent(tokens, param) {
				return tokens, false
			}
			return append(tokens, param), true
		})
		return before, after, changed, err
	default:
		return "", "", false, fmt.Errorf("unknown boot configuration style %q", style)
	}
}

// RemoveParam removes the exact param token from file. Removal is exact: it
// never touches a differently-valued token for the same key, because that
// token was not the one this tool added.
func (e *Editor) RemoveParam(style Style, file, param string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read boot config %s: %w", file, err)
	}

	drop := func(tokens []string) ([]string, bool) {
		kept := tokens[:0]
		changed := false
		for _, tok := range tokens {
			if tok == param {
				changed = true
				continue
			}
			kept = append(kept, tok)
		}
		return kept, changed
	}

	switch style {
	case StyleCmdline:
		tokens, changed := drop(Tokens(strings.TrimRight(string(data), "\n")))
		if !changed {
			return nil
		}
		return os.WriteFile(file, []byte(strings.Join(tokens, " ")+"\n"), fileMode(file))
	case StyleGrub:
		updated, changed, err := editGrubLine(string(data), drop)
		if err != nil || !changed {
			return err
		}
		return os.WriteFile(file, []byte(updated), fileMode(file))
	default:
		return fmt.Errorf("unknown boot configuration style %q", style)
	}
}

// Regenerate runs the style's boot-config regeneration command.
func (e *Editor) Regenerate(ctx context.Context, style Style) error {
	var candidates [][]string
	switch style {
	case StyleGrub:
		candidates = [][]string{
			{"update-grub"},
			{"grub2-mkconfig", "-o", "/boot/grub2/grub.cfg"},
			{"grub-mkconfig", "-o", "/boot/grub/grub.cfg"},
		}
	case StyleCmdline:
		candidates = [][]string{
			{"kernel-install", "add-all"},
			{"bootctl", "update"},
		}
	default:
		return fmt.Errorf("unknown boot configuration style %q", style)
	}

	for _, cand := range candidates {
		if _, err := e.runner.LookPath(cand[0]); err != nil {
			continue
		}
		res, err := e.runner.Run(ctx, e.timeout, cand[0], cand[1:]...)
		if err != nil {
			return tkerrors.Wrap(err, tkerrors.CategoryExternal, tkerrors.SeverityError, "regenerate boot configuration")
		}
		if res.ExitCode != 0 {
			return tkerrors.External(fmt.Errorf("exit status %d", res.ExitCode), res.Command, res.ExitCode, res.Stderr)
		}
		return nil
	}
	return tkerrors.New(tkerrors.CategoryExternal, tkerrors.SeverityError,
		"no boot-config regeneration command available")
}

// editGrubLine rewrites the GRUB_CMDLINE_LINUX_DEFAULT assignment, leaving
// every other line untouched. The assignment is appended when missing.
func editGrubLine(content string, edit func([]string) ([]string, bool)) (string, bool, error) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, grubVar+"=") {
			continue
		}
		value := strings.TrimPrefix(trimmed, grubVar+"=")
		value = strings.Trim(value, `"'`)
		tokens, changed := edit(Tokens(value))
		if !changed {
			return content, false, nil
		}
		lines[i] = fmt.Sprintf(`%s="%s"`, grubVar, strings.Join(tokens, " "))
		return strings.Join(lines, "\n"), true, nil
	}

	tokens, changed := edit(nil)
	if !changed {
		return content, false, nil
	}
	if !strings.HasSuffix(content, "\n") && content != "" {
		content += "\n"
	}
	content += fmt.Sprintf("%s=\"%s\"\n", grubVar, strings.Join(tokens, " "))
	return content, true, nil
}

func fileMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}
