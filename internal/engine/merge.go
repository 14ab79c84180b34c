package engine

import "strings"

// MergeLines appends the required lines to content unless already present.
// Shared system files are merged, never clobbered: pre-existing lines keep
// their order, a required line that already exists (exact match after
// trimming) is not duplicated, and repeated merges are stable.
func MergeLines(content string, required []string) (string, bool) {
	existing := strings.Split(content, "\n")
	seen := make(map[string]struct{}, len(existing))
	for _, line := range existing {
		seen[strings.TrimSpace(line)] = struct{}{}
	}

	var missing []string
	for _, line := range required {
		if _, ok := seen[strings.TrimSpace(line)]; ok {
			continue
		}
		missing = append(missing, line)
		seen[strings.TrimSpace(line)] = struct{}{}
	}
	if len(missing) == 0 {
		return content, false
	}

	out := content
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	out += strings.Join(missing, "\n") + "\n"
	return out, true
}
