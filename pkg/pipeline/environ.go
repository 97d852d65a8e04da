package pipeline

import (
	"slices"
	"strings"
)

// MergeEnviron overlays task-scoped variables onto a base environment in
// "KEY=value" form. Override keys replace base entries key-for-key, new
// keys are appended in sorted order. Neither input is mutated.
func MergeEnviron(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return slices.Clone(base)
	}

	used := make(map[string]bool, len(overrides))
	merged := make([]string, 0, len(base)+len(overrides))

	for _, entry := range base {
		key, _, ok := strings.Cut(entry, "=")
		if ok {
			if v, has := overrides[key]; has {
				merged = append(merged, key+"="+v)
				used[key] = true
				continue
			}
		}
		merged = append(merged, entry)
	}

	extra := make([]string, 0, len(overrides))
	for k := range overrides {
		if !used[k] {
			extra = append(extra, k+"="+overrides[k])
		}
	}
	slices.Sort(extra)

	return append(merged, extra...)
}
