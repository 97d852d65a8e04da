package api

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// expandGlobs replaces every src_glob entry with one local-src entry per
// matching template file. Matching is relative to the task file directory;
// expanded entries carry the resolved absolute source path so that later
// lookup is unambiguous.
func (t *TaskFile) expandGlobs() error {
	expanded := make([]Render, 0, len(t.Renders))

	for i := range t.Renders {
		r := &t.Renders[i]
		if r.SrcGlob == "" {
			expanded = append(expanded, *r)
			continue
		}

		matches, err := matchTemplates(os.DirFS(t.Dir), r.SrcGlob, r.Exclude)
		if err != nil {
			return fmt.Errorf("render %s: %w", entryLabel(i, r), err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("render %s: src_glob %q matched no files", entryLabel(i, r), r.SrcGlob)
		}

		for _, match := range matches {
			expanded = append(expanded, r.expandMatch(t.Dir, match))
		}
	}

	t.Renders = expanded
	return nil
}

// expandMatch derives a concrete entry from one glob match. The destination
// filename is the match basename with a trailing template suffix removed.
func (r *Render) expandMatch(dir, match string) Render {
	e := *r
	e.SrcGlob = ""
	e.Exclude = nil
	e.DestDir = ""
	e.Src = filepath.Join(dir, filepath.FromSlash(match))
	e.Dest = filepath.Join(r.DestDir, destName(match))
	if r.Name != "" {
		e.Name = r.Name + ":" + match
	}
	return e
}

func destName(match string) string {
	base := filepath.Base(filepath.FromSlash(match))
	if trimmed := strings.TrimSuffix(base, TemplateSuffix); trimmed != "" {
		return trimmed
	}
	return base
}

// matchTemplates runs the include pattern and exclude patterns over fsys
// and returns the sorted matching files.
func matchTemplates(fsys fs.FS, include string, exclude []string) ([]string, error) {
	included, err := doublestar.Glob(fsys, include)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", include, err)
	}
	slices.Sort(included)
	included = slices.Compact(included)

	excluded, err := globAll(fsys, exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude filter: %w", err)
	}

	var result []string
	for _, m := range included {
		info, err := fs.Stat(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", m, err)
		}
		if info.IsDir() || slices.Contains(excluded, m) {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func globAll(fsys fs.FS, patterns []string) ([]string, error) {
	var result []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		result = append(result, matches...)
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}
