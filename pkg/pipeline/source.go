package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/systemstart/ctrender/pkg/api"
)

// resolveSource materializes the entry's template as a local file the
// renderer can read. Inline content and remote fetches land below the
// scratch directory, local sources are used in place.
func (p *Pipeline) resolveSource(ctx context.Context, entry *api.Render, taskDir, scratch string) (string, error) {
	switch entry.Origin() {
	case api.OriginInline:
		data, err := entry.ContentBytes()
		if err != nil {
			return "", stageError(KindConfig, err)
		}
		path, err := materializePath(scratch, "content")
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return "", newError(KindInternal, "could not write content temp file: %v", err)
		}
		return path, nil

	case api.OriginRemote:
		path, err := materializePath(scratch, filepath.Base(entry.Src))
		if err != nil {
			return "", err
		}
		if err := p.Fetcher.Fetch(ctx, entry.RemoteHost+":"+entry.Src, path); err != nil {
			return "", stageError(KindFetch, err)
		}
		return path, nil

	default:
		path, err := findLocalSource(taskDir, entry.Src)
		if err != nil {
			return "", stageError(KindSource, err)
		}
		return path, nil
	}
}

// materializePath reserves a scratch path for a template that has to be
// written locally first. Sources go into a subdirectory; the render output
// lands in the scratch root under the source basename.
func materializePath(scratch, name string) (string, error) {
	dir := filepath.Join(scratch, "src")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", newError(KindInternal, "could not create scratch source directory: %v", err)
	}
	return filepath.Join(dir, name), nil
}

// findLocalSource locates a relative src under the task directory, checking
// the templates/ subdirectory before the directory itself. Absolute paths
// are used as given but must exist.
func findLocalSource(taskDir, src string) (string, error) {
	if filepath.IsAbs(src) {
		if _, err := os.Stat(src); err != nil {
			return "", fmt.Errorf("could not find src=%s: %v", src, err)
		}
		return src, nil
	}

	candidates := []string{
		filepath.Join(taskDir, api.TemplatesDir, src),
		filepath.Join(taskDir, src),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not find src=%s under %s", src, taskDir)
}

// resolveMode turns the entry's mode field into the octal string handed to
// the publisher. Mode "preserve" copies the permission bits off the local
// source file.
func resolveMode(entry *api.Render, srcPath string) (string, error) {
	if entry.Mode != api.ModePreserve {
		return entry.Mode, nil
	}
	info, err := os.Stat(srcPath)
	if err != nil {
		return "", fmt.Errorf("could not stat src to preserve its mode: %v", err)
	}
	return api.FormatFileMode(info.Mode()), nil
}
