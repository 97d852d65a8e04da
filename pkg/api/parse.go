package api

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadTaskFile reads a .ctrender.yaml file and prepares it for execution:
// defaults are applied to every entry, string fields are interpolated
// against the merged vars (globalVars under the file's own vars, file
// wins), glob entries are expanded, and the result is validated.
func LoadTaskFile(filename string, globalVars map[string]any) (*TaskFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}

	var t TaskFile
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	t.FilePath = absPath
	t.Dir = filepath.Dir(absPath)

	t.applyDefaults()

	if err := t.interpolate(MergeVars(globalVars, t.Vars)); err != nil {
		return nil, fmt.Errorf("interpolating task %s: %w", filename, err)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validating task %s: %w", filename, err)
	}

	if err := t.expandGlobs(); err != nil {
		return nil, fmt.Errorf("expanding globs in task %s: %w", filename, err)
	}

	if err := t.validateDestinations(); err != nil {
		return nil, fmt.Errorf("validating task %s: %w", filename, err)
	}

	return &t, nil
}

func (t *TaskFile) applyDefaults() {
	d := t.Defaults
	if d == nil {
		return
	}

	for i := range t.Renders {
		r := &t.Renders[i]

		if r.RemoteHost == "" {
			r.RemoteHost = d.RemoteHost
		}
		if r.ConsulAddr == "" {
			r.ConsulAddr = d.ConsulAddr
		}
		if r.ConsulToken == "" {
			r.ConsulToken = d.ConsulToken
		}
		if r.VaultAddr == "" {
			r.VaultAddr = d.VaultAddr
		}
		if r.VaultToken == "" {
			r.VaultToken = d.VaultToken
		}
		if r.Mode == "" {
			r.Mode = d.Mode
		}
		if r.Owner == "" {
			r.Owner = d.Owner
		}
		if r.Group == "" {
			r.Group = d.Group
		}
		if r.Backup == nil {
			r.Backup = d.Backup
		}
		if r.Validate == "" {
			r.Validate = d.Validate
		}
		if r.RenderTimeout == 0 {
			r.RenderTimeout = d.RenderTimeout
		}
		if r.RenderRetries == 0 {
			r.RenderRetries = d.RenderRetries
		}
		if r.RenderRetryWait == 0 {
			r.RenderRetryWait = d.RenderRetryWait
		}
		if r.RenderRetryBackoff == "" {
			r.RenderRetryBackoff = d.RenderRetryBackoff
		}

		if len(d.Env) > 0 {
			merged := make(map[string]string, len(d.Env)+len(r.Env))
			maps.Copy(merged, d.Env)
			maps.Copy(merged, r.Env)
			r.Env = merged
		}
	}
}
