package api

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// interpolate expands {{ }} expressions in the string fields of every
// entry against vars. Inline content is deliberately left untouched: it is
// renderer syntax and must reach the render subprocess verbatim.
func (t *TaskFile) interpolate(vars map[string]any) error {
	for i := range t.Renders {
		if err := t.Renders[i].interpolate(vars); err != nil {
			return fmt.Errorf("render %s: %w", entryLabel(i, &t.Renders[i]), err)
		}
	}
	return nil
}

func (r *Render) interpolate(vars map[string]any) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"name", &r.Name},
		{"src", &r.Src},
		{"src_glob", &r.SrcGlob},
		{"dest", &r.Dest},
		{"dest_dir", &r.DestDir},
		{"remote_host", &r.RemoteHost},
		{"consul_addr", &r.ConsulAddr},
		{"consul_token", &r.ConsulToken},
		{"vault_addr", &r.VaultAddr},
		{"vault_token", &r.VaultToken},
		{"mode", &r.Mode},
		{"owner", &r.Owner},
		{"group", &r.Group},
		{"validate", &r.Validate},
	}

	for _, f := range fields {
		out, err := interpolateString(*f.value, vars)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = out
	}

	for i, pattern := range r.Exclude {
		out, err := interpolateString(pattern, vars)
		if err != nil {
			return fmt.Errorf("exclude: %w", err)
		}
		r.Exclude[i] = out
	}

	for key, val := range r.Env {
		out, err := interpolateString(val, vars)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		r.Env[key] = out
	}

	return nil
}

// interpolateString expands a single field value. Values without template
// markers pass through untouched.
func interpolateString(s string, vars map[string]any) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	tmpl, err := template.New("field").Option("missingkey=error").Funcs(sprig.FuncMap()).Parse(s)
	if err != nil {
		return "", fmt.Errorf("parsing template expression %q: %w", s, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("expanding %q: %w", s, err)
	}
	return buf.String(), nil
}
