package api

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTaskFile writes content to a .ctrender.yaml in dir, failing the test
// on error, and returns its path.
func writeTaskFile(t *testing.T, dir, content string) string {
	t.Helper()
	f := filepath.Join(dir, ".ctrender.yaml")
	if err := os.WriteFile(f, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestLoadTaskFile_Valid(t *testing.T) {
	content := `
vars:
  env_name: prod
defaults:
  consul_addr: http://127.0.0.1:8500
  backup: true
renders:
  - name: app-config
    src: app.properties.ctmpl
    dest: /opt/app/conf/app.properties
    mode: "0600"
    owner: app
  - name: inline
    content: "static-line\n"
    dest: /etc/app/static.conf
    vault_addr: https://vault.example.com:8200
`
	dir := t.TempDir()
	f := writeTaskFile(t, dir, content)

	task, err := LoadTaskFile(f, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(task.Renders) != 2 {
		t.Fatalf("expected 2 renders, got %d", len(task.Renders))
	}
	if task.Dir != dir {
		t.Fatalf("expected Dir=%q, got %q", dir, task.Dir)
	}
	if task.Vars["env_name"] != "prod" {
		t.Fatalf("expected env_name=prod, got %v", task.Vars["env_name"])
	}

	first := task.Renders[0]
	if first.ConsulAddr != "http://127.0.0.1:8500" {
		t.Errorf("expected defaults to fill consul_addr, got %q", first.ConsulAddr)
	}
	if !first.BackupEnabled() {
		t.Error("expected defaults to enable backup")
	}
	if first.Origin() != OriginLocal {
		t.Errorf("expected local origin, got %v", first.Origin())
	}

	second := task.Renders[1]
	if second.Origin() != OriginInline {
		t.Errorf("expected inline origin, got %v", second.Origin())
	}
	if second.VaultAddr != "https://vault.example.com:8200" {
		t.Errorf("unexpected vault_addr %q", second.VaultAddr)
	}
}

func TestLoadTaskFile_NotFound(t *testing.T) {
	_, err := LoadTaskFile("/nonexistent/.ctrender.yaml", nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadTaskFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	f := writeTaskFile(t, dir, "renders: [\n")

	_, err := LoadTaskFile(f, nil)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "parsing task file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadTaskFile_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	f := writeTaskFile(t, dir, `
renders:
  - src: a.ctmpl
    content: "both"
    dest: /tmp/out
`)

	_, err := LoadTaskFile(f, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadTaskFile_EntryOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	f := writeTaskFile(t, dir, `
defaults:
  mode: "0644"
  owner: root
  env:
    SHARED: base
    REGION: eu
renders:
  - src: a.ctmpl
    dest: /tmp/a
    mode: "0600"
    env:
      REGION: us
`)

	task, err := LoadTaskFile(f, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := task.Renders[0]
	if r.Mode != "0600" {
		t.Errorf("entry mode should win, got %q", r.Mode)
	}
	if r.Owner != "root" {
		t.Errorf("default owner should fill, got %q", r.Owner)
	}
	if r.Env["SHARED"] != "base" || r.Env["REGION"] != "us" {
		t.Errorf("env merge wrong: %v", r.Env)
	}
}

func TestLoadTaskFile_DurationFields(t *testing.T) {
	dir := t.TempDir()
	f := writeTaskFile(t, dir, `
renders:
  - src: a.ctmpl
    dest: /tmp/a
    render_timeout: 30s
    render_retries: 2
    render_retry_wait: 500ms
`)

	task, err := LoadTaskFile(f, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := task.Renders[0]
	if r.RenderTimeout.Std() != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", r.RenderTimeout.Std())
	}
	if r.RenderRetries != 2 {
		t.Errorf("expected 2 retries, got %d", r.RenderRetries)
	}
	if r.RenderRetryWait.Std() != 500*time.Millisecond {
		t.Errorf("expected 500ms wait, got %v", r.RenderRetryWait.Std())
	}
}

func TestLoadTaskFile_BadDuration(t *testing.T) {
	dir := t.TempDir()
	f := writeTaskFile(t, dir, `
renders:
  - src: a.ctmpl
    dest: /tmp/a
    render_timeout: not-a-duration
`)

	_, err := LoadTaskFile(f, nil)
	if err == nil {
		t.Fatal("expected error for bad duration")
	}
	if !strings.Contains(err.Error(), "parsing duration") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadTaskFile_DuplicateDest(t *testing.T) {
	dir := t.TempDir()
	f := writeTaskFile(t, dir, `
renders:
  - src: a.ctmpl
    dest: /tmp/same
  - src: b.ctmpl
    dest: /tmp/same
`)

	_, err := LoadTaskFile(f, nil)
	if err == nil {
		t.Fatal("expected error for duplicate dest")
	}
	if !strings.Contains(err.Error(), "duplicate dest") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestContentBytes(t *testing.T) {
	tests := []struct {
		name    string
		content any
		want    string
	}{
		{"string", "plain text\n", "plain text\n"},
		{"mapping", map[string]any{"key": "value"}, `{"key":"value"}`},
		{"sequence", []any{"a", "b"}, `["a","b"]`},
		{"scalar", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Render{Content: tt.content}
			got, err := r.ContentBytes()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, string(got))
			}
		})
	}
}

func TestContentBytes_NoContent(t *testing.T) {
	r := Render{Src: "a.ctmpl"}
	if _, err := r.ContentBytes(); err == nil {
		t.Fatal("expected error for entry without content")
	}
}

func TestApplyEnvDefaults(t *testing.T) {
	env := map[string]string{
		EnvConsulToken: "consul-env-token",
		EnvVaultAddr:   "https://vault.env:8200",
		EnvVaultToken:  "vault-env-token",
	}
	getenv := func(key string) string { return env[key] }

	r := Render{ConsulToken: "explicit"}
	r.ApplyEnvDefaults(getenv)

	if r.ConsulToken != "explicit" {
		t.Errorf("explicit token should win, got %q", r.ConsulToken)
	}
	if r.VaultAddr != "https://vault.env:8200" {
		t.Errorf("vault_addr should default from env, got %q", r.VaultAddr)
	}
	if r.VaultToken != "vault-env-token" {
		t.Errorf("vault_token should default from env, got %q", r.VaultToken)
	}
}
