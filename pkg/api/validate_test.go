package api

import (
	"strings"
	"testing"
)

func validRender() Render {
	return Render{Name: "resolv", Src: "resolv.conf.ctmpl", Dest: "/etc/resolv.conf"}
}

func TestValidate_ValidTask(t *testing.T) {
	task := &TaskFile{
		Renders: []Render{
			validRender(),
			{Name: "inline", Content: "{{ key \"a\" }}", Dest: "/etc/a.conf"},
			{Name: "tree", SrcGlob: "conf/**/*.ctmpl", DestDir: "/etc/app"},
		},
	}
	if err := task.Validate(); err != nil {
		t.Fatalf("expected valid task, got error: %v", err)
	}
}

func TestValidate_NoRenders(t *testing.T) {
	task := &TaskFile{}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for empty task")
	}
	if !strings.Contains(err.Error(), "no renders") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NoSource(t *testing.T) {
	task := &TaskFile{Renders: []Render{{Dest: "/etc/a.conf"}}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if !strings.Contains(err.Error(), "one of content, src or src_glob is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_AmbiguousSource(t *testing.T) {
	task := &TaskFile{Renders: []Render{
		{Content: "x", Src: "a.ctmpl", Dest: "/etc/a.conf"},
	}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for ambiguous source")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ExcludeWithoutGlob(t *testing.T) {
	r := validRender()
	r.Exclude = []string{"skip.ctmpl"}
	task := &TaskFile{Renders: []Render{r}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for exclude without src_glob")
	}
	if !strings.Contains(err.Error(), "exclude requires src_glob") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingDest(t *testing.T) {
	task := &TaskFile{Renders: []Render{{Name: "a", Src: "a.ctmpl"}}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for missing dest")
	}
	if !strings.Contains(err.Error(), "dest is required") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), `render "a"`) {
		t.Fatalf("error should name the entry: %v", err)
	}
}

func TestValidate_EntryLabelFallsBackToIndex(t *testing.T) {
	task := &TaskFile{Renders: []Render{
		validRender(),
		{Src: "b.ctmpl"},
	}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "render 1:") {
		t.Fatalf("error should name the entry by index: %v", err)
	}
}

func TestValidate_DestDirWithoutGlob(t *testing.T) {
	r := validRender()
	r.DestDir = "/etc/app"
	task := &TaskFile{Renders: []Render{r}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for dest_dir without src_glob")
	}
	if !strings.Contains(err.Error(), "dest_dir requires src_glob") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_GlobWithDest(t *testing.T) {
	task := &TaskFile{Renders: []Render{
		{SrcGlob: "*.ctmpl", Dest: "/etc/a.conf", DestDir: "/etc/app"},
	}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for dest with src_glob")
	}
	if !strings.Contains(err.Error(), "use dest_dir") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_GlobWithoutDestDir(t *testing.T) {
	task := &TaskFile{Renders: []Render{{SrcGlob: "*.ctmpl"}}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for src_glob without dest_dir")
	}
	if !strings.Contains(err.Error(), "dest_dir is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RemoteRequiresSrc(t *testing.T) {
	task := &TaskFile{Renders: []Render{
		{Content: "x", Dest: "/etc/a.conf", RemoteSrc: true, RemoteHost: "web1"},
	}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for remote_src without src")
	}
	if !strings.Contains(err.Error(), "remote_src requires src") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RemoteRequiresHost(t *testing.T) {
	r := validRender()
	r.RemoteSrc = true
	task := &TaskFile{Renders: []Render{r}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for remote_src without remote_host")
	}
	if !strings.Contains(err.Error(), "remote_src requires remote_host") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RemoteGlob(t *testing.T) {
	task := &TaskFile{Renders: []Render{
		{SrcGlob: "*.ctmpl", DestDir: "/etc/app", RemoteSrc: true, RemoteHost: "web1"},
	}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for src_glob with remote_src")
	}
	if !strings.Contains(err.Error(), "src_glob cannot be combined with remote_src") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Modes(t *testing.T) {
	tests := []struct {
		mode    string
		wantErr string
	}{
		{mode: ""},
		{mode: "0644"},
		{mode: "644"},
		{mode: "0o600"},
		{mode: "7777"},
		{mode: ModePreserve},
		{mode: "u+rwx", wantErr: "not an octal mode string"},
		{mode: "0999", wantErr: "not an octal mode string"},
		{mode: "17777", wantErr: "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			r := validRender()
			r.Mode = tt.mode
			err := (&TaskFile{Renders: []Render{r}}).Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected mode %q to be valid, got: %v", tt.mode, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for mode %q", tt.mode)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_PreserveNeedsLocalSrc(t *testing.T) {
	task := &TaskFile{Renders: []Render{
		{Content: "x", Dest: "/etc/a.conf", Mode: ModePreserve},
	}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error for preserve with inline content")
	}
	if !strings.Contains(err.Error(), "requires a local src") {
		t.Fatalf("unexpected error: %v", err)
	}

	task = &TaskFile{Renders: []Render{
		{Src: "a.ctmpl", Dest: "/etc/a.conf", Mode: ModePreserve, RemoteSrc: true, RemoteHost: "web1"},
	}}
	err = task.Validate()
	if err == nil {
		t.Fatal("expected error for preserve with remote src")
	}
	if !strings.Contains(err.Error(), "requires a local src") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RenderControl(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Render)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(r *Render) {},
		},
		{
			name: "explicit backoff",
			mutate: func(r *Render) {
				r.RenderRetries = 3
				r.RenderRetryBackoff = BackoffExponential
			},
		},
		{
			name:    "negative retries",
			mutate:  func(r *Render) { r.RenderRetries = -1 },
			wantErr: "render_retries cannot be negative",
		},
		{
			name:    "negative timeout",
			mutate:  func(r *Render) { r.RenderTimeout = -1 },
			wantErr: "render_timeout cannot be negative",
		},
		{
			name:    "negative wait",
			mutate:  func(r *Render) { r.RenderRetryWait = -1 },
			wantErr: "render_retry_wait cannot be negative",
		},
		{
			name:    "unknown backoff",
			mutate:  func(r *Render) { r.RenderRetryBackoff = "quadratic" },
			wantErr: "render_retry_backoff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRender()
			tt.mutate(&r)
			err := (&TaskFile{Renders: []Render{r}}).Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid render control, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseFileMode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0644", "0644"},
		{"644", "0644"},
		{"0o600", "0600"},
		{"4755", "4755"},
		{"2750", "2750"},
		{"1777", "1777"},
	}
	for _, tt := range tests {
		mode, err := ParseFileMode(tt.in)
		if err != nil {
			t.Fatalf("ParseFileMode(%q): %v", tt.in, err)
		}
		if got := FormatFileMode(mode); got != tt.want {
			t.Errorf("FormatFileMode(ParseFileMode(%q)) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := ParseFileMode("preserve"); err == nil {
		t.Error("ParseFileMode should reject non-octal strings")
	}
}

func TestValidateDestinations_Duplicate(t *testing.T) {
	task := &TaskFile{Renders: []Render{
		{Name: "first", Src: "a.ctmpl", Dest: "/etc/a.conf"},
		{Name: "second", Src: "b.ctmpl", Dest: "/etc/a.conf"},
	}}
	err := task.validateDestinations()
	if err == nil {
		t.Fatal("expected error for duplicate dest")
	}
	if !strings.Contains(err.Error(), `duplicate dest "/etc/a.conf"`) {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), `"first"`) {
		t.Fatalf("error should name the first entry: %v", err)
	}
}
