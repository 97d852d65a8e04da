package api

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultRendererBinary is the renderer executable looked up in PATH
	// when no explicit binary path is configured.
	DefaultRendererBinary = "consul-template"

	// TemplatesDir is the conventional subdirectory searched first when
	// resolving a relative template path against the task file directory.
	TemplatesDir = "templates"

	// ModePreserve carries the source file's permission bits over to the
	// destination instead of a fixed mode.
	ModePreserve = "preserve"

	// TemplateSuffix is stripped from glob matches when deriving the
	// destination filename of an expanded entry.
	TemplateSuffix = ".ctmpl"

	// Environment variables consulted when the matching field is unset.
	EnvConsulToken = "CONSUL_TOKEN"
	EnvVaultAddr   = "VAULT_ADDR"
	EnvVaultToken  = "VAULT_TOKEN"

	BackoffFixed       = "fixed"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// SourceOrigin identifies where a render entry's template comes from.
type SourceOrigin int

const (
	// OriginInline renders the entry's content field.
	OriginInline SourceOrigin = iota
	// OriginLocal renders a template file on this machine.
	OriginLocal
	// OriginRemote fetches the template from a remote host first.
	OriginRemote
)

func (o SourceOrigin) String() string {
	switch o {
	case OriginInline:
		return "inline"
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// TaskFile is the .ctrender.yaml configuration format.
type TaskFile struct {
	Vars     map[string]any `yaml:"vars"`
	Defaults *Defaults      `yaml:"defaults"`
	Renders  []Render       `yaml:"renders"`

	// Set by the loader, not from YAML.
	Dir      string `yaml:"-"`
	FilePath string `yaml:"-"`
}

// Render is one template-render-and-publish request.
type Render struct {
	Name string `yaml:"name"`

	// Source: exactly one of content, src, src_glob.
	Content any      `yaml:"content"`
	Src     string   `yaml:"src"`
	SrcGlob string   `yaml:"src_glob"`
	Exclude []string `yaml:"exclude"`

	// Destination: dest for content/src entries, dest_dir for src_glob.
	Dest    string `yaml:"dest"`
	DestDir string `yaml:"dest_dir"`

	RemoteSrc  bool   `yaml:"remote_src"`
	RemoteHost string `yaml:"remote_host"`

	ConsulAddr  string `yaml:"consul_addr"`
	ConsulToken string `yaml:"consul_token"`
	VaultAddr   string `yaml:"vault_addr"`
	VaultToken  string `yaml:"vault_token"`

	Mode  string `yaml:"mode"`
	Owner string `yaml:"owner"`
	Group string `yaml:"group"`

	Backup   *bool  `yaml:"backup,omitempty"`
	Validate string `yaml:"validate"`

	// Env overlays the process environment for the render subprocess,
	// key for key. Values win over inherited variables.
	Env map[string]string `yaml:"env"`

	RenderTimeout      Duration `yaml:"render_timeout"`
	RenderRetries      int      `yaml:"render_retries"`
	RenderRetryWait    Duration `yaml:"render_retry_wait"`
	RenderRetryBackoff string   `yaml:"render_retry_backoff"`
}

// Defaults supplies fallback values applied to every render entry that
// leaves the matching field unset. Entry values always win; env maps are
// merged key for key with the entry winning.
type Defaults struct {
	RemoteHost string `yaml:"remote_host"`

	ConsulAddr  string `yaml:"consul_addr"`
	ConsulToken string `yaml:"consul_token"`
	VaultAddr   string `yaml:"vault_addr"`
	VaultToken  string `yaml:"vault_token"`

	Mode  string `yaml:"mode"`
	Owner string `yaml:"owner"`
	Group string `yaml:"group"`

	Backup   *bool  `yaml:"backup,omitempty"`
	Validate string `yaml:"validate"`

	Env map[string]string `yaml:"env"`

	RenderTimeout      Duration `yaml:"render_timeout"`
	RenderRetries      int      `yaml:"render_retries"`
	RenderRetryWait    Duration `yaml:"render_retry_wait"`
	RenderRetryBackoff string   `yaml:"render_retry_backoff"`
}

// Origin reports the source origin of the entry. Only meaningful after
// validation; glob entries must be expanded first.
func (r *Render) Origin() SourceOrigin {
	switch {
	case r.Content != nil:
		return OriginInline
	case r.RemoteSrc:
		return OriginRemote
	default:
		return OriginLocal
	}
}

// DisplayName returns the entry name, falling back to the destination path.
func (r *Render) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.Dest != "" {
		return r.Dest
	}
	return r.DestDir
}

// BackupEnabled reports whether a backup of the destination was requested.
func (r *Render) BackupEnabled() bool {
	return r.Backup != nil && *r.Backup
}

// SrcRef returns the source reference reported back to the caller: the
// user-supplied path for file-backed entries, the empty string for inline
// content.
func (r *Render) SrcRef() string {
	return r.Src
}

// ContentBytes serializes the inline content for rendering: strings pass
// through raw, mappings and sequences serialize to JSON, any other scalar
// is formatted with fmt.Sprint.
func (r *Render) ContentBytes() ([]byte, error) {
	switch v := r.Content.(type) {
	case nil:
		return nil, fmt.Errorf("entry has no inline content")
	case string:
		return []byte(v), nil
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("serializing structured content: %w", err)
		}
		return data, nil
	default:
		return fmt.Appendf(nil, "%v", v), nil
	}
}

// ApplyEnvDefaults fills endpoint fields from the process environment when
// the task left them unset. Explicit task values always win.
func (r *Render) ApplyEnvDefaults(getenv func(string) string) {
	if r.ConsulToken == "" {
		r.ConsulToken = getenv(EnvConsulToken)
	}
	if r.VaultAddr == "" {
		r.VaultAddr = getenv(EnvVaultAddr)
	}
	if r.VaultToken == "" {
		r.VaultToken = getenv(EnvVaultToken)
	}
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
