package api

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

// Validate checks the task configuration for errors. It runs before glob
// expansion; expanded entries stay valid by construction.
func (t *TaskFile) Validate() error {
	if len(t.Renders) == 0 {
		return fmt.Errorf("task file has no renders")
	}

	for i := range t.Renders {
		if err := t.Renders[i].validate(); err != nil {
			return fmt.Errorf("render %s: %w", entryLabel(i, &t.Renders[i]), err)
		}
	}

	return nil
}

func entryLabel(i int, r *Render) string {
	if r.Name != "" {
		return fmt.Sprintf("%q", r.Name)
	}
	return strconv.Itoa(i)
}

// ValidateRender checks a single entry outside task-file context, for
// callers that build entries programmatically.
func ValidateRender(r *Render) error {
	return r.validate()
}

func (r *Render) validate() error {
	if err := r.validateSource(); err != nil {
		return err
	}
	if err := r.validateDest(); err != nil {
		return err
	}
	if err := r.validateRemote(); err != nil {
		return err
	}
	if err := r.validateMode(); err != nil {
		return err
	}
	return r.validateRenderControl()
}

func (r *Render) validateSource() error {
	set := 0
	if r.Content != nil {
		set++
	}
	if r.Src != "" {
		set++
	}
	if r.SrcGlob != "" {
		set++
	}

	switch {
	case set == 0:
		return fmt.Errorf("one of content, src or src_glob is required")
	case set > 1:
		return fmt.Errorf("ambiguous source: content, src and src_glob are mutually exclusive")
	}

	if len(r.Exclude) > 0 && r.SrcGlob == "" {
		return fmt.Errorf("exclude requires src_glob")
	}
	return nil
}

func (r *Render) validateDest() error {
	if r.SrcGlob != "" {
		if r.Dest != "" {
			return fmt.Errorf("dest and src_glob are mutually exclusive, use dest_dir")
		}
		if r.DestDir == "" {
			return fmt.Errorf("dest_dir is required with src_glob")
		}
		return nil
	}

	if r.Dest == "" {
		return fmt.Errorf("dest is required")
	}
	if r.DestDir != "" {
		return fmt.Errorf("dest_dir requires src_glob")
	}
	return nil
}

func (r *Render) validateRemote() error {
	if !r.RemoteSrc {
		return nil
	}
	if r.SrcGlob != "" {
		return fmt.Errorf("src_glob cannot be combined with remote_src")
	}
	if r.Src == "" {
		return fmt.Errorf("remote_src requires src")
	}
	if r.RemoteHost == "" {
		return fmt.Errorf("remote_src requires remote_host")
	}
	return nil
}

func (r *Render) validateMode() error {
	switch r.Mode {
	case "":
		return nil
	case ModePreserve:
		if r.Content != nil {
			return fmt.Errorf("mode %q requires a local src, not inline content", ModePreserve)
		}
		if r.RemoteSrc {
			return fmt.Errorf("mode %q requires a local src, not a remote one", ModePreserve)
		}
		return nil
	default:
		_, err := ParseFileMode(r.Mode)
		return err
	}
}

// ParseFileMode accepts mode strings like "0644", "644" or "0o600".
// Setuid, setgid and sticky bits map onto their fs.FileMode flags.
func ParseFileMode(s string) (fs.FileMode, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0o"), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("mode %q is not an octal mode string or %q", s, ModePreserve)
	}
	if n > 0o7777 {
		return 0, fmt.Errorf("mode %q is out of range", s)
	}

	mode := fs.FileMode(n & 0o777)
	if n&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if n&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if n&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	return mode, nil
}

// FormatFileMode renders a mode as an octal string ParseFileMode accepts.
func FormatFileMode(mode fs.FileMode) string {
	n := uint32(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		n |= 0o4000
	}
	if mode&fs.ModeSetgid != 0 {
		n |= 0o2000
	}
	if mode&fs.ModeSticky != 0 {
		n |= 0o1000
	}
	return fmt.Sprintf("%04o", n)
}

func (r *Render) validateRenderControl() error {
	if r.RenderRetries < 0 {
		return fmt.Errorf("render_retries cannot be negative")
	}
	if r.RenderTimeout < 0 {
		return fmt.Errorf("render_timeout cannot be negative")
	}
	if r.RenderRetryWait < 0 {
		return fmt.Errorf("render_retry_wait cannot be negative")
	}

	switch r.RenderRetryBackoff {
	case "", BackoffFixed, BackoffLinear, BackoffExponential:
		return nil
	default:
		return fmt.Errorf("render_retry_backoff %q is not valid (valid: %s, %s, %s)",
			r.RenderRetryBackoff, BackoffFixed, BackoffLinear, BackoffExponential)
	}
}

// validateDestinations rejects duplicate destination paths after glob
// expansion; two entries writing the same file would race last-writer-wins.
func (t *TaskFile) validateDestinations() error {
	seen := make(map[string]string, len(t.Renders))
	for i := range t.Renders {
		r := &t.Renders[i]
		if first, ok := seen[r.Dest]; ok {
			return fmt.Errorf("render %s: duplicate dest %q (first used by render %s)",
				entryLabel(i, r), r.Dest, first)
		}
		seen[r.Dest] = entryLabel(i, r)
	}
	return nil
}
