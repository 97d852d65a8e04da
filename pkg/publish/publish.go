package publish

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/systemstart/ctrender/pkg/api"
)

// Request asks for one rendered file to be placed at a destination.
// It deliberately carries only filesystem-level parameters.
type Request struct {
	Src      string // rendered artifact to publish
	Dest     string // final destination path
	Mode     string // octal mode string, empty keeps the existing or default mode
	Owner    string // user name or uid, empty leaves ownership alone
	Group    string // group name or gid, empty leaves ownership alone
	Backup   bool   // keep a timestamped copy of a replaced destination
	Validate string // command run against the candidate file, %s placeholder
	ShowDiff bool   // include a content diff in the result
	Check    bool   // report changes without applying them
}

// Result reports what Place changed.
type Result struct {
	Changed    bool   `yaml:"changed" json:"changed"`
	Diff       []Diff `yaml:"diff,omitempty" json:"diff,omitempty"`
	BackupFile string `yaml:"backup_file,omitempty" json:"backup_file,omitempty"`
}

// LocalPlacer publishes rendered files onto the local filesystem.
type LocalPlacer struct{}

// Place writes the rendered file at req.Src to req.Dest, idempotently.
// Byte-identical content leaves the destination untouched; mode and
// ownership are applied only when they differ from the current state.
// In check mode nothing is mutated and the result reports what would
// have changed.
func (LocalPlacer) Place(ctx context.Context, req Request) (Result, error) {
	var res Result
	if req.Dest == "" {
		return res, fmt.Errorf("missing destination")
	}

	content, err := os.ReadFile(req.Src)
	if err != nil {
		return res, fmt.Errorf("reading rendered file: %w", err)
	}

	existing, existingInfo, err := readExisting(req.Dest)
	if err != nil {
		return res, err
	}
	exists := existingInfo != nil

	if req.Validate != "" {
		if err := runValidate(ctx, req.Validate, req.Src); err != nil {
			return res, err
		}
	}

	var (
		wantMode fs.FileMode
		hasMode  = req.Mode != ""
	)
	if hasMode {
		wantMode, err = api.ParseFileMode(req.Mode)
		if err != nil {
			return res, err
		}
	}

	uid, gid, err := resolveOwnership(req.Owner, req.Group)
	if err != nil {
		return res, err
	}

	contentChanged := !exists || !bytes.Equal(existing, content)

	if req.ShowDiff && contentChanged {
		res.Diff = []Diff{newDiff(string(existing), string(content), req.Dest)}
	}

	if contentChanged {
		res.Changed = true
		if req.Backup && exists {
			res.BackupFile = backupPath(req.Dest, time.Now())
		}
		if !req.Check {
			if res.BackupFile != "" {
				if err := copyFile(req.Dest, res.BackupFile); err != nil {
					return res, fmt.Errorf("writing backup: %w", err)
				}
			}
			if err := atomicWrite(req.Dest, content, writeMode(wantMode, hasMode, existingInfo)); err != nil {
				return res, fmt.Errorf("writing %s: %w", req.Dest, err)
			}
		}
	}

	attrChanged, err := syncAttributes(req.Dest, wantMode, hasMode, uid, gid, req.Check)
	if err != nil {
		return res, err
	}
	if attrChanged {
		res.Changed = true
	}

	return res, nil
}

// writeMode picks the mode for a fresh write: the requested mode, else the
// mode of the file being replaced, else 0644.
func writeMode(want fs.FileMode, has bool, existing fs.FileInfo) fs.FileMode {
	if has {
		return want
	}
	if existing != nil {
		return modeBits(existing.Mode())
	}
	return 0o644
}

// syncAttributes compares the destination's mode and ownership to the
// requested values and applies the difference. A missing destination is
// not an error here; content placement reports that case.
func syncAttributes(dest string, wantMode fs.FileMode, hasMode bool, uid, gid int, check bool) (bool, error) {
	info, err := os.Stat(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", dest, err)
	}

	changed := false

	if hasMode && modeBits(info.Mode()) != wantMode {
		changed = true
		if !check {
			if err := os.Chmod(dest, wantMode); err != nil {
				return false, fmt.Errorf("chmod %s: %w", dest, err)
			}
		}
	}

	if uid != -1 || gid != -1 {
		curUID, curGID, ok := currentOwnership(info)
		needChown := !ok ||
			(uid != -1 && curUID != uid) ||
			(gid != -1 && curGID != gid)
		if needChown {
			changed = true
			if !check {
				if err := chown(dest, uid, gid); err != nil {
					return false, fmt.Errorf("chown %s: %w", dest, err)
				}
			}
		}
	}

	return changed, nil
}

// modeBits reduces a file mode to the bits an octal mode string can carry.
func modeBits(m fs.FileMode) fs.FileMode {
	return m.Perm() | m&(fs.ModeSetuid|fs.ModeSetgid|fs.ModeSticky)
}

// runValidate executes the validation command against the candidate file
// before the destination is touched. The command must reference the file
// through a %s placeholder.
func runValidate(ctx context.Context, command, path string) error {
	if !strings.Contains(command, "%s") {
		return fmt.Errorf("validate command %q must contain %%s", command)
	}

	parts := strings.Fields(strings.ReplaceAll(command, "%s", path))
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("validate command failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
